package ipc

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoReply struct {
	Cmd   string `json:"cmd"`
	Text  string `json:"text"`
	Index int    `json:"index"`
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.sock")
	srv, err := Listen(path, func(m ControlMessage) any {
		return echoReply{Cmd: m.Cmd, Text: m.Text, Index: m.Index}
	})
	require.NoError(t, err)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := Send(ctx, path, ControlMessage{Cmd: "ask", Text: "बचत", Index: 2})
	require.NoError(t, err)

	var got echoReply
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, echoReply{Cmd: "ask", Text: "बचत", Index: 2}, got)
}

func TestListenReplacesStaleSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.sock")
	first, err := Listen(path, func(ControlMessage) any { return "first" })
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Listen(path, func(ControlMessage) any { return "second" })
	require.NoError(t, err)
	defer second.Close()

	raw, err := Send(context.Background(), path, ControlMessage{Cmd: "status"})
	require.NoError(t, err)
	assert.JSONEq(t, `"second"`, string(raw))
}

func TestSendNoServer(t *testing.T) {
	_, err := Send(context.Background(), filepath.Join(t.TempDir(), "none.sock"), ControlMessage{Cmd: "status"})
	assert.Error(t, err)
}
