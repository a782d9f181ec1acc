package conversation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotWireForm(t *testing.T) {
	h := newHarness(t, nil)
	h.c.SetInput("draft")

	raw, err := json.Marshal(h.c.Snapshot())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"state":"idle"`)
	assert.Contains(t, string(raw), `"speaker":"assistant"`)

	var back Snapshot
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, Idle, back.State)
	assert.Equal(t, "draft", back.Input)
	require.Len(t, back.Transcript, 1)

	var s State
	assert.Error(t, s.UnmarshalText([]byte("dancing")))
	require.NoError(t, s.UnmarshalText([]byte("awaiting_response")))
	assert.Equal(t, AwaitingResponse, s)
}
