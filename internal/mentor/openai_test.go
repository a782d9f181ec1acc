package mentor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIComplete(t *testing.T) {
	var body struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Temperature float64 `json:"temperature"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "खाता खोलें | Open an account"}}]
		}`))
	}))
	defer srv.Close()

	o := NewOpenAI(srv.Client(), srv.URL, "")
	text, err := o.Complete(context.Background(), Request{Persona: "persona", Query: "bank?"}, "sk-test")
	require.NoError(t, err)
	assert.Equal(t, "खाता खोलें | Open an account", text)

	assert.Equal(t, DefaultOpenAIModel, body.Model)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "system", body.Messages[0].Role)
	assert.Equal(t, "persona", body.Messages[0].Content)
	assert.Equal(t, "user", body.Messages[1].Role)
	assert.Equal(t, "bank?", body.Messages[1].Content)
	assert.InDelta(t, 0.7, body.Temperature, 1e-9)
}

func TestOpenAIServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewOpenAI(srv.Client(), srv.URL, "m").Complete(context.Background(), Request{Query: "hi"}, "k")
	assert.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}
