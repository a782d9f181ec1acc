package mentor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	reply string
	err   error
	block bool
	calls atomic.Int32
	last  atomic.Value
}

func (f *fakeBackend) Complete(ctx context.Context, r Request, key string) (string, error) {
	f.calls.Add(1)
	f.last.Store(r)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.err
}

func TestReferenceLinks(t *testing.T) {
	cases := []struct {
		query string
		want  int
	}{
		{"How much should I SAVE every month?", 2},
		{"मैं हर महीने कितना पैसा बचाऊं?", 2},
		{"बचत कैसे करें", 2},
		{"पैसे कैसे बचाने चाहिए", 2},
		{"धोखाधड़ी से बचाव कैसे करें?", 0},
		{"बचाव के साथ बिजनेस", 1},
		{"How to start small business?", 1},
		{"छोटे बिजनेस कैसे शुरू करें?", 1},
		{"savings for my business", 2},
		{"Where to invest money?", 0},
		{"", 0},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			got := ReferenceLinks(tc.query)
			assert.Len(t, got, tc.want)
			assert.Equal(t, got, ReferenceLinks(tc.query))
		})
	}
}

func TestReferenceLinksReturnsCopy(t *testing.T) {
	got := ReferenceLinks("save")
	got[0].Title = "changed"
	assert.NotEqual(t, "changed", ReferenceLinks("save")[0].Title)
}

func TestRequestPrompt(t *testing.T) {
	r := Request{Persona: "be kind", Query: "hi"}
	assert.Equal(t, "be kind\n\nUser question: hi", r.Prompt())
	assert.Equal(t, "hi", Request{Query: "hi"}.Prompt())
}

func TestResponderMissingCredential(t *testing.T) {
	b := &fakeBackend{reply: "should not be used"}
	r := NewResponder(b, time.Second)

	assert.Equal(t, MissingCredentialReply, r.Generate(context.Background(), "How much should I save?", ""))
	assert.Equal(t, MissingCredentialReply, r.Generate(context.Background(), "hi", "   "))
	assert.Zero(t, b.calls.Load())
}

func TestResponderSuccess(t *testing.T) {
	b := &fakeBackend{reply: "  अपनी आय का 20% बचाएं | Save 20% of your income \n"}
	r := NewResponder(b, time.Second)

	got := r.Generate(context.Background(), "How much should I save?", "key")
	assert.Equal(t, "अपनी आय का 20% बचाएं | Save 20% of your income", got)

	req := b.last.Load().(Request)
	assert.Equal(t, Persona, req.Persona)
	assert.Equal(t, "How much should I save?", req.Query)
}

func TestResponderFailuresBecomeApology(t *testing.T) {
	cases := map[string]*fakeBackend{
		"error": {err: errors.New("connection refused")},
		"empty": {reply: "  "},
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			r := NewResponder(b, time.Second)
			assert.Equal(t, ApologyReply, r.Generate(context.Background(), "hi", "key"))
		})
	}

	assert.Equal(t, ApologyReply, NewResponder(nil, 0).Generate(context.Background(), "hi", "key"))
}

func TestResponderTimeout(t *testing.T) {
	b := &fakeBackend{block: true}
	r := NewResponder(b, 20*time.Millisecond)

	start := time.Now()
	got := r.Generate(context.Background(), "hi", "key")
	require.Equal(t, ApologyReply, got)
	assert.Less(t, time.Since(start), time.Second)
}
