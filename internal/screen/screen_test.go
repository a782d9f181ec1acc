package screen

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sakhi/internal/conversation"
	"sakhi/internal/mentor"
	"sakhi/internal/speech"
)

type cannedResponder struct{ reply string }

func (r cannedResponder) Generate(ctx context.Context, query, credential string) string {
	return r.reply
}

func (r cannedResponder) Links(query string) []mentor.Link { return mentor.ReferenceLinks(query) }

type quietTalker struct {
	mu     sync.Mutex
	said   []string
	closed bool
}

func (t *quietTalker) Supported() bool { return true }

func (t *quietTalker) Speak(text string, h speech.Handlers) error {
	t.mu.Lock()
	t.said = append(t.said, text)
	t.mu.Unlock()
	if h.OnStart != nil {
		h.OnStart()
	}
	return nil
}

func (t *quietTalker) Cancel() {}

func (t *quietTalker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *quietTalker) state() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.said), t.closed
}

type sink struct {
	mu     sync.Mutex
	events []Event
}

func (s *sink) Publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *sink) count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.Type == kind {
			n++
		}
	}
	return n
}

func (s *sink) views() []View {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []View
	for _, ev := range s.events {
		if ev.Type == "view" {
			out = append(out, ev.View)
		}
	}
	return out
}

func newScreen(t *testing.T, credential string) (*Screen, *sink, *quietTalker) {
	t.Helper()
	talker := &quietTalker{}
	out := &sink{}
	s := New(Config{
		Conversation: conversation.Options{
			Responder: cannedResponder{reply: "हर महीने थोड़ा बचाएं"},
			NewTalker: func() (conversation.Talker, error) { return talker, nil },
		},
		Credential: credential,
		FPS:        60,
	}, out)
	t.Cleanup(func() { _ = s.Close() })
	return s, out, talker
}

func TestSetupFlow(t *testing.T) {
	s, out, _ := newScreen(t, "")

	r := s.Handle(Command{Cmd: "open"})
	require.True(t, r.OK)
	assert.Equal(t, ViewSetup, r.View)
	assert.Nil(t, r.Snapshot)

	r = s.Handle(Command{Cmd: "credential", Text: "   "})
	assert.False(t, r.OK)
	assert.Equal(t, conversation.ErrEmptyCredential.Error(), r.Error)
	assert.Equal(t, ViewSetup, r.View)

	r = s.Handle(Command{Cmd: "cancel"})
	require.True(t, r.OK)
	assert.Equal(t, ViewHome, r.View)

	s.Handle(Command{Cmd: "open"})
	r = s.Handle(Command{Cmd: "credential", Text: "secret"})
	require.True(t, r.OK)
	assert.Equal(t, ViewMentor, r.View)
	require.NotNil(t, r.Snapshot)
	assert.True(t, r.Snapshot.HasCredential)
	assert.Len(t, r.Quick, len(mentor.QuickQuestions))

	assert.Equal(t, []View{ViewSetup, ViewHome, ViewSetup, ViewMentor}, out.views())
}

func TestPresetCredentialSkipsSetup(t *testing.T) {
	s, _, _ := newScreen(t, "preset")

	r := s.Handle(Command{Cmd: "OPEN "})
	require.True(t, r.OK)
	assert.Equal(t, ViewMentor, r.View)
	require.NotNil(t, r.Snapshot)
	assert.True(t, r.Snapshot.HasCredential)
}

func TestCommandsNeedTheRightView(t *testing.T) {
	s, _, _ := newScreen(t, "")

	r := s.Handle(Command{Cmd: "send", Text: "hello"})
	assert.False(t, r.OK)
	assert.Equal(t, ErrWrongView.Error(), r.Error)

	r = s.Handle(Command{Cmd: "credential", Text: "key"})
	assert.False(t, r.OK)
	assert.Equal(t, ErrWrongView.Error(), r.Error)

	r = s.Handle(Command{Cmd: "dance"})
	assert.False(t, r.OK)
	assert.Contains(t, r.Error, "unknown command")

	r = s.Handle(Command{Cmd: "status"})
	assert.True(t, r.OK)
	assert.Equal(t, ViewHome, r.View)
}

func TestSendSpeaksAndStop(t *testing.T) {
	s, out, talker := newScreen(t, "preset")
	require.True(t, s.Handle(Command{Cmd: "open"}).OK)

	r := s.Handle(Command{Cmd: "send", Text: "How to save?"})
	require.True(t, r.OK, r.Error)
	require.Eventually(t, func() bool { n, _ := talker.state(); return n == 1 }, time.Second, time.Millisecond)

	r = s.Handle(Command{Cmd: "status"})
	require.NotNil(t, r.Snapshot)
	assert.Equal(t, conversation.Speaking, r.Snapshot.State)
	assert.Len(t, r.Snapshot.Transcript, 3)

	r = s.Handle(Command{Cmd: "stop"})
	require.True(t, r.OK)
	assert.Equal(t, conversation.Idle, r.Snapshot.State)

	assert.Positive(t, out.count("snapshot"))
	require.Eventually(t, func() bool { return out.count("frame") > 0 }, time.Second, time.Millisecond)
}

func TestInputAndQuickQuestion(t *testing.T) {
	s, _, _ := newScreen(t, "preset")
	s.Handle(Command{Cmd: "open"})

	r := s.Handle(Command{Cmd: "input", Text: "draft"})
	require.True(t, r.OK)
	assert.Equal(t, "draft", r.Snapshot.Input)

	r = s.Handle(Command{Cmd: "quick", Index: 2})
	require.True(t, r.OK)
	assert.Equal(t, mentor.QuickQuestions[2], r.Snapshot.Input)

	r = s.Handle(Command{Cmd: "quick", Index: 9})
	assert.False(t, r.OK)
	assert.Equal(t, conversation.ErrNoSuchQuestion.Error(), r.Error)
}

func TestBackClosesSession(t *testing.T) {
	s, _, talker := newScreen(t, "preset")
	s.Handle(Command{Cmd: "open"})
	require.True(t, s.Handle(Command{Cmd: "send", Text: "hi"}).OK)
	require.Eventually(t, func() bool { n, _ := talker.state(); return n == 1 }, time.Second, time.Millisecond)

	r := s.Handle(Command{Cmd: "back"})
	require.True(t, r.OK)
	assert.Equal(t, ViewHome, r.View)
	assert.Nil(t, r.Snapshot)
	_, closed := talker.state()
	assert.True(t, closed)

	// a new session starts fresh
	r = s.Handle(Command{Cmd: "open"})
	require.True(t, r.OK)
	assert.Len(t, r.Snapshot.Transcript, 1)
}

func TestClosedScreenStaysHome(t *testing.T) {
	s, _, _ := newScreen(t, "preset")
	require.NoError(t, s.Close())

	r := s.Handle(Command{Cmd: "open"})
	assert.False(t, r.OK)
	assert.Equal(t, ViewHome, r.View)
	assert.Equal(t, conversation.ErrClosed.Error(), r.Error)
}
