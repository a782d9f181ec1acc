// Package screen is the mentor screen as the browser sees it: a small view
// gate (home, setup, mentor) in front of one conversation controller, plus the
// websocket hub and HTTP server that carry commands in and events out.
package screen

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"sync"

	"sakhi/internal/conversation"
	"sakhi/internal/presence"
)

type View string

const (
	ViewHome   View = "home"
	ViewSetup  View = "setup"
	ViewMentor View = "mentor"
)

var (
	ErrWrongView      = errors.New("screen: command not available in this view")
	ErrUnknownCommand = errors.New("screen: unknown command")
)

// Command is one user action. Text and Index are used by some commands only.
type Command struct {
	Cmd   string `json:"cmd"`
	Text  string `json:"text,omitempty"`
	Index int    `json:"index,omitempty"`
}

type Reply struct {
	OK       bool                   `json:"ok"`
	Error    string                 `json:"error,omitempty"`
	View     View                   `json:"view"`
	Quick    []string               `json:"quick,omitempty"`
	Snapshot *conversation.Snapshot `json:"snapshot,omitempty"`
}

type Event struct {
	Type     string                 `json:"type"`
	View     View                   `json:"view,omitempty"`
	Quick    []string               `json:"quick,omitempty"`
	Snapshot *conversation.Snapshot `json:"snapshot,omitempty"`
	Notice   *conversation.Notice   `json:"notice,omitempty"`
	Frame    *presence.Frame        `json:"frame,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// Sink receives every event the screen produces.
type Sink interface {
	Publish(Event)
}

type Config struct {
	// Template for each controller; observers are filled in by the screen.
	Conversation conversation.Options

	// Credential, when set, skips the setup view.
	Credential string

	FPS int
}

type Screen struct {
	cfg  Config
	sink Sink

	mu         sync.Mutex
	view       View
	ctrl       *conversation.Controller
	stopFrames context.CancelFunc
	closed     bool
}

func New(cfg Config, sink Sink) *Screen {
	return &Screen{cfg: cfg, sink: sink, view: ViewHome}
}

func (s *Screen) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Handle runs one command and reports the resulting view.
func (s *Screen) Handle(cmd Command) Reply {
	name := strings.ToLower(strings.TrimSpace(cmd.Cmd))
	log.Debug("screen command", "cmd", name, "view", s.View())

	var err error
	switch name {
	case "open":
		err = s.open()
	case "credential":
		err = s.enter(cmd.Text)
	case "cancel":
		err = s.cancelSetup()
	case "back":
		err = s.back()
	case "status":
	default:
		err = s.mentor(name, cmd)
	}
	return s.reply(err)
}

func (s *Screen) reply(err error) Reply {
	s.mu.Lock()
	r := Reply{OK: err == nil, View: s.view}
	ctrl := s.ctrl
	s.mu.Unlock()

	if err != nil {
		r.Error = err.Error()
	}
	if ctrl != nil {
		snap := ctrl.Snapshot()
		r.Snapshot = &snap
		r.Quick = ctrl.QuickQuestions()
	}
	return r
}

func (s *Screen) open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return conversation.ErrClosed
	}
	if s.view != ViewHome {
		return nil
	}
	if s.cfg.Credential != "" {
		return s.startLocked(s.cfg.Credential)
	}
	s.setViewLocked(ViewSetup)
	return nil
}

func (s *Screen) enter(credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.view != ViewSetup {
		return ErrWrongView
	}
	if strings.TrimSpace(credential) == "" {
		return conversation.ErrEmptyCredential
	}
	return s.startLocked(credential)
}

func (s *Screen) startLocked(credential string) error {
	opts := s.cfg.Conversation
	opts.OnChange = func(snap conversation.Snapshot) {
		s.sink.Publish(Event{Type: "snapshot", Snapshot: &snap})
	}
	opts.OnNotice = func(n conversation.Notice) {
		s.sink.Publish(Event{Type: "notice", Notice: &n})
	}

	ctrl := conversation.New(opts)
	if err := ctrl.SetCredential(credential); err != nil {
		_ = ctrl.Close()
		return fmt.Errorf("credential: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	anim := presence.NewAnimator(ctrl, s.cfg.FPS)
	go func() {
		_ = anim.Run(ctx, func(f presence.Frame) {
			s.sink.Publish(Event{Type: "frame", Frame: &f})
		})
	}()

	s.ctrl = ctrl
	s.stopFrames = cancel
	s.setViewLocked(ViewMentor)
	log.Info("mentor session started")
	return nil
}

func (s *Screen) cancelSetup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.view != ViewSetup {
		return ErrWrongView
	}
	s.setViewLocked(ViewHome)
	return nil
}

// back discards the conversation and its credential.
func (s *Screen) back() error {
	s.mu.Lock()
	if s.view == ViewHome {
		s.mu.Unlock()
		return nil
	}
	ctrl := s.detachLocked()
	s.setViewLocked(ViewHome)
	s.mu.Unlock()

	if ctrl != nil {
		log.Info("mentor session closed")
		return ctrl.Close()
	}
	return nil
}

func (s *Screen) mentor(name string, cmd Command) error {
	s.mu.Lock()
	ctrl := s.ctrl
	s.mu.Unlock()

	switch name {
	case "input", "send", "mic", "stop", "quick", "ask", "replay":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Cmd)
	}
	if ctrl == nil {
		return ErrWrongView
	}

	switch name {
	case "input":
		ctrl.SetInput(cmd.Text)
		return nil
	case "send":
		if cmd.Text != "" {
			return ctrl.SubmitText(cmd.Text)
		}
		return ctrl.Submit()
	case "mic":
		return ctrl.ToggleMicrophone()
	case "stop":
		switch ctrl.State() {
		case conversation.Listening:
			ctrl.StopListening()
		case conversation.Speaking:
			ctrl.StopSpeaking()
		}
		return nil
	case "quick":
		return ctrl.PickQuickQuestion(cmd.Index)
	case "ask":
		return ctrl.AskQuickQuestion(cmd.Index)
	default: // replay
		return ctrl.Replay(cmd.Index)
	}
}

func (s *Screen) setViewLocked(v View) {
	if s.view == v {
		return
	}
	s.view = v
	ev := Event{Type: "view", View: v}
	if s.ctrl != nil {
		ev.Quick = s.ctrl.QuickQuestions()
	}
	s.sink.Publish(ev)
}

func (s *Screen) detachLocked() *conversation.Controller {
	if s.stopFrames != nil {
		s.stopFrames()
		s.stopFrames = nil
	}
	ctrl := s.ctrl
	s.ctrl = nil
	return ctrl
}

// Close ends any session. The screen stays on the home view afterwards.
func (s *Screen) Close() error {
	s.mu.Lock()
	s.closed = true
	ctrl := s.detachLocked()
	s.view = ViewHome
	s.mu.Unlock()

	if ctrl != nil {
		return ctrl.Close()
	}
	return nil
}
