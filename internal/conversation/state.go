package conversation

import (
	"fmt"
	"time"

	"sakhi/internal/mentor"
)

type State int

const (
	Idle State = iota
	Listening
	AwaitingResponse
	Speaking
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case AwaitingResponse:
		return "awaiting_response"
	case Speaking:
		return "speaking"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for _, v := range []State{Idle, Listening, AwaitingResponse, Speaking} {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

type Speaker string

const (
	User      Speaker = "user"
	Assistant Speaker = "assistant"
)

// Turn is immutable once appended.
type Turn struct {
	Speaker Speaker       `json:"speaker"`
	Text    string        `json:"text"`
	Links   []mentor.Link `json:"links,omitempty"`
	At      time.Time     `json:"at"`
}

type NoticeKind string

const (
	NoticeUnsupported NoticeKind = "unsupported"
	NoticeCapture     NoticeKind = "capture"
	NoticePlayback    NoticeKind = "playback"
)

// Notice is a short-lived, non-fatal message for the screen.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

// Snapshot is a consistent copy of the controller. Microphone and Playback
// are derived from State.
type Snapshot struct {
	Seq           uint64 `json:"seq"`
	State         State  `json:"state"`
	Microphone    bool   `json:"microphone"`
	Playback      bool   `json:"playback"`
	Pending       string `json:"pending,omitempty"`
	Input         string `json:"input"`
	SendEnabled   bool   `json:"sendEnabled"`
	HasCredential bool   `json:"hasCredential"`
	Transcript    []Turn `json:"transcript"`
}
