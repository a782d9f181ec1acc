// Package speech wraps the host's speech-to-text and text-to-speech engines
// behind single-session handles with well defined event ordering.
//
// A Capture emits exactly one Result per accepted Start. A Playback emits
// OnStart and then exactly one of OnEnd or OnError per accepted Speak, and
// nothing at all once the utterance was cancelled.
package speech

import (
	"errors"
	"strings"
)

var (
	ErrUnsupported = errors.New("speech: not supported on this host")
	ErrBusy        = errors.New("speech: capture already active")
	ErrCancelled   = errors.New("speech: cancelled")
	ErrNoSpeech    = errors.New("speech: no speech detected")
	ErrClosed      = errors.New("speech: closed")
)

// Result is the outcome of one capture session: Text on success, Err otherwise.
type Result struct {
	Text string
	Err  error
}

func (r Result) OK() bool { return r.Err == nil }

// Language returns the primary subtag of a locale ("hi-IN" -> "hi").
// Empty and "auto" map to "auto".
func Language(locale string) string {
	l := strings.ToLower(strings.TrimSpace(locale))
	if l == "" || l == "auto" {
		return "auto"
	}
	if i := strings.IndexAny(l, "-_"); i > 0 {
		l = l[:i]
	}
	return l
}

func normalizeLocale(locale string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(locale), "_", "-"))
}
