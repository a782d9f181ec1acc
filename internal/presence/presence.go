// Package presence renders the mentor's on-screen avatar. Every frame is a
// pure function of elapsed time, the speaking flag and the spoken text, so
// the loop can be restarted at any time.
package presence

import (
	"context"
	"fmt"
	"math"
	"time"
)

const (
	BlinkPeriod   = 3 * time.Second
	BlinkDuration = 150 * time.Millisecond
	MouthSlot     = 200 * time.Millisecond
	CaptionRunes  = 100
	DefaultFPS    = 30
)

type Mouth int

const (
	MouthClosed Mouth = iota
	MouthOpen
	MouthWide
)

func (m Mouth) String() string {
	switch m {
	case MouthOpen:
		return "open"
	case MouthWide:
		return "wide"
	default:
		return "closed"
	}
}

func (m Mouth) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mouth) UnmarshalText(b []byte) error {
	switch string(b) {
	case "closed":
		*m = MouthClosed
	case "open":
		*m = MouthOpen
	case "wide":
		*m = MouthWide
	default:
		return fmt.Errorf("unknown mouth %q", b)
	}
	return nil
}

// Frame is one rendered pose.
type Frame struct {
	Y          float64 `json:"y"`
	RotY       float64 `json:"rotY"`
	EyeScale   float64 `json:"eyeScale"`
	MouthScale float64 `json:"mouthScale"`
	Mouth      Mouth   `json:"mouth"`
	Blinking   bool    `json:"blinking"`
	Speaking   bool    `json:"speaking"`
	Caption    string  `json:"caption,omitempty"`
}

func Pose(elapsed time.Duration, speaking bool, text string) Frame {
	t := elapsed.Seconds()

	f := Frame{
		Y:          math.Sin(t*0.5) * 0.1,
		RotY:       math.Sin(t*0.3) * 0.1,
		EyeScale:   1,
		MouthScale: 1,
		Mouth:      MouthClosed,
		Speaking:   speaking,
	}

	if Blinking(elapsed) {
		f.Blinking = true
		f.EyeScale = 0.1
	}

	if speaking {
		f.MouthScale = 1 + math.Sin(t*8)*0.3
		f.Mouth = MouthAt(elapsed)
		f.Caption = Caption(text)
	}
	return f
}

// Blinking reports whether the eyes are shut: the last BlinkDuration of
// every BlinkPeriod.
func Blinking(elapsed time.Duration) bool {
	if elapsed < 0 {
		elapsed = -elapsed
	}
	return elapsed%BlinkPeriod >= BlinkPeriod-BlinkDuration
}

// MouthAt picks a shape per MouthSlot. The choice looks random but depends
// only on the slot index.
func MouthAt(elapsed time.Duration) Mouth {
	if elapsed < 0 {
		elapsed = -elapsed
	}
	slot := uint64(elapsed / MouthSlot)
	return Mouth(mix(slot) % 3)
}

// splitmix64 finalizer
func mix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

func Caption(text string) string {
	r := []rune(text)
	if len(r) <= CaptionRunes {
		return text
	}
	return string(r[:CaptionRunes]) + "..."
}

// Source exposes the read-only speaking state the animator follows.
type Source interface {
	Presence() (speaking bool, text string)
}

type Animator struct {
	src      Source
	interval time.Duration
}

func NewAnimator(src Source, fps int) *Animator {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &Animator{src: src, interval: time.Second / time.Duration(fps)}
}

// Run renders a frame per tick until ctx is done.
func (a *Animator) Run(ctx context.Context, render func(Frame)) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			speaking, text := a.src.Presence()
			render(Pose(now.Sub(start), speaking, text))
		}
	}
}
