package speech

import (
	"context"
	"errors"
	log "log/slog"
	"strings"
	"sync"
)

// Voice is one synthesizer voice. ID is what the engine expects when asked
// to use it; an empty ID means the engine default.
type Voice struct {
	ID   string
	Name string
	Lang string
}

// Prosody is relative to the engine default (1.0 = unchanged).
type Prosody struct {
	Rate   float64
	Pitch  float64
	Volume float64
}

// DefaultProsody is slightly slower and brighter than the engine default,
// which keeps bilingual answers easy to follow.
var DefaultProsody = Prosody{Rate: 0.9, Pitch: 1.1, Volume: 1.0}

// Synthesizer speaks text and blocks until it has been spoken or ctx is done.
type Synthesizer interface {
	Voices(ctx context.Context) ([]Voice, error)
	Say(ctx context.Context, text string, v Voice, p Prosody) error
	Close() error
}

type Handlers struct {
	OnStart func()
	OnEnd   func()
	OnError func(error)
}

// Playback speaks one utterance at a time. A new Speak cancels the previous
// utterance and waits for it to go quiet before starting.
type Playback struct {
	synth   Synthesizer
	locale  string
	prosody Prosody

	say sync.Mutex // serializes Speak

	mu       sync.Mutex
	seq      uint64
	cancel   context.CancelFunc
	done     chan struct{}
	voice    *Voice
	speaking bool
	closed   bool
}

func NewPlayback(synth Synthesizer, locale string, p Prosody) *Playback {
	return &Playback{synth: synth, locale: locale, prosody: p}
}

func (p *Playback) Supported() bool { return p.synth != nil }

// UseVoice pins the voice instead of choosing one for the locale.
func (p *Playback) UseVoice(v Voice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.voice = &v
}

func (p *Playback) Speaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speaking
}

// Speak starts speaking text. Handlers run on a playback goroutine.
func (p *Playback) Speak(text string, h Handlers) error {
	if p.synth == nil {
		return ErrUnsupported
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("speech: empty utterance")
	}

	p.say.Lock()
	defer p.say.Unlock()

	prev := p.stop()
	if prev != nil {
		<-prev
	}

	voice := p.resolveVoice()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.seq++
	seq := p.seq
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.speaking = true
	p.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()

		if h.OnStart != nil {
			h.OnStart()
		}

		err := p.synth.Say(ctx, text, voice, p.prosody)

		p.mu.Lock()
		current := p.seq == seq
		if current {
			p.speaking = false
			p.cancel = nil
		}
		p.mu.Unlock()

		if !current {
			return
		}
		if err != nil && ctx.Err() == nil {
			log.Warn("playback failed", "err", err)
			if h.OnError != nil {
				h.OnError(err)
			}
			return
		}
		if h.OnEnd != nil {
			h.OnEnd()
		}
	}()

	return nil
}

// Cancel stops the current utterance. No further events fire for it.
// Safe to call at any time.
func (p *Playback) Cancel() {
	p.stop()
}

// stop cancels the current utterance and returns the channel that closes
// once its Say has returned. A cancelled utterance may still be winding down,
// so the channel is returned even when nothing is current.
func (p *Playback) stop() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.seq++
		p.cancel()
		p.cancel = nil
		p.speaking = false
	}
	return p.done
}

// Close cancels speech, waits for it to stop and releases the synthesizer.
func (p *Playback) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	if done := p.stop(); done != nil {
		<-done
	}
	if p.synth == nil {
		return nil
	}
	return p.synth.Close()
}

func (p *Playback) resolveVoice() Voice {
	p.mu.Lock()
	if p.voice != nil {
		v := *p.voice
		p.mu.Unlock()
		return v
	}
	p.mu.Unlock()

	voices, err := p.synth.Voices(context.Background())
	if err != nil {
		// not cached, the next utterance asks again
		log.Debug("voice list unavailable, using default", "err", err)
		return Voice{}
	}
	v, ok := SelectVoice(voices, p.locale)
	if ok {
		log.Debug("selected voice", "voice", v.Name, "lang", v.Lang, "locale", p.locale)
	}

	p.mu.Lock()
	p.voice = &v
	p.mu.Unlock()
	return v
}

// SelectVoice prefers an exact locale match, then the same language family.
// It returns the zero Voice (engine default) and false otherwise.
func SelectVoice(voices []Voice, locale string) (Voice, bool) {
	want := normalizeLocale(locale)
	if want == "" {
		return Voice{}, false
	}
	for _, v := range voices {
		if normalizeLocale(v.Lang) == want {
			return v, true
		}
	}
	family := Language(want)
	for _, v := range voices {
		if Language(v.Lang) == family {
			return v, true
		}
	}
	return Voice{}, false
}
