// Package audio records one utterance from the default input device.
package audio

import (
	"context"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"sakhi/pkg/pcm"
)

// Endpointing decides when an utterance is over.
type Endpointing struct {
	SilenceRMS  float64       // frames at or below are silence
	SilenceHold time.Duration // trailing silence that ends the utterance
	LeadIn      time.Duration // give up if nobody speaks this long
	MaxLength   time.Duration
}

var DefaultEndpointing = Endpointing{
	SilenceRMS:  0.015,
	SilenceHold: 600 * time.Millisecond,
	LeadIn:      5 * time.Second,
	MaxLength:   10 * time.Second,
}

const frameSize = 320 // 20ms at 16 kHz

type Recorder struct {
	ep Endpointing

	mu     sync.Mutex
	inited bool
}

func NewRecorder(ep Endpointing) *Recorder {
	if ep == (Endpointing{}) {
		ep = DefaultEndpointing
	}
	return &Recorder{ep: ep}
}

func (r *Recorder) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inited {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio: %w", err)
	}
	r.inited = true
	return nil
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inited {
		return nil
	}
	r.inited = false
	return portaudio.Terminate()
}

// RecordAuto records until trailing silence, MaxLength or ctx is done. It
// returns nil samples when nobody spoke.
func (r *Recorder) RecordAuto(ctx context.Context) ([]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inited {
		return nil, fmt.Errorf("recorder not initialized")
	}

	buf := make([]float32, frameSize)
	out := make([]float32, 0, pcm.SampleRate*3)

	stream, err := portaudio.OpenDefaultStream(1, 0, pcm.SampleRate, len(buf), buf)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("start stream: %w", err)
	}
	defer stream.Stop()

	var (
		frameDur      = time.Second * frameSize / pcm.SampleRate
		maxFrames     = int(r.ep.MaxLength / frameDur)
		leadFrames    = int(r.ep.LeadIn / frameDur)
		holdFrames    = int(r.ep.SilenceHold / frameDur)
		speaking      bool
		silenceFrames int
	)

	for i := 0; i < maxFrames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, fmt.Errorf("read stream: %w", err)
		}

		if pcm.RMS(buf) > r.ep.SilenceRMS {
			speaking = true
			silenceFrames = 0
			out = append(out, buf...)
			continue
		}
		if !speaking {
			if leadFrames > 0 && i >= leadFrames {
				log.Debug("no speech before lead-in", "after", r.ep.LeadIn)
				return nil, nil
			}
			continue
		}
		silenceFrames++
		if silenceFrames >= holdFrames {
			break
		}
		out = append(out, buf...)
	}

	if !speaking {
		return nil, nil
	}
	return out, nil
}
