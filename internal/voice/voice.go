// Package voice adapts the host's audio stack to speech.Recognizer: a
// microphone recognizer for desktops and a file recognizer for headless
// hosts. Both transcribe with whisper.cpp.
package voice

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"time"

	"sakhi/internal/speech"
	"sakhi/pkg/audioconv"
	"sakhi/pkg/pcm"
	"sakhi/pkg/stt"
)

// DomainPrompt biases whisper towards the words the mentor hears most.
const DomainPrompt = "बचत, निवेश, बैंक खाता, बिजनेस, पैसा, savings, investment, bank account, business, SIP"

type Transcriber interface {
	TranscribePCM(ctx context.Context, samples []float32, opt stt.Options) (stt.Result, error)
	Close() error
}

type Recorder interface {
	RecordAuto(ctx context.Context) ([]float32, error)
	Close() error
}

type Cue interface {
	Play() error
}

type Ducker interface {
	Duck(ctx context.Context) error
	Restore(ctx context.Context) error
}

type Options struct {
	Threads int
	Cue     Cue    // optional
	Ducker  Ducker // optional
}

// Mic plays the cue, ducks other audio, records one utterance and
// transcribes it.
type Mic struct {
	rec  Recorder
	tr   Transcriber
	opts Options
}

func NewMic(rec Recorder, tr Transcriber, opts Options) *Mic {
	return &Mic{rec: rec, tr: tr, opts: opts}
}

func (m *Mic) Recognize(ctx context.Context, locale string) (string, error) {
	if m.opts.Cue != nil {
		if err := m.opts.Cue.Play(); err != nil {
			log.Warn("chime failed", "err", err)
		}
	}

	if d := m.opts.Ducker; d != nil {
		if err := d.Duck(ctx); err != nil {
			log.Warn("ducking failed", "err", err)
		}
		defer func() {
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := d.Restore(rctx); err != nil {
				log.Warn("restoring volume failed", "err", err)
			}
		}()
	}

	log.Info("listening")
	samples, err := m.rec.RecordAuto(ctx)
	if err != nil {
		return "", fmt.Errorf("record: %w", err)
	}
	if len(samples) == 0 {
		return "", speech.ErrNoSpeech
	}
	log.Info("recorded", "samples", len(samples), "seconds", float64(len(samples))/pcm.SampleRate)

	return transcribe(ctx, m.tr, samples, locale, m.opts.Threads)
}

func (m *Mic) Close() error {
	return errors.Join(m.rec.Close(), m.tr.Close())
}

// File transcribes a fixed recording on every call.
type File struct {
	path       string
	tr         Transcriber
	threads    int
	maxSamples int
}

func NewFile(path string, tr Transcriber, threads int) *File {
	return &File{path: path, tr: tr, threads: threads, maxSamples: 30 * pcm.SampleRate}
}

func (f *File) Recognize(ctx context.Context, locale string) (string, error) {
	samples, err := audioconv.DecodeFile(ctx, f.path, audioconv.Options{MaxSamples: f.maxSamples})
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", f.path, err)
	}
	if len(samples) == 0 {
		return "", speech.ErrNoSpeech
	}
	return transcribe(ctx, f.tr, samples, locale, f.threads)
}

func (f *File) Close() error {
	return f.tr.Close()
}

func transcribe(ctx context.Context, tr Transcriber, samples []float32, locale string, threads int) (string, error) {
	start := time.Now()
	res, err := tr.TranscribePCM(ctx, samples, stt.Options{
		Language:      speech.Language(locale),
		Threads:       threads,
		InitialPrompt: DomainPrompt,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	log.Info("transcribed", "text", res.Text, "lang", res.Language, "took", time.Since(start))
	return res.Text, nil
}
