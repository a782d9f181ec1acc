package speech

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Recognizer turns one utterance into text. It blocks until the utterance is
// complete or ctx is cancelled.
type Recognizer interface {
	Recognize(ctx context.Context, locale string) (string, error)
	Close() error
}

// Capture is a single-shot capture handle over a Recognizer.
type Capture struct {
	rec    Recognizer
	locale string

	mu      sync.Mutex
	active  bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
	closed  bool
}

// NewCapture returns a capture handle. A nil recognizer yields a handle that
// reports ErrUnsupported.
func NewCapture(rec Recognizer, locale string) *Capture {
	return &Capture{rec: rec, locale: locale}
}

func (c *Capture) Supported() bool { return c.rec != nil }

func (c *Capture) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Start begins one capture session. onResult is called exactly once, from
// another goroutine, unless Start returns an error. A session that was
// stopped but has not returned yet is waited for; a running one is ErrBusy.
func (c *Capture) Start(onResult func(Result)) error {
	if c.rec == nil {
		return ErrUnsupported
	}

	c.mu.Lock()
	for {
		if c.closed {
			c.mu.Unlock()
			return ErrClosed
		}
		if !c.active {
			break
		}
		if !c.stopped {
			c.mu.Unlock()
			return ErrBusy
		}
		done := c.done
		c.mu.Unlock()
		<-done
		c.mu.Lock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.active = true
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go func() {
		text, err := c.rec.Recognize(ctx, c.locale)
		res := classify(ctx, text, err)
		cancel()

		c.mu.Lock()
		c.active = false
		c.stopped = false
		c.cancel = nil
		c.mu.Unlock()
		close(done)

		if onResult != nil {
			onResult(res)
		}
	}()

	return nil
}

// Stop cancels the running session, which then reports ErrCancelled.
// It is a no-op when nothing is running.
func (c *Capture) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	if cancel != nil {
		c.stopped = true
	}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Close cancels any running session, waits for the recognizer to return and
// releases it.
func (c *Capture) Close() error {
	c.mu.Lock()
	c.closed = true
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	if c.rec == nil {
		return nil
	}
	return c.rec.Close()
}

func classify(ctx context.Context, text string, err error) Result {
	if ctx.Err() != nil {
		return Result{Err: ErrCancelled}
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Result{Err: ErrCancelled}
		}
		return Result{Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Err: ErrNoSpeech}
	}
	return Result{Text: text}
}
