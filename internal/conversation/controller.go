// Package conversation owns the mentor screen's turn-taking: it moves between
// Idle, Listening, AwaitingResponse and Speaking, keeps the transcript and
// the input field, and drives capture, generation and playback.
//
// Every external operation runs on its own goroutine and reports back through
// the controller, which re-checks an epoch counter so a result belonging to an
// interval the user already left is dropped.
package conversation

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"sync"
	"time"

	"sakhi/internal/mentor"
	"sakhi/internal/speech"
)

var (
	ErrNotIdle         = errors.New("conversation: busy")
	ErrEmptyInput      = errors.New("conversation: nothing to send")
	ErrClosed          = errors.New("conversation: closed")
	ErrCredentialSet   = errors.New("conversation: credential already set")
	ErrEmptyCredential = errors.New("conversation: empty credential")
	ErrNoSuchTurn      = errors.New("conversation: no such assistant turn")
	ErrNoSuchQuestion  = errors.New("conversation: no such quick question")
	ErrUnsupported     = speech.ErrUnsupported
)

type Responder interface {
	Generate(ctx context.Context, query, credential string) string
	Links(query string) []mentor.Link
}

// Listener is satisfied by *speech.Capture.
type Listener interface {
	Supported() bool
	Start(onResult func(speech.Result)) error
	Stop()
	Close() error
}

// Talker is satisfied by *speech.Playback.
type Talker interface {
	Supported() bool
	Speak(text string, h speech.Handlers) error
	Cancel()
	Close() error
}

type Options struct {
	Responder Responder

	// Engines are built on first use and released by Close. A nil factory,
	// a factory error or an unsupported engine disables the feature.
	NewListener func() (Listener, error)
	NewTalker   func() (Talker, error)

	Greeting       string
	QuickQuestions []string

	// Observers run on whichever goroutine made the change and must not call
	// back into the controller synchronously.
	OnChange func(Snapshot)
	OnNotice func(Notice)

	Now func() time.Time
}

type Controller struct {
	opts Options

	mu         sync.Mutex
	state      State
	transcript []Turn
	input      string
	pending    string
	credential string
	epoch      uint64
	seq        uint64
	warned     map[NoticeKind]bool
	ctx        context.Context
	cancel     context.CancelFunc
	closed     bool

	// listenMu and talkMu order engine start and stop calls so a stop never
	// lands on a session that started after it.
	listenMu sync.Mutex
	talkMu   sync.Mutex

	engMu       sync.Mutex
	listener    Listener
	listenerErr error
	talker      Talker
	talkerErr   error

	emitMu    sync.Mutex
	delivered uint64
}

func New(opts Options) *Controller {
	if opts.Greeting == "" {
		opts.Greeting = mentor.Greeting
	}
	if opts.QuickQuestions == nil {
		opts.QuickQuestions = mentor.QuickQuestions
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		opts:       opts,
		transcript: []Turn{{Speaker: Assistant, Text: opts.Greeting, At: opts.Now()}},
		warned:     make(map[NoticeKind]bool),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SetCredential stores the API key for this screen. It can be set once.
func (c *Controller) SetCredential(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyCredential
	}

	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.credential != "":
		c.mu.Unlock()
		return ErrCredentialSet
	}
	c.credential = key
	snap := c.snapshotLocked(true)
	c.mu.Unlock()

	c.emit(snap)
	return nil
}

func (c *Controller) HasCredential() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credential != ""
}

func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	if c.closed || c.input == text {
		c.mu.Unlock()
		return
	}
	c.input = text
	snap := c.snapshotLocked(true)
	c.mu.Unlock()

	c.emit(snap)
}

func (c *Controller) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// ToggleMicrophone starts listening from Idle and stops it while Listening.
func (c *Controller) ToggleMicrophone() error {
	if c.State() == Listening {
		c.StopListening()
		return nil
	}
	return c.StartListening()
}

func (c *Controller) StartListening() error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.state != Idle:
		c.mu.Unlock()
		return ErrNotIdle
	}
	c.mu.Unlock()

	l, err := c.ensureListener()
	if err != nil {
		if errors.Is(err, ErrUnsupported) {
			c.warnUnsupported(NoticeCapture, "speech input is not available on this device")
		}
		return err
	}

	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.state != Idle:
		c.mu.Unlock()
		return ErrNotIdle
	}
	c.state = Listening
	c.epoch++
	epoch := c.epoch
	snap := c.snapshotLocked(true)
	c.mu.Unlock()

	c.emit(snap)

	c.listenMu.Lock()
	if !c.current(epoch) {
		// stopped before the session began
		c.listenMu.Unlock()
		return nil
	}
	err = l.Start(func(r speech.Result) { c.captured(epoch, r) })
	c.listenMu.Unlock()
	if err != nil {
		c.mu.Lock()
		var back *Snapshot
		if c.epoch == epoch && c.state == Listening {
			c.toIdleLocked()
			s := c.snapshotLocked(true)
			back = &s
		}
		c.mu.Unlock()

		log.Warn("capture start failed", "err", err)
		if back != nil {
			c.emit(*back)
		}
		c.notice(Notice{Kind: NoticeCapture, Message: fmt.Sprintf("could not start listening: %v", err)})
		return err
	}

	log.Debug("listening", "epoch", epoch)
	return nil
}

// StopListening cancels capture. The input is left as it was.
func (c *Controller) StopListening() {
	c.mu.Lock()
	if c.closed || c.state != Listening {
		c.mu.Unlock()
		return
	}
	c.toIdleLocked()
	epoch := c.epoch
	snap := c.snapshotLocked(true)
	c.mu.Unlock()

	c.emit(snap)

	c.listenMu.Lock()
	if l := c.currentListener(); l != nil && c.current(epoch) {
		l.Stop()
	}
	c.listenMu.Unlock()

	c.notice(Notice{Kind: NoticeCapture, Message: "listening cancelled"})
}

func (c *Controller) captured(epoch uint64, r speech.Result) {
	c.mu.Lock()
	if c.closed || c.epoch != epoch || c.state != Listening {
		c.mu.Unlock()
		log.Debug("dropping stale capture result", "epoch", epoch)
		return
	}
	c.toIdleLocked()
	if r.OK() {
		c.input = r.Text
	}
	snap := c.snapshotLocked(true)
	c.mu.Unlock()

	c.emit(snap)
	if !r.OK() {
		log.Info("capture failed", "err", r.Err)
		c.notice(Notice{Kind: NoticeCapture, Message: captureMessage(r.Err)})
	}
}

func captureMessage(err error) string {
	switch {
	case errors.Is(err, speech.ErrNoSpeech):
		return "no speech detected, please try again"
	case errors.Is(err, speech.ErrCancelled):
		return "listening cancelled"
	default:
		return fmt.Sprintf("could not hear you: %v", err)
	}
}

// Submit sends the input field.
func (c *Controller) Submit() error {
	return c.submit(nil)
}

// SubmitText sends text as if it had been typed into the input field.
func (c *Controller) SubmitText(text string) error {
	return c.submit(&text)
}

func (c *Controller) submit(text *string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	query := c.input
	if text != nil {
		query = *text
	}
	query = strings.TrimSpace(query)
	switch {
	case query == "":
		c.mu.Unlock()
		return ErrEmptyInput
	case c.state != Idle:
		c.mu.Unlock()
		return ErrNotIdle
	}

	c.transcript = append(c.transcript, Turn{Speaker: User, Text: query, At: c.opts.Now()})
	if text == nil {
		c.input = ""
	}
	c.state = AwaitingResponse
	c.epoch++
	epoch := c.epoch
	ctx, credential := c.ctx, c.credential
	snap := c.snapshotLocked(true)
	c.mu.Unlock()

	c.emit(snap)
	go c.respond(ctx, epoch, query, credential)
	return nil
}

func (c *Controller) respond(ctx context.Context, epoch uint64, query, credential string) {
	var (
		reply = mentor.ApologyReply
		links []mentor.Link
	)
	if r := c.opts.Responder; r != nil {
		reply = r.Generate(ctx, query, credential)
		links = r.Links(query)
	}

	t, _ := c.ensureTalker()

	c.mu.Lock()
	if c.closed || c.epoch != epoch || c.state != AwaitingResponse {
		c.mu.Unlock()
		return
	}
	c.transcript = append(c.transcript, Turn{Speaker: Assistant, Text: reply, Links: links, At: c.opts.Now()})

	if t == nil {
		c.toIdleLocked()
		snap := c.snapshotLocked(true)
		c.mu.Unlock()

		c.emit(snap)
		c.warnUnsupported(NoticePlayback, "spoken replies are not available on this device")
		return
	}

	speakEpoch := c.toSpeakingLocked(reply)
	snap := c.snapshotLocked(true)
	c.mu.Unlock()

	c.emit(snap)
	c.speak(t, speakEpoch, reply)
}

func (c *Controller) speak(t Talker, epoch uint64, text string) {
	c.talkMu.Lock()
	defer c.talkMu.Unlock()

	if !c.current(epoch) {
		return
	}
	err := t.Speak(text, speech.Handlers{
		OnEnd:   func() { c.spoken(epoch, nil) },
		OnError: func(err error) { c.spoken(epoch, err) },
	})
	if err != nil {
		c.spoken(epoch, err)
	}
}

func (c *Controller) spoken(epoch uint64, err error) {
	c.mu.Lock()
	if c.closed || c.epoch != epoch || c.state != Speaking {
		c.mu.Unlock()
		return
	}
	c.toIdleLocked()
	snap := c.snapshotLocked(true)
	c.mu.Unlock()

	c.emit(snap)
	if err != nil {
		c.notice(Notice{Kind: NoticePlayback, Message: fmt.Sprintf("could not play the reply: %v", err)})
	}
}

// StopSpeaking cancels playback and returns to Idle at once.
func (c *Controller) StopSpeaking() {
	c.mu.Lock()
	if c.closed || c.state != Speaking {
		c.mu.Unlock()
		return
	}
	c.toIdleLocked()
	epoch := c.epoch
	snap := c.snapshotLocked(true)
	c.mu.Unlock()

	c.emit(snap)

	// A newer utterance has already cancelled this one when the epoch moved on.
	c.talkMu.Lock()
	if t := c.currentTalker(); t != nil && c.current(epoch) {
		t.Cancel()
	}
	c.talkMu.Unlock()
}

// Replay speaks transcript turn i again. It must be an assistant turn.
func (c *Controller) Replay(i int) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case i < 0 || i >= len(c.transcript) || c.transcript[i].Speaker != Assistant:
		c.mu.Unlock()
		return ErrNoSuchTurn
	case c.state != Idle && c.state != Speaking:
		c.mu.Unlock()
		return ErrNotIdle
	}
	c.mu.Unlock()

	t, err := c.ensureTalker()
	if err != nil {
		if errors.Is(err, ErrUnsupported) {
			c.warnUnsupported(NoticePlayback, "spoken replies are not available on this device")
		}
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != Idle && c.state != Speaking {
		c.mu.Unlock()
		return ErrNotIdle
	}
	text := c.transcript[i].Text
	epoch := c.toSpeakingLocked(text)
	snap := c.snapshotLocked(true)
	c.mu.Unlock()

	c.emit(snap)
	c.speak(t, epoch, text)
	return nil
}

func (c *Controller) QuickQuestions() []string {
	return append([]string(nil), c.opts.QuickQuestions...)
}

// PickQuickQuestion only populates the input field.
func (c *Controller) PickQuickQuestion(i int) error {
	if i < 0 || i >= len(c.opts.QuickQuestions) {
		return ErrNoSuchQuestion
	}
	c.SetInput(c.opts.QuickQuestions[i])
	return nil
}

// AskQuickQuestion populates the input field and submits it.
func (c *Controller) AskQuickQuestion(i int) error {
	if err := c.PickQuickQuestion(i); err != nil {
		return err
	}
	return c.Submit()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(false)
}

func (c *Controller) Transcript() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Turn(nil), c.transcript...)
}

// Presence is the read-only view the animator polls.
func (c *Controller) Presence() (speaking bool, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Speaking, c.pending
}

// Close cancels whatever is in flight and releases the engines. Every later
// call is a no-op.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = Idle
	c.pending = ""
	c.epoch++
	c.cancel()
	c.mu.Unlock()

	c.engMu.Lock()
	defer c.engMu.Unlock()

	var errs []error
	if c.listener != nil {
		errs = append(errs, c.listener.Close())
		c.listener = nil
	}
	if c.talker != nil {
		errs = append(errs, c.talker.Close())
		c.talker = nil
	}
	return errors.Join(errs...)
}

func (c *Controller) toIdleLocked() {
	c.state = Idle
	c.pending = ""
	c.epoch++
}

func (c *Controller) toSpeakingLocked(text string) uint64 {
	c.state = Speaking
	c.pending = text
	c.epoch++
	return c.epoch
}

func (c *Controller) snapshotLocked(bump bool) Snapshot {
	if bump {
		c.seq++
	}
	return Snapshot{
		Seq:           c.seq,
		State:         c.state,
		Microphone:    c.state == Listening,
		Playback:      c.state == Speaking,
		Pending:       c.pending,
		Input:         c.input,
		SendEnabled:   c.state == Idle,
		HasCredential: c.credential != "",
		Transcript:    append([]Turn(nil), c.transcript...),
	}
}

// emit delivers snapshots in sequence order; one overtaken by a newer
// snapshot is skipped.
func (c *Controller) emit(s Snapshot) {
	if c.opts.OnChange == nil {
		return
	}
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	if s.Seq <= c.delivered {
		return
	}
	c.delivered = s.Seq
	c.opts.OnChange(s)
}

func (c *Controller) notice(n Notice) {
	if c.opts.OnNotice != nil {
		c.opts.OnNotice(n)
	}
}

func (c *Controller) warnUnsupported(kind NoticeKind, msg string) {
	c.mu.Lock()
	first := !c.warned[kind]
	c.warned[kind] = true
	c.mu.Unlock()

	if first {
		log.Warn("feature disabled", "feature", kind, "reason", msg)
		c.notice(Notice{Kind: NoticeUnsupported, Message: msg})
	}
}

func (c *Controller) ensureListener() (Listener, error) {
	c.engMu.Lock()
	defer c.engMu.Unlock()

	if c.isClosed() {
		return nil, ErrClosed
	}
	if c.listener != nil {
		return c.listener, nil
	}
	if c.listenerErr != nil {
		return nil, c.listenerErr
	}

	l, err := build(c.opts.NewListener)
	if err != nil {
		c.listenerErr = err
		return nil, err
	}
	c.listener = l
	return l, nil
}

func (c *Controller) ensureTalker() (Talker, error) {
	c.engMu.Lock()
	defer c.engMu.Unlock()

	if c.isClosed() {
		return nil, ErrClosed
	}
	if c.talker != nil {
		return c.talker, nil
	}
	if c.talkerErr != nil {
		return nil, c.talkerErr
	}

	t, err := build(c.opts.NewTalker)
	if err != nil {
		c.talkerErr = err
		return nil, err
	}
	c.talker = t
	return t, nil
}

type engine interface {
	Supported() bool
	Close() error
}

// build runs an engine factory. Any failure is reported as ErrUnsupported.
func build[E engine](factory func() (E, error)) (E, error) {
	var zero E
	if factory == nil {
		return zero, ErrUnsupported
	}
	e, err := factory()
	if err == nil && any(e) == nil {
		err = errors.New("factory returned no engine")
	}
	if err != nil {
		log.Warn("engine unavailable", "err", err)
		return zero, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if !e.Supported() {
		_ = e.Close()
		return zero, ErrUnsupported
	}
	return e, nil
}

func (c *Controller) currentListener() Listener {
	c.engMu.Lock()
	defer c.engMu.Unlock()
	return c.listener
}

func (c *Controller) currentTalker() Talker {
	c.engMu.Lock()
	defer c.engMu.Unlock()
	return c.talker
}

func (c *Controller) current(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.epoch == epoch
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
