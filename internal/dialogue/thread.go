package dialogue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"yui/internal/client"
	"yui/internal/logging"
	"yui/internal/observability"
	"yui/internal/types"
)

const (
	DefaultLanguage = "ja"

	ContinuePrompt = "Continue Process"
	ResumePrompt   = "Continuing from previous session"

	userAgentID = "user"
)

// Options configure a ThreadController. Zero values fall back to defaults,
// except Retry whose zero value disables retries.
type Options struct {
	Stages     types.StageSet
	Resume     ResumePolicy
	StageDelay time.Duration
	Debounce   time.Duration
	Language   string
	Retry      RetryPolicy
	Logger     logging.Logger
	Metrics    *observability.Metrics
	Now        func() time.Time
	NewID      func() string
}

func (o Options) withDefaults() Options {
	if len(o.Stages.Stages) == 0 {
		o.Stages = types.DialecticStages()
	}
	if o.Resume == "" {
		o.Resume = ResumeOrdinal
	}
	if o.StageDelay <= 0 {
		o.StageDelay = DefaultStageDelay
	}
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounceWindow
	}
	if strings.TrimSpace(o.Language) == "" {
		o.Language = DefaultLanguage
	}
	if o.Retry.Attempts < 0 {
		o.Retry.Attempts = 0
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// Snapshot is an immutable view of the controller state.
type Snapshot struct {
	Version               uint64
	Session               *types.Session
	Messages              []types.Message
	CurrentStage          types.StageTag
	Processing            bool
	AwaitingFirstResponse bool
	Pending               *types.Message
	Language              string
	Bound                 bool
	Progress              Progress
	StageCounter          string
	ShowContinue          bool
}

// bindingToken ties in-flight work to the session it was started for.
type bindingToken struct {
	generation uint64
	sessionID  string
}

// ThreadController owns the live state of one open session: the merged
// message collection, the current stage and the run flags. Opening another
// session rotates the binding token; results of work started under an older
// token are dropped.
type ThreadController struct {
	backend    Backend
	opts       Options
	logger     logging.Logger
	sequencer  *Sequencer
	propagator *Propagator
	debouncer  *Debouncer

	mu            sync.Mutex
	token         bindingToken
	bound         string
	session       *types.Session
	messages      []types.Message
	currentStage  types.StageTag
	processing    bool
	awaitingFirst bool
	pending       *types.Message
	language      string
	version       uint64
	observers     []func(Snapshot)
}

func NewThreadController(backend Backend, sink SessionSink, opts Options) *ThreadController {
	opts = opts.withDefaults()
	c := &ThreadController{
		backend:  backend,
		opts:     opts,
		logger:   opts.Logger,
		language: opts.Language,
	}
	c.sequencer = NewSequencer(opts.Stages,
		WithStageDelay(opts.StageDelay),
		WithResumePolicy(opts.Resume),
		WithSequencerLogger(opts.Logger),
		WithSequencerMetrics(opts.Metrics),
	)
	c.propagator = NewPropagator(sink, opts.Logger)
	c.propagator.now = opts.Now
	c.debouncer = NewDebouncer(opts.Debounce, c.deliver)
	return c
}

// Subscribe registers fn to receive a snapshot after every state change.
// Callbacks run on the goroutine that made the change and must not block.
func (c *ThreadController) Subscribe(fn func(Snapshot)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Open switches the controller to session. Pending debounced updates of the
// previous session are discarded, the message collection is replaced and the
// realtime session is bound, retrying per the retry policy.
func (c *ThreadController) Open(ctx context.Context, session *types.Session) error {
	if session == nil || strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	c.mu.Lock()
	c.token = bindingToken{generation: c.token.generation + 1, sessionID: session.ID}
	token := c.token
	if c.debouncer.Discard() {
		c.logger.Debug("discarded pending session update on switch", logging.F("session", session.ID))
	}
	c.session = session.Clone()
	c.messages = types.CloneMessages(session.Messages)
	c.currentStage = session.CurrentStage
	c.processing = false
	c.awaitingFirst = false
	c.pending = nil
	c.language = c.opts.Language
	c.bound = ""
	snap, observers := c.changedLocked()
	c.mu.Unlock()
	notify(observers, snap)

	return c.bind(ctx, token)
}

func (c *ThreadController) bind(ctx context.Context, token bindingToken) error {
	logger := c.logger.With(logging.F("session", token.sessionID))
	attempt := 0
	err := c.opts.Retry.Do(ctx, func(ctx context.Context) error {
		attempt++
		if _, err := c.backend.GetRealtimeSession(ctx, token.sessionID); err != nil {
			logger.Warn("realtime session bind failed", logging.F("attempt", attempt), logging.Err(err))
			return err
		}
		return nil
	}, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.bound == "" && c.token == token
	})
	if err != nil {
		return fmt.Errorf("bind session %s: %w", token.sessionID, err)
	}

	c.mu.Lock()
	if c.token != token {
		c.mu.Unlock()
		return ErrStaleBinding
	}
	c.bound = token.sessionID
	snap, observers := c.changedLocked()
	c.mu.Unlock()
	notify(observers, snap)
	logger.Info("realtime session bound", logging.F("attempts", attempt))
	return nil
}

// SetLanguage selects the language for the next run. It is reset to the
// default when the run ends.
func (c *ThreadController) SetLanguage(language string) {
	language = strings.TrimSpace(language)
	if language == "" {
		return
	}
	c.mu.Lock()
	c.language = language
	snap, observers := c.changedLocked()
	c.mu.Unlock()
	notify(observers, snap)
}

// Submit adds prompt as an optimistic user message and runs the remaining
// stages of the round with it. It blocks until the run ends.
func (c *ThreadController) Submit(ctx context.Context, prompt string) (RunResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return RunResult{}, ErrEmptyPrompt
	}
	return c.start(ctx, prompt, prompt, prompt)
}

// Continue resumes an interrupted round. A finished round starts over with
// the continue prompt.
func (c *ThreadController) Continue(ctx context.Context) (RunResult, error) {
	return c.start(ctx, ContinuePrompt, ContinuePrompt, ResumePrompt)
}

func (c *ThreadController) start(ctx context.Context, content, freshPrompt, resumePrompt string) (RunResult, error) {
	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		return RunResult{}, ErrBusy
	}
	if c.bound == "" || c.bound != c.token.sessionID {
		c.mu.Unlock()
		return RunResult{}, ErrNotBound
	}
	token := c.token
	now := c.opts.Now()
	msg := types.Message{
		ID:        "user-" + c.opts.NewID(),
		Role:      types.RoleUser,
		AgentID:   userAgentID,
		Content:   content,
		Timestamp: now,
	}
	c.processing = true
	c.awaitingFirst = true
	c.pending = &msg
	c.messages = AppendMessage(c.messages, msg)
	patch := types.SessionPatch{
		ID:        token.sessionID,
		Messages:  types.CloneMessages(c.messages),
		UpdatedAt: types.TimePtr(now),
	}
	session := c.session.Clone()
	language := c.language
	snap, observers := c.changedLocked()
	c.mu.Unlock()

	c.debouncer.Push(patch)
	notify(observers, snap)

	return c.sequencer.Run(ctx, session, StageHooks{
		NewRound: func(ctx context.Context) error {
			return c.openRound(ctx, token)
		},
		BeforeStage: func(step Step) {
			c.setCurrentStage(token, step.Stage)
		},
		RunStage: func(ctx context.Context, step Step) error {
			prompt := resumePrompt
			if step.NewRound {
				prompt = freshPrompt
			}
			return c.executeStage(ctx, token, client.StageRequest{
				Prompt:   prompt,
				Stage:    step.Stage,
				Language: language,
			})
		},
		Finish: func() {
			c.finishRun(token)
		},
	})
}

// openRound starts the next round on the server. Simple mode resets the
// session; the dialectic mode asks for a new sequence.
func (c *ThreadController) openRound(ctx context.Context, token bindingToken) error {
	if !c.valid(token) {
		return ErrStaleBinding
	}
	var err error
	if c.opts.Stages.Name == types.StageSetSimple {
		err = c.backend.ResetSession(ctx, token.sessionID)
	} else {
		err = c.backend.StartNewSequence(ctx, token.sessionID)
	}
	if err != nil {
		return err
	}
	c.logger.Info("new round started", logging.F("session", token.sessionID))
	c.reload(ctx, token)
	c.setCurrentStage(token, "")
	return nil
}

// executeStage streams one stage. Frames are applied in arrival order; a
// frame that arrives after the binding rotated aborts the stage with
// ErrStaleBinding and nothing of it is applied.
func (c *ThreadController) executeStage(ctx context.Context, token bindingToken, req client.StageRequest) error {
	if !c.valid(token) {
		return ErrStaleBinding
	}
	stream, err := c.backend.StreamStage(ctx, token.sessionID, req)
	if err != nil {
		return fmt.Errorf("stage %s: %w", req.Stage, err)
	}
	defer stream.Close()

	logger := c.logger.With(logging.F("session", token.sessionID), logging.F("stage", string(req.Stage)))
	received := 0
	for frame := range stream.Frames() {
		c.opts.Metrics.RecordFrame(ctx, string(frame.Type))
		if !c.valid(token) {
			c.opts.Metrics.RecordStaleFrame(ctx)
			logger.Debug("dropping frame for previous session", logging.F("type", string(frame.Type)))
			return ErrStaleBinding
		}
		switch frame.Type {
		case client.FrameProgress:
			received++
			c.applyProgress(token, *frame.Message)
		case client.FrameSession:
			c.applySessionFrame(ctx, token, *frame.Session)
		case client.FrameComplete:
			logger.Debug("stage complete", logging.F("messages", received))
			c.setCurrentStage(token, req.Stage)
			c.reload(ctx, token)
			return nil
		case client.FrameError:
			return fmt.Errorf("stage %s: %w", req.Stage, &client.StreamError{Message: frame.Error})
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("stage %s: %w", req.Stage, err)
	}
	if !c.valid(token) {
		return ErrStaleBinding
	}
	logger.Debug("stage stream ended without completion", logging.F("messages", received))
	c.setCurrentStage(token, req.Stage)
	c.reload(ctx, token)
	return nil
}

func (c *ThreadController) applyProgress(token bindingToken, msg types.Message) {
	c.mu.Lock()
	if c.token != token {
		c.mu.Unlock()
		return
	}
	c.awaitingFirst = false
	c.messages = AppendMessage(c.messages, msg)
	patch := types.SessionPatch{
		ID:        token.sessionID,
		Messages:  types.CloneMessages(c.messages),
		UpdatedAt: types.TimePtr(c.opts.Now()),
	}
	snap, observers := c.changedLocked()
	c.mu.Unlock()

	c.debouncer.Push(patch)
	notify(observers, snap)
}

// applySessionFrame records output file updates for the bound session and
// stores them right away.
func (c *ThreadController) applySessionFrame(ctx context.Context, token bindingToken, patch types.SessionPatch) {
	if patch.ID != token.sessionID {
		c.logger.Debug("ignoring session frame for another session", logging.F("session", patch.ID))
		return
	}
	update := types.SessionPatch{
		ID:                  token.sessionID,
		OutputFileName:      patch.OutputFileName,
		SequenceOutputFiles: patch.SequenceOutputFiles,
	}
	if update.Empty() {
		c.logger.Debug("session frame carried no output files", logging.F("session", patch.ID))
		return
	}
	c.propagate(ctx, update)
}

// reload fetches the canonical session and merges it into local state. Local
// messages win over server copies with the same id. Failures keep the last
// merged state.
func (c *ThreadController) reload(ctx context.Context, token bindingToken) {
	server, err := c.backend.GetRealtimeSession(ctx, token.sessionID)
	c.opts.Metrics.RecordReload(ctx, err)
	if err != nil {
		c.logger.Error("session reload failed", logging.F("session", token.sessionID), logging.Err(err))
		return
	}

	c.mu.Lock()
	if c.token != token {
		c.mu.Unlock()
		return
	}
	c.messages = MergeMessages(c.messages, server.Messages)
	c.currentStage = server.CurrentStage
	patch := types.PatchFromSession(server)
	patch.ID = token.sessionID
	patch.Messages = types.CloneMessages(c.messages)
	if server.UpdatedAt.IsZero() {
		patch.UpdatedAt = nil
	}
	c.session = c.propagator.Build(c.session, patch, c.messages)
	stored := c.session.Clone()
	snap, observers := c.changedLocked()
	c.mu.Unlock()

	_ = c.propagator.Store(ctx, stored)
	notify(observers, snap)
}

// deliver receives coalesced patches from the debouncer.
func (c *ThreadController) deliver(patch types.SessionPatch) {
	c.propagate(context.Background(), patch)
}

func (c *ThreadController) propagate(ctx context.Context, patch types.SessionPatch) {
	c.mu.Lock()
	if c.session == nil || (patch.ID != "" && patch.ID != c.session.ID) {
		c.mu.Unlock()
		return
	}
	if patch.Messages != nil {
		// A coalesced patch may predate a reload; the local collection is
		// always a superset of it.
		patch.Messages = MergeMessages(c.messages, patch.Messages)
	}
	c.session = c.propagator.Build(c.session, patch, c.messages)
	stored := c.session.Clone()
	snap, observers := c.changedLocked()
	c.mu.Unlock()

	_ = c.propagator.Store(ctx, stored)
	notify(observers, snap)
}

func (c *ThreadController) setCurrentStage(token bindingToken, stage types.StageTag) {
	c.mu.Lock()
	if c.token != token {
		c.mu.Unlock()
		return
	}
	c.currentStage = stage
	snap, observers := c.changedLocked()
	c.mu.Unlock()
	notify(observers, snap)
}

func (c *ThreadController) finishRun(token bindingToken) {
	c.mu.Lock()
	if c.token != token {
		c.mu.Unlock()
		return
	}
	c.processing = false
	c.awaitingFirst = false
	c.pending = nil
	c.language = c.opts.Language
	snap, observers := c.changedLocked()
	c.mu.Unlock()

	c.debouncer.Flush()
	notify(observers, snap)
}

func (c *ThreadController) valid(token bindingToken) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token == token
}

// ShowContinue reports whether the round has progress but is not finished.
func (c *ThreadController) ShowContinue() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.showContinueLocked()
}

func (c *ThreadController) showContinueLocked() bool {
	if c.session == nil {
		return false
	}
	closed := CompletedCount(c.session)
	hasProgress := closed > 0 || len(c.messages) > 1
	finished := c.session.Status == types.SessionStatusCompleted || closed >= c.opts.Stages.Threshold()
	return hasProgress && !finished
}

func (c *ThreadController) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Session returns a copy of the last complete session snapshot.
func (c *ThreadController) Session() *types.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

func (c *ThreadController) StageSet() types.StageSet {
	return c.opts.Stages
}

func (c *ThreadController) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version:               c.version,
		Session:               c.session.Clone(),
		Messages:              types.CloneMessages(c.messages),
		CurrentStage:          c.currentStage,
		Processing:            c.processing,
		AwaitingFirstResponse: c.awaitingFirst,
		Language:              c.language,
		Bound:                 c.bound != "" && c.bound == c.token.sessionID,
		Progress:              ComputeProgress(c.session, c.currentStage),
		StageCounter:          StageCounter(c.session, c.opts.Stages),
		ShowContinue:          c.showContinueLocked(),
	}
	if c.pending != nil {
		pending := *c.pending
		snap.Pending = &pending
	}
	return snap
}

func (c *ThreadController) changedLocked() (Snapshot, []func(Snapshot)) {
	c.version++
	return c.snapshotLocked(), c.observers
}

func notify(observers []func(Snapshot), snap Snapshot) {
	for _, fn := range observers {
		fn(snap)
	}
}
