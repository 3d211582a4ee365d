package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"yui/internal/logging"
	"yui/internal/observability"
	"yui/internal/types"
)

const DefaultStageDelay = time.Second

type ResumePolicy string

const (
	// ResumeOrdinal resumes at stages[completed:]. It assumes the server
	// closes stages in declared order.
	ResumeOrdinal ResumePolicy = "ordinal"
	// ResumeIdentity runs every declared stage that has no closed entry in
	// the current round.
	ResumeIdentity ResumePolicy = "identity"
)

func ParseResumePolicy(raw string) ResumePolicy {
	switch ResumePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case ResumeIdentity:
		return ResumeIdentity
	default:
		return ResumeOrdinal
	}
}

// Plan is the outcome of stage planning for one run.
type Plan struct {
	// NewRound is set when the current round is finished; a new round has to
	// be opened on the server before any stage runs.
	NewRound  bool
	Completed int
	Stages    []types.StageTag
}

func PlanStages(session *types.Session, set types.StageSet, policy ResumePolicy) Plan {
	completed := CompletedCount(session)
	plan := Plan{Completed: completed}
	if completed >= set.Threshold() {
		plan.NewRound = true
		plan.Stages = append([]types.StageTag(nil), set.Stages...)
		return plan
	}
	switch policy {
	case ResumeIdentity:
		closed := closedStages(session)
		for _, stage := range set.Stages {
			if !closed[stage] {
				plan.Stages = append(plan.Stages, stage)
			}
		}
	default:
		plan.Stages = append([]types.StageTag(nil), set.Stages[completed:]...)
	}
	return plan
}

// Step identifies one stage execution within a run.
type Step struct {
	Stage    types.StageTag
	Index    int
	Total    int
	NewRound bool
}

func (s Step) Last() bool {
	return s.Index == s.Total-1
}

// StageHooks connect the sequencer to the session it drives.
type StageHooks struct {
	// NewRound opens the next round on the server.
	NewRound func(ctx context.Context) error
	// BeforeStage marks the stage as current.
	BeforeStage func(step Step)
	// RunStage executes the stage and returns once its stream has ended.
	RunStage func(ctx context.Context, step Step) error
	// Finish runs once when the run ends, however it ends.
	Finish func()
}

type RunResult struct {
	Plan      Plan
	Completed []types.StageTag
	Failed    []types.StageTag
}

type SequencerOption func(*Sequencer)

func WithStageDelay(delay time.Duration) SequencerOption {
	return func(s *Sequencer) {
		if delay >= 0 {
			s.delay = delay
		}
	}
}

func WithResumePolicy(policy ResumePolicy) SequencerOption {
	return func(s *Sequencer) {
		s.policy = policy
	}
}

func WithSequencerLogger(logger logging.Logger) SequencerOption {
	return func(s *Sequencer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithSequencerMetrics(metrics *observability.Metrics) SequencerOption {
	return func(s *Sequencer) {
		s.metrics = metrics
	}
}

// Sequencer runs the stages of a stage set in order, one at a time.
type Sequencer struct {
	set     types.StageSet
	policy  ResumePolicy
	delay   time.Duration
	logger  logging.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewSequencer(set types.StageSet, opts ...SequencerOption) *Sequencer {
	s := &Sequencer{
		set:    set,
		policy: ResumeOrdinal,
		delay:  DefaultStageDelay,
		logger: logging.Nop(),
		tracer: otel.Tracer(observability.TracerName),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sequencer) StageSet() types.StageSet {
	return s.set
}

func (s *Sequencer) Plan(session *types.Session) Plan {
	return PlanStages(session, s.set, s.policy)
}

// Run plans the remaining stages for session and executes them. A failing
// stage is logged and the loop moves on. The loop stops early when the new
// round cannot be opened, when a stage reports ErrStaleBinding, or when ctx
// is done.
func (s *Sequencer) Run(ctx context.Context, session *types.Session, hooks StageHooks) (RunResult, error) {
	if hooks.Finish != nil {
		defer hooks.Finish()
	}
	if session == nil {
		session = &types.Session{}
	}
	plan := s.Plan(session)
	result := RunResult{Plan: plan}
	ctx, span := s.tracer.Start(ctx, "dialogue.run", trace.WithAttributes(
		attribute.String("session.id", session.ID),
		attribute.String("stage_set", s.set.Name),
		attribute.Int("stages.completed", plan.Completed),
		attribute.Bool("new_round", plan.NewRound),
	))
	defer span.End()

	logger := s.logger.With(logging.F("session", session.ID))
	logger.Info("stage run planned",
		logging.F("completed", plan.Completed),
		logging.F("total", s.set.Len()),
		logging.F("remaining", len(plan.Stages)),
		logging.F("new_round", plan.NewRound),
	)

	if plan.NewRound {
		if hooks.NewRound == nil {
			return result, ErrNewSequenceFailed
		}
		if err := hooks.NewRound(ctx); err != nil {
			logger.Error("new round not started", logging.Err(err))
			span.SetStatus(codes.Error, err.Error())
			if errors.Is(err, ErrStaleBinding) {
				return result, err
			}
			return result, fmt.Errorf("%w: %w", ErrNewSequenceFailed, err)
		}
	}

	for i, stage := range plan.Stages {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		step := Step{Stage: stage, Index: i, Total: len(plan.Stages), NewRound: plan.NewRound}
		if hooks.BeforeStage != nil {
			hooks.BeforeStage(step)
		}
		err := s.runStage(ctx, step, hooks, logger)
		if errors.Is(err, ErrStaleBinding) {
			logger.Info("stage run abandoned", logging.F("stage", string(stage)))
			return result, err
		}
		if err != nil {
			result.Failed = append(result.Failed, stage)
		} else {
			result.Completed = append(result.Completed, stage)
		}
		if step.Last() {
			break
		}
		if err := s.sleep(ctx, s.delay); err != nil {
			return result, err
		}
	}
	logger.Info("stage run finished",
		logging.F("completed", len(result.Completed)),
		logging.F("failed", len(result.Failed)),
	)
	return result, nil
}

func (s *Sequencer) runStage(ctx context.Context, step Step, hooks StageHooks, logger logging.Logger) error {
	ctx, span := s.tracer.Start(ctx, "dialogue.stage", trace.WithAttributes(
		attribute.String("stage", string(step.Stage)),
		attribute.Int("index", step.Index),
	))
	defer span.End()

	logger.Info("stage started", logging.F("stage", string(step.Stage)))
	start := time.Now()
	var err error
	if hooks.RunStage != nil {
		err = hooks.RunStage(ctx, step)
	}
	s.metrics.RecordStage(ctx, string(step.Stage), time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if !errors.Is(err, ErrStaleBinding) {
			logger.Error("stage failed", logging.F("stage", string(step.Stage)), logging.Err(err))
		}
		return err
	}
	logger.Info("stage completed", logging.F("stage", string(step.Stage)), logging.F("dur", time.Since(start)))
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
