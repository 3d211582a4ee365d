package dialogue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yui/internal/types"
)

func closedEntry(stage types.StageTag, round int) types.StageHistoryEntry {
	end := baseTime.Add(time.Minute)
	return types.StageHistoryEntry{Stage: stage, SequenceNumber: round, StartTime: baseTime, EndTime: &end}
}

func sessionWithClosed(round int, stages ...types.StageTag) *types.Session {
	s := &types.Session{ID: "s1", SequenceNumber: round}
	for _, stage := range stages {
		s.StageHistory = append(s.StageHistory, closedEntry(stage, round))
	}
	return s
}

func TestPlanStagesOrdinalSlice(t *testing.T) {
	set := types.DialecticStages()
	for k := 0; k < set.Threshold(); k++ {
		session := sessionWithClosed(1, set.Stages[:k]...)
		plan := PlanStages(session, set, ResumeOrdinal)
		assert.False(t, plan.NewRound, "k=%d", k)
		assert.Equal(t, k, plan.Completed)
		assert.Equal(t, set.Stages[k:], plan.Stages, "k=%d", k)
	}
}

func TestPlanStagesIgnoresOtherRoundsAndOpenEntries(t *testing.T) {
	set := types.SimpleStages()
	session := sessionWithClosed(1, set.Stages...)
	session.SequenceNumber = 2
	session.StageHistory = append(session.StageHistory,
		closedEntry(types.StageIndividualThought, 2),
		types.StageHistoryEntry{Stage: types.StageMutualReflection, SequenceNumber: 2, StartTime: baseTime},
	)

	plan := PlanStages(session, set, ResumeOrdinal)

	assert.False(t, plan.NewRound)
	assert.Equal(t, 1, plan.Completed)
	assert.Equal(t, set.Stages[1:], plan.Stages)
}

func TestPlanStagesThresholdRequiresNewRound(t *testing.T) {
	full := types.DialecticStages()
	plan := PlanStages(sessionWithClosed(1, full.Stages[:8]...), full, ResumeOrdinal)
	assert.True(t, plan.NewRound)
	assert.Equal(t, full.Stages, plan.Stages)

	simple := types.SimpleStages()
	plan = PlanStages(sessionWithClosed(1, simple.Stages...), simple, ResumeOrdinal)
	assert.True(t, plan.NewRound)
	assert.Equal(t, simple.Stages, plan.Stages)
}

func TestPlanStagesIdentityPolicy(t *testing.T) {
	set := types.SimpleStages()
	session := sessionWithClosed(1, types.StageMutualReflection)

	ordinal := PlanStages(session, set, ResumeOrdinal)
	identity := PlanStages(session, set, ResumeIdentity)

	assert.Equal(t, set.Stages[1:], ordinal.Stages)
	assert.Equal(t, []types.StageTag{
		types.StageIndividualThought,
		types.StageConflictResolution,
		types.StageSynthesisAttempt,
		types.StageOutputGeneration,
	}, identity.Stages)
}

func TestParseResumePolicy(t *testing.T) {
	assert.Equal(t, ResumeIdentity, ParseResumePolicy(" Identity "))
	assert.Equal(t, ResumeOrdinal, ParseResumePolicy("ordinal"))
	assert.Equal(t, ResumeOrdinal, ParseResumePolicy("bogus"))
}

type sleepRecorder struct {
	calls []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.calls = append(r.calls, d)
	return nil
}

func newTestSequencer(set types.StageSet) (*Sequencer, *sleepRecorder) {
	rec := &sleepRecorder{}
	s := NewSequencer(set, WithStageDelay(time.Second))
	s.sleep = rec.sleep
	return s, rec
}

func TestSequencerRunsRemainingStagesWithDelays(t *testing.T) {
	set := types.SimpleStages()
	s, sleeps := newTestSequencer(set)
	var before, ran []types.StageTag
	finished := 0

	result, err := s.Run(context.Background(), sessionWithClosed(1, set.Stages[:2]...), StageHooks{
		BeforeStage: func(step Step) { before = append(before, step.Stage) },
		RunStage: func(_ context.Context, step Step) error {
			ran = append(ran, step.Stage)
			return nil
		},
		Finish: func() { finished++ },
	})

	require.NoError(t, err)
	assert.Equal(t, set.Stages[2:], before)
	assert.Equal(t, set.Stages[2:], ran)
	assert.Equal(t, set.Stages[2:], result.Completed)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, sleeps.calls)
	assert.Equal(t, 1, finished)
}

func TestSequencerContinuesAfterStageFailure(t *testing.T) {
	set := types.SimpleStages()
	s, _ := newTestSequencer(set)
	var ran []types.StageTag

	result, err := s.Run(context.Background(), sessionWithClosed(1), StageHooks{
		RunStage: func(_ context.Context, step Step) error {
			ran = append(ran, step.Stage)
			if step.Stage == types.StageMutualReflection {
				return errors.New("stream broke")
			}
			return nil
		},
	})

	require.NoError(t, err)
	assert.Equal(t, set.Stages, ran)
	assert.Equal(t, []types.StageTag{types.StageMutualReflection}, result.Failed)
	assert.Len(t, result.Completed, 4)
}

func TestSequencerAllCompleteRequiresNewRound(t *testing.T) {
	set := types.DialecticStages()
	s, _ := newTestSequencer(set)
	session := sessionWithClosed(1, set.Stages[:8]...)
	var calls []string

	_, err := s.Run(context.Background(), session, StageHooks{
		NewRound: func(context.Context) error {
			calls = append(calls, "new-round")
			return nil
		},
		RunStage: func(_ context.Context, step Step) error {
			assert.True(t, step.NewRound)
			calls = append(calls, string(step.Stage))
			return nil
		},
	})

	require.NoError(t, err)
	require.Len(t, calls, 10)
	assert.Equal(t, "new-round", calls[0])
	assert.Equal(t, string(types.StageIndividualThought), calls[1])
	assert.Equal(t, string(types.StageFinalize), calls[9])
}

func TestSequencerNewRoundFailureStartsNoStage(t *testing.T) {
	set := types.SimpleStages()
	s, _ := newTestSequencer(set)
	finished := false

	result, err := s.Run(context.Background(), sessionWithClosed(1, set.Stages...), StageHooks{
		NewRound: func(context.Context) error { return errors.New("503") },
		RunStage: func(context.Context, Step) error {
			t.Fatal("stage must not run")
			return nil
		},
		Finish: func() { finished = true },
	})

	assert.ErrorIs(t, err, ErrNewSequenceFailed)
	assert.True(t, result.Plan.NewRound)
	assert.Empty(t, result.Completed)
	assert.True(t, finished)
}

func TestSequencerStopsOnStaleBinding(t *testing.T) {
	set := types.SimpleStages()
	s, sleeps := newTestSequencer(set)
	count := 0

	_, err := s.Run(context.Background(), sessionWithClosed(1), StageHooks{
		RunStage: func(context.Context, Step) error {
			count++
			return ErrStaleBinding
		},
	})

	assert.ErrorIs(t, err, ErrStaleBinding)
	assert.Equal(t, 1, count)
	assert.Empty(t, sleeps.calls)
}

func TestSequencerHonoursCancellation(t *testing.T) {
	set := types.SimpleStages()
	s := NewSequencer(set, WithStageDelay(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	count := 0

	done := make(chan error, 1)
	go func() {
		_, err := s.Run(ctx, sessionWithClosed(1), StageHooks{
			RunStage: func(context.Context, Step) error {
				count++
				return nil
			},
		})
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
	assert.LessOrEqual(t, count, 1)
}
