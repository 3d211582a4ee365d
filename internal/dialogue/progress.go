package dialogue

import (
	"fmt"

	"yui/internal/types"
)

type StageState string

const (
	StageCompleted StageState = "completed"
	StageCurrent   StageState = "current"
	StagePending   StageState = "pending"
)

type StageStatus struct {
	Stage types.StageTag
	State StageState
}

// Progress is the stage indicator view of one round.
type Progress struct {
	Round     int
	Stages    []StageStatus
	Completed int
}

func (p Progress) Total() int {
	return len(p.Stages)
}

// Counter renders the "k/n" label shown next to the indicator.
func (p Progress) Counter() string {
	return fmt.Sprintf("%d/%d", p.Completed, p.Total())
}

// ComputeProgress derives the main-stage indicator for the session's current
// round. current overrides the session's currentStage when set.
func ComputeProgress(session *types.Session, current types.StageTag) Progress {
	closed := closedStages(session)
	if current == "" && session != nil {
		current = session.CurrentStage
	}
	complete := session != nil && (session.Complete || session.Status == types.SessionStatusCompleted)
	progress := Progress{Round: session.Round(), Stages: make([]StageStatus, 0, len(types.MainStages))}
	for _, stage := range types.MainStages {
		state := StagePending
		if closed[stage] {
			progress.Completed++
		}
		// The stage that just finished stays current until the next one starts.
		switch {
		case complete && closed[stage]:
			state = StageCompleted
		case stage == current && !complete:
			state = StageCurrent
		case closed[stage]:
			state = StageCompleted
		}
		progress.Stages = append(progress.Stages, StageStatus{Stage: stage, State: state})
	}
	return progress
}

// CompletedCount is the number of distinct stages closed in the session's
// current round.
func CompletedCount(session *types.Session) int {
	return len(closedStages(session))
}

// StageCounter renders completed stages against the size of a stage set,
// e.g. "1/9".
func StageCounter(session *types.Session, set types.StageSet) string {
	return fmt.Sprintf("%d/%d", CompletedCount(session), set.Len())
}

func closedStages(session *types.Session) map[types.StageTag]bool {
	closed := make(map[types.StageTag]bool)
	for _, entry := range session.RoundHistory() {
		if entry.Closed() {
			closed[entry.Stage] = true
		}
	}
	return closed
}
