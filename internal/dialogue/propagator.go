package dialogue

import (
	"context"
	"time"

	"yui/internal/logging"
	"yui/internal/types"
)

// SessionSink receives complete session snapshots.
type SessionSink interface {
	PutSession(ctx context.Context, session *types.Session) error
}

// Propagator turns partial patches into full snapshots for a SessionSink.
type Propagator struct {
	sink   SessionSink
	logger logging.Logger
	now    func() time.Time
}

func NewPropagator(sink SessionSink, logger logging.Logger) *Propagator {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Propagator{sink: sink, logger: logger, now: time.Now}
}

// Build returns a snapshot with every field populated. Fields the patch does
// not specify come from prev, messages fall back to local and updatedAt falls
// back to the current time. The session id is never taken from the patch
// once prev carries one.
func (p *Propagator) Build(prev *types.Session, patch types.SessionPatch, local []types.Message) *types.Session {
	out := prev.Clone()
	if out == nil {
		out = &types.Session{ID: patch.ID}
	}
	if out.ID == "" {
		out.ID = patch.ID
	}
	if patch.Title != nil {
		out.Title = *patch.Title
	}
	if patch.Agents != nil {
		out.Agents = append([]types.Agent(nil), patch.Agents...)
	}
	if patch.Messages != nil {
		out.Messages = types.CloneMessages(patch.Messages)
	} else {
		out.Messages = types.CloneMessages(local)
	}
	if patch.CreatedAt != nil {
		out.CreatedAt = *patch.CreatedAt
	}
	if patch.UpdatedAt != nil && !patch.UpdatedAt.IsZero() {
		out.UpdatedAt = *patch.UpdatedAt
	} else {
		out.UpdatedAt = p.now()
	}
	if patch.CurrentStage != nil {
		out.CurrentStage = *patch.CurrentStage
	}
	if patch.StageHistory != nil {
		out.StageHistory = append([]types.StageHistoryEntry(nil), patch.StageHistory...)
	}
	if patch.StageSummaries != nil {
		out.StageSummaries = append([]types.StageSummary(nil), patch.StageSummaries...)
	}
	if patch.Status != nil {
		out.Status = *patch.Status
	}
	if patch.Complete != nil {
		out.Complete = *patch.Complete
	}
	if patch.SequenceNumber != nil {
		out.SequenceNumber = *patch.SequenceNumber
	}
	if patch.Language != nil {
		out.Language = *patch.Language
	}
	if patch.OutputFileName != nil {
		out.OutputFileName = *patch.OutputFileName
	}
	if patch.SequenceOutputFiles != nil {
		out.SequenceOutputFiles = make(map[int]string, len(patch.SequenceOutputFiles))
		for round, name := range patch.SequenceOutputFiles {
			out.SequenceOutputFiles[round] = name
		}
	}
	if out.Agents == nil {
		out.Agents = []types.Agent{}
	}
	if out.Messages == nil {
		out.Messages = []types.Message{}
	}
	if out.StageHistory == nil {
		out.StageHistory = []types.StageHistoryEntry{}
	}
	if out.SequenceNumber <= 0 {
		out.SequenceNumber = 1
	}
	if out.Status == "" {
		out.Status = types.SessionStatusActive
	}
	return out
}

// Propagate builds the snapshot and stores it. The snapshot is returned even
// when the sink fails.
func (p *Propagator) Propagate(ctx context.Context, prev *types.Session, patch types.SessionPatch, local []types.Message) (*types.Session, error) {
	snapshot := p.Build(prev, patch, local)
	return snapshot, p.Store(ctx, snapshot)
}

// Store hands a copy of snapshot to the sink. Failures are logged and
// returned.
func (p *Propagator) Store(ctx context.Context, snapshot *types.Session) error {
	if p.sink == nil || snapshot == nil {
		return nil
	}
	if err := p.sink.PutSession(ctx, snapshot.Clone()); err != nil {
		p.logger.Error("session update not stored", logging.F("session", snapshot.ID), logging.Err(err))
		return err
	}
	return nil
}
