package types

import "time"

// SessionPatch is a partial Session. A nil field means "not specified".
type SessionPatch struct {
	ID                  string              `json:"id,omitempty"`
	Title               *string             `json:"title,omitempty"`
	Agents              []Agent             `json:"agents,omitempty"`
	Messages            []Message           `json:"messages,omitempty"`
	CreatedAt           *time.Time          `json:"createdAt,omitempty"`
	UpdatedAt           *time.Time          `json:"updatedAt,omitempty"`
	CurrentStage        *StageTag           `json:"currentStage,omitempty"`
	StageHistory        []StageHistoryEntry `json:"stageHistory,omitempty"`
	StageSummaries      []StageSummary      `json:"stageSummaries,omitempty"`
	Status              *SessionStatus      `json:"status,omitempty"`
	Complete            *bool               `json:"complete,omitempty"`
	SequenceNumber      *int                `json:"sequenceNumber,omitempty"`
	Language            *string             `json:"language,omitempty"`
	OutputFileName      *string             `json:"outputFileName,omitempty"`
	SequenceOutputFiles map[int]string      `json:"sequenceOutputFiles,omitempty"`
}

// Merge overlays next onto p field by field. Fields left unspecified in next
// keep the value from p.
func (p SessionPatch) Merge(next SessionPatch) SessionPatch {
	out := p
	if next.ID != "" {
		out.ID = next.ID
	}
	if next.Title != nil {
		out.Title = next.Title
	}
	if next.Agents != nil {
		out.Agents = next.Agents
	}
	if next.Messages != nil {
		out.Messages = next.Messages
	}
	if next.CreatedAt != nil {
		out.CreatedAt = next.CreatedAt
	}
	if next.UpdatedAt != nil {
		out.UpdatedAt = next.UpdatedAt
	}
	if next.CurrentStage != nil {
		out.CurrentStage = next.CurrentStage
	}
	if next.StageHistory != nil {
		out.StageHistory = next.StageHistory
	}
	if next.StageSummaries != nil {
		out.StageSummaries = next.StageSummaries
	}
	if next.Status != nil {
		out.Status = next.Status
	}
	if next.Complete != nil {
		out.Complete = next.Complete
	}
	if next.SequenceNumber != nil {
		out.SequenceNumber = next.SequenceNumber
	}
	if next.Language != nil {
		out.Language = next.Language
	}
	if next.OutputFileName != nil {
		out.OutputFileName = next.OutputFileName
	}
	if next.SequenceOutputFiles != nil {
		out.SequenceOutputFiles = next.SequenceOutputFiles
	}
	return out
}

// Empty reports whether the patch sets no session field. ID only addresses
// the session and does not count.
func (p SessionPatch) Empty() bool {
	return p.Title == nil && p.Agents == nil && p.Messages == nil && p.CreatedAt == nil &&
		p.UpdatedAt == nil && p.CurrentStage == nil && p.StageHistory == nil &&
		p.StageSummaries == nil && p.Status == nil && p.Complete == nil &&
		p.SequenceNumber == nil && p.Language == nil && p.OutputFileName == nil &&
		p.SequenceOutputFiles == nil
}

// PatchFromSession converts a complete snapshot into a patch that specifies
// every field.
func PatchFromSession(s *Session) SessionPatch {
	if s == nil {
		return SessionPatch{}
	}
	title := s.Title
	createdAt := s.CreatedAt
	updatedAt := s.UpdatedAt
	stage := s.CurrentStage
	status := s.Status
	complete := s.Complete
	seq := s.SequenceNumber
	language := s.Language
	output := s.OutputFileName
	patch := SessionPatch{
		ID:                  s.ID,
		Title:               &title,
		Agents:              s.Agents,
		Messages:            s.Messages,
		CreatedAt:           &createdAt,
		UpdatedAt:           &updatedAt,
		CurrentStage:        &stage,
		StageHistory:        s.StageHistory,
		StageSummaries:      s.StageSummaries,
		Status:              &status,
		Complete:            &complete,
		SequenceNumber:      &seq,
		Language:            &language,
		OutputFileName:      &output,
		SequenceOutputFiles: s.SequenceOutputFiles,
	}
	if patch.Agents == nil {
		patch.Agents = []Agent{}
	}
	if patch.Messages == nil {
		patch.Messages = []Message{}
	}
	if patch.StageHistory == nil {
		patch.StageHistory = []StageHistoryEntry{}
	}
	return patch
}

func StringPtr(v string) *string               { return &v }
func BoolPtr(v bool) *bool                     { return &v }
func IntPtr(v int) *int                        { return &v }
func TimePtr(v time.Time) *time.Time           { return &v }
func StagePtr(v StageTag) *StageTag            { return &v }
func StatusPtr(v SessionStatus) *SessionStatus { return &v }
