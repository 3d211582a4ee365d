package types

import "time"

type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
)

// StageHistoryEntry records one execution of a stage within a round. The
// server creates and closes entries; clients only read them.
type StageHistoryEntry struct {
	Stage          StageTag   `json:"stage"`
	SequenceNumber int        `json:"sequenceNumber,omitempty"`
	StartTime      time.Time  `json:"startTime"`
	EndTime        *time.Time `json:"endTime,omitempty"`
}

func (e StageHistoryEntry) Closed() bool {
	return e.EndTime != nil && !e.EndTime.IsZero()
}

// Round returns the round the entry belongs to. Entries written before
// rounds existed have no sequence number and belong to round 1.
func (e StageHistoryEntry) Round() int {
	if e.SequenceNumber <= 0 {
		return 1
	}
	return e.SequenceNumber
}

type SummaryItem struct {
	Speaker  string `json:"speaker"`
	Position string `json:"position"`
}

type StageSummary struct {
	Stage          StageTag      `json:"stage"`
	SequenceNumber int           `json:"sequenceNumber,omitempty"`
	Summary        []SummaryItem `json:"summary"`
	Timestamp      time.Time     `json:"timestamp"`
}

type Session struct {
	ID                  string              `json:"id"`
	Title               string              `json:"title"`
	Agents              []Agent             `json:"agents"`
	Messages            []Message           `json:"messages"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
	CurrentStage        StageTag            `json:"currentStage,omitempty"`
	StageHistory        []StageHistoryEntry `json:"stageHistory"`
	StageSummaries      []StageSummary      `json:"stageSummaries,omitempty"`
	Status              SessionStatus       `json:"status"`
	Complete            bool                `json:"complete"`
	SequenceNumber      int                 `json:"sequenceNumber"`
	Language            string              `json:"language,omitempty"`
	OutputFileName      string              `json:"outputFileName,omitempty"`
	SequenceOutputFiles map[int]string      `json:"sequenceOutputFiles,omitempty"`
}

// Round returns the current round, defaulting to 1.
func (s *Session) Round() int {
	if s == nil || s.SequenceNumber <= 0 {
		return 1
	}
	return s.SequenceNumber
}

// RoundHistory returns the history entries that belong to the current round.
func (s *Session) RoundHistory() []StageHistoryEntry {
	if s == nil {
		return nil
	}
	round := s.Round()
	out := make([]StageHistoryEntry, 0, len(s.StageHistory))
	for _, entry := range s.StageHistory {
		if entry.Round() == round {
			out = append(out, entry)
		}
	}
	return out
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Agents = append([]Agent(nil), s.Agents...)
	out.Messages = CloneMessages(s.Messages)
	out.StageHistory = append([]StageHistoryEntry(nil), s.StageHistory...)
	out.StageSummaries = append([]StageSummary(nil), s.StageSummaries...)
	if s.SequenceOutputFiles != nil {
		out.SequenceOutputFiles = make(map[int]string, len(s.SequenceOutputFiles))
		for round, name := range s.SequenceOutputFiles {
			out.SequenceOutputFiles[round] = name
		}
	}
	return &out
}
