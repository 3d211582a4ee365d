package types

import "strings"

type StageTag string

const (
	StageIndividualThought         StageTag = "individual-thought"
	StageMutualReflection          StageTag = "mutual-reflection"
	StageMutualReflectionSummary   StageTag = "mutual-reflection-summary"
	StageConflictResolution        StageTag = "conflict-resolution"
	StageConflictResolutionSummary StageTag = "conflict-resolution-summary"
	StageSynthesisAttempt          StageTag = "synthesis-attempt"
	StageSynthesisAttemptSummary   StageTag = "synthesis-attempt-summary"
	StageOutputGeneration          StageTag = "output-generation"
	StageFinalize                  StageTag = "finalize"
)

// AllStages lists every stage in declared dialogue order.
var AllStages = []StageTag{
	StageIndividualThought,
	StageMutualReflection,
	StageMutualReflectionSummary,
	StageConflictResolution,
	StageConflictResolutionSummary,
	StageSynthesisAttempt,
	StageSynthesisAttemptSummary,
	StageOutputGeneration,
	StageFinalize,
}

// MainStages is the order shown by the progress indicator. Summary stages are hidden.
var MainStages = []StageTag{
	StageIndividualThought,
	StageMutualReflection,
	StageConflictResolution,
	StageSynthesisAttempt,
	StageOutputGeneration,
	StageFinalize,
}

var stageLabels = map[StageTag]string{
	StageIndividualThought:         "Individual Thought",
	StageMutualReflection:          "Mutual Reflection",
	StageMutualReflectionSummary:   "Mutual Reflection Summary",
	StageConflictResolution:        "Conflict Resolution",
	StageConflictResolutionSummary: "Conflict Resolution Summary",
	StageSynthesisAttempt:          "Synthesis Attempt",
	StageSynthesisAttemptSummary:   "Synthesis Attempt Summary",
	StageOutputGeneration:          "Output Generation",
	StageFinalize:                  "Finalize",
}

var stageShortLabels = map[StageTag]string{
	StageIndividualThought:  "Individual",
	StageMutualReflection:   "Reflection",
	StageConflictResolution: "Conflict",
	StageSynthesisAttempt:   "Synthesis",
	StageOutputGeneration:   "Output",
	StageFinalize:           "Finalize",
}

func (s StageTag) Label() string {
	if label, ok := stageLabels[s]; ok {
		return label
	}
	return string(s)
}

func (s StageTag) ShortLabel() string {
	if label, ok := stageShortLabels[s]; ok {
		return label
	}
	if s.IsSummary() {
		return "Summary"
	}
	return string(s)
}

func (s StageTag) IsSummary() bool {
	return strings.HasSuffix(string(s), "-summary")
}

func (s StageTag) Valid() bool {
	_, ok := stageLabels[s]
	return ok
}

// ParseStageTag normalizes raw and reports whether it names a known stage.
func ParseStageTag(raw string) (StageTag, bool) {
	tag := StageTag(strings.ToLower(strings.TrimSpace(raw)))
	return tag, tag.Valid()
}

// StageSet is an ordered list of stages executed for one round.
// CompletionThreshold is the number of closed history entries at which the
// round counts as finished.
type StageSet struct {
	Name                string
	Stages              []StageTag
	CompletionThreshold int
}

const (
	StageSetSimple    = "simple"
	StageSetDialectic = "full"
)

func SimpleStages() StageSet {
	return StageSet{
		Name: StageSetSimple,
		Stages: []StageTag{
			StageIndividualThought,
			StageMutualReflection,
			StageConflictResolution,
			StageSynthesisAttempt,
			StageOutputGeneration,
		},
		CompletionThreshold: 5,
	}
}

// DialecticStages interleaves the summary stages and appends finalize. The
// server records history for the five main stages and three summaries but not
// for finalize, so the round is complete at eight closed entries.
func DialecticStages() StageSet {
	return StageSet{
		Name:                StageSetDialectic,
		Stages:              append([]StageTag{}, AllStages...),
		CompletionThreshold: 8,
	}
}

func StageSetForMode(mode string) StageSet {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case StageSetSimple:
		return SimpleStages()
	default:
		return DialecticStages()
	}
}

func (s StageSet) Len() int {
	return len(s.Stages)
}

func (s StageSet) Threshold() int {
	if s.CompletionThreshold <= 0 || s.CompletionThreshold > len(s.Stages) {
		return len(s.Stages)
	}
	return s.CompletionThreshold
}
