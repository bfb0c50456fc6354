package model

// Stage is the workflow column a task occupies
type Stage string

// Workflow stages in board order
const (
	StageBacklog    Stage = "backlog"
	StageReady      Stage = "ready"
	StageInProgress Stage = "in-progress"
	StageReview     Stage = "review"
	StageQA         Stage = "qa"
	StageDone       Stage = "done"
)

// Stages lists every stage in progression order. The index is the stage rank.
var Stages = []Stage{
	StageBacklog,
	StageReady,
	StageInProgress,
	StageReview,
	StageQA,
	StageDone,
}

// BoardColumns are the stages rendered as columns; Done is shown as a separate list
var BoardColumns = []Stage{
	StageBacklog,
	StageReady,
	StageInProgress,
	StageReview,
	StageQA,
}

var stageNames = map[Stage]string{
	StageBacklog:    "Backlog",
	StageReady:      "Ready",
	StageInProgress: "In Progress",
	StageReview:     "Review",
	StageQA:         "QA",
	StageDone:       "Done",
}

// Valid reports whether s is one of the known stages
func (s Stage) Valid() bool {
	_, ok := stageNames[s]
	return ok
}

// Rank returns the position of s in the stage progression.
// Unknown stages sort after Done.
func (s Stage) Rank() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return len(Stages)
}

// Name returns the display name of the stage
func (s Stage) Name() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return string(s)
}

// Next returns the following stage, or false when s is Done or unknown
func (s Stage) Next() (Stage, bool) {
	r := s.Rank()
	if r >= len(Stages)-1 {
		return "", false
	}
	return Stages[r+1], true
}

// ParseStage accepts a stage id or its display name, case-insensitively
func ParseStage(v string) (Stage, bool) {
	for _, st := range Stages {
		if equalFold(string(st), v) || equalFold(st.Name(), v) {
			return st, true
		}
	}
	return "", false
}
