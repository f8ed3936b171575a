package eval

import (
	"time"

	"github.com/Maad-exe/projectgo/core"
)

const defaultCategoryMaxScore = 10

// weightSumTolerance bounds the drift allowed when rubric category
// weights are checked against 1.0 at write time.
const weightSumTolerance = 0.01

type Rubric struct {
	ID         int              `json:"id"`
	Name       string           `json:"name"`
	Categories []RubricCategory `json:"categories"`
	CreatedAt  time.Time        `json:"created_at"` // UTC
	UpdatedAt  time.Time        `json:"updated_at"` // UTC
}

func (r *Rubric) CategoryByID(id int) (RubricCategory, bool) {
	for _, cat := range r.Categories {
		if cat.ID == id {
			return cat, true
		}
	}
	return RubricCategory{}, false
}

type RubricCategory struct {
	ID       int     `json:"id"`
	RubricID int     `json:"rubric_id"`
	Name     string  `json:"name"`
	Weight   float64 `json:"weight"`    // 0..1 fraction; weights of a rubric sum to 1.0
	MaxScore int     `json:"max_score"` // positive; defaults to 10
}

// EvaluationEvent is one graded milestone (proposal defense, mid review,
// final defense...). A nil RubricID means simple-marks mode.
type EvaluationEvent struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	TotalMarks int       `json:"total_marks"`
	Weight     float64   `json:"weight"` // contribution to the final grade
	RubricID   *int      `json:"rubric_id"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

func (e *EvaluationEvent) IsRubricMode() bool { return e.RubricID != nil }

type PanelMember struct {
	TeacherID int  `json:"teacher_id"`
	IsHead    bool `json:"is_head"`
}

type Panel struct {
	ID        int           `json:"id"`
	Name      string        `json:"name"`
	Members   []PanelMember `json:"members"`
	CreatedAt time.Time     `json:"created_at"` // UTC
	UpdatedAt time.Time     `json:"updated_at"` // UTC
}

func (p *Panel) HasMember(teacherID int) bool {
	for _, m := range p.Members {
		if m.TeacherID == teacherID {
			return true
		}
	}
	return false
}

// GroupEvaluation links one Group + one Panel + one EvaluationEvent.
// A (group, event) pair is unique.
type GroupEvaluation struct {
	ID        int       `json:"id"`
	GroupID   int       `json:"group_id"`
	PanelID   int       `json:"panel_id"`
	EventID   int       `json:"event_id"`
	CreatedAt time.Time `json:"created_at"` // UTC

	// eagerly loaded relations
	Event *EvaluationEvent `json:"event,omitempty"`
	Panel *Panel           `json:"panel,omitempty"`
}

// StudentEvaluation accumulates one student's scores under a group
// evaluation. ObtainedMarks, Feedback and IsComplete are derived from the
// score ledger; RequiredEvaluatorsCount is a snapshot of the panel size
// taken when the record is lazily created, so later panel edits do not
// move the completion threshold.
type StudentEvaluation struct {
	ID                      int       `json:"id"`
	GroupEvaluationID       int       `json:"group_evaluation_id"`
	StudentID               int       `json:"student_id"`
	ObtainedMarks           int       `json:"obtained_marks"`
	Feedback                string    `json:"feedback"`
	IsComplete              bool      `json:"is_complete"`
	RequiredEvaluatorsCount int       `json:"required_evaluators_count"`
	RubricID                *int      `json:"rubric_id"`
	CreatedAt               time.Time `json:"created_at"` // UTC
	UpdatedAt               time.Time `json:"updated_at"` // UTC

	// eagerly loaded relations
	Scores []StudentCategoryScore `json:"scores,omitempty"`
}

// StudentCategoryScore is one ledger entry: one evaluator's score for one
// rubric category, or their simple-marks entry when CategoryID is nil.
// At most one entry exists per (evaluation, category-or-nil, evaluator).
type StudentCategoryScore struct {
	ID                  int       `json:"id"`
	StudentEvaluationID int       `json:"student_evaluation_id"`
	CategoryID          *int      `json:"category_id"`
	Score               int       `json:"score"`
	Feedback            string    `json:"feedback"`
	EvaluatorID         int       `json:"evaluator_id"`
	EvaluatedAt         time.Time `json:"evaluated_at"` // UTC
}

// EvaluationRecord pairs a StudentEvaluation with its event, for progress
// projections and final-grade computation.
type EvaluationRecord struct {
	StudentEvaluation
	Event EvaluationEvent `json:"event"`
}

// -- input DTOs --

type NewRubricCategory struct {
	Name     string  `json:"name" validate:"required"`
	Weight   float64 `json:"weight" validate:"gt=0,lte=1"`
	MaxScore int     `json:"max_score" validate:"omitempty,gt=0"`
}

type NewRubric struct {
	Name       string              `json:"name" validate:"required"`
	Categories []NewRubricCategory `json:"categories" validate:"required,min=1,dive"`
}

func (nr *NewRubric) Validate() error {
	nr.Name = core.CleanString(nr.Name)
	if err := core.Validate.Struct(nr); err != nil {
		return err
	}
	return validateWeightSum(nr.Categories)
}

type NewEvent struct {
	Name       string  `json:"name" validate:"required"`
	TotalMarks int     `json:"total_marks" validate:"gt=0"`
	Weight     float64 `json:"weight" validate:"omitempty,gt=0"`
	RubricID   *int    `json:"rubric_id"`
}

func (ne *NewEvent) Validate() error {
	ne.Name = core.CleanString(ne.Name)
	return core.Validate.Struct(ne)
}

type NewPanelMember struct {
	TeacherID int  `json:"teacher_id" validate:"required"`
	IsHead    bool `json:"is_head"`
}

type NewPanel struct {
	Name    string           `json:"name" validate:"required"`
	Members []NewPanelMember `json:"members" validate:"required,min=3,dive"`
}

func (np *NewPanel) Validate() error {
	np.Name = core.CleanString(np.Name)
	if err := core.Validate.Struct(np); err != nil {
		return err
	}
	return validateDistinctMembers(np.Members)
}

type AssignPanel struct {
	GroupID int `json:"group_id" validate:"required"`
	PanelID int `json:"panel_id" validate:"required"`
	EventID int `json:"event_id" validate:"required"`
}

func (ap *AssignPanel) Validate() error { return core.Validate.Struct(ap) }

// CategoryScoreInput is one rubric-mode category score from an evaluator.
type CategoryScoreInput struct {
	CategoryID int    `json:"category_id" validate:"required"`
	Score      int    `json:"score" validate:"gte=0"`
	Feedback   string `json:"feedback"`
}

// ScoreSubmission carries either simple marks (ObtainedMarks set) or
// rubric category scores, never both.
type ScoreSubmission struct {
	ObtainedMarks  *int                 `json:"obtained_marks" validate:"omitempty,gte=0"`
	Feedback       string               `json:"feedback"`
	CategoryScores []CategoryScoreInput `json:"category_scores" validate:"omitempty,dive"`
}

func (ss *ScoreSubmission) Validate() error {
	ss.Feedback = core.CleanString(ss.Feedback)
	for i := range ss.CategoryScores {
		ss.CategoryScores[i].Feedback = core.CleanString(ss.CategoryScores[i].Feedback)
	}
	return core.Validate.Struct(ss)
}

// -- projections (outward-facing, no storage types leak) --

// ScoreLine is one ledger entry projected for API consumers.
type ScoreLine struct {
	CategoryID   *int   `json:"category_id"`
	CategoryName string `json:"category_name,omitempty"`
	Score        int    `json:"score"`
	MaxScore     int    `json:"max_score"`
	Feedback     string `json:"feedback,omitempty"`
}

// EvaluatorBreakdown is one evaluator's contribution to a student evaluation.
type EvaluatorBreakdown struct {
	EvaluatorID   int         `json:"evaluator_id"`
	EvaluatorName string      `json:"evaluator_name"`
	Percentage    float64     `json:"percentage"` // this evaluator's weighted percentage
	Scores        []ScoreLine `json:"scores"`
}

// StudentEvaluationView is the refreshed projection returned after every
// ledger write.
type StudentEvaluationView struct {
	ID                      int                  `json:"id"`
	GroupEvaluationID       int                  `json:"group_evaluation_id"`
	StudentID               int                  `json:"student_id"`
	StudentName             string               `json:"student_name,omitempty"`
	ObtainedMarks           int                  `json:"obtained_marks"`
	TotalMarks              int                  `json:"total_marks"`
	IsComplete              bool                 `json:"is_complete"`
	RequiredEvaluatorsCount int                  `json:"required_evaluators_count"`
	EvaluatorsSubmitted     int                  `json:"evaluators_submitted"`
	Feedback                string               `json:"feedback,omitempty"`
	Breakdown               []EvaluatorBreakdown `json:"breakdown"`
}

// GroupEvaluationDetail is the projection for getGroupEvaluation.
type GroupEvaluationDetail struct {
	ID       int                     `json:"id"`
	GroupID  int                     `json:"group_id"`
	Panel    Panel                   `json:"panel"`
	Event    EvaluationEvent         `json:"event"`
	Students []StudentEvaluationView `json:"students"`
}

// StudentProgress summarizes one student across all their evaluations.
type StudentProgress struct {
	StudentID   int                     `json:"student_id"`
	StudentName string                  `json:"student_name"`
	Evaluations []StudentEvaluationView `json:"evaluations"`
	FinalGrade  float64                 `json:"final_grade"` // 0-100, weighted across events
}

// NormalizedGrade is one row of the cohort-wide normalization pass.
type NormalizedGrade struct {
	StudentID       int     `json:"student_id"`
	StudentName     string  `json:"student_name"`
	RawGrade        float64 `json:"raw_grade"`
	NormalizedGrade float64 `json:"normalized_grade"`
}
