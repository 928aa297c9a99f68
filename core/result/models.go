package result

import (
	"time"

	"github.com/go-playground/validator/v10"
)

const MaxTotal = 100

type (
	ScoreRecord struct {
		ID          string    `json:"id" db:"id"`
		StudentID   string    `json:"student_id" db:"student_id"`
		SubjectID   string    `json:"subject_id" db:"subject_id"`
		ClassroomID string    `json:"classroom_id" db:"classroom_id"`
		TermID      string    `json:"term_id" db:"term_id"`
		SessionID   string    `json:"session_id" db:"session_id"`
		TestScore   float64   `json:"test_score" db:"test_score"`
		ExamScore   float64   `json:"exam_score" db:"exam_score"`
		Grade       Grade     `json:"grade" db:"grade"`
		Comment     string    `json:"comment" db:"comment"`
		Locked      bool      `json:"locked" db:"locked"`
		CreatedAt   time.Time `json:"created_at" db:"created_at"`
		UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
	}

	// Scope is the set of score records of one classroom for one term of one session.
	Scope struct {
		ClassroomID string `json:"classroom_id" query:"classroom_id" validate:"required"`
		TermID      string `json:"term_id" query:"term_id" validate:"required"`
		SessionID   string `json:"session_id" query:"session_id" validate:"required"`
	}

	// StudentReport holds the results of one student for a term of a session.
	StudentReport struct {
		StudentID string        `json:"student_id"`
		TermID    string        `json:"term_id"`
		SessionID string        `json:"session_id"`
		Results   []ScoreRecord `json:"results"`
		Total     float64       `json:"total"`
		Average   float64       `json:"average"`
	}
)

func (r ScoreRecord) Total() float64 { return r.TestScore + r.ExamScore }

// grade recomputes the grade and comment from the scores.
func (r *ScoreRecord) grade(p Policy) {
	r.Grade, r.Comment = p.Grade(r.TestScore, r.ExamScore)
}

// Requests

type (
	ScoreEntry struct {
		StudentID string  `json:"student_id" validate:"required"`
		TestScore float64 `json:"test_score" validate:"gte=0"`
		ExamScore float64 `json:"exam_score" validate:"gte=0"`
	}

	UploadInput struct {
		Scope
		SubjectID string       `json:"subject_id" validate:"required"`
		Scores    []ScoreEntry `json:"scores" validate:"required,min=1,dive"`
	}

	EditInput struct {
		TestScore float64 `json:"test_score" validate:"gte=0"`
		ExamScore float64 `json:"exam_score" validate:"gte=0"`
	}

	ReportFilter struct {
		TermID    string `query:"term_id" validate:"required"`
		SessionID string `query:"session_id" validate:"required"`
	}
)

func (in *Scope) Validate(validate *validator.Validate) error { return validate.Struct(in) }

func (in *UploadInput) Validate(validate *validator.Validate) error { return validate.Struct(in) }

func (in *EditInput) Validate(validate *validator.Validate) error { return validate.Struct(in) }

func (in *ReportFilter) Validate(validate *validator.Validate) error { return validate.Struct(in) }
