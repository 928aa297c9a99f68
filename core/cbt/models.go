package cbt

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

type (
	// Test is a computer-based test set by a teacher for one classroom.
	Test struct {
		ID              string    `json:"id" db:"id"`
		TeacherID       string    `json:"teacher_id" db:"teacher_id"`
		Title           string    `json:"title" db:"title"`
		SubjectID       string    `json:"subject_id" db:"subject_id"`
		ClassroomID     string    `json:"classroom_id" db:"classroom_id"`
		TermID          string    `json:"term_id" db:"term_id"`
		SessionID       string    `json:"session_id" db:"session_id"`
		DurationMinutes int       `json:"duration_minutes" db:"duration_minutes"`
		TotalQuestions  int       `json:"total_questions" db:"total_questions"`
		StartTime       time.Time `json:"start_time" db:"start_time"`
		EndTime         time.Time `json:"end_time" db:"end_time"`
		CreatedAt       time.Time `json:"created_at" db:"created_at"`
		IsActive        bool      `json:"is_active" db:"is_active"`
	}

	Question struct {
		ID            string `json:"id" db:"id"`
		TestID        string `json:"test_id" db:"test_id"`
		Text          string `json:"text" db:"question_text"`
		OptionA       string `json:"option_a" db:"option_a"`
		OptionB       string `json:"option_b" db:"option_b"`
		OptionC       string `json:"option_c" db:"option_c"`
		OptionD       string `json:"option_d" db:"option_d"`
		CorrectOption string `json:"correct_option,omitempty" db:"correct_option"`
		Position      int    `json:"position" db:"position"`
	}

	Submission struct {
		ID          string    `json:"id" db:"id"`
		StudentID   string    `json:"student_id" db:"student_id"`
		TestID      string    `json:"test_id" db:"test_id"`
		SubmittedAt time.Time `json:"submitted_at" db:"submitted_at"`
		Answers     []Answer  `json:"answers,omitempty" db:"-"`
	}

	Answer struct {
		QuestionID     string `json:"question_id" db:"question_id"`
		SelectedOption string `json:"selected_option" db:"selected_option"`
	}

	// SubmissionResult is a scored Submission.
	SubmissionResult struct {
		Submission
		Score
		StudentName string `json:"student_name" db:"student_name"`
		Rank        int    `json:"rank,omitempty" db:"-"`
	}
)

// inWindow reports whether at falls within [StartTime, EndTime].
func (t Test) inWindow(at time.Time) bool {
	return !at.Before(t.StartTime) && !at.After(t.EndTime)
}

// Key maps every question id of the test to its correct option.
func Key(questions []Question) map[string]string {
	key := make(map[string]string, len(questions))
	for _, q := range questions {
		key[q.ID] = q.CorrectOption
	}
	return key
}

// Requests

type (
	TestInput struct {
		Title           string    `json:"title" validate:"required,notblank,max=200"`
		SubjectID       string    `json:"subject_id" validate:"required"`
		ClassroomID     string    `json:"classroom_id" validate:"required"`
		TermID          string    `json:"term_id" validate:"required"`
		SessionID       string    `json:"session_id" validate:"required"`
		DurationMinutes int       `json:"duration_minutes" validate:"required,min=1"`
		TotalQuestions  int       `json:"total_questions" validate:"required,min=1"`
		StartTime       time.Time `json:"start_time" validate:"required"`
		EndTime         time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	}

	QuestionInput struct {
		Text          string `json:"text" validate:"required,notblank"`
		OptionA       string `json:"option_a" validate:"required,max=255"`
		OptionB       string `json:"option_b" validate:"required,max=255"`
		OptionC       string `json:"option_c" validate:"required,max=255"`
		OptionD       string `json:"option_d" validate:"required,max=255"`
		CorrectOption string `json:"correct_option" validate:"required,option"`
	}

	SubmitInput struct {
		// Answers maps question ids to the selected option. Unanswered questions are left out.
		Answers map[string]string `json:"answers" validate:"dive,keys,required,endkeys,option"`
	}
)

func (in *TestInput) Validate(validate *validator.Validate) error {
	in.Title = core.CleanString(in.Title)
	return validate.Struct(in)
}

func (in *QuestionInput) Validate(validate *validator.Validate) error {
	in.Text = core.CleanString(in.Text)
	in.CorrectOption = core.CleanString(in.CorrectOption)
	return validate.Struct(in)
}

func (in *SubmitInput) Validate(validate *validator.Validate) error {
	for id, opt := range in.Answers {
		in.Answers[id] = core.CleanString(opt)
	}
	return validate.Struct(in)
}
