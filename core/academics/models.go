package academics

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
)

// GraduateTarget is the promotion target that graduates students instead of moving them.
const GraduateTarget = "graduate"

type (
	Classroom struct {
		ID   string `json:"id" db:"id"`
		Name string `json:"name" db:"name"`
	}

	Subject struct {
		ID   string `json:"id" db:"id"`
		Name string `json:"name" db:"name"`
	}

	// Session is an academic year, e.g. "2024/2025".
	Session struct {
		ID        string `json:"id" db:"id"`
		Name      string `json:"name" db:"name"`
		IsCurrent bool   `json:"is_current" db:"is_current"`
	}

	// Term is a part of a Session, e.g. "First Term".
	Term struct {
		ID        string `json:"id" db:"id"`
		Name      string `json:"name" db:"name"`
		IsCurrent bool   `json:"is_current" db:"is_current"`
	}

	Student struct {
		UserID      string      `json:"user_id" db:"user_id"`
		Name        string      `json:"name" db:"name"`
		Username    string      `json:"username" db:"username"`
		Email       string      `json:"email" db:"email"`
		ClassroomID null.String `json:"classroom_id" db:"classroom_id"`
		SessionID   null.String `json:"session_id" db:"session_id"`
		Gender      string      `json:"gender" db:"gender"`
		DateOfBirth null.Time   `json:"date_of_birth" db:"date_of_birth"`
		Address     string      `json:"address" db:"address"`
		Graduated   bool        `json:"graduated" db:"graduated"`
	}

	Teacher struct {
		UserID     string `json:"user_id" db:"user_id"`
		Name       string `json:"name" db:"name"`
		Username   string `json:"username" db:"username"`
		Email      string `json:"email" db:"email"`
		Gender     string `json:"gender" db:"gender"`
		Phone      string `json:"phone" db:"phone"`
		Address    string `json:"address" db:"address"`
		Department string `json:"department" db:"department"`
	}

	// ClassAssignment gives a Teacher a Subject to teach in a Classroom.
	ClassAssignment struct {
		ID          string `json:"id" db:"id"`
		TeacherID   string `json:"teacher_id" db:"teacher_id"`
		ClassroomID string `json:"classroom_id" db:"classroom_id"`
		SubjectID   string `json:"subject_id" db:"subject_id"`
	}

	// Enrollment registers a Student for a Subject in a Classroom.
	Enrollment struct {
		StudentID   string `json:"student_id" db:"student_id"`
		SubjectID   string `json:"subject_id" db:"subject_id"`
		ClassroomID string `json:"classroom_id" db:"classroom_id"`
	}

	AdminDashboard struct {
		Students int `json:"students"`
		Teachers int `json:"teachers"`
		Classes  int `json:"classes"`
		Subjects int `json:"subjects"`
	}
)

// Requests

type (
	NameInput struct {
		Name string `json:"name" validate:"required,notblank,max=100"`
	}

	StudentProfileInput struct {
		ClassroomID string    `json:"classroom_id" validate:"omitempty"`
		SessionID   string    `json:"session_id" validate:"omitempty"`
		Gender      string    `json:"gender" validate:"omitempty,oneof=M F O"`
		DateOfBirth time.Time `json:"date_of_birth"`
		Address     string    `json:"address"`
	}

	TeacherProfileInput struct {
		Gender     string `json:"gender" validate:"required"`
		Phone      string `json:"phone" validate:"required,max=20"`
		Address    string `json:"address"`
		Department string `json:"department" validate:"max=100"`
	}

	AssignmentInput struct {
		TeacherID   string `json:"teacher_id" validate:"required"`
		ClassroomID string `json:"classroom_id" validate:"required"`
		SubjectID   string `json:"subject_id" validate:"required"`
	}

	EnrollmentInput struct {
		ClassroomID string   `json:"classroom_id" validate:"required"`
		SubjectID   string   `json:"subject_id" validate:"required"`
		StudentIDs  []string `json:"student_ids" validate:"dive,required"`
	}

	PromotionInput struct {
		FromClassroomID string   `json:"from_classroom_id" validate:"required"`
		StudentIDs      []string `json:"student_ids" validate:"required,min=1,dive,required"`
		// Target is a classroom id or GraduateTarget.
		Target string `json:"target" validate:"required"`
	}

	AssignmentFilter struct {
		TeacherID   string `query:"teacher_id"`
		ClassroomID string `query:"classroom_id"`
		SubjectID   string `query:"subject_id"`
	}

	StudentFilter struct {
		Search      string `query:"search"`
		ClassroomID string `query:"classroom_id"`
		Graduated   *bool  `query:"graduated"`
	}
)

func (in *NameInput) Validate(validate *validator.Validate) error {
	in.Name = core.CleanString(in.Name)
	return validate.Struct(in)
}

func (in *StudentProfileInput) Validate(validate *validator.Validate) error {
	in.Gender = core.CleanString(in.Gender)
	in.Address = core.CleanString(in.Address)
	return validate.Struct(in)
}

func (in *TeacherProfileInput) Validate(validate *validator.Validate) error {
	in.Phone = core.CleanString(in.Phone)
	in.Department = core.CleanString(in.Department)
	return validate.Struct(in)
}

func (in *AssignmentInput) Validate(validate *validator.Validate) error { return validate.Struct(in) }

func (in *EnrollmentInput) Validate(validate *validator.Validate) error { return validate.Struct(in) }

func (in *PromotionInput) Validate(validate *validator.Validate) error {
	in.Target = core.CleanString(in.Target)
	return validate.Struct(in)
}

func (f *StudentFilter) Clean() {
	f.Search = core.CleanString(f.Search)
}
