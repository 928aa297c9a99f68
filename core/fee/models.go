package fee

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
)

type Status string

const (
	StatusPaid    Status = "paid"
	StatusUnpaid  Status = "unpaid"
	StatusPartial Status = "partial"
)

// DeriveStatus returns the status a fee is saved with.
func DeriveStatus(isPaid bool, amount float64) Status {
	switch {
	case isPaid:
		return StatusPaid
	case amount == 0:
		return StatusUnpaid
	default:
		return StatusPartial
	}
}

type (
	Fee struct {
		ID          string      `json:"id" db:"id"`
		StudentID   string      `json:"student_id" db:"student_id"`
		Amount      float64     `json:"amount" db:"amount"`
		Description string      `json:"description" db:"description"`
		TermID      null.String `json:"term_id" db:"term_id"`
		SessionID   null.String `json:"session_id" db:"session_id"`
		Status      Status      `json:"status" db:"status"`
		IsPaid      bool        `json:"is_paid" db:"is_paid"`
		DueDate     null.Time   `json:"due_date" db:"due_date"`
		PaymentDate null.Time   `json:"payment_date" db:"payment_date"`
		CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	}

	// TermSummary totals the fee amounts of one term by status.
	TermSummary struct {
		TermID       null.String `json:"term_id" db:"term_id"`
		TotalPaid    float64     `json:"total_paid" db:"total_paid"`
		TotalUnpaid  float64     `json:"total_unpaid" db:"total_unpaid"`
		TotalPartial float64     `json:"total_partial" db:"total_partial"`
	}
)

func (f *Fee) deriveStatus() { f.Status = DeriveStatus(f.IsPaid, f.Amount) }

// Requests

type (
	FeeInput struct {
		StudentID   string    `json:"student_id" validate:"required"`
		Amount      float64   `json:"amount" validate:"gte=0"`
		Description string    `json:"description" validate:"max=255"`
		TermID      string    `json:"term_id"`
		SessionID   string    `json:"session_id"`
		IsPaid      bool      `json:"is_paid"`
		DueDate     time.Time `json:"due_date"`
		PaymentDate time.Time `json:"payment_date"`
	}

	QueryFilter struct {
		StudentID string `query:"student_id"`
		TermID    string `query:"term_id"`
		SessionID string `query:"session_id"`
		Status    Status `query:"status" validate:"omitempty,oneof=paid unpaid partial"`
	}
)

func (in *FeeInput) Validate(validate *validator.Validate) error {
	in.Description = core.CleanString(in.Description)
	return validate.Struct(in)
}

func (f *QueryFilter) Validate(validate *validator.Validate) error { return validate.Struct(f) }

func nullString(s string) null.String { return null.NewString(s, s != "") }

func nullTime(t time.Time) null.Time { return null.NewTime(t.UTC(), !t.IsZero()) }

func (in FeeInput) apply(f *Fee) {
	f.StudentID = in.StudentID
	f.Amount = in.Amount
	f.Description = in.Description
	f.TermID = nullString(in.TermID)
	f.SessionID = nullString(in.SessionID)
	f.IsPaid = in.IsPaid
	f.DueDate = nullTime(in.DueDate)
	f.PaymentDate = nullTime(in.PaymentDate)
	f.deriveStatus()
}
