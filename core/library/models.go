package library

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
)

type (
	Book struct {
		ID            string `json:"id" db:"id"`
		Title         string `json:"title" db:"title"`
		Author        string `json:"author" db:"author"`
		ISBN          string `json:"isbn" db:"isbn"`
		Category      string `json:"category" db:"category"`
		Quantity      int    `json:"quantity" db:"quantity"`
		Barcode       string `json:"barcode" db:"barcode"`
		ShelfLocation string `json:"shelf_location" db:"shelf_location"`
	}

	BorrowRecord struct {
		ID         string    `json:"id" db:"id"`
		StudentID  string    `json:"student_id" db:"student_id"`
		BookID     string    `json:"book_id" db:"book_id"`
		BorrowDate time.Time `json:"borrow_date" db:"borrow_date"`
		DueDate    time.Time `json:"due_date" db:"due_date"`
		ReturnDate null.Time `json:"return_date" db:"return_date"`
		Fine       float64   `json:"fine" db:"fine"`

		// joined for display
		StudentName  string `json:"student_name,omitempty" db:"student_name"`
		StudentEmail string `json:"-" db:"student_email"`
		BookTitle    string `json:"book_title,omitempty" db:"book_title"`
		Overdue      bool   `json:"overdue" db:"-"`
	}

	Dashboard struct {
		TotalBooks    int `json:"total_books"`
		BorrowedBooks int `json:"borrowed_books"`
		OverdueBooks  int `json:"overdue_books"`
	}
)

// IsOverdue reports whether the book is still out past its due date.
func (r BorrowRecord) IsOverdue(now time.Time) bool {
	return !r.ReturnDate.Valid && now.After(r.DueDate)
}

// daysLate counts the started days between the due date and returnedAt.
func daysLate(due, returnedAt time.Time) int {
	if !returnedAt.After(due) {
		return 0
	}
	return int(math.Ceil(returnedAt.Sub(due).Hours() / 24))
}

// Requests

type (
	BookInput struct {
		Title         string `json:"title" validate:"required,notblank,max=200"`
		Author        string `json:"author" validate:"required,notblank,max=200"`
		ISBN          string `json:"isbn" validate:"required,max=13"`
		Category      string `json:"category" validate:"max=100"`
		Quantity      int    `json:"quantity" validate:"gte=0"`
		Barcode       string `json:"barcode" validate:"required,notblank,max=100"`
		ShelfLocation string `json:"shelf_location" validate:"max=100"`
	}

	BorrowInput struct {
		StudentID   string `json:"student_id" validate:"required"`
		BookBarcode string `json:"book_barcode" validate:"required"`
	}

	BookFilter struct {
		Search string `query:"search"`
	}

	RecordFilter struct {
		StudentID string `query:"student_id"`
		Open      bool   `query:"open"`
		Overdue   bool   `query:"overdue"`
	}
)

func (in *BookInput) Validate(validate *validator.Validate) error {
	in.Title = core.CleanString(in.Title)
	in.Author = core.CleanString(in.Author)
	in.ISBN = core.CleanString(in.ISBN)
	in.Category = core.CleanString(in.Category)
	in.Barcode = core.CleanString(in.Barcode)
	in.ShelfLocation = core.CleanString(in.ShelfLocation)
	return validate.Struct(in)
}

func (in *BorrowInput) Validate(validate *validator.Validate) error {
	in.BookBarcode = core.CleanString(in.BookBarcode)
	return validate.Struct(in)
}

func (f *BookFilter) Clean() {
	f.Search = core.CleanString(f.Search, true /* lower */)
}
