package library

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
)

var (
	nowFunc = time.Now // mockable

	// errors
	ErrBookNotFound    = core.NewNotFoundError("book")
	ErrStudentNotFound = core.NewNotFoundError("student")
	// ErrRecordNotFound also covers records already returned.
	ErrRecordNotFound = core.NewNotFoundError("borrow record")

	ErrBarcodeExists = errors.New("book with this barcode already exists")
	ErrISBNExists    = errors.New("book with this isbn already exists")
	ErrNotAvailable  = errors.New("book not available")
)

type (
	Repository interface {
		// CreateBook returns ErrBarcodeExists or ErrISBNExists on duplicates.
		CreateBook(ctx context.Context, b Book, exec ...core.DBExecutor) error
		UpdateBook(ctx context.Context, b Book, exec ...core.DBExecutor) error
		DeleteBook(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetBook(ctx context.Context, id string, exec ...core.DBExecutor) (Book, error)
		GetBookByBarcode(ctx context.Context, barcode string, exec ...core.DBExecutor) (Book, error)
		QueryBooks(ctx context.Context, filter BookFilter, exec ...core.DBExecutor) ([]Book, error)
		// TakeCopy decrements the quantity of a book having at least one copy left.
		// It returns false when no copy was left.
		TakeCopy(ctx context.Context, bookID string, exec ...core.DBExecutor) (bool, error)
		PutBackCopy(ctx context.Context, bookID string, exec ...core.DBExecutor) error

		CreateRecord(ctx context.Context, r BorrowRecord, exec ...core.DBExecutor) error
		// GetOpenRecord returns the record when the book has not been returned yet.
		GetOpenRecord(ctx context.Context, id string, exec ...core.DBExecutor) (BorrowRecord, error)
		UpdateRecord(ctx context.Context, r BorrowRecord, exec ...core.DBExecutor) error
		// QueryRecords returns records newest borrow first. Open limits them to books not returned.
		QueryRecords(ctx context.Context, studentID string, open bool, exec ...core.DBExecutor) ([]BorrowRecord, error)
		CountBooks(ctx context.Context, exec ...core.DBExecutor) (int, error)

		StudentExists(ctx context.Context, studentID string, exec ...core.DBExecutor) (bool, error)
	}

	Service interface {
		AddBook(ctx context.Context, in BookInput) (Book, error)
		UpdateBook(ctx context.Context, id string, in BookInput) (Book, error)
		DeleteBook(ctx context.Context, id string) error
		GetBook(ctx context.Context, id string) (Book, error)
		QueryBooks(ctx context.Context, filter BookFilter) ([]Book, error)
		Borrow(ctx context.Context, in BorrowInput) (BorrowRecord, error)
		Return(ctx context.Context, recordID string) (BorrowRecord, error)
		History(ctx context.Context, filter RecordFilter) ([]BorrowRecord, error)
		Dashboard(ctx context.Context) (Dashboard, error)
		// NotifyOverdue e-mails a reminder for every overdue record and returns how many were sent.
		NotifyOverdue(ctx context.Context) (int, error)
	}

	service struct {
		db         core.DB
		repo       Repository
		mailSvc    core.EmailService
		loanPeriod time.Duration
		finePerDay float64
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return &service{
		db:         db,
		repo:       repo,
		mailSvc:    mailSvc,
		loanPeriod: conf.Library.LoanPeriod,
		finePerDay: conf.Library.FinePerDay,
	}
}

func (in BookInput) apply(b *Book) {
	b.Title = in.Title
	b.Author = in.Author
	b.ISBN = in.ISBN
	b.Category = in.Category
	b.Quantity = in.Quantity
	b.Barcode = in.Barcode
	b.ShelfLocation = in.ShelfLocation
}

func bookExists(err error) error {
	switch cause := errors.Cause(err); cause {
	case ErrBarcodeExists:
		return core.NewValidationError(cause, core.FieldError{Field: "barcode", Error: cause.Error()})
	case ErrISBNExists:
		return core.NewValidationError(cause, core.FieldError{Field: "isbn", Error: cause.Error()})
	}
	return err
}

func (svc *service) AddBook(ctx context.Context, in BookInput) (Book, error) {
	b := Book{ID: uuid.New().String()}
	in.apply(&b)
	if err := svc.repo.CreateBook(ctx, b); err != nil {
		return Book{}, bookExists(err)
	}
	return b, nil
}

func (svc *service) UpdateBook(ctx context.Context, id string, in BookInput) (Book, error) {
	var b Book
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if b, err = svc.repo.GetBook(ctx, id, tx); err != nil {
			return err
		}
		in.apply(&b)
		return bookExists(svc.repo.UpdateBook(ctx, b, tx))
	})
	if err != nil {
		return Book{}, err
	}
	return b, nil
}

func (svc *service) DeleteBook(ctx context.Context, id string) error {
	return svc.repo.DeleteBook(ctx, id)
}

func (svc *service) GetBook(ctx context.Context, id string) (Book, error) {
	return svc.repo.GetBook(ctx, id)
}

func (svc *service) QueryBooks(ctx context.Context, filter BookFilter) ([]Book, error) {
	return svc.repo.QueryBooks(ctx, filter)
}

// Borrow lends one copy of the book to the student for the loan period.
func (svc *service) Borrow(ctx context.Context, in BorrowInput) (BorrowRecord, error) {
	var rec BorrowRecord
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		ok, err := svc.repo.StudentExists(ctx, in.StudentID, tx)
		if err != nil {
			return errors.Wrap(err, "checking student")
		}
		if !ok {
			return ErrStudentNotFound
		}
		book, err := svc.repo.GetBookByBarcode(ctx, in.BookBarcode, tx)
		if err != nil {
			return err
		}

		if ok, err = svc.repo.TakeCopy(ctx, book.ID, tx); err != nil {
			return errors.Wrap(err, "taking copy")
		}
		if !ok {
			return core.NewValidationError(ErrNotAvailable)
		}

		now := nowFunc().UTC()
		rec = BorrowRecord{
			ID:         uuid.New().String(),
			StudentID:  in.StudentID,
			BookID:     book.ID,
			BorrowDate: now,
			DueDate:    now.Add(svc.loanPeriod),
			BookTitle:  book.Title,
		}
		return svc.repo.CreateRecord(ctx, rec, tx)
	})
	if err != nil {
		return BorrowRecord{}, err
	}
	return rec, nil
}

// Return closes an open record, puts the copy back and charges the fine of the late days.
func (svc *service) Return(ctx context.Context, recordID string) (BorrowRecord, error) {
	var rec BorrowRecord
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if rec, err = svc.repo.GetOpenRecord(ctx, recordID, tx); err != nil {
			return err
		}
		now := nowFunc().UTC()
		rec.ReturnDate = null.TimeFrom(now)
		rec.Fine = core.Round(float64(daysLate(rec.DueDate, now))*svc.finePerDay, 2)
		if err = svc.repo.UpdateRecord(ctx, rec, tx); err != nil {
			return err
		}
		return svc.repo.PutBackCopy(ctx, rec.BookID, tx)
	})
	if err != nil {
		return BorrowRecord{}, err
	}
	return rec, nil
}

func (svc *service) History(ctx context.Context, filter RecordFilter) ([]BorrowRecord, error) {
	records, err := svc.repo.QueryRecords(ctx, filter.StudentID, filter.Open || filter.Overdue)
	if err != nil {
		return nil, err
	}
	now := nowFunc()
	res := records[:0]
	for _, r := range records {
		r.Overdue = r.IsOverdue(now)
		if filter.Overdue && !r.Overdue {
			continue
		}
		res = append(res, r)
	}
	return res, nil
}

func (svc *service) Dashboard(ctx context.Context) (Dashboard, error) {
	var dash Dashboard
	var err error
	if dash.TotalBooks, err = svc.repo.CountBooks(ctx); err != nil {
		return Dashboard{}, errors.Wrap(err, "counting books")
	}
	open, err := svc.History(ctx, RecordFilter{Open: true})
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "querying borrow records")
	}
	dash.BorrowedBooks = len(open)
	for _, r := range open {
		if r.Overdue {
			dash.OverdueBooks++
		}
	}
	return dash, nil
}

func (svc *service) NotifyOverdue(ctx context.Context) (int, error) {
	overdue, err := svc.History(ctx, RecordFilter{Overdue: true})
	if err != nil {
		return 0, err
	}

	msgs := make([]*core.EmailMessage, 0, len(overdue))
	for _, r := range overdue {
		if err := vala.BeginValidation().Validate(
			vala.StringNotEmpty(r.StudentEmail, "student_email"),
		).Check(); err != nil {
			continue
		}
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: r.StudentName, Address: r.StudentEmail}},
			Subject:      "Overdue library book",
			TemplateName: "overdue_reminder",
			TemplateData: map[string]interface{}{
				"StudentName": r.StudentName,
				"BookTitle":   r.BookTitle,
				"BorrowDate":  r.BorrowDate.Format("2006-01-02"),
				"DueDate":     r.DueDate.Format("2006-01-02"),
			},
		})
	}
	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
	return len(msgs), nil
}
