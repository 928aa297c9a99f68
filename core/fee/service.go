package fee

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("fee")
	ErrStudentNotFound = core.NewNotFoundError("student")
	ErrNoEmail         = errors.New("student has no email address")
)

type (
	// Invoice is a Fee with the names it is printed with.
	Invoice struct {
		Fee
		StudentName  string `db:"student_name"`
		StudentEmail string `db:"student_email"`
		TermName     string `db:"term_name"`
		SessionName  string `db:"session_name"`
	}

	Repository interface {
		CreateFee(ctx context.Context, f Fee, exec ...core.DBExecutor) error
		UpdateFee(ctx context.Context, f Fee, exec ...core.DBExecutor) error
		DeleteFee(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetFee(ctx context.Context, id string, exec ...core.DBExecutor) (Fee, error)
		QueryFees(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Fee, error)
		// Summary totals amounts per term by status.
		Summary(ctx context.Context, exec ...core.DBExecutor) ([]TermSummary, error)
		GetInvoice(ctx context.Context, id string, exec ...core.DBExecutor) (Invoice, error)
		StudentExists(ctx context.Context, studentID string, exec ...core.DBExecutor) (bool, error)
	}

	Service interface {
		Create(ctx context.Context, in FeeInput) (Fee, error)
		Update(ctx context.Context, id string, in FeeInput) (Fee, error)
		Delete(ctx context.Context, id string) error
		Get(ctx context.Context, id string) (Fee, error)
		Query(ctx context.Context, filter QueryFilter) ([]Fee, error)
		Summary(ctx context.Context) ([]TermSummary, error)
		SendInvoice(ctx context.Context, id string) error
	}

	service struct {
		db      core.DB
		repo    Repository
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, mailSvc core.EmailService) Service {
	return &service{db: db, repo: repo, mailSvc: mailSvc}
}

func (svc *service) checkStudent(ctx context.Context, studentID string, exec core.DBExecutor) error {
	ok, err := svc.repo.StudentExists(ctx, studentID, exec)
	if err != nil {
		return errors.Wrap(err, "checking student")
	}
	if !ok {
		return ErrStudentNotFound
	}
	return nil
}

func (svc *service) Create(ctx context.Context, in FeeInput) (Fee, error) {
	f := Fee{ID: uuid.New().String(), CreatedAt: time.Now().UTC()}
	in.apply(&f)

	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.checkStudent(ctx, f.StudentID, tx); err != nil {
			return err
		}
		return svc.repo.CreateFee(ctx, f, tx)
	})
	if err != nil {
		return Fee{}, err
	}
	return f, nil
}

func (svc *service) Update(ctx context.Context, id string, in FeeInput) (Fee, error) {
	var f Fee
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if f, err = svc.repo.GetFee(ctx, id, tx); err != nil {
			return err
		}
		if err = svc.checkStudent(ctx, in.StudentID, tx); err != nil {
			return err
		}
		in.apply(&f)
		return svc.repo.UpdateFee(ctx, f, tx)
	})
	if err != nil {
		return Fee{}, err
	}
	return f, nil
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteFee(ctx, id)
}

func (svc *service) Get(ctx context.Context, id string) (Fee, error) {
	return svc.repo.GetFee(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]Fee, error) {
	return svc.repo.QueryFees(ctx, filter)
}

func (svc *service) Summary(ctx context.Context) ([]TermSummary, error) {
	return svc.repo.Summary(ctx)
}

// SendInvoice e-mails the fee invoice to the student.
func (svc *service) SendInvoice(ctx context.Context, id string) error {
	inv, err := svc.repo.GetInvoice(ctx, id)
	if err != nil {
		return err
	}
	if err = vala.BeginValidation().Validate(
		vala.StringNotEmpty(inv.StudentEmail, "student_email"),
	).Check(); err != nil {
		return core.NewValidationError(ErrNoEmail)
	}

	data := map[string]interface{}{
		"StudentName": inv.StudentName,
		"Number":      invoiceNumber(inv.Fee),
		"Description": inv.Description,
		"Term":        orNone(inv.TermName, "No Term"),
		"Session":     orNone(inv.SessionName, "No Session"),
		"Amount":      inv.Amount,
		"Status":      strings.Title(string(inv.Status)),
		"DueDate":     "",
	}
	if inv.DueDate.Valid {
		data["DueDate"] = inv.DueDate.Time.Format("2006-01-02")
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: inv.StudentName, Address: inv.StudentEmail}},
		Subject:      "Fee Invoice " + invoiceNumber(inv.Fee),
		TemplateName: "fee_invoice",
		TemplateData: data,
	})
	return nil
}

// invoiceNumber is the short, upper-cased prefix of the fee id.
func invoiceNumber(f Fee) string {
	n := f.ID
	if len(n) > 8 {
		n = n[:8]
	}
	return "INV-" + strings.ToUpper(n)
}

func orNone(s, none string) string {
	if s == "" {
		return none
	}
	return s
}
