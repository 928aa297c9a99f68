package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/fee"
)

const feeColumns = "id, student_id, amount, description, term_id, session_id, status, is_paid, due_date, payment_date, created_at"

type feeRepository struct {
	baseRepository
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(exec core.DBExecutor) *feeRepository {
	return &feeRepository{baseRepository{exec: exec}}
}

func (repo feeRepository) CreateFee(ctx context.Context, f fee.Fee, exec ...core.DBExecutor) error {
	_, err := execute(ctx, repo.getExec(exec),
		"INSERT INTO fees ("+feeColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		f.ID, f.StudentID, f.Amount, f.Description, f.TermID, f.SessionID, f.Status, f.IsPaid,
		f.DueDate, f.PaymentDate, utc(f.CreatedAt),
	)
	if err != nil {
		return trapIntegrity(err, "inserting fee")
	}
	return nil
}

func (repo feeRepository) UpdateFee(ctx context.Context, f fee.Fee, exec ...core.DBExecutor) error {
	res, err := execute(ctx, repo.getExec(exec), `
		UPDATE fees SET student_id = ?, amount = ?, description = ?, term_id = ?, session_id = ?, status = ?,
			is_paid = ?, due_date = ?, payment_date = ?
		WHERE id = ?`,
		f.StudentID, f.Amount, f.Description, f.TermID, f.SessionID, f.Status, f.IsPaid,
		f.DueDate, f.PaymentDate, f.ID,
	)
	if err != nil {
		return trapIntegrity(err, "updating fee")
	}
	return mustAffect(res, fee.ErrNotFound)
}

func (repo feeRepository) DeleteFee(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := execute(ctx, repo.getExec(exec), "DELETE FROM fees WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting fee")
	}
	return mustAffect(res, fee.ErrNotFound)
}

func (repo feeRepository) GetFee(ctx context.Context, id string, exec ...core.DBExecutor) (fee.Fee, error) {
	var f fee.Fee
	if err := get(ctx, repo.getExec(exec), &f, "SELECT "+feeColumns+" FROM fees WHERE id = ?", id); err != nil {
		return fee.Fee{}, trapNoRows(err, fee.ErrNotFound, "getting fee")
	}
	return f, nil
}

func (repo feeRepository) QueryFees(ctx context.Context, filter fee.QueryFilter, exec ...core.DBExecutor) ([]fee.Fee, error) {
	var (
		w    where
		args []interface{}
	)
	for _, f := range []struct{ col, val string }{
		{"student_id", filter.StudentID},
		{"term_id", filter.TermID},
		{"session_id", filter.SessionID},
		{"status", string(filter.Status)},
	} {
		if f.val != "" {
			w = append(w, f.col+" = ?")
			args = append(args, f.val)
		}
	}

	fees := make([]fee.Fee, 0)
	q := "SELECT " + feeColumns + " FROM fees" + w.String() + " ORDER BY created_at DESC"
	if err := selectAll(ctx, repo.getExec(exec), &fees, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying fees")
	}
	return fees, nil
}

func (repo feeRepository) Summary(ctx context.Context, exec ...core.DBExecutor) ([]fee.TermSummary, error) {
	summaries := make([]fee.TermSummary, 0)
	q := `
		SELECT term_id,
			COALESCE(SUM(CASE WHEN status = 'paid' THEN amount ELSE 0 END), 0) AS total_paid,
			COALESCE(SUM(CASE WHEN status = 'unpaid' THEN amount ELSE 0 END), 0) AS total_unpaid,
			COALESCE(SUM(CASE WHEN status = 'partial' THEN amount ELSE 0 END), 0) AS total_partial
		FROM fees GROUP BY term_id ORDER BY term_id`
	if err := selectAll(ctx, repo.getExec(exec), &summaries, q); err != nil {
		return nil, errors.Wrap(err, "summarizing fees")
	}
	return summaries, nil
}

func (repo feeRepository) GetInvoice(ctx context.Context, id string, exec ...core.DBExecutor) (fee.Invoice, error) {
	var inv fee.Invoice
	q := `
		SELECT f.id, f.student_id, f.amount, f.description, f.term_id, f.session_id, f.status, f.is_paid,
			f.due_date, f.payment_date, f.created_at,
			CASE WHEN u.name <> '' THEN u.name ELSE COALESCE(u.username, '') END AS student_name,
			COALESCE(u.email, '') AS student_email,
			COALESCE(t.name, '') AS term_name,
			COALESCE(s.name, '') AS session_name
		FROM fees f
		JOIN users u ON u.id = f.student_id
		LEFT JOIN terms t ON t.id = f.term_id
		LEFT JOIN sessions s ON s.id = f.session_id
		WHERE f.id = ?`
	if err := get(ctx, repo.getExec(exec), &inv, q, id); err != nil {
		return fee.Invoice{}, trapNoRows(err, fee.ErrNotFound, "getting invoice")
	}
	return inv, nil
}

func (repo feeRepository) StudentExists(ctx context.Context, studentID string, exec ...core.DBExecutor) (bool, error) {
	return studentExists(ctx, repo.getExec(exec), studentID)
}
