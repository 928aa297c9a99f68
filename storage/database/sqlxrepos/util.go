package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/storage/database"
)

// baseRepository runs queries on exec unless a caller passes its own executor (e.g. a transaction).
type baseRepository struct {
	exec core.DBExecutor
}

func (repo baseRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

func get(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	return exec.GetContext(ctx, dest, exec.Rebind(query), args...)
}

func selectAll(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	return exec.SelectContext(ctx, dest, exec.Rebind(query), args...)
}

func execute(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (sql.Result, error) {
	return exec.ExecContext(ctx, exec.Rebind(query), args...)
}

// getIn expands the slice args of an IN (?) query before running it.
func getIn(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	q, expanded, err := sqlx.In(query, args...)
	if err != nil {
		return err
	}
	return get(ctx, exec, dest, q, expanded...)
}

// selectIn expands the slice args of an IN (?) query before running it.
func selectIn(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	q, expanded, err := sqlx.In(query, args...)
	if err != nil {
		return err
	}
	return selectAll(ctx, exec, dest, q, expanded...)
}

func executeIn(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (sql.Result, error) {
	q, expanded, err := sqlx.In(query, args...)
	if err != nil {
		return nil, err
	}
	return execute(ctx, exec, q, expanded...)
}

// mustAffect returns notFound when res touched no row.
func mustAffect(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reading affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// trapNoRows maps sql.ErrNoRows to notFound and wraps the other errors with msg.
func trapNoRows(err error, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// trapIntegrity maps foreign key violations to an integrity error and wraps the other errors with msg.
func trapIntegrity(err error, msg string) error {
	if database.IsForeignKeyViolation(err) {
		return core.NewIntegrityError(msg + ": unknown reference")
	}
	return errors.Wrap(err, msg)
}

// utc normalises t to the precision both Postgres and SQLite keep.
func utc(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// where joins conditions with AND, or returns "" when there is none.
type where []string

func (w where) String() string {
	if len(w) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w, " AND ")
}

// orderBy renders orderings whose field is in allowed, falling back on def.
func orderBy(orderings []core.DBOrdering, allowed map[string]bool, def string) string {
	list := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		if allowed[ord.Field] {
			list = append(list, ord.String())
		}
	}
	if len(list) == 0 {
		return " ORDER BY " + def
	}
	return " ORDER BY " + strings.Join(list, ", ")
}

func likeArg(s string) string {
	return "%" + strings.ToLower(s) + "%"
}

func studentExists(ctx context.Context, exec core.DBExecutor, studentID string) (bool, error) {
	var n int
	if err := get(ctx, exec, &n, "SELECT COUNT(*) FROM student_profiles WHERE user_id = ?", studentID); err != nil {
		return false, errors.Wrap(err, "checking student")
	}
	return n > 0, nil
}
