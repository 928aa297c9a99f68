package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academics"
	"github.com/trezcool/shule/core/result"
)

const recordColumns = `id, student_id, subject_id, classroom_id, term_id, session_id, test_score, exam_score,
	grade, comment, locked, created_at, updated_at`

type resultRepository struct {
	baseRepository
}

var _ result.Repository = (*resultRepository)(nil) // interface compliance check

func NewResultRepository(exec core.DBExecutor) *resultRepository {
	return &resultRepository{baseRepository{exec: exec}}
}

const scopeCond = "classroom_id = ? AND term_id = ? AND session_id = ?"

func scopeArgs(s result.Scope) []interface{} {
	return []interface{}{s.ClassroomID, s.TermID, s.SessionID}
}

func (repo resultRepository) CountScope(ctx context.Context, scope result.Scope, exec ...core.DBExecutor) (int, int, error) {
	var counts struct {
		Total    int `db:"total"`
		Unlocked int `db:"unlocked"`
	}
	q := `SELECT COUNT(*) AS total, COALESCE(SUM(CASE WHEN locked THEN 0 ELSE 1 END), 0) AS unlocked
		FROM score_records WHERE ` + scopeCond
	if err := get(ctx, repo.getExec(exec), &counts, q, scopeArgs(scope)...); err != nil {
		return 0, 0, errors.Wrap(err, "counting score records")
	}
	return counts.Total, counts.Unlocked, nil
}

func (repo resultRepository) SetScopeLocked(ctx context.Context, scope result.Scope, locked bool, exec ...core.DBExecutor) error {
	args := append([]interface{}{locked}, scopeArgs(scope)...)
	_, err := execute(ctx, repo.getExec(exec), "UPDATE score_records SET locked = ? WHERE "+scopeCond, args...)
	return errors.Wrap(err, "locking score records")
}

func (repo resultRepository) AnyLocked(
	ctx context.Context,
	scope result.Scope,
	subjectID string,
	studentIDs []string,
	exec ...core.DBExecutor,
) (bool, error) {
	var n int
	q := `SELECT COUNT(*) FROM score_records
		WHERE subject_id = ? AND term_id = ? AND session_id = ? AND locked = TRUE AND classroom_id = ?`
	args := []interface{}{subjectID, scope.TermID, scope.SessionID, scope.ClassroomID}

	var err error
	if len(studentIDs) > 0 {
		// records of these students may sit in another classroom's scope
		q = `SELECT COUNT(*) FROM score_records
			WHERE subject_id = ? AND term_id = ? AND session_id = ? AND locked = TRUE
			AND (classroom_id = ? OR student_id IN (?))`
		err = getIn(ctx, repo.getExec(exec), &n, q, append(args, studentIDs)...)
	} else {
		err = get(ctx, repo.getExec(exec), &n, q, args...)
	}
	if err != nil {
		return false, errors.Wrap(err, "checking locked score records")
	}
	return n > 0, nil
}

func (repo resultRepository) CheckScope(ctx context.Context, scope result.Scope, exec ...core.DBExecutor) error {
	ex := repo.getExec(exec)
	for _, ref := range []struct {
		table    string
		id       string
		notFound error
	}{
		{"classrooms", scope.ClassroomID, academics.ErrClassroomNotFound},
		{"terms", scope.TermID, academics.ErrTermNotFound},
		{"sessions", scope.SessionID, academics.ErrSessionNotFound},
	} {
		var n int
		if err := get(ctx, ex, &n, "SELECT COUNT(*) FROM "+ref.table+" WHERE id = ?", ref.id); err != nil {
			return errors.Wrap(err, "checking "+ref.table)
		}
		if n == 0 {
			return ref.notFound
		}
	}
	return nil
}

func (repo resultRepository) UpsertRecord(ctx context.Context, r result.ScoreRecord, exec ...core.DBExecutor) error {
	_, err := execute(ctx, repo.getExec(exec), `
		INSERT INTO score_records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (student_id, subject_id, term_id, session_id) DO UPDATE SET
			classroom_id = excluded.classroom_id,
			test_score = excluded.test_score,
			exam_score = excluded.exam_score,
			grade = excluded.grade,
			comment = excluded.comment,
			updated_at = excluded.updated_at`,
		r.ID, r.StudentID, r.SubjectID, r.ClassroomID, r.TermID, r.SessionID, r.TestScore, r.ExamScore,
		r.Grade, r.Comment, r.Locked, utc(r.CreatedAt), utc(r.UpdatedAt),
	)
	if err != nil {
		return trapIntegrity(err, "upserting score record")
	}
	return nil
}

func (repo resultRepository) GetRecord(ctx context.Context, id string, exec ...core.DBExecutor) (result.ScoreRecord, error) {
	var r result.ScoreRecord
	if err := get(ctx, repo.getExec(exec), &r, "SELECT "+recordColumns+" FROM score_records WHERE id = ?", id); err != nil {
		return result.ScoreRecord{}, trapNoRows(err, result.ErrNotFound, "getting score record")
	}
	return r, nil
}

func (repo resultRepository) UpdateRecord(ctx context.Context, r result.ScoreRecord, exec ...core.DBExecutor) error {
	res, err := execute(ctx, repo.getExec(exec), `
		UPDATE score_records SET test_score = ?, exam_score = ?, grade = ?, comment = ?, locked = ?, updated_at = ?
		WHERE id = ?`,
		r.TestScore, r.ExamScore, r.Grade, r.Comment, r.Locked, utc(r.UpdatedAt), r.ID,
	)
	if err != nil {
		return errors.Wrap(err, "updating score record")
	}
	return mustAffect(res, result.ErrNotFound)
}

func (repo resultRepository) QueryRecords(ctx context.Context, filter result.RecordFilter, exec ...core.DBExecutor) ([]result.ScoreRecord, error) {
	var (
		w    where
		args []interface{}
	)
	for _, f := range []struct{ col, val string }{
		{"student_id", filter.StudentID},
		{"subject_id", filter.SubjectID},
		{"classroom_id", filter.ClassroomID},
		{"term_id", filter.TermID},
		{"session_id", filter.SessionID},
	} {
		if f.val != "" {
			w = append(w, f.col+" = ?")
			args = append(args, f.val)
		}
	}

	records := make([]result.ScoreRecord, 0)
	q := "SELECT " + recordColumns + " FROM score_records" + w.String() + " ORDER BY subject_id, student_id"
	if err := selectAll(ctx, repo.getExec(exec), &records, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying score records")
	}
	return records, nil
}

func (repo resultRepository) QueryTeacherRecords(ctx context.Context, teacherID, termID, sessionID string, exec ...core.DBExecutor) ([]result.ScoreRecord, error) {
	records := make([]result.ScoreRecord, 0)
	q := `
		SELECT sr.id, sr.student_id, sr.subject_id, sr.classroom_id, sr.term_id, sr.session_id, sr.test_score,
			sr.exam_score, sr.grade, sr.comment, sr.locked, sr.created_at, sr.updated_at
		FROM score_records sr
		JOIN class_assignments ca ON ca.classroom_id = sr.classroom_id AND ca.subject_id = sr.subject_id
		WHERE ca.teacher_id = ? AND sr.term_id = ? AND sr.session_id = ?
		ORDER BY sr.classroom_id, sr.subject_id, sr.student_id`
	if err := selectAll(ctx, repo.getExec(exec), &records, q, teacherID, termID, sessionID); err != nil {
		return nil, errors.Wrap(err, "querying teacher score records")
	}
	return records, nil
}

func (repo resultRepository) HasAssignment(ctx context.Context, teacherID, classroomID, subjectID string, exec ...core.DBExecutor) (bool, error) {
	var n int
	q := "SELECT COUNT(*) FROM class_assignments WHERE teacher_id = ? AND classroom_id = ? AND subject_id = ?"
	if err := get(ctx, repo.getExec(exec), &n, q, teacherID, classroomID, subjectID); err != nil {
		return false, errors.Wrap(err, "checking class assignment")
	}
	return n > 0, nil
}

func (repo resultRepository) EnrolledStudentIDs(ctx context.Context, classroomID, subjectID string, exec ...core.DBExecutor) ([]string, error) {
	ids := make([]string, 0)
	q := "SELECT student_id FROM enrollments WHERE classroom_id = ? AND subject_id = ?"
	if err := selectAll(ctx, repo.getExec(exec), &ids, q, classroomID, subjectID); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	return ids, nil
}
