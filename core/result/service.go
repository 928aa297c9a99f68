package result

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

var (
	// errors
	ErrNotFound      = core.NewNotFoundError("score record")
	ErrTotalTooHigh  = errors.New(fmt.Sprintf("test score + exam score cannot exceed %d", MaxTotal))
	ErrNegativeScore = errors.New("scores cannot be negative")
)

type (
	RecordFilter struct {
		StudentID   string
		SubjectID   string
		ClassroomID string
		TermID      string
		SessionID   string
	}

	Repository interface {
		// CountScope returns the number of records in scope and how many of them are unlocked.
		CountScope(ctx context.Context, scope Scope, exec ...core.DBExecutor) (total, unlocked int, err error)
		SetScopeLocked(ctx context.Context, scope Scope, locked bool, exec ...core.DBExecutor) error
		// AnyLocked reports whether a locked record for subjectID exists in scope, or in the term and
		// session of scope for any of studentIDs whatever their classroom.
		AnyLocked(ctx context.Context, scope Scope, subjectID string, studentIDs []string, exec ...core.DBExecutor) (bool, error)
		// CheckScope returns a not found error for the first entity of scope that does not exist.
		CheckScope(ctx context.Context, scope Scope, exec ...core.DBExecutor) error
		// UpsertRecord inserts r or, when (student, subject, term, session) exists, updates its
		// scores, grade, comment and classroom. The locked flag is never touched.
		UpsertRecord(ctx context.Context, r ScoreRecord, exec ...core.DBExecutor) error
		GetRecord(ctx context.Context, id string, exec ...core.DBExecutor) (ScoreRecord, error)
		UpdateRecord(ctx context.Context, r ScoreRecord, exec ...core.DBExecutor) error
		QueryRecords(ctx context.Context, filter RecordFilter, exec ...core.DBExecutor) ([]ScoreRecord, error)
		// QueryTeacherRecords returns the records of every (classroom, subject) assigned to teacherID.
		QueryTeacherRecords(ctx context.Context, teacherID, termID, sessionID string, exec ...core.DBExecutor) ([]ScoreRecord, error)

		HasAssignment(ctx context.Context, teacherID, classroomID, subjectID string, exec ...core.DBExecutor) (bool, error)
		EnrolledStudentIDs(ctx context.Context, classroomID, subjectID string, exec ...core.DBExecutor) ([]string, error)
	}

	Service interface {
		Upload(ctx context.Context, act user.Actor, in UploadInput) ([]ScoreRecord, error)
		AdminEdit(ctx context.Context, act user.Actor, id string, in EditInput) (ScoreRecord, error)
		ToggleLock(ctx context.Context, act user.Actor, scope Scope) (LockOutcome, error)
		ClassResults(ctx context.Context, scope Scope) ([]ScoreRecord, error)
		StudentReport(ctx context.Context, studentID string, filter ReportFilter) (StudentReport, error)
		TeacherResults(ctx context.Context, act user.Actor, filter ReportFilter) ([]ScoreRecord, error)
	}

	service struct {
		db          core.DB
		repo        Repository
		policy      Policy
		adminPolicy Policy
	}
)

var _ Service = (*service)(nil)

// NewService returns a Service grading uploads with policy and admin edits with adminPolicy.
func NewService(db core.DB, repo Repository, policy, adminPolicy Policy) Service {
	return &service{db: db, repo: repo, policy: policy, adminPolicy: adminPolicy}
}

func checkScores(field string, testScore, examScore float64) error {
	if testScore < 0 || examScore < 0 {
		return core.NewValidationError(ErrNegativeScore, core.FieldError{Field: field, Error: ErrNegativeScore.Error()})
	}
	if testScore+examScore > MaxTotal {
		return core.NewValidationError(ErrTotalTooHigh, core.FieldError{Field: field, Error: ErrTotalTooHigh.Error()})
	}
	return nil
}

func (svc *service) canUpload(ctx context.Context, act user.Actor, classroomID, subjectID string) (bool, error) {
	switch act.(type) {
	case user.Admin:
		return true, nil
	case user.Teacher:
		return svc.repo.HasAssignment(ctx, act.User().ID, classroomID, subjectID)
	}
	return false, nil
}

// Upload grades and saves the scores of a (classroom, subject) for a term. Either every entry
// is written or none is.
func (svc *service) Upload(ctx context.Context, act user.Actor, in UploadInput) ([]ScoreRecord, error) {
	for i, e := range in.Scores {
		if err := checkScores(fmt.Sprintf("scores[%d]", i), e.TestScore, e.ExamScore); err != nil {
			return nil, err
		}
	}

	ok, err := svc.canUpload(ctx, act, in.ClassroomID, in.SubjectID)
	if err != nil {
		return nil, errors.Wrap(err, "checking class assignment")
	}
	if !ok {
		return nil, core.ErrUnauthorized
	}

	// the last entry of a student wins
	entries := make(map[string]ScoreEntry, len(in.Scores))
	order := make([]string, 0, len(in.Scores))
	for _, e := range in.Scores {
		if _, seen := entries[e.StudentID]; !seen {
			order = append(order, e.StudentID)
		}
		entries[e.StudentID] = e
	}

	var records []ScoreRecord
	err = core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		ids, err := svc.repo.EnrolledStudentIDs(ctx, in.ClassroomID, in.SubjectID, tx)
		if err != nil {
			return errors.Wrap(err, "querying enrollments")
		}
		enrolled := make(map[string]bool, len(ids))
		for _, id := range ids {
			enrolled[id] = true
		}
		for _, id := range order {
			if !enrolled[id] {
				return core.NewIntegrityError("student " + id + " is not enrolled in this subject")
			}
		}

		if !act.Privileged() {
			locked, err := svc.repo.AnyLocked(ctx, in.Scope, in.SubjectID, order, tx)
			if err != nil {
				return err
			}
			if locked {
				return core.ErrLocked
			}
		}

		now := time.Now().UTC()
		for _, id := range order {
			e := entries[id]
			r := ScoreRecord{
				ID:          uuid.New().String(),
				StudentID:   id,
				SubjectID:   in.SubjectID,
				ClassroomID: in.ClassroomID,
				TermID:      in.TermID,
				SessionID:   in.SessionID,
				TestScore:   e.TestScore,
				ExamScore:   e.ExamScore,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			r.grade(svc.policy)
			if err := svc.repo.UpsertRecord(ctx, r, tx); err != nil {
				return errors.Wrap(err, "saving score record")
			}
		}

		records, err = svc.repo.QueryRecords(ctx, RecordFilter{
			SubjectID:   in.SubjectID,
			ClassroomID: in.ClassroomID,
			TermID:      in.TermID,
			SessionID:   in.SessionID,
		}, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// AdminEdit rewrites the scores of one record. Locked records refuse edits, admins included.
func (svc *service) AdminEdit(ctx context.Context, act user.Actor, id string, in EditInput) (ScoreRecord, error) {
	if _, ok := act.(user.Admin); !ok {
		return ScoreRecord{}, core.ErrUnauthorized
	}
	if err := checkScores("test_score", in.TestScore, in.ExamScore); err != nil {
		return ScoreRecord{}, err
	}

	var rec ScoreRecord
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if rec, err = svc.repo.GetRecord(ctx, id, tx); err != nil {
			return err
		}
		if rec.Locked {
			return core.ErrLocked
		}
		rec.TestScore = in.TestScore
		rec.ExamScore = in.ExamScore
		rec.grade(svc.adminPolicy)
		rec.UpdatedAt = time.Now().UTC()
		return svc.repo.UpdateRecord(ctx, rec, tx)
	})
	if err != nil {
		return ScoreRecord{}, err
	}
	return rec, nil
}

// ToggleLock locks every record of scope if any is unlocked, or unlocks them all otherwise.
func (svc *service) ToggleLock(ctx context.Context, act user.Actor, scope Scope) (LockOutcome, error) {
	if _, ok := act.(user.Admin); !ok {
		return "", core.ErrUnauthorized
	}

	outcome := NoOp
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.repo.CheckScope(ctx, scope, tx); err != nil {
			return err
		}
		total, unlocked, err := svc.repo.CountScope(ctx, scope, tx)
		if err != nil {
			return errors.Wrap(err, "counting score records")
		}
		switch outcome = decideToggle(total, unlocked); outcome {
		case Locked:
			return svc.repo.SetScopeLocked(ctx, scope, true, tx)
		case Unlocked:
			return svc.repo.SetScopeLocked(ctx, scope, false, tx)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

func (svc *service) ClassResults(ctx context.Context, scope Scope) ([]ScoreRecord, error) {
	return svc.repo.QueryRecords(ctx, RecordFilter{
		ClassroomID: scope.ClassroomID,
		TermID:      scope.TermID,
		SessionID:   scope.SessionID,
	})
}

func (svc *service) StudentReport(ctx context.Context, studentID string, filter ReportFilter) (StudentReport, error) {
	records, err := svc.repo.QueryRecords(ctx, RecordFilter{
		StudentID: studentID,
		TermID:    filter.TermID,
		SessionID: filter.SessionID,
	})
	if err != nil {
		return StudentReport{}, err
	}

	report := StudentReport{
		StudentID: studentID,
		TermID:    filter.TermID,
		SessionID: filter.SessionID,
		Results:   records,
	}
	for _, r := range records {
		report.Total += r.Total()
	}
	if len(records) > 0 {
		report.Average = core.Round(report.Total/float64(len(records)), 2)
	}
	return report, nil
}

func (svc *service) TeacherResults(ctx context.Context, act user.Actor, filter ReportFilter) ([]ScoreRecord, error) {
	if _, ok := act.(user.Teacher); !ok {
		return nil, core.ErrUnauthorized
	}
	return svc.repo.QueryTeacherRecords(ctx, act.User().ID, filter.TermID, filter.SessionID)
}
