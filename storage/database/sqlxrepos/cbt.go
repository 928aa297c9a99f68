package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/cbt"
	"github.com/trezcool/shule/storage/database"
)

const (
	testColumns = `id, teacher_id, title, subject_id, classroom_id, term_id, session_id, duration_minutes,
		total_questions, start_time, end_time, created_at, is_active`
	questionColumns = "id, test_id, question_text, option_a, option_b, option_c, option_d, correct_option, position"
)

type cbtRepository struct {
	baseRepository
}

var _ cbt.Repository = (*cbtRepository)(nil) // interface compliance check

func NewCBTRepository(exec core.DBExecutor) *cbtRepository {
	return &cbtRepository{baseRepository{exec: exec}}
}

func (repo cbtRepository) CreateTest(ctx context.Context, t cbt.Test, exec ...core.DBExecutor) error {
	_, err := execute(ctx, repo.getExec(exec), `
		INSERT INTO cbt_tests (`+testColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.TeacherID, t.Title, t.SubjectID, t.ClassroomID, t.TermID, t.SessionID, t.DurationMinutes,
		t.TotalQuestions, utc(t.StartTime), utc(t.EndTime), utc(t.CreatedAt), t.IsActive,
	)
	if err != nil {
		return trapIntegrity(err, "inserting test")
	}
	return nil
}

func (repo cbtRepository) UpdateTest(ctx context.Context, t cbt.Test, exec ...core.DBExecutor) error {
	res, err := execute(ctx, repo.getExec(exec), `
		UPDATE cbt_tests SET title = ?, subject_id = ?, classroom_id = ?, term_id = ?, session_id = ?,
			duration_minutes = ?, total_questions = ?, start_time = ?, end_time = ?, is_active = ?
		WHERE id = ?`,
		t.Title, t.SubjectID, t.ClassroomID, t.TermID, t.SessionID, t.DurationMinutes, t.TotalQuestions,
		utc(t.StartTime), utc(t.EndTime), t.IsActive, t.ID,
	)
	if err != nil {
		return trapIntegrity(err, "updating test")
	}
	return mustAffect(res, cbt.ErrTestNotFound)
}

func (repo cbtRepository) DeleteTest(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := execute(ctx, repo.getExec(exec), "DELETE FROM cbt_tests WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting test")
	}
	return mustAffect(res, cbt.ErrTestNotFound)
}

func (repo cbtRepository) GetTest(ctx context.Context, id string, exec ...core.DBExecutor) (cbt.Test, error) {
	var t cbt.Test
	if err := get(ctx, repo.getExec(exec), &t, "SELECT "+testColumns+" FROM cbt_tests WHERE id = ?", id); err != nil {
		return cbt.Test{}, trapNoRows(err, cbt.ErrTestNotFound, "getting test")
	}
	return t, nil
}

func (repo cbtRepository) QueryTeacherTests(ctx context.Context, teacherID string, exec ...core.DBExecutor) ([]cbt.Test, error) {
	tests := make([]cbt.Test, 0)
	q := "SELECT " + testColumns + " FROM cbt_tests WHERE teacher_id = ? ORDER BY created_at DESC"
	if err := selectAll(ctx, repo.getExec(exec), &tests, q, teacherID); err != nil {
		return nil, errors.Wrap(err, "querying teacher tests")
	}
	return tests, nil
}

func (repo cbtRepository) QueryActiveTests(ctx context.Context, classroomID string, exec ...core.DBExecutor) ([]cbt.Test, error) {
	tests := make([]cbt.Test, 0)
	q := "SELECT " + testColumns + " FROM cbt_tests WHERE classroom_id = ? AND is_active = TRUE ORDER BY start_time DESC"
	if err := selectAll(ctx, repo.getExec(exec), &tests, q, classroomID); err != nil {
		return nil, errors.Wrap(err, "querying active tests")
	}
	return tests, nil
}

// Questions

func (repo cbtRepository) CreateQuestion(ctx context.Context, q cbt.Question, exec ...core.DBExecutor) error {
	_, err := execute(ctx, repo.getExec(exec), `
		INSERT INTO cbt_questions (`+questionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.TestID, q.Text, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.CorrectOption, q.Position,
	)
	if err != nil {
		return trapIntegrity(err, "inserting question")
	}
	return nil
}

func (repo cbtRepository) UpdateQuestion(ctx context.Context, q cbt.Question, exec ...core.DBExecutor) error {
	res, err := execute(ctx, repo.getExec(exec), `
		UPDATE cbt_questions SET question_text = ?, option_a = ?, option_b = ?, option_c = ?, option_d = ?,
			correct_option = ?
		WHERE id = ?`,
		q.Text, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.CorrectOption, q.ID,
	)
	if err != nil {
		return errors.Wrap(err, "updating question")
	}
	return mustAffect(res, cbt.ErrQuestionNotFound)
}

func (repo cbtRepository) DeleteQuestion(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := execute(ctx, repo.getExec(exec), "DELETE FROM cbt_questions WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return mustAffect(res, cbt.ErrQuestionNotFound)
}

func (repo cbtRepository) GetQuestion(ctx context.Context, id string, exec ...core.DBExecutor) (cbt.Question, error) {
	var q cbt.Question
	if err := get(ctx, repo.getExec(exec), &q, "SELECT "+questionColumns+" FROM cbt_questions WHERE id = ?", id); err != nil {
		return cbt.Question{}, trapNoRows(err, cbt.ErrQuestionNotFound, "getting question")
	}
	return q, nil
}

func (repo cbtRepository) QueryQuestions(ctx context.Context, testID string, exec ...core.DBExecutor) ([]cbt.Question, error) {
	questions := make([]cbt.Question, 0)
	q := "SELECT " + questionColumns + " FROM cbt_questions WHERE test_id = ? ORDER BY position"
	if err := selectAll(ctx, repo.getExec(exec), &questions, q, testID); err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	return questions, nil
}

// Submissions

func (repo cbtRepository) CreateSubmission(ctx context.Context, sub cbt.Submission, exec ...core.DBExecutor) error {
	e := repo.getExec(exec)
	_, err := execute(ctx, e,
		"INSERT INTO cbt_submissions (id, student_id, test_id, submitted_at) VALUES (?, ?, ?, ?)",
		sub.ID, sub.StudentID, sub.TestID, utc(sub.SubmittedAt),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return cbt.ErrAlreadySubmitted
		}
		return trapIntegrity(err, "inserting submission")
	}

	for _, a := range sub.Answers {
		_, err = execute(ctx, e,
			"INSERT INTO cbt_answers (submission_id, question_id, selected_option) VALUES (?, ?, ?)",
			sub.ID, a.QuestionID, a.SelectedOption,
		)
		if err != nil {
			if database.IsForeignKeyViolation(err) {
				return cbt.ErrMismatchedKey
			}
			return errors.Wrap(err, "inserting answer")
		}
	}
	return nil
}

func (repo cbtRepository) answers(ctx context.Context, e core.DBExecutor, submissionID string) ([]cbt.Answer, error) {
	answers := make([]cbt.Answer, 0)
	q := `
		SELECT a.question_id, a.selected_option FROM cbt_answers a
		JOIN cbt_questions q ON q.id = a.question_id
		WHERE a.submission_id = ? ORDER BY q.position`
	if err := selectAll(ctx, e, &answers, q, submissionID); err != nil {
		return nil, errors.Wrap(err, "querying answers")
	}
	return answers, nil
}

func (repo cbtRepository) GetSubmission(ctx context.Context, id string, exec ...core.DBExecutor) (cbt.Submission, error) {
	e := repo.getExec(exec)
	var sub cbt.Submission
	q := "SELECT id, student_id, test_id, submitted_at FROM cbt_submissions WHERE id = ?"
	if err := get(ctx, e, &sub, q, id); err != nil {
		return cbt.Submission{}, trapNoRows(err, cbt.ErrSubmissionNotFound, "getting submission")
	}
	var err error
	if sub.Answers, err = repo.answers(ctx, e, id); err != nil {
		return cbt.Submission{}, err
	}
	return sub, nil
}

func (repo cbtRepository) QueryStudentSubmissions(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]cbt.Submission, error) {
	subs := make([]cbt.Submission, 0)
	q := "SELECT id, student_id, test_id, submitted_at FROM cbt_submissions WHERE student_id = ? ORDER BY submitted_at DESC"
	if err := selectAll(ctx, repo.getExec(exec), &subs, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying student submissions")
	}
	return subs, nil
}

func (repo cbtRepository) QueryTestResults(ctx context.Context, testID string, exec ...core.DBExecutor) ([]cbt.SubmissionResult, error) {
	e := repo.getExec(exec)
	results := make([]cbt.SubmissionResult, 0)
	q := `
		SELECT s.id, s.student_id, s.test_id, s.submitted_at,
			CASE WHEN u.name <> '' THEN u.name ELSE COALESCE(u.username, '') END AS student_name
		FROM cbt_submissions s JOIN users u ON u.id = s.student_id
		WHERE s.test_id = ? ORDER BY s.submitted_at`
	if err := selectAll(ctx, e, &results, q, testID); err != nil {
		return nil, errors.Wrap(err, "querying test submissions")
	}
	for i := range results {
		var err error
		if results[i].Answers, err = repo.answers(ctx, e, results[i].ID); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (repo cbtRepository) StudentClassroomID(ctx context.Context, studentID string, exec ...core.DBExecutor) (string, error) {
	var classroomID null.String
	q := "SELECT classroom_id FROM student_profiles WHERE user_id = ?"
	if err := get(ctx, repo.getExec(exec), &classroomID, q, studentID); err != nil {
		return "", trapNoRows(err, cbt.ErrStudentNotFound, "getting student classroom")
	}
	return classroomID.String, nil
}
