package cbt

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

var (
	nowFunc = time.Now // mockable

	// errors
	ErrTestNotFound       = core.NewNotFoundError("test")
	ErrQuestionNotFound   = core.NewNotFoundError("question")
	ErrSubmissionNotFound = core.NewNotFoundError("submission")
	ErrStudentNotFound    = core.NewNotFoundError("student")

	ErrAlreadySubmitted = core.NewIntegrityError("you have already taken this test")
	ErrMaxQuestions     = errors.New("maximum number of questions reached")
	ErrBelowQuestions   = errors.New("total questions cannot be lower than the questions already added")
	ErrTestClosed       = errors.New("this test is not open")
)

type (
	Repository interface {
		CreateTest(ctx context.Context, t Test, exec ...core.DBExecutor) error
		UpdateTest(ctx context.Context, t Test, exec ...core.DBExecutor) error
		DeleteTest(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetTest(ctx context.Context, id string, exec ...core.DBExecutor) (Test, error)
		// QueryTeacherTests returns the tests of teacherID, newest first.
		QueryTeacherTests(ctx context.Context, teacherID string, exec ...core.DBExecutor) ([]Test, error)
		// QueryActiveTests returns the active tests of classroomID, latest start first.
		QueryActiveTests(ctx context.Context, classroomID string, exec ...core.DBExecutor) ([]Test, error)

		CreateQuestion(ctx context.Context, q Question, exec ...core.DBExecutor) error
		UpdateQuestion(ctx context.Context, q Question, exec ...core.DBExecutor) error
		DeleteQuestion(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetQuestion(ctx context.Context, id string, exec ...core.DBExecutor) (Question, error)
		QueryQuestions(ctx context.Context, testID string, exec ...core.DBExecutor) ([]Question, error)

		// CreateSubmission saves sub and its answers. A second submission of a student for the
		// same test returns ErrAlreadySubmitted.
		CreateSubmission(ctx context.Context, sub Submission, exec ...core.DBExecutor) error
		GetSubmission(ctx context.Context, id string, exec ...core.DBExecutor) (Submission, error)
		// QueryStudentSubmissions returns the submissions of studentID, newest first, without answers.
		QueryStudentSubmissions(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]Submission, error)
		// QueryTestResults returns every submission of testID with its answers and the student name.
		QueryTestResults(ctx context.Context, testID string, exec ...core.DBExecutor) ([]SubmissionResult, error)

		StudentClassroomID(ctx context.Context, studentID string, exec ...core.DBExecutor) (string, error)
	}

	// TestPaper is a Test as a student sees it: questions without their correct option.
	TestPaper struct {
		Test      Test       `json:"test"`
		Questions []Question `json:"questions"`
	}

	Service interface {
		CreateTest(ctx context.Context, act user.Actor, in TestInput) (Test, error)
		UpdateTest(ctx context.Context, act user.Actor, id string, in TestInput) (Test, error)
		DeleteTest(ctx context.Context, act user.Actor, id string) error
		ActivateTest(ctx context.Context, act user.Actor, id string) (Test, error)
		TeacherTests(ctx context.Context, act user.Actor) ([]Test, error)
		Questions(ctx context.Context, act user.Actor, testID string) ([]Question, error)
		AddQuestion(ctx context.Context, act user.Actor, testID string, in QuestionInput) (Question, error)
		UpdateQuestion(ctx context.Context, act user.Actor, id string, in QuestionInput) (Question, error)
		DeleteQuestion(ctx context.Context, act user.Actor, id string) error
		TestResults(ctx context.Context, act user.Actor, testID string) ([]SubmissionResult, error)

		AvailableTests(ctx context.Context, act user.Actor) ([]Test, error)
		StartTest(ctx context.Context, act user.Actor, testID string) (TestPaper, error)
		Submit(ctx context.Context, act user.Actor, testID string, in SubmitInput) (SubmissionResult, error)
		StudentSubmissions(ctx context.Context, act user.Actor) ([]Submission, error)
		SubmissionResult(ctx context.Context, act user.Actor, id string) (SubmissionResult, error)
	}

	service struct {
		db   core.DB
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository) Service {
	return &service{db: db, repo: repo}
}

// ownTest returns the test when act set it. Admins see every test.
func (svc *service) ownTest(ctx context.Context, act user.Actor, id string, exec ...core.DBExecutor) (Test, error) {
	test, err := svc.repo.GetTest(ctx, id, exec...)
	if err != nil {
		return Test{}, err
	}
	switch act.(type) {
	case user.Admin:
		return test, nil
	case user.Teacher:
		if test.TeacherID == act.User().ID {
			return test, nil
		}
	}
	return Test{}, ErrTestNotFound
}

func (svc *service) CreateTest(ctx context.Context, act user.Actor, in TestInput) (Test, error) {
	if _, ok := act.(user.Teacher); !ok {
		return Test{}, core.ErrUnauthorized
	}
	test := Test{
		ID:        uuid.New().String(),
		TeacherID: act.User().ID,
		CreatedAt: nowFunc().UTC(),
	}
	in.apply(&test)
	if err := svc.repo.CreateTest(ctx, test); err != nil {
		return Test{}, errors.Wrap(err, "creating test")
	}
	return test, nil
}

func (in TestInput) apply(t *Test) {
	t.Title = in.Title
	t.SubjectID = in.SubjectID
	t.ClassroomID = in.ClassroomID
	t.TermID = in.TermID
	t.SessionID = in.SessionID
	t.DurationMinutes = in.DurationMinutes
	t.TotalQuestions = in.TotalQuestions
	t.StartTime = in.StartTime.UTC()
	t.EndTime = in.EndTime.UTC()
}

func (svc *service) UpdateTest(ctx context.Context, act user.Actor, id string, in TestInput) (Test, error) {
	var test Test
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if test, err = svc.ownTest(ctx, act, id, tx); err != nil {
			return err
		}
		questions, err := svc.repo.QueryQuestions(ctx, id, tx)
		if err != nil {
			return errors.Wrap(err, "querying questions")
		}
		if in.TotalQuestions < len(questions) {
			return core.NewValidationError(ErrBelowQuestions, core.FieldError{
				Field: "total_questions",
				Error: ErrBelowQuestions.Error(),
			})
		}
		in.apply(&test)
		return svc.repo.UpdateTest(ctx, test, tx)
	})
	if err != nil {
		return Test{}, err
	}
	return test, nil
}

func (svc *service) DeleteTest(ctx context.Context, act user.Actor, id string) error {
	return core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if _, err := svc.ownTest(ctx, act, id, tx); err != nil {
			return err
		}
		return svc.repo.DeleteTest(ctx, id, tx)
	})
}

func (svc *service) ActivateTest(ctx context.Context, act user.Actor, id string) (Test, error) {
	var test Test
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if test, err = svc.ownTest(ctx, act, id, tx); err != nil {
			return err
		}
		test.IsActive = true
		return svc.repo.UpdateTest(ctx, test, tx)
	})
	if err != nil {
		return Test{}, err
	}
	return test, nil
}

func (svc *service) TeacherTests(ctx context.Context, act user.Actor) ([]Test, error) {
	if _, ok := act.(user.Teacher); !ok {
		return nil, core.ErrUnauthorized
	}
	return svc.repo.QueryTeacherTests(ctx, act.User().ID)
}

func (svc *service) Questions(ctx context.Context, act user.Actor, testID string) ([]Question, error) {
	if _, err := svc.ownTest(ctx, act, testID); err != nil {
		return nil, err
	}
	return svc.repo.QueryQuestions(ctx, testID)
}

func (in QuestionInput) apply(q *Question) {
	q.Text = in.Text
	q.OptionA = in.OptionA
	q.OptionB = in.OptionB
	q.OptionC = in.OptionC
	q.OptionD = in.OptionD
	q.CorrectOption = in.CorrectOption
}

// AddQuestion appends a question to the test until it holds TotalQuestions.
func (svc *service) AddQuestion(ctx context.Context, act user.Actor, testID string, in QuestionInput) (Question, error) {
	var q Question
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		test, err := svc.ownTest(ctx, act, testID, tx)
		if err != nil {
			return err
		}
		questions, err := svc.repo.QueryQuestions(ctx, testID, tx)
		if err != nil {
			return errors.Wrap(err, "querying questions")
		}
		if len(questions) >= test.TotalQuestions {
			return core.NewValidationError(ErrMaxQuestions)
		}

		position := 1
		if n := len(questions); n > 0 {
			position = questions[n-1].Position + 1
		}
		q = Question{ID: uuid.New().String(), TestID: testID, Position: position}
		in.apply(&q)
		return svc.repo.CreateQuestion(ctx, q, tx)
	})
	if err != nil {
		return Question{}, err
	}
	return q, nil
}

func (svc *service) UpdateQuestion(ctx context.Context, act user.Actor, id string, in QuestionInput) (Question, error) {
	var q Question
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if q, err = svc.repo.GetQuestion(ctx, id, tx); err != nil {
			return err
		}
		if _, err = svc.ownTest(ctx, act, q.TestID, tx); err != nil {
			return ErrQuestionNotFound
		}
		in.apply(&q)
		return svc.repo.UpdateQuestion(ctx, q, tx)
	})
	if err != nil {
		return Question{}, err
	}
	return q, nil
}

func (svc *service) DeleteQuestion(ctx context.Context, act user.Actor, id string) error {
	return core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		q, err := svc.repo.GetQuestion(ctx, id, tx)
		if err != nil {
			return err
		}
		if _, err = svc.ownTest(ctx, act, q.TestID, tx); err != nil {
			return ErrQuestionNotFound
		}
		return svc.repo.DeleteQuestion(ctx, id, tx)
	})
}

// TestResults scores every submission of the test and ranks them.
func (svc *service) TestResults(ctx context.Context, act user.Actor, testID string) ([]SubmissionResult, error) {
	if _, err := svc.ownTest(ctx, act, testID); err != nil {
		return nil, err
	}
	questions, err := svc.repo.QueryQuestions(ctx, testID)
	if err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	results, err := svc.repo.QueryTestResults(ctx, testID)
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}

	key := Key(questions)
	for i := range results {
		if results[i].Score, err = ScoreAnswers(results[i].Answers, key); err != nil {
			return nil, err
		}
		results[i].Answers = nil
	}
	return Rank(results), nil
}

// Students

func (svc *service) studentClassroom(ctx context.Context, act user.Actor) (string, error) {
	if _, ok := act.(user.Student); !ok {
		return "", core.ErrUnauthorized
	}
	return svc.repo.StudentClassroomID(ctx, act.User().ID)
}

func (svc *service) AvailableTests(ctx context.Context, act user.Actor) ([]Test, error) {
	classroomID, err := svc.studentClassroom(ctx, act)
	if err != nil {
		return nil, err
	}
	if classroomID == "" {
		return []Test{}, nil
	}
	return svc.repo.QueryActiveTests(ctx, classroomID)
}

// openTest returns the test when it is active, set for the student's classroom and open now.
func (svc *service) openTest(ctx context.Context, act user.Actor, testID string) (Test, error) {
	classroomID, err := svc.studentClassroom(ctx, act)
	if err != nil {
		return Test{}, err
	}
	test, err := svc.repo.GetTest(ctx, testID)
	if err != nil {
		return Test{}, err
	}
	if !test.IsActive || test.ClassroomID != classroomID {
		return Test{}, ErrTestNotFound
	}
	if !test.inWindow(nowFunc()) {
		return Test{}, core.NewValidationError(ErrTestClosed)
	}
	return test, nil
}

func (svc *service) StartTest(ctx context.Context, act user.Actor, testID string) (TestPaper, error) {
	test, err := svc.openTest(ctx, act, testID)
	if err != nil {
		return TestPaper{}, err
	}
	questions, err := svc.repo.QueryQuestions(ctx, testID)
	if err != nil {
		return TestPaper{}, errors.Wrap(err, "querying questions")
	}
	for i := range questions {
		questions[i].CorrectOption = ""
	}
	return TestPaper{Test: test, Questions: questions}, nil
}

// Submit records the answers of a student once and returns their score.
func (svc *service) Submit(ctx context.Context, act user.Actor, testID string, in SubmitInput) (SubmissionResult, error) {
	if _, err := svc.openTest(ctx, act, testID); err != nil {
		return SubmissionResult{}, err
	}

	var res SubmissionResult
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		questions, err := svc.repo.QueryQuestions(ctx, testID, tx)
		if err != nil {
			return errors.Wrap(err, "querying questions")
		}
		key := Key(questions)
		for qid := range in.Answers {
			if _, ok := key[qid]; !ok {
				return ErrMismatchedKey
			}
		}

		sub := Submission{
			ID:          uuid.New().String(),
			StudentID:   act.User().ID,
			TestID:      testID,
			SubmittedAt: nowFunc().UTC(),
		}
		for _, q := range questions {
			if opt, ok := in.Answers[q.ID]; ok {
				sub.Answers = append(sub.Answers, Answer{QuestionID: q.ID, SelectedOption: opt})
			}
		}
		if err = svc.repo.CreateSubmission(ctx, sub, tx); err != nil {
			return err
		}

		res = SubmissionResult{Submission: sub, StudentName: act.User().DisplayName()}
		res.Score, err = ScoreAnswers(sub.Answers, key)
		return err
	})
	if err != nil {
		return SubmissionResult{}, err
	}
	return res, nil
}

func (svc *service) StudentSubmissions(ctx context.Context, act user.Actor) ([]Submission, error) {
	if _, ok := act.(user.Student); !ok {
		return nil, core.ErrUnauthorized
	}
	return svc.repo.QueryStudentSubmissions(ctx, act.User().ID)
}

func (svc *service) SubmissionResult(ctx context.Context, act user.Actor, id string) (SubmissionResult, error) {
	if _, ok := act.(user.Student); !ok {
		return SubmissionResult{}, core.ErrUnauthorized
	}
	sub, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return SubmissionResult{}, err
	}
	if sub.StudentID != act.User().ID {
		return SubmissionResult{}, ErrSubmissionNotFound
	}
	questions, err := svc.repo.QueryQuestions(ctx, sub.TestID)
	if err != nil {
		return SubmissionResult{}, errors.Wrap(err, "querying questions")
	}

	res := SubmissionResult{Submission: sub, StudentName: act.User().DisplayName()}
	if res.Score, err = ScoreAnswers(sub.Answers, Key(questions)); err != nil {
		return SubmissionResult{}, err
	}
	return res, nil
}
