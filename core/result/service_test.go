package result_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academics"
	"github.com/trezcool/shule/core/result"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/storage/database/sqlxrepos"
	"github.com/trezcool/shule/tests"
)

type fixture struct {
	svc      result.Service
	repo     result.Repository
	usrRepo  user.Repository
	acaRepo  academics.Repository
	scope    result.Scope
	subject  string
	students []string
	admin    user.Actor
	teacher  user.Actor
	outsider user.Actor
	student  user.Actor
}

func setup(t *testing.T) fixture {
	db := testutil.PrepareDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)
	acaRepo := sqlxrepos.NewAcademicsRepository(db)
	repo := sqlxrepos.NewResultRepository(db)

	class := testutil.CreateClassroom(t, acaRepo, "JSS 1")
	subject := testutil.CreateSubject(t, acaRepo, "Mathematics")
	session := testutil.CreateSession(t, acaRepo, "2024/2025")
	term := testutil.CreateTerm(t, acaRepo, "First Term")

	teacher := testutil.CreateTeacher(t, usrRepo, acaRepo, "Mrs Ada")
	outsider := testutil.CreateTeacher(t, usrRepo, acaRepo, "Mr Obi")
	testutil.Assign(t, acaRepo, teacher.ID, class.ID, subject.ID)

	var students []string
	var firstStudent user.User
	for i, name := range []string{"Ayo", "Bisi", "Chidi"} {
		st := testutil.CreateStudent(t, usrRepo, acaRepo, name, class.ID)
		if i == 0 {
			firstStudent = st
		}
		students = append(students, st.ID)
	}
	testutil.Enroll(t, acaRepo, class.ID, subject.ID, students...)

	return fixture{
		svc:      result.NewService(db, repo, result.StandardPolicy, result.LegacyAdminPolicy),
		repo:     repo,
		usrRepo:  usrRepo,
		acaRepo:  acaRepo,
		scope:    result.Scope{ClassroomID: class.ID, TermID: term.ID, SessionID: session.ID},
		subject:  subject.ID,
		students: students,
		admin:    testutil.Actor(t, testutil.CreateAdmin(t, usrRepo, "Admin")),
		teacher:  testutil.Actor(t, teacher),
		outsider: testutil.Actor(t, outsider),
		student:  testutil.Actor(t, firstStudent),
	}
}

func (f fixture) upload(scores ...result.ScoreEntry) result.UploadInput {
	return result.UploadInput{Scope: f.scope, SubjectID: f.subject, Scores: scores}
}

func (f fixture) uploadAll(t *testing.T, act user.Actor, testScore, examScore float64) []result.ScoreRecord {
	scores := make([]result.ScoreEntry, 0, len(f.students))
	for _, id := range f.students {
		scores = append(scores, result.ScoreEntry{StudentID: id, TestScore: testScore, ExamScore: examScore})
	}
	records, err := f.svc.Upload(context.Background(), act, f.upload(scores...))
	require.NoError(t, err)
	return records
}

func byStudent(records []result.ScoreRecord) map[string]result.ScoreRecord {
	m := make(map[string]result.ScoreRecord, len(records))
	for _, r := range records {
		m[r.StudentID] = r
	}
	return m
}

func Test_service_Upload(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("grades every entry", func(t *testing.T) {
		records := f.uploadAll(t, f.teacher, 20, 50)
		require.Len(t, records, 3)
		for _, r := range records {
			assert.Equal(t, result.GradeA, r.Grade)
			assert.Equal(t, 70.0, r.Total())
			assert.False(t, r.Locked)
		}
	})

	t.Run("re-upload replaces the scores", func(t *testing.T) {
		records, err := f.svc.Upload(ctx, f.teacher, f.upload(
			result.ScoreEntry{StudentID: f.students[0], TestScore: 10, ExamScore: 20},
		))
		require.NoError(t, err)
		require.Len(t, records, 3)
		got := byStudent(records)[f.students[0]]
		assert.Equal(t, 30.0, got.Total())
		assert.Equal(t, result.GradeF, got.Grade)
	})

	t.Run("last duplicate entry wins", func(t *testing.T) {
		records, err := f.svc.Upload(ctx, f.admin, f.upload(
			result.ScoreEntry{StudentID: f.students[1], TestScore: 10, ExamScore: 10},
			result.ScoreEntry{StudentID: f.students[1], TestScore: 30, ExamScore: 65},
		))
		require.NoError(t, err)
		assert.Equal(t, result.GradeAStar, byStudent(records)[f.students[1]].Grade)
	})

	tests := []struct {
		name    string
		act     user.Actor
		in      result.UploadInput
		checkFn func(error) bool
	}{
		{
			name:    "total above maximum",
			act:     f.teacher,
			in:      f.upload(result.ScoreEntry{StudentID: f.students[0], TestScore: 40, ExamScore: 61}),
			checkFn: func(err error) bool { _, ok := err.(*core.ValidationError); return ok },
		},
		{
			name:    "negative score",
			act:     f.teacher,
			in:      f.upload(result.ScoreEntry{StudentID: f.students[0], TestScore: -1, ExamScore: 50}),
			checkFn: func(err error) bool { _, ok := err.(*core.ValidationError); return ok },
		},
		{
			name:    "teacher not assigned",
			act:     f.outsider,
			in:      f.upload(result.ScoreEntry{StudentID: f.students[0], TestScore: 10, ExamScore: 10}),
			checkFn: core.IsUnauthorized,
		},
		{
			name:    "student",
			act:     f.student,
			in:      f.upload(result.ScoreEntry{StudentID: f.students[0], TestScore: 10, ExamScore: 10}),
			checkFn: core.IsUnauthorized,
		},
		{
			name:    "student not enrolled",
			act:     f.teacher,
			in:      f.upload(result.ScoreEntry{StudentID: "nobody", TestScore: 10, ExamScore: 10}),
			checkFn: core.IsIntegrity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Upload(ctx, tt.act, tt.in)
			require.Error(t, err)
			assert.True(t, tt.checkFn(err), "unexpected error: %v", err)
		})
	}
}

func Test_service_Upload_locked(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	before := byStudent(f.uploadAll(t, f.teacher, 20, 50))
	outcome, err := f.svc.ToggleLock(ctx, f.admin, f.scope)
	require.NoError(t, err)
	require.Equal(t, result.Locked, outcome)

	_, err = f.svc.Upload(ctx, f.teacher, f.upload(
		result.ScoreEntry{StudentID: f.students[0], TestScore: 1, ExamScore: 1},
	))
	assert.True(t, core.IsLocked(err), "want locked error, got %v", err)

	records, err := f.svc.ClassResults(ctx, f.scope)
	require.NoError(t, err)
	for _, r := range records {
		assert.Equal(t, before[r.StudentID].TestScore, r.TestScore)
		assert.Equal(t, before[r.StudentID].ExamScore, r.ExamScore)
		assert.True(t, r.Locked)
	}

	// admins write through the lock; the flag stays set
	records, err = f.svc.Upload(ctx, f.admin, f.upload(
		result.ScoreEntry{StudentID: f.students[0], TestScore: 1, ExamScore: 1},
	))
	require.NoError(t, err)
	got := byStudent(records)[f.students[0]]
	assert.Equal(t, 2.0, got.Total())
	assert.True(t, got.Locked)
}

func Test_service_Upload_lockedInAnotherClass(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.uploadAll(t, f.teacher, 20, 50)
	_, err := f.svc.ToggleLock(ctx, f.admin, f.scope)
	require.NoError(t, err)

	// the student moves on mid-term and is enrolled in the same subject there
	nextClass := testutil.CreateClassroom(t, f.acaRepo, "JSS 2")
	nextTeacher := testutil.CreateTeacher(t, f.usrRepo, f.acaRepo, "Mr Eze")
	testutil.Assign(t, f.acaRepo, nextTeacher.ID, nextClass.ID, f.subject)
	testutil.Enroll(t, f.acaRepo, nextClass.ID, f.subject, f.students[0])

	nextScope := result.Scope{ClassroomID: nextClass.ID, TermID: f.scope.TermID, SessionID: f.scope.SessionID}
	_, err = f.svc.Upload(ctx, testutil.Actor(t, nextTeacher), result.UploadInput{
		Scope:     nextScope,
		SubjectID: f.subject,
		Scores:    []result.ScoreEntry{{StudentID: f.students[0], TestScore: 1, ExamScore: 1}},
	})
	assert.True(t, core.IsLocked(err), "want locked error, got %v", err)

	records, err := f.svc.ClassResults(ctx, f.scope)
	require.NoError(t, err)
	got := byStudent(records)[f.students[0]]
	assert.Equal(t, 70.0, got.Total())
	assert.True(t, got.Locked)

	moved, err := f.svc.ClassResults(ctx, nextScope)
	require.NoError(t, err)
	assert.Empty(t, moved)
}

func Test_service_ToggleLock_unknownScope(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		scope   result.Scope
		wantErr error
	}{
		{
			name:    "classroom",
			scope:   result.Scope{ClassroomID: "no-such-class", TermID: f.scope.TermID, SessionID: f.scope.SessionID},
			wantErr: academics.ErrClassroomNotFound,
		},
		{
			name:    "term",
			scope:   result.Scope{ClassroomID: f.scope.ClassroomID, TermID: "no-term", SessionID: f.scope.SessionID},
			wantErr: academics.ErrTermNotFound,
		},
		{
			name:    "session",
			scope:   result.Scope{ClassroomID: f.scope.ClassroomID, TermID: f.scope.TermID, SessionID: "no-session"},
			wantErr: academics.ErrSessionNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := f.svc.ToggleLock(ctx, f.admin, tt.scope)
			assert.Equal(t, tt.wantErr, err)
			assert.True(t, core.IsNotFound(err))
			assert.Empty(t, outcome)
		})
	}
}

func Test_service_ToggleLock(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	outcome, err := f.svc.ToggleLock(ctx, f.admin, f.scope)
	require.NoError(t, err)
	assert.Equal(t, result.NoOp, outcome, "empty scope")

	_, err = f.svc.ToggleLock(ctx, f.teacher, f.scope)
	assert.True(t, core.IsUnauthorized(err))

	records := f.uploadAll(t, f.teacher, 20, 50)

	lockedStates := func() []bool {
		records, err := f.svc.ClassResults(ctx, f.scope)
		require.NoError(t, err)
		states := make([]bool, 0, len(records))
		for _, r := range records {
			states = append(states, r.Locked)
		}
		return states
	}

	outcome, err = f.svc.ToggleLock(ctx, f.admin, f.scope)
	require.NoError(t, err)
	assert.Equal(t, result.Locked, outcome)
	assert.Equal(t, []bool{true, true, true}, lockedStates())

	// mixed {locked, unlocked, locked} locks everything
	mid, err := f.repo.GetRecord(ctx, records[1].ID)
	require.NoError(t, err)
	mid.Locked = false
	require.NoError(t, f.repo.UpdateRecord(ctx, mid))

	outcome, err = f.svc.ToggleLock(ctx, f.admin, f.scope)
	require.NoError(t, err)
	assert.Equal(t, result.Locked, outcome)
	assert.Equal(t, []bool{true, true, true}, lockedStates())

	outcome, err = f.svc.ToggleLock(ctx, f.admin, f.scope)
	require.NoError(t, err)
	assert.Equal(t, result.Unlocked, outcome)
	assert.Equal(t, []bool{false, false, false}, lockedStates())
}

func Test_service_AdminEdit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	records := f.uploadAll(t, f.teacher, 20, 50)
	id := records[0].ID

	_, err := f.svc.AdminEdit(ctx, f.teacher, id, result.EditInput{TestScore: 10, ExamScore: 55})
	assert.True(t, core.IsUnauthorized(err))

	_, err = f.svc.AdminEdit(ctx, f.admin, "missing", result.EditInput{TestScore: 10, ExamScore: 55})
	assert.True(t, core.IsNotFound(err))

	rec, err := f.svc.AdminEdit(ctx, f.admin, id, result.EditInput{TestScore: 10, ExamScore: 55})
	require.NoError(t, err)
	assert.Equal(t, result.GradeB, rec.Grade, "legacy table grades 65 as B")

	_, err = f.svc.ToggleLock(ctx, f.admin, f.scope)
	require.NoError(t, err)
	_, err = f.svc.AdminEdit(ctx, f.admin, id, result.EditInput{TestScore: 10, ExamScore: 10})
	assert.True(t, core.IsLocked(err))
}

func Test_service_StudentReport(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.uploadAll(t, f.teacher, 20, 50)

	filter := result.ReportFilter{TermID: f.scope.TermID, SessionID: f.scope.SessionID}
	report, err := f.svc.StudentReport(ctx, f.students[0], filter)
	require.NoError(t, err)
	assert.Len(t, report.Results, 1)
	assert.Equal(t, 70.0, report.Total)
	assert.Equal(t, 70.0, report.Average)

	report, err = f.svc.StudentReport(ctx, "nobody", filter)
	require.NoError(t, err)
	assert.Empty(t, report.Results)
	assert.Zero(t, report.Average)

	teacherRecords, err := f.svc.TeacherResults(ctx, f.teacher, filter)
	require.NoError(t, err)
	assert.Len(t, teacherRecords, 3)

	outsiderRecords, err := f.svc.TeacherResults(ctx, f.outsider, filter)
	require.NoError(t, err)
	assert.Empty(t, outsiderRecords)
}
