package tests

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/result"
	"github.com/trezcool/shule/tests"
)

type resultFixture struct {
	env
	scope        result.Scope
	subjectID    string
	studentIDs   []string
	adminToken   string
	teacherToken string
	studentToken string
}

func setupResults(t *testing.T) resultFixture {
	e := setup(t)
	class := testutil.CreateClassroom(t, e.acaRepo, "JSS 2")
	subject := testutil.CreateSubject(t, e.acaRepo, "English")
	session := testutil.CreateSession(t, e.acaRepo, "2024/2025")
	term := testutil.CreateTerm(t, e.acaRepo, "First Term")
	teacher := testutil.CreateTeacher(t, e.usrRepo, e.acaRepo, "Mrs Okafor")
	testutil.Assign(t, e.acaRepo, teacher.ID, class.ID, subject.ID)

	f := resultFixture{
		env:          e,
		scope:        result.Scope{ClassroomID: class.ID, TermID: term.ID, SessionID: session.ID},
		subjectID:    subject.ID,
		adminToken:   getToken(t, e.conf, testutil.CreateAdmin(t, e.usrRepo, "Admin")),
		teacherToken: getToken(t, e.conf, teacher),
	}
	for i, name := range []string{"Tolu", "Uche"} {
		st := testutil.CreateStudent(t, e.usrRepo, e.acaRepo, name, class.ID)
		if i == 0 {
			f.studentToken = getToken(t, e.conf, st)
		}
		f.studentIDs = append(f.studentIDs, st.ID)
	}
	testutil.Enroll(t, e.acaRepo, class.ID, subject.ID, f.studentIDs...)
	return f
}

func (f resultFixture) upload(t *testing.T, testScore, examScore float64) []byte {
	in := result.UploadInput{Scope: f.scope, SubjectID: f.subjectID}
	for _, id := range f.studentIDs {
		in.Scores = append(in.Scores, result.ScoreEntry{StudentID: id, TestScore: testScore, ExamScore: examScore})
	}
	return marchallObj(t, in)
}

func Test_resultApi_upload(t *testing.T) {
	f := setupResults(t)

	tooHigh := result.UploadInput{
		Scope: f.scope, SubjectID: f.subjectID,
		Scores: []result.ScoreEntry{{StudentID: f.studentIDs[0], TestScore: 40, ExamScore: 61}},
	}
	notEnrolled := result.UploadInput{
		Scope: f.scope, SubjectID: f.subjectID,
		Scores: []result.ScoreEntry{{StudentID: "9b7c4c1e-0000-4000-8000-000000000000", TestScore: 10, ExamScore: 10}},
	}

	f.runTests(t, []httpTest{
		{name: "Auth required", method: http.MethodPost, path: "/v1/results/upload", wantCode: http.StatusUnauthorized},
		{
			name: "Students cannot upload", method: http.MethodPost, path: "/v1/results/upload", token: f.studentToken,
			body: f.upload(t, 10, 10), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Required fields", method: http.MethodPost, path: "/v1/results/upload", token: f.teacherToken,
			body: marchallObj(t, result.UploadInput{}), wantCode: http.StatusBadRequest,
		},
		{
			name: "Total above maximum", method: http.MethodPost, path: "/v1/results/upload", token: f.teacherToken,
			body: marchallObj(t, tooHigh), wantCode: http.StatusBadRequest,
		},
		{
			name: "Student not enrolled", method: http.MethodPost, path: "/v1/results/upload", token: f.teacherToken,
			body: marchallObj(t, notEnrolled), wantCode: http.StatusConflict,
		},
	})

	rec := f.do(http.MethodPost, "/v1/results/upload", f.teacherToken, f.upload(t, 25, 50))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var records []result.ScoreRecord
	unmarshal(t, rec, &records)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, 75.0, r.Total())
		assert.Equal(t, result.GradeA, r.Grade)
		assert.Equal(t, f.scope.ClassroomID, r.ClassroomID)
	}
}

func Test_resultApi_toggleLock(t *testing.T) {
	f := setupResults(t)
	toggle := func(t *testing.T, token string) result.LockOutcome {
		rec := f.do(http.MethodPost, "/v1/results/lock-toggle", token, marchallObj(t, f.scope))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp struct {
			Outcome result.LockOutcome `json:"outcome"`
		}
		unmarshal(t, rec, &resp)
		return resp.Outcome
	}

	rec := f.do(http.MethodPost, "/v1/results/lock-toggle", f.teacherToken, marchallObj(t, f.scope))
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)

	assert.Equal(t, result.NoOp, toggle(t, f.adminToken))

	unknown := f.scope
	unknown.ClassroomID = "no-such-class"
	rec = f.do(http.MethodPost, "/v1/results/lock-toggle", f.adminToken, marchallObj(t, unknown))
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPost, "/v1/results/upload", f.teacherToken, f.upload(t, 10, 30))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, result.Locked, toggle(t, f.adminToken))

	rec = f.do(http.MethodPost, "/v1/results/upload", f.teacherToken, f.upload(t, 20, 30))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusForbidden,
		wantData: marchallObj(t, authErr{Error: core.ErrLocked.Error(), Reason: core.ReasonLocked}),
	}, rec)

	// admins bypass the lock on upload
	rec = f.do(http.MethodPost, "/v1/results/upload", f.adminToken, f.upload(t, 20, 30))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, result.Unlocked, toggle(t, f.adminToken))

	rec = f.do(http.MethodPost, "/v1/results/upload", f.teacherToken, f.upload(t, 20, 40))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func Test_resultApi_reports(t *testing.T) {
	f := setupResults(t)
	rec := f.do(http.MethodPost, "/v1/results/upload", f.teacherToken, f.upload(t, 30, 60))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	q := url.Values{}
	q.Set("term_id", f.scope.TermID)
	q.Set("session_id", f.scope.SessionID)

	rec = f.do(http.MethodGet, "/v1/results/me?"+q.Encode(), f.studentToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report result.StudentReport
	unmarshal(t, rec, &report)
	require.Len(t, report.Results, 1)
	assert.Equal(t, 90.0, report.Total)
	assert.Equal(t, result.GradeAStar, report.Results[0].Grade)

	q.Set("classroom_id", f.scope.ClassroomID)
	rec = f.do(http.MethodGet, "/v1/results/class?"+q.Encode(), f.teacherToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var records []result.ScoreRecord
	unmarshal(t, rec, &records)
	assert.Len(t, records, 2)

	f.runTests(t, []httpTest{
		{name: "Teachers have no /me", path: "/v1/results/me?" + q.Encode(), token: f.teacherToken, wantCode: http.StatusForbidden},
		{name: "Scope required", path: "/v1/results/class", token: f.teacherToken, wantCode: http.StatusBadRequest},
	})
}

func Test_resultApi_adminEdit(t *testing.T) {
	f := setupResults(t)
	rec := f.do(http.MethodPost, "/v1/results/upload", f.teacherToken, f.upload(t, 10, 20))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var records []result.ScoreRecord
	unmarshal(t, rec, &records)
	require.NotEmpty(t, records)
	path := "/v1/results/" + records[0].ID

	rec = f.do(http.MethodPut, path, f.teacherToken, marchallObj(t, result.EditInput{TestScore: 30, ExamScore: 60}))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPut, path, f.adminToken, marchallObj(t, result.EditInput{TestScore: 30, ExamScore: 60}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var edited result.ScoreRecord
	unmarshal(t, rec, &edited)
	assert.Equal(t, 90.0, edited.Total())

	rec = f.do(http.MethodPost, "/v1/results/lock-toggle", f.adminToken, marchallObj(t, f.scope))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPut, path, f.adminToken, marchallObj(t, result.EditInput{TestScore: 1, ExamScore: 1}))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusForbidden,
		wantData: marchallObj(t, authErr{Error: core.ErrLocked.Error(), Reason: core.ReasonLocked}),
	}, rec)

	rec = f.do(http.MethodPut, "/v1/results/9b7c4c1e-0000-4000-8000-000000000000", f.adminToken, marchallObj(t, result.EditInput{TestScore: 1}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
