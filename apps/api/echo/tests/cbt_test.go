package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/cbt"
	"github.com/trezcool/shule/tests"
)

type cbtFixture struct {
	env
	test          cbt.Test
	qids          []string
	teacherToken  string
	otherToken    string
	studentTokens []string
	strangerToken string
}

// setupCBT publishes a three-question test, answered A, B, C, to a class of three students.
func setupCBT(t *testing.T) cbtFixture {
	e := setup(t)
	class := testutil.CreateClassroom(t, e.acaRepo, "SS 1")
	otherClass := testutil.CreateClassroom(t, e.acaRepo, "SS 2")
	subject := testutil.CreateSubject(t, e.acaRepo, "Chemistry")
	session := testutil.CreateSession(t, e.acaRepo, "2024/2025")
	term := testutil.CreateTerm(t, e.acaRepo, "Third Term")

	f := cbtFixture{
		env:           e,
		teacherToken:  getToken(t, e.conf, testutil.CreateTeacher(t, e.usrRepo, e.acaRepo, "Mr Musa")),
		otherToken:    getToken(t, e.conf, testutil.CreateTeacher(t, e.usrRepo, e.acaRepo, "Mrs Bola")),
		strangerToken: getToken(t, e.conf, testutil.CreateStudent(t, e.usrRepo, e.acaRepo, "Zainab", otherClass.ID)),
	}
	for _, name := range []string{"Adaeze", "Bode", "Chike"} {
		f.studentTokens = append(f.studentTokens, getToken(t, e.conf, testutil.CreateStudent(t, e.usrRepo, e.acaRepo, name, class.ID)))
	}

	now := time.Now().UTC().Truncate(time.Second)
	rec := f.do(http.MethodPost, "/v1/cbt/tests", f.teacherToken, marchallObj(t, cbt.TestInput{
		Title:           "Acids and Bases",
		SubjectID:       subject.ID,
		ClassroomID:     class.ID,
		TermID:          term.ID,
		SessionID:       session.ID,
		DurationMinutes: 20,
		TotalQuestions:  3,
		StartTime:       now.Add(-time.Hour),
		EndTime:         now.Add(time.Hour),
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	unmarshal(t, rec, &f.test)

	for _, correct := range []string{"A", "B", "C"} {
		rec = f.do(http.MethodPost, "/v1/cbt/tests/"+f.test.ID+"/questions", f.teacherToken, marchallObj(t, cbt.QuestionInput{
			Text: "Question " + correct, OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectOption: correct,
		}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var q cbt.Question
		unmarshal(t, rec, &q)
		f.qids = append(f.qids, q.ID)
	}

	rec = f.do(http.MethodPost, "/v1/cbt/tests/"+f.test.ID+"/activate", f.teacherToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return f
}

func (f cbtFixture) answers(t *testing.T, opts ...string) []byte {
	in := cbt.SubmitInput{Answers: make(map[string]string)}
	for i, opt := range opts {
		if opt != "" {
			in.Answers[f.qids[i]] = opt
		}
	}
	return marchallObj(t, in)
}

func (f cbtFixture) submitPath() string { return "/v1/cbt/tests/" + f.test.ID + "/submit" }

func Test_cbtApi_teacherPortal(t *testing.T) {
	f := setupCBT(t)
	path := "/v1/cbt/tests/" + f.test.ID

	f.runTests(t, []httpTest{
		{name: "Students cannot create tests", method: http.MethodPost, path: "/v1/cbt/tests", token: f.studentTokens[0], wantCode: http.StatusForbidden},
		{name: "Invalid test", method: http.MethodPost, path: "/v1/cbt/tests", token: f.teacherToken, body: marchallObj(t, cbt.TestInput{}), wantCode: http.StatusBadRequest},
		{
			name: "Invalid option", method: http.MethodPost, path: path + "/questions", token: f.teacherToken, wantCode: http.StatusBadRequest,
			body: marchallObj(t, cbt.QuestionInput{Text: "Q", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectOption: "E"}),
		},
		{name: "Other teachers cannot see questions", path: path + "/questions", token: f.otherToken, wantCode: http.StatusNotFound},
		{name: "Other teachers cannot delete", method: http.MethodDelete, path: path, token: f.otherToken, wantCode: http.StatusNotFound},
	})

	rec := f.do(http.MethodGet, path+"/questions", f.teacherToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var questions []cbt.Question
	unmarshal(t, rec, &questions)
	require.Len(t, questions, 3)
	assert.Equal(t, "A", questions[0].CorrectOption)

	rec = f.do(http.MethodGet, "/v1/cbt/tests", f.teacherToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var tests []cbt.Test
	unmarshal(t, rec, &tests)
	require.Len(t, tests, 1)
	assert.True(t, tests[0].IsActive)
}

func Test_cbtApi_studentPortal(t *testing.T) {
	f := setupCBT(t)

	rec := f.do(http.MethodGet, "/v1/cbt/available", f.studentTokens[0])
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var available []cbt.Test
	unmarshal(t, rec, &available)
	require.Len(t, available, 1)
	assert.Equal(t, f.test.ID, available[0].ID)

	rec = f.do(http.MethodGet, "/v1/cbt/tests/"+f.test.ID+"/start", f.studentTokens[0])
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var paper cbt.TestPaper
	unmarshal(t, rec, &paper)
	require.Len(t, paper.Questions, 3)
	for _, q := range paper.Questions {
		assert.Empty(t, q.CorrectOption)
	}

	f.runTests(t, []httpTest{
		{name: "Other classes cannot start", path: "/v1/cbt/tests/" + f.test.ID + "/start", token: f.strangerToken, wantCode: http.StatusNotFound},
		{name: "Teachers cannot submit", method: http.MethodPost, path: f.submitPath(), token: f.teacherToken, body: f.answers(t, "A"), wantCode: http.StatusForbidden},
		{name: "Invalid option", method: http.MethodPost, path: f.submitPath(), token: f.studentTokens[0], body: f.answers(t, "Z"), wantCode: http.StatusBadRequest},
	})

	rec = f.do(http.MethodPost, f.submitPath(), f.studentTokens[0], f.answers(t, "A", "B", "D"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res cbt.SubmissionResult
	unmarshal(t, rec, &res)
	assert.Equal(t, 2, res.Correct)
	assert.Equal(t, 3, res.Total)

	rec = f.do(http.MethodPost, f.submitPath(), f.studentTokens[0], f.answers(t, "A", "B", "C"))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusConflict,
		wantData: marchallObj(t, httpErr{Error: cbt.ErrAlreadySubmitted.Error()}),
	}, rec)

	rec = f.do(http.MethodGet, "/v1/cbt/submissions", f.studentTokens[0])
	require.Equal(t, http.StatusOK, rec.Code)
	var subs []cbt.Submission
	unmarshal(t, rec, &subs)
	require.Len(t, subs, 1)

	rec = f.do(http.MethodGet, "/v1/cbt/submissions/"+subs[0].ID, f.studentTokens[0])
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshal(t, rec, &res)
	assert.Equal(t, 2, res.Correct)

	rec = f.do(http.MethodGet, "/v1/cbt/submissions/"+subs[0].ID, f.studentTokens[1])
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_cbtApi_testResults(t *testing.T) {
	f := setupCBT(t)

	for i, answers := range [][]string{
		{"A", "B", "C"},
		{"A", "B", "C"},
		{"A", "B", ""}, // unanswered questions are not counted
	} {
		rec := f.do(http.MethodPost, f.submitPath(), f.studentTokens[i], f.answers(t, answers...))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := f.do(http.MethodGet, "/v1/cbt/tests/"+f.test.ID+"/results", f.otherToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodGet, "/v1/cbt/tests/"+f.test.ID+"/results", f.teacherToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var results []cbt.SubmissionResult
	unmarshal(t, rec, &results)
	require.Len(t, results, 3)

	ranks := make([]int, 0, len(results))
	for _, r := range results {
		ranks = append(ranks, r.Rank)
	}
	assert.Equal(t, []int{1, 1, 3}, ranks)
	assert.Equal(t, "Chike", results[2].StudentName)
	assert.Equal(t, 2, results[2].Total)
	assert.Empty(t, results[2].Answers)
}
