package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/academics"
	"github.com/trezcool/shule/tests"
)

func Test_academicsApi_classrooms(t *testing.T) {
	e := setup(t)
	adminToken := getToken(t, e.conf, testutil.CreateAdmin(t, e.usrRepo, "Admin"))
	teacherToken := getToken(t, e.conf, testutil.CreateTeacher(t, e.usrRepo, e.acaRepo, "Mrs Idowu"))

	rec := e.do(http.MethodPost, "/v1/academics/classrooms", adminToken, marchallObj(t, academics.NameInput{Name: "JSS 3"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var class academics.Classroom
	unmarshal(t, rec, &class)

	e.runTests(t, []httpTest{
		{
			name: "Admin required", method: http.MethodPost, path: "/v1/academics/classrooms", token: teacherToken,
			body: marchallObj(t, academics.NameInput{Name: "JSS 4"}), wantCode: http.StatusForbidden,
		},
		{
			name: "Blank name", method: http.MethodPost, path: "/v1/academics/classrooms", token: adminToken,
			body: marchallObj(t, academics.NameInput{Name: "  "}), wantCode: http.StatusBadRequest,
		},
		{
			name: "Name taken", method: http.MethodPost, path: "/v1/academics/classrooms", token: adminToken,
			body: marchallObj(t, academics.NameInput{Name: "JSS 3"}), wantCode: http.StatusBadRequest,
		},
		{name: "Anyone can list", path: "/v1/academics/classrooms", token: teacherToken, wantData: marchallList(t, class)},
		{name: "Unknown classroom", path: "/v1/academics/classrooms/1f7c4c1e-0000-4000-8000-000000000000", token: teacherToken, wantCode: http.StatusNotFound},
	})
}

func Test_academicsApi_currentSession(t *testing.T) {
	e := setup(t)
	adminToken := getToken(t, e.conf, testutil.CreateAdmin(t, e.usrRepo, "Admin"))
	first := testutil.CreateSession(t, e.acaRepo, "2023/2024")
	second := testutil.CreateSession(t, e.acaRepo, "2024/2025")

	rec := e.do(http.MethodGet, "/v1/academics/sessions/current", adminToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for _, sess := range []academics.Session{first, second} {
		rec = e.do(http.MethodPost, "/v1/academics/sessions/"+sess.ID+"/set-current", adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = e.do(http.MethodGet, "/v1/academics/sessions/current", adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got academics.Session
		unmarshal(t, rec, &got)
		assert.Equal(t, sess.ID, got.ID)
		assert.True(t, got.IsCurrent)
	}

	rec = e.do(http.MethodGet, "/v1/academics/sessions", adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions []academics.Session
	unmarshal(t, rec, &sessions)
	current := 0
	for _, s := range sessions {
		if s.IsCurrent {
			current++
		}
	}
	assert.Equal(t, 1, current)
}
