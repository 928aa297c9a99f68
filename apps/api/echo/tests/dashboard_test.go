package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/academics"
	"github.com/trezcool/shule/tests"
)

func Test_dashboard(t *testing.T) {
	e := setup(t)
	class := testutil.CreateClassroom(t, e.acaRepo, "Primary 4")
	subject := testutil.CreateSubject(t, e.acaRepo, "Basic Science")
	testutil.CreateSubject(t, e.acaRepo, "Civic Education")
	teacher := testutil.CreateTeacher(t, e.usrRepo, e.acaRepo, "Mr Ade")
	student := testutil.CreateStudent(t, e.usrRepo, e.acaRepo, "Femi", class.ID)
	testutil.CreateStudent(t, e.usrRepo, e.acaRepo, "Funke", class.ID)
	admin := testutil.CreateAdmin(t, e.usrRepo, "Principal")
	nobody := testutil.CreateUser(t, e.usrRepo, "Visitor", "visitor", "visitor@test.cd", "", nil, true)
	testutil.Assign(t, e.acaRepo, teacher.ID, class.ID, subject.ID)

	e.runTests(t, []httpTest{
		{name: "Auth required", path: "/v1/dashboard", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Role required", path: "/v1/dashboard", token: getToken(t, e.conf, nobody),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Admin", path: "/v1/dashboard", token: getToken(t, e.conf, admin),
			wantData: marchallObj(t, academics.AdminDashboard{Students: 2, Teachers: 1, Classes: 1, Subjects: 2}),
		},
		{name: "Student", path: "/v1/dashboard", token: getToken(t, e.conf, student), wantData: []byte(`{"available_tests":[]}`)},
	})

	rec := e.do(http.MethodGet, "/v1/dashboard", getToken(t, e.conf, teacher))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var dash struct {
		Assignments []academics.ClassAssignment `json:"assignments"`
		Tests       []interface{}               `json:"tests"`
	}
	unmarshal(t, rec, &dash)
	require.Len(t, dash.Assignments, 1)
	assert.Equal(t, class.ID, dash.Assignments[0].ClassroomID)
	assert.Empty(t, dash.Tests)
}
