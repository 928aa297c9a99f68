package academics_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academics"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/storage/database/sqlxrepos"
	"github.com/trezcool/shule/tests"
)

var (
	usrRepo user.Repository
	acaRepo academics.Repository
)

func setup(t *testing.T) academics.Service {
	db := testutil.PrepareDB(t)
	usrRepo = sqlxrepos.NewUserRepository(db)
	acaRepo = sqlxrepos.NewAcademicsRepository(db)
	return academics.NewService(db, acaRepo)
}

func studentIDs(students []academics.Student) []string {
	ids := make([]string, 0, len(students))
	for _, st := range students {
		ids = append(ids, st.UserID)
	}
	return ids
}

func Test_service_classrooms(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	c, err := svc.CreateClassroom(ctx, academics.NameInput{Name: "JSS 1"})
	require.NoError(t, err)

	_, err = svc.CreateClassroom(ctx, academics.NameInput{Name: "JSS 1"})
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, academics.ErrClassroomExists, vErr.Err)

	_, err = svc.UpdateClassroom(ctx, "missing", academics.NameInput{Name: "JSS 2"})
	assert.Equal(t, academics.ErrClassroomNotFound, err)

	require.NoError(t, svc.DeleteClassroom(ctx, c.ID))
	_, err = svc.GetClassroom(ctx, c.ID)
	assert.Equal(t, academics.ErrClassroomNotFound, err)
}

func Test_service_SetCurrent(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	_, err := svc.CurrentSession(ctx)
	assert.Equal(t, academics.ErrSessionNotFound, err)

	s1, err := svc.CreateSession(ctx, academics.NameInput{Name: "2023/2024"})
	require.NoError(t, err)
	s2, err := svc.CreateSession(ctx, academics.NameInput{Name: "2024/2025"})
	require.NoError(t, err)

	for _, id := range []string{s1.ID, s2.ID, s1.ID} {
		sess, err := svc.SetCurrentSession(ctx, id)
		require.NoError(t, err)
		assert.True(t, sess.IsCurrent)

		current, err := svc.CurrentSession(ctx)
		require.NoError(t, err)
		assert.Equal(t, id, current.ID)

		sessions, err := svc.QuerySessions(ctx)
		require.NoError(t, err)
		var n int
		for _, s := range sessions {
			if s.IsCurrent {
				n++
			}
		}
		assert.Equal(t, 1, n, "exactly one current session")
	}

	_, err = svc.SetCurrentSession(ctx, "missing")
	assert.Equal(t, academics.ErrSessionNotFound, err)
	current, err := svc.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, s1.ID, current.ID, "failed switch leaves the current session alone")

	term, err := svc.CreateTerm(ctx, academics.NameInput{Name: "First Term"})
	require.NoError(t, err)
	_, err = svc.SetCurrentTerm(ctx, term.ID)
	require.NoError(t, err)
	got, err := svc.GetTermByName(ctx, " First Term ")
	require.NoError(t, err)
	assert.True(t, got.IsCurrent)
}

func Test_service_CreateStudent(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	class := testutil.CreateClassroom(t, acaRepo, "JSS 1")
	usr := testutil.CreateUser(t, usrRepo, "Tola", "tola", "tola@test.cd", "", []string{user.RoleStudent}, true)
	teacher := testutil.CreateUser(t, usrRepo, "Femi", "femi", "femi@test.cd", "", []string{user.RoleTeacher}, true)

	st, err := svc.CreateStudent(ctx, usr, academics.StudentProfileInput{ClassroomID: class.ID, Gender: "F"})
	require.NoError(t, err)
	assert.Equal(t, class.ID, st.ClassroomID.String)

	_, err = svc.CreateStudent(ctx, usr, academics.StudentProfileInput{})
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, academics.ErrProfileExists, vErr.Err)

	_, err = svc.CreateStudent(ctx, teacher, academics.StudentProfileInput{})
	assert.ErrorAs(t, err, &vErr)

	_, err = svc.UpdateStudent(ctx, usr.ID, academics.StudentProfileInput{ClassroomID: "missing"})
	assert.Equal(t, academics.ErrClassroomNotFound, err)

	got, err := svc.GetStudent(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tola", got.Name)
	assert.Equal(t, class.ID, got.ClassroomID.String)
}

func Test_service_PromoteStudents(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	jss1 := testutil.CreateClassroom(t, acaRepo, "JSS 1")
	jss2 := testutil.CreateClassroom(t, acaRepo, "JSS 2")
	a := testutil.CreateStudent(t, usrRepo, acaRepo, "Ade", jss1.ID)
	b := testutil.CreateStudent(t, usrRepo, acaRepo, "Bola", jss1.ID)
	c := testutil.CreateStudent(t, usrRepo, acaRepo, "Kemi", jss2.ID)

	err := svc.PromoteStudents(ctx, academics.PromotionInput{FromClassroomID: jss1.ID, StudentIDs: []string{a.ID}, Target: jss1.ID})
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, academics.ErrSameClass, vErr.Err)

	// one student outside the class aborts the whole promotion
	err = svc.PromoteStudents(ctx, academics.PromotionInput{FromClassroomID: jss1.ID, StudentIDs: []string{a.ID, c.ID}, Target: jss2.ID})
	assert.True(t, core.IsIntegrity(err))
	st, err := svc.GetStudent(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, jss1.ID, st.ClassroomID.String)

	require.NoError(t, svc.PromoteStudents(ctx, academics.PromotionInput{FromClassroomID: jss1.ID, StudentIDs: []string{a.ID}, Target: jss2.ID}))
	st, err = svc.GetStudent(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, jss2.ID, st.ClassroomID.String)

	require.NoError(t, svc.PromoteStudents(ctx, academics.PromotionInput{FromClassroomID: jss1.ID, StudentIDs: []string{b.ID}, Target: academics.GraduateTarget}))
	st, err = svc.GetStudent(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, st.Graduated)
	assert.False(t, st.ClassroomID.Valid)

	graduated := true
	students, err := svc.QueryStudents(ctx, academics.StudentFilter{Graduated: &graduated})
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, studentIDs(students))
}

func Test_service_AssignStudentsToSubject(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	class := testutil.CreateClassroom(t, acaRepo, "JSS 1")
	other := testutil.CreateClassroom(t, acaRepo, "JSS 2")
	subject := testutil.CreateSubject(t, acaRepo, "English")
	teacherUsr := testutil.CreateTeacher(t, usrRepo, acaRepo, "Mr Uche")
	teacher := testutil.Actor(t, teacherUsr)
	outsider := testutil.Actor(t, testutil.CreateTeacher(t, usrRepo, acaRepo, "Mrs Oke"))
	admin := testutil.Actor(t, testutil.CreateAdmin(t, usrRepo, "Admin"))

	a := testutil.CreateStudent(t, usrRepo, acaRepo, "Ade", class.ID)
	b := testutil.CreateStudent(t, usrRepo, acaRepo, "Bola", class.ID)
	c := testutil.CreateStudent(t, usrRepo, acaRepo, "Chuka", class.ID)
	x := testutil.CreateStudent(t, usrRepo, acaRepo, "Xavier", other.ID)

	_, err := svc.Assign(ctx, academics.AssignmentInput{TeacherID: teacherUsr.ID, ClassroomID: class.ID, SubjectID: subject.ID})
	require.NoError(t, err)
	_, err = svc.Assign(ctx, academics.AssignmentInput{TeacherID: teacherUsr.ID, ClassroomID: class.ID, SubjectID: subject.ID})
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, academics.ErrAssignmentExists, vErr.Err)

	enroll := func(act user.Actor, ids ...string) ([]academics.Student, error) {
		return svc.AssignStudentsToSubject(ctx, act, academics.EnrollmentInput{ClassroomID: class.ID, SubjectID: subject.ID, StudentIDs: ids})
	}

	students, err := enroll(teacher, a.ID, b.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, studentIDs(students))

	// replaces the previous list
	students, err = enroll(admin, b.ID, c.ID, c.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{b.ID, c.ID}, studentIDs(students))

	_, err = enroll(outsider, a.ID)
	assert.True(t, core.IsUnauthorized(err))

	_, err = enroll(teacher, a.ID, x.ID)
	assert.True(t, core.IsIntegrity(err))
	students, err = svc.EnrolledStudents(ctx, class.ID, subject.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{b.ID, c.ID}, studentIDs(students), "failed replace keeps the old list")

	students, err = enroll(teacher)
	require.NoError(t, err)
	assert.Empty(t, students)

	dash, err := svc.AdminDashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, academics.AdminDashboard{Students: 4, Teachers: 2, Classes: 2, Subjects: 1}, dash)
}
