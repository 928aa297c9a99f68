package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academics"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/storage/database"
)

// NewConfig returns the app config pointed at a private in-memory sqlite database.
func NewConfig() *core.Config {
	conf := core.NewConfig()
	conf.TestMode = true
	conf.Database.Engine = database.EngineSqlite
	conf.Database.SqliteDSN = "file:" + uuid.New().String() +
		"?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	return conf
}

// PrepareDB opens a fresh, migrated database that is closed when t ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conf := NewConfig()
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db, conf.Database.Engine); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func username(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", ""))
}

// CreateStudent creates a student user and their profile in classroomID (none when empty).
func CreateStudent(t *testing.T, usrRepo user.Repository, repo academics.Repository, name, classroomID string) user.User {
	t.Helper()
	uname := username(name)
	usr := CreateUser(t, usrRepo, name, uname, uname+"@test.cd", "", []string{user.RoleStudent}, true)
	st := academics.Student{UserID: usr.ID, ClassroomID: null.NewString(classroomID, classroomID != "")}
	if err := repo.CreateStudent(context.Background(), st); err != nil {
		t.Fatalf("createStudent() failed: %v", err)
	}
	return usr
}

// CreateTeacher creates a teacher user and their profile.
func CreateTeacher(t *testing.T, usrRepo user.Repository, repo academics.Repository, name string) user.User {
	t.Helper()
	uname := username(name)
	usr := CreateUser(t, usrRepo, name, uname, uname+"@test.cd", "", []string{user.RoleTeacher}, true)
	if err := repo.CreateTeacher(context.Background(), academics.Teacher{UserID: usr.ID, Gender: "F", Phone: "0800"}); err != nil {
		t.Fatalf("createTeacher() failed: %v", err)
	}
	return usr
}

func CreateAdmin(t *testing.T, usrRepo user.Repository, name string) user.User {
	t.Helper()
	uname := username(name)
	return CreateUser(t, usrRepo, name, uname, uname+"@test.cd", "", []string{user.RoleAdmin}, true)
}

func CreateClassroom(t *testing.T, repo academics.Repository, name string) academics.Classroom {
	t.Helper()
	c := academics.Classroom{ID: uuid.New().String(), Name: name}
	if err := repo.CreateClassroom(context.Background(), c); err != nil {
		t.Fatalf("createClassroom() failed: %v", err)
	}
	return c
}

func CreateSubject(t *testing.T, repo academics.Repository, name string) academics.Subject {
	t.Helper()
	s := academics.Subject{ID: uuid.New().String(), Name: name}
	if err := repo.CreateSubject(context.Background(), s); err != nil {
		t.Fatalf("createSubject() failed: %v", err)
	}
	return s
}

func CreateSession(t *testing.T, repo academics.Repository, name string) academics.Session {
	t.Helper()
	s := academics.Session{ID: uuid.New().String(), Name: name}
	if err := repo.CreateSession(context.Background(), s); err != nil {
		t.Fatalf("createSession() failed: %v", err)
	}
	return s
}

func CreateTerm(t *testing.T, repo academics.Repository, name string) academics.Term {
	t.Helper()
	term := academics.Term{ID: uuid.New().String(), Name: name}
	if err := repo.CreateTerm(context.Background(), term); err != nil {
		t.Fatalf("createTerm() failed: %v", err)
	}
	return term
}

func Assign(t *testing.T, repo academics.Repository, teacherID, classroomID, subjectID string) academics.ClassAssignment {
	t.Helper()
	a := academics.ClassAssignment{ID: uuid.New().String(), TeacherID: teacherID, ClassroomID: classroomID, SubjectID: subjectID}
	if err := repo.CreateAssignment(context.Background(), a); err != nil {
		t.Fatalf("assign() failed: %v", err)
	}
	return a
}

func Enroll(t *testing.T, repo academics.Repository, classroomID, subjectID string, studentIDs ...string) {
	t.Helper()
	enrollments := make([]academics.Enrollment, 0, len(studentIDs))
	for _, id := range studentIDs {
		enrollments = append(enrollments, academics.Enrollment{StudentID: id, SubjectID: subjectID, ClassroomID: classroomID})
	}
	if err := repo.CreateEnrollments(context.Background(), enrollments); err != nil {
		t.Fatalf("enroll() failed: %v", err)
	}
}

// Actor returns the Actor of usr, failing t when usr has no role.
func Actor(t *testing.T, usr user.User) user.Actor {
	t.Helper()
	act, ok := user.ActorFor(usr)
	if !ok {
		t.Fatalf("Actor(): user %s has no role", usr.ID)
	}
	return act
}
