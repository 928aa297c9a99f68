package academics

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

var (
	// errors
	ErrClassroomNotFound  = core.NewNotFoundError("classroom")
	ErrSubjectNotFound    = core.NewNotFoundError("subject")
	ErrSessionNotFound    = core.NewNotFoundError("session")
	ErrTermNotFound       = core.NewNotFoundError("term")
	ErrStudentNotFound    = core.NewNotFoundError("student")
	ErrTeacherNotFound    = core.NewNotFoundError("teacher")
	ErrAssignmentNotFound = core.NewNotFoundError("class assignment")

	ErrClassroomExists  = errors.New("a class with this name already exists")
	ErrSessionExists    = errors.New("a session with this name already exists")
	ErrTermExists       = errors.New("a term with this name already exists")
	ErrProfileExists    = errors.New("user already has a profile")
	ErrAssignmentExists = errors.New("this teacher is already assigned to this subject in this class")
	ErrSameClass        = errors.New("you cannot promote students to the same class")
)

type (
	Repository interface {
		CreateClassroom(ctx context.Context, c Classroom, exec ...core.DBExecutor) error
		UpdateClassroom(ctx context.Context, c Classroom, exec ...core.DBExecutor) error
		DeleteClassroom(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetClassroom(ctx context.Context, id string, exec ...core.DBExecutor) (Classroom, error)
		QueryClassrooms(ctx context.Context, exec ...core.DBExecutor) ([]Classroom, error)

		CreateSubject(ctx context.Context, s Subject, exec ...core.DBExecutor) error
		UpdateSubject(ctx context.Context, s Subject, exec ...core.DBExecutor) error
		DeleteSubject(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetSubject(ctx context.Context, id string, exec ...core.DBExecutor) (Subject, error)
		QuerySubjects(ctx context.Context, exec ...core.DBExecutor) ([]Subject, error)

		CreateSession(ctx context.Context, s Session, exec ...core.DBExecutor) error
		GetSession(ctx context.Context, id string, exec ...core.DBExecutor) (Session, error)
		GetSessionByName(ctx context.Context, name string, exec ...core.DBExecutor) (Session, error)
		GetCurrentSession(ctx context.Context, exec ...core.DBExecutor) (Session, error)
		QuerySessions(ctx context.Context, exec ...core.DBExecutor) ([]Session, error)
		// SetCurrentSession clears the current flag on every session, then sets it on id.
		SetCurrentSession(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateTerm(ctx context.Context, t Term, exec ...core.DBExecutor) error
		GetTerm(ctx context.Context, id string, exec ...core.DBExecutor) (Term, error)
		GetTermByName(ctx context.Context, name string, exec ...core.DBExecutor) (Term, error)
		GetCurrentTerm(ctx context.Context, exec ...core.DBExecutor) (Term, error)
		QueryTerms(ctx context.Context, exec ...core.DBExecutor) ([]Term, error)
		SetCurrentTerm(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) error
		UpdateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) error
		GetStudent(ctx context.Context, userID string, exec ...core.DBExecutor) (Student, error)
		QueryStudents(ctx context.Context, filter StudentFilter, exec ...core.DBExecutor) ([]Student, error)
		// MoveStudents sets the classroom (and graduated flag) of every student in ids.
		MoveStudents(ctx context.Context, ids []string, classroomID null.String, graduated bool, exec ...core.DBExecutor) error

		CreateTeacher(ctx context.Context, t Teacher, exec ...core.DBExecutor) error
		UpdateTeacher(ctx context.Context, t Teacher, exec ...core.DBExecutor) error
		GetTeacher(ctx context.Context, userID string, exec ...core.DBExecutor) (Teacher, error)
		QueryTeachers(ctx context.Context, exec ...core.DBExecutor) ([]Teacher, error)

		CreateAssignment(ctx context.Context, a ClassAssignment, exec ...core.DBExecutor) error
		DeleteAssignment(ctx context.Context, id string, exec ...core.DBExecutor) error
		QueryAssignments(ctx context.Context, filter AssignmentFilter, exec ...core.DBExecutor) ([]ClassAssignment, error)

		DeleteEnrollments(ctx context.Context, classroomID, subjectID string, exec ...core.DBExecutor) error
		CreateEnrollments(ctx context.Context, enrollments []Enrollment, exec ...core.DBExecutor) error
		EnrolledStudents(ctx context.Context, classroomID, subjectID string, exec ...core.DBExecutor) ([]Student, error)

		Counts(ctx context.Context, exec ...core.DBExecutor) (AdminDashboard, error)
	}

	Service interface {
		CreateClassroom(ctx context.Context, in NameInput) (Classroom, error)
		UpdateClassroom(ctx context.Context, id string, in NameInput) (Classroom, error)
		DeleteClassroom(ctx context.Context, id string) error
		GetClassroom(ctx context.Context, id string) (Classroom, error)
		QueryClassrooms(ctx context.Context) ([]Classroom, error)

		CreateSubject(ctx context.Context, in NameInput) (Subject, error)
		UpdateSubject(ctx context.Context, id string, in NameInput) (Subject, error)
		DeleteSubject(ctx context.Context, id string) error
		GetSubject(ctx context.Context, id string) (Subject, error)
		QuerySubjects(ctx context.Context) ([]Subject, error)

		CreateSession(ctx context.Context, in NameInput) (Session, error)
		GetSession(ctx context.Context, id string) (Session, error)
		GetSessionByName(ctx context.Context, name string) (Session, error)
		CurrentSession(ctx context.Context) (Session, error)
		QuerySessions(ctx context.Context) ([]Session, error)
		SetCurrentSession(ctx context.Context, id string) (Session, error)

		CreateTerm(ctx context.Context, in NameInput) (Term, error)
		GetTerm(ctx context.Context, id string) (Term, error)
		GetTermByName(ctx context.Context, name string) (Term, error)
		CurrentTerm(ctx context.Context) (Term, error)
		QueryTerms(ctx context.Context) ([]Term, error)
		SetCurrentTerm(ctx context.Context, id string) (Term, error)

		CreateStudent(ctx context.Context, usr user.User, in StudentProfileInput) (Student, error)
		UpdateStudent(ctx context.Context, userID string, in StudentProfileInput) (Student, error)
		GetStudent(ctx context.Context, userID string) (Student, error)
		QueryStudents(ctx context.Context, filter StudentFilter) ([]Student, error)
		PromoteStudents(ctx context.Context, in PromotionInput) error

		CreateTeacher(ctx context.Context, usr user.User, in TeacherProfileInput) (Teacher, error)
		UpdateTeacher(ctx context.Context, userID string, in TeacherProfileInput) (Teacher, error)
		GetTeacher(ctx context.Context, userID string) (Teacher, error)
		QueryTeachers(ctx context.Context) ([]Teacher, error)

		Assign(ctx context.Context, in AssignmentInput) (ClassAssignment, error)
		Unassign(ctx context.Context, id string) error
		QueryAssignments(ctx context.Context, filter AssignmentFilter) ([]ClassAssignment, error)
		// CanTeach reports whether act may manage the subject in the classroom: admins always may,
		// teachers only with a matching ClassAssignment.
		CanTeach(ctx context.Context, act user.Actor, classroomID, subjectID string) (bool, error)

		AssignStudentsToSubject(ctx context.Context, act user.Actor, in EnrollmentInput) ([]Student, error)
		EnrolledStudents(ctx context.Context, classroomID, subjectID string) ([]Student, error)

		AdminDashboard(ctx context.Context) (AdminDashboard, error)
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

func newID() string { return uuid.New().String() }

func nameTaken(err error, field string) error {
	return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
}

// Classrooms

func (svc *service) CreateClassroom(ctx context.Context, in NameInput) (Classroom, error) {
	c := Classroom{ID: newID(), Name: in.Name}
	if err := svc.repo.CreateClassroom(ctx, c); err != nil {
		if errors.Cause(err) == ErrClassroomExists {
			return Classroom{}, nameTaken(ErrClassroomExists, "name")
		}
		return Classroom{}, errors.Wrap(err, "creating classroom")
	}
	return c, nil
}

func (svc *service) UpdateClassroom(ctx context.Context, id string, in NameInput) (Classroom, error) {
	c := Classroom{ID: id, Name: in.Name}
	if err := svc.repo.UpdateClassroom(ctx, c); err != nil {
		if errors.Cause(err) == ErrClassroomExists {
			return Classroom{}, nameTaken(ErrClassroomExists, "name")
		}
		return Classroom{}, err
	}
	return c, nil
}

func (svc *service) DeleteClassroom(ctx context.Context, id string) error {
	return svc.repo.DeleteClassroom(ctx, id)
}

func (svc *service) GetClassroom(ctx context.Context, id string) (Classroom, error) {
	return svc.repo.GetClassroom(ctx, id)
}

func (svc *service) QueryClassrooms(ctx context.Context) ([]Classroom, error) {
	return svc.repo.QueryClassrooms(ctx)
}

// Subjects

func (svc *service) CreateSubject(ctx context.Context, in NameInput) (Subject, error) {
	s := Subject{ID: newID(), Name: in.Name}
	if err := svc.repo.CreateSubject(ctx, s); err != nil {
		return Subject{}, errors.Wrap(err, "creating subject")
	}
	return s, nil
}

func (svc *service) UpdateSubject(ctx context.Context, id string, in NameInput) (Subject, error) {
	s := Subject{ID: id, Name: in.Name}
	if err := svc.repo.UpdateSubject(ctx, s); err != nil {
		return Subject{}, err
	}
	return s, nil
}

func (svc *service) DeleteSubject(ctx context.Context, id string) error {
	return svc.repo.DeleteSubject(ctx, id)
}

func (svc *service) GetSubject(ctx context.Context, id string) (Subject, error) {
	return svc.repo.GetSubject(ctx, id)
}

func (svc *service) QuerySubjects(ctx context.Context) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx)
}

// Sessions & Terms

func (svc *service) CreateSession(ctx context.Context, in NameInput) (Session, error) {
	s := Session{ID: newID(), Name: in.Name}
	if err := svc.repo.CreateSession(ctx, s); err != nil {
		if errors.Cause(err) == ErrSessionExists {
			return Session{}, nameTaken(ErrSessionExists, "name")
		}
		return Session{}, errors.Wrap(err, "creating session")
	}
	return s, nil
}

func (svc *service) GetSession(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSession(ctx, id)
}

func (svc *service) GetSessionByName(ctx context.Context, name string) (Session, error) {
	return svc.repo.GetSessionByName(ctx, core.CleanString(name))
}

func (svc *service) CurrentSession(ctx context.Context) (Session, error) {
	return svc.repo.GetCurrentSession(ctx)
}

func (svc *service) QuerySessions(ctx context.Context) ([]Session, error) {
	return svc.repo.QuerySessions(ctx)
}

func (svc *service) SetCurrentSession(ctx context.Context, id string) (Session, error) {
	var sess Session
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if sess, err = svc.repo.GetSession(ctx, id, tx); err != nil {
			return err
		}
		return svc.repo.SetCurrentSession(ctx, id, tx)
	})
	if err != nil {
		return Session{}, err
	}
	sess.IsCurrent = true
	return sess, nil
}

func (svc *service) CreateTerm(ctx context.Context, in NameInput) (Term, error) {
	t := Term{ID: newID(), Name: in.Name}
	if err := svc.repo.CreateTerm(ctx, t); err != nil {
		if errors.Cause(err) == ErrTermExists {
			return Term{}, nameTaken(ErrTermExists, "name")
		}
		return Term{}, errors.Wrap(err, "creating term")
	}
	return t, nil
}

func (svc *service) GetTerm(ctx context.Context, id string) (Term, error) {
	return svc.repo.GetTerm(ctx, id)
}

func (svc *service) GetTermByName(ctx context.Context, name string) (Term, error) {
	return svc.repo.GetTermByName(ctx, core.CleanString(name))
}

func (svc *service) CurrentTerm(ctx context.Context) (Term, error) {
	return svc.repo.GetCurrentTerm(ctx)
}

func (svc *service) QueryTerms(ctx context.Context) ([]Term, error) {
	return svc.repo.QueryTerms(ctx)
}

func (svc *service) SetCurrentTerm(ctx context.Context, id string) (Term, error) {
	var term Term
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if term, err = svc.repo.GetTerm(ctx, id, tx); err != nil {
			return err
		}
		return svc.repo.SetCurrentTerm(ctx, id, tx)
	})
	if err != nil {
		return Term{}, err
	}
	term.IsCurrent = true
	return term, nil
}

// Students

func (svc *service) checkStudentRefs(ctx context.Context, in StudentProfileInput, exec core.DBExecutor) error {
	if in.ClassroomID != "" {
		if _, err := svc.repo.GetClassroom(ctx, in.ClassroomID, exec); err != nil {
			return err
		}
	}
	if in.SessionID != "" {
		if _, err := svc.repo.GetSession(ctx, in.SessionID, exec); err != nil {
			return err
		}
	}
	return nil
}

func (svc *service) CreateStudent(ctx context.Context, usr user.User, in StudentProfileInput) (Student, error) {
	if !usr.IsStudent() {
		return Student{}, core.NewValidationError(errors.New("user is not a student"))
	}
	var st Student
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.checkStudentRefs(ctx, in, tx); err != nil {
			return err
		}
		st = Student{
			UserID:      usr.ID,
			Name:        usr.Name,
			Username:    usr.Username,
			Email:       usr.Email,
			ClassroomID: null.NewString(in.ClassroomID, in.ClassroomID != ""),
			SessionID:   null.NewString(in.SessionID, in.SessionID != ""),
			Gender:      in.Gender,
			DateOfBirth: null.NewTime(in.DateOfBirth.UTC(), !in.DateOfBirth.IsZero()),
			Address:     in.Address,
		}
		if err := svc.repo.CreateStudent(ctx, st, tx); err != nil {
			if errors.Cause(err) == ErrProfileExists {
				return core.NewValidationError(ErrProfileExists)
			}
			return errors.Wrap(err, "creating student profile")
		}
		return nil
	})
	if err != nil {
		return Student{}, err
	}
	return st, nil
}

func (svc *service) UpdateStudent(ctx context.Context, userID string, in StudentProfileInput) (Student, error) {
	var st Student
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if st, err = svc.repo.GetStudent(ctx, userID, tx); err != nil {
			return err
		}
		if err = svc.checkStudentRefs(ctx, in, tx); err != nil {
			return err
		}
		st.ClassroomID = null.NewString(in.ClassroomID, in.ClassroomID != "")
		st.SessionID = null.NewString(in.SessionID, in.SessionID != "")
		st.Gender = in.Gender
		st.DateOfBirth = null.NewTime(in.DateOfBirth.UTC(), !in.DateOfBirth.IsZero())
		st.Address = in.Address
		return svc.repo.UpdateStudent(ctx, st, tx)
	})
	if err != nil {
		return Student{}, err
	}
	return st, nil
}

func (svc *service) GetStudent(ctx context.Context, userID string) (Student, error) {
	return svc.repo.GetStudent(ctx, userID)
}

func (svc *service) QueryStudents(ctx context.Context, filter StudentFilter) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, filter)
}

// PromoteStudents moves the selected students of a classroom to the target classroom,
// or graduates them. All students are moved or none is.
func (svc *service) PromoteStudents(ctx context.Context, in PromotionInput) error {
	if in.Target == in.FromClassroomID {
		return core.NewValidationError(ErrSameClass, core.FieldError{Field: "target", Error: ErrSameClass.Error()})
	}

	return core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if _, err := svc.repo.GetClassroom(ctx, in.FromClassroomID, tx); err != nil {
			return err
		}
		for _, id := range in.StudentIDs {
			st, err := svc.repo.GetStudent(ctx, id, tx)
			if err != nil {
				return err
			}
			if st.ClassroomID.String != in.FromClassroomID {
				return core.NewIntegrityError("student " + st.UserID + " is not in the class being promoted")
			}
		}

		if in.Target == GraduateTarget {
			return svc.repo.MoveStudents(ctx, in.StudentIDs, null.String{}, true, tx)
		}
		if _, err := svc.repo.GetClassroom(ctx, in.Target, tx); err != nil {
			return err
		}
		return svc.repo.MoveStudents(ctx, in.StudentIDs, null.StringFrom(in.Target), false, tx)
	})
}

// Teachers

func (svc *service) CreateTeacher(ctx context.Context, usr user.User, in TeacherProfileInput) (Teacher, error) {
	if !usr.IsTeacher() {
		return Teacher{}, core.NewValidationError(errors.New("user is not a teacher"))
	}
	t := Teacher{
		UserID:     usr.ID,
		Name:       usr.Name,
		Username:   usr.Username,
		Email:      usr.Email,
		Gender:     in.Gender,
		Phone:      in.Phone,
		Address:    in.Address,
		Department: in.Department,
	}
	if err := svc.repo.CreateTeacher(ctx, t); err != nil {
		if errors.Cause(err) == ErrProfileExists {
			return Teacher{}, core.NewValidationError(ErrProfileExists)
		}
		return Teacher{}, errors.Wrap(err, "creating teacher profile")
	}
	return t, nil
}

func (svc *service) UpdateTeacher(ctx context.Context, userID string, in TeacherProfileInput) (Teacher, error) {
	var t Teacher
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if t, err = svc.repo.GetTeacher(ctx, userID, tx); err != nil {
			return err
		}
		t.Gender = in.Gender
		t.Phone = in.Phone
		t.Address = in.Address
		t.Department = in.Department
		return svc.repo.UpdateTeacher(ctx, t, tx)
	})
	if err != nil {
		return Teacher{}, err
	}
	return t, nil
}

func (svc *service) GetTeacher(ctx context.Context, userID string) (Teacher, error) {
	return svc.repo.GetTeacher(ctx, userID)
}

func (svc *service) QueryTeachers(ctx context.Context) ([]Teacher, error) {
	return svc.repo.QueryTeachers(ctx)
}

// Assignments

func (svc *service) Assign(ctx context.Context, in AssignmentInput) (ClassAssignment, error) {
	a := ClassAssignment{
		ID:          newID(),
		TeacherID:   in.TeacherID,
		ClassroomID: in.ClassroomID,
		SubjectID:   in.SubjectID,
	}
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if _, err := svc.repo.GetTeacher(ctx, in.TeacherID, tx); err != nil {
			return err
		}
		if _, err := svc.repo.GetClassroom(ctx, in.ClassroomID, tx); err != nil {
			return err
		}
		if _, err := svc.repo.GetSubject(ctx, in.SubjectID, tx); err != nil {
			return err
		}
		if err := svc.repo.CreateAssignment(ctx, a, tx); err != nil {
			if errors.Cause(err) == ErrAssignmentExists {
				return core.NewValidationError(ErrAssignmentExists)
			}
			return errors.Wrap(err, "creating class assignment")
		}
		return nil
	})
	if err != nil {
		return ClassAssignment{}, err
	}
	return a, nil
}

func (svc *service) Unassign(ctx context.Context, id string) error {
	return svc.repo.DeleteAssignment(ctx, id)
}

func (svc *service) QueryAssignments(ctx context.Context, filter AssignmentFilter) ([]ClassAssignment, error) {
	return svc.repo.QueryAssignments(ctx, filter)
}

func (svc *service) CanTeach(ctx context.Context, act user.Actor, classroomID, subjectID string) (bool, error) {
	switch act.(type) {
	case user.Admin:
		return true, nil
	case user.Teacher:
		assignments, err := svc.repo.QueryAssignments(ctx, AssignmentFilter{
			TeacherID:   act.User().ID,
			ClassroomID: classroomID,
			SubjectID:   subjectID,
		})
		if err != nil {
			return false, errors.Wrap(err, "querying class assignments")
		}
		return len(assignments) > 0, nil
	}
	return false, nil
}

// Enrollments

// AssignStudentsToSubject replaces the enrollment list of (classroom, subject) with the given students.
func (svc *service) AssignStudentsToSubject(ctx context.Context, act user.Actor, in EnrollmentInput) ([]Student, error) {
	ok, err := svc.CanTeach(ctx, act, in.ClassroomID, in.SubjectID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.ErrUnauthorized
	}

	var students []Student
	err = core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if _, err := svc.repo.GetClassroom(ctx, in.ClassroomID, tx); err != nil {
			return err
		}
		if _, err := svc.repo.GetSubject(ctx, in.SubjectID, tx); err != nil {
			return err
		}

		seen := make(map[string]bool, len(in.StudentIDs))
		enrollments := make([]Enrollment, 0, len(in.StudentIDs))
		for _, id := range in.StudentIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			st, err := svc.repo.GetStudent(ctx, id, tx)
			if err != nil {
				return err
			}
			if st.ClassroomID.String != in.ClassroomID {
				return core.NewIntegrityError("student " + id + " does not belong to this class")
			}
			enrollments = append(enrollments, Enrollment{StudentID: id, SubjectID: in.SubjectID, ClassroomID: in.ClassroomID})
		}

		if err := svc.repo.DeleteEnrollments(ctx, in.ClassroomID, in.SubjectID, tx); err != nil {
			return errors.Wrap(err, "deleting enrollments")
		}
		if err := svc.repo.CreateEnrollments(ctx, enrollments, tx); err != nil {
			return errors.Wrap(err, "creating enrollments")
		}
		var err error
		students, err = svc.repo.EnrolledStudents(ctx, in.ClassroomID, in.SubjectID, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return students, nil
}

func (svc *service) EnrolledStudents(ctx context.Context, classroomID, subjectID string) ([]Student, error) {
	return svc.repo.EnrolledStudents(ctx, classroomID, subjectID)
}

func (svc *service) AdminDashboard(ctx context.Context) (AdminDashboard, error) {
	return svc.repo.Counts(ctx)
}
