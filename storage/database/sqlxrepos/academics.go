package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academics"
	"github.com/trezcool/shule/storage/database"
)

const (
	studentSelect = `
		SELECT sp.user_id, u.name, COALESCE(u.username, '') AS username, COALESCE(u.email, '') AS email,
			sp.classroom_id, sp.session_id, sp.gender, sp.date_of_birth, sp.address, sp.graduated
		FROM student_profiles sp JOIN users u ON u.id = sp.user_id`

	teacherSelect = `
		SELECT tp.user_id, u.name, COALESCE(u.username, '') AS username, COALESCE(u.email, '') AS email,
			tp.gender, tp.phone, tp.address, tp.department
		FROM teacher_profiles tp JOIN users u ON u.id = tp.user_id`
)

type academicsRepository struct {
	baseRepository
}

var _ academics.Repository = (*academicsRepository)(nil) // interface compliance check

func NewAcademicsRepository(exec core.DBExecutor) *academicsRepository {
	return &academicsRepository{baseRepository{exec: exec}}
}

// Classrooms

func (repo academicsRepository) CreateClassroom(ctx context.Context, c academics.Classroom, exec ...core.DBExecutor) error {
	_, err := execute(ctx, repo.getExec(exec), "INSERT INTO classrooms (id, name) VALUES (?, ?)", c.ID, c.Name)
	if database.IsUniqueViolation(err) {
		return academics.ErrClassroomExists
	}
	return errors.Wrap(err, "inserting classroom")
}

func (repo academicsRepository) UpdateClassroom(ctx context.Context, c academics.Classroom, exec ...core.DBExecutor) error {
	res, err := execute(ctx, repo.getExec(exec), "UPDATE classrooms SET name = ? WHERE id = ?", c.Name, c.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return academics.ErrClassroomExists
		}
		return errors.Wrap(err, "updating classroom")
	}
	return mustAffect(res, academics.ErrClassroomNotFound)
}

func (repo academicsRepository) DeleteClassroom(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := execute(ctx, repo.getExec(exec), "DELETE FROM classrooms WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting classroom")
	}
	return mustAffect(res, academics.ErrClassroomNotFound)
}

func (repo academicsRepository) GetClassroom(ctx context.Context, id string, exec ...core.DBExecutor) (academics.Classroom, error) {
	var c academics.Classroom
	if err := get(ctx, repo.getExec(exec), &c, "SELECT id, name FROM classrooms WHERE id = ?", id); err != nil {
		return academics.Classroom{}, trapNoRows(err, academics.ErrClassroomNotFound, "getting classroom")
	}
	return c, nil
}

func (repo academicsRepository) QueryClassrooms(ctx context.Context, exec ...core.DBExecutor) ([]academics.Classroom, error) {
	classrooms := make([]academics.Classroom, 0)
	if err := selectAll(ctx, repo.getExec(exec), &classrooms, "SELECT id, name FROM classrooms ORDER BY name"); err != nil {
		return nil, errors.Wrap(err, "querying classrooms")
	}
	return classrooms, nil
}

// Subjects

func (repo academicsRepository) CreateSubject(ctx context.Context, s academics.Subject, exec ...core.DBExecutor) error {
	_, err := execute(ctx, repo.getExec(exec), "INSERT INTO subjects (id, name) VALUES (?, ?)", s.ID, s.Name)
	return errors.Wrap(err, "inserting subject")
}

func (repo academicsRepository) UpdateSubject(ctx context.Context, s academics.Subject, exec ...core.DBExecutor) error {
	res, err := execute(ctx, repo.getExec(exec), "UPDATE subjects SET name = ? WHERE id = ?", s.Name, s.ID)
	if err != nil {
		return errors.Wrap(err, "updating subject")
	}
	return mustAffect(res, academics.ErrSubjectNotFound)
}

func (repo academicsRepository) DeleteSubject(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := execute(ctx, repo.getExec(exec), "DELETE FROM subjects WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return mustAffect(res, academics.ErrSubjectNotFound)
}

func (repo academicsRepository) GetSubject(ctx context.Context, id string, exec ...core.DBExecutor) (academics.Subject, error) {
	var s academics.Subject
	if err := get(ctx, repo.getExec(exec), &s, "SELECT id, name FROM subjects WHERE id = ?", id); err != nil {
		return academics.Subject{}, trapNoRows(err, academics.ErrSubjectNotFound, "getting subject")
	}
	return s, nil
}

func (repo academicsRepository) QuerySubjects(ctx context.Context, exec ...core.DBExecutor) ([]academics.Subject, error) {
	subjects := make([]academics.Subject, 0)
	if err := selectAll(ctx, repo.getExec(exec), &subjects, "SELECT id, name FROM subjects ORDER BY name"); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	return subjects, nil
}

// Sessions & Terms share their table layout.

func (repo academicsRepository) createPeriod(ctx context.Context, table, id, name string, exists error, exec []core.DBExecutor) error {
	_, err := execute(ctx, repo.getExec(exec), "INSERT INTO "+table+" (id, name, is_current) VALUES (?, ?, ?)", id, name, false)
	if database.IsUniqueViolation(err) {
		return exists
	}
	return errors.Wrap(err, "inserting into "+table)
}

func (repo academicsRepository) getPeriod(ctx context.Context, table, cond string, arg interface{}, dest interface{}, notFound error, exec []core.DBExecutor) error {
	q := "SELECT id, name, is_current FROM " + table + " WHERE " + cond
	if arg == nil {
		return trapNoRows(get(ctx, repo.getExec(exec), dest, q), notFound, "getting from "+table)
	}
	return trapNoRows(get(ctx, repo.getExec(exec), dest, q, arg), notFound, "getting from "+table)
}

// setCurrentPeriod clears the current flag of every row of table, then sets it on id.
func (repo academicsRepository) setCurrentPeriod(ctx context.Context, table, id string, notFound error, exec []core.DBExecutor) error {
	e := repo.getExec(exec)
	if _, err := execute(ctx, e, "UPDATE "+table+" SET is_current = ? WHERE is_current = ?", false, true); err != nil {
		return errors.Wrap(err, "clearing current "+table)
	}
	res, err := execute(ctx, e, "UPDATE "+table+" SET is_current = ? WHERE id = ?", true, id)
	if err != nil {
		return errors.Wrap(err, "setting current "+table)
	}
	return mustAffect(res, notFound)
}

func (repo academicsRepository) CreateSession(ctx context.Context, s academics.Session, exec ...core.DBExecutor) error {
	return repo.createPeriod(ctx, "sessions", s.ID, s.Name, academics.ErrSessionExists, exec)
}

func (repo academicsRepository) GetSession(ctx context.Context, id string, exec ...core.DBExecutor) (academics.Session, error) {
	var s academics.Session
	err := repo.getPeriod(ctx, "sessions", "id = ?", id, &s, academics.ErrSessionNotFound, exec)
	return s, err
}

func (repo academicsRepository) GetSessionByName(ctx context.Context, name string, exec ...core.DBExecutor) (academics.Session, error) {
	var s academics.Session
	err := repo.getPeriod(ctx, "sessions", "name = ?", name, &s, academics.ErrSessionNotFound, exec)
	return s, err
}

func (repo academicsRepository) GetCurrentSession(ctx context.Context, exec ...core.DBExecutor) (academics.Session, error) {
	var s academics.Session
	err := repo.getPeriod(ctx, "sessions", "is_current = TRUE", nil, &s, academics.ErrSessionNotFound, exec)
	return s, err
}

func (repo academicsRepository) QuerySessions(ctx context.Context, exec ...core.DBExecutor) ([]academics.Session, error) {
	sessions := make([]academics.Session, 0)
	if err := selectAll(ctx, repo.getExec(exec), &sessions, "SELECT id, name, is_current FROM sessions ORDER BY name DESC"); err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	return sessions, nil
}

func (repo academicsRepository) SetCurrentSession(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return repo.setCurrentPeriod(ctx, "sessions", id, academics.ErrSessionNotFound, exec)
}

func (repo academicsRepository) CreateTerm(ctx context.Context, t academics.Term, exec ...core.DBExecutor) error {
	return repo.createPeriod(ctx, "terms", t.ID, t.Name, academics.ErrTermExists, exec)
}

func (repo academicsRepository) GetTerm(ctx context.Context, id string, exec ...core.DBExecutor) (academics.Term, error) {
	var t academics.Term
	err := repo.getPeriod(ctx, "terms", "id = ?", id, &t, academics.ErrTermNotFound, exec)
	return t, err
}

func (repo academicsRepository) GetTermByName(ctx context.Context, name string, exec ...core.DBExecutor) (academics.Term, error) {
	var t academics.Term
	err := repo.getPeriod(ctx, "terms", "name = ?", name, &t, academics.ErrTermNotFound, exec)
	return t, err
}

func (repo academicsRepository) GetCurrentTerm(ctx context.Context, exec ...core.DBExecutor) (academics.Term, error) {
	var t academics.Term
	err := repo.getPeriod(ctx, "terms", "is_current = TRUE", nil, &t, academics.ErrTermNotFound, exec)
	return t, err
}

func (repo academicsRepository) QueryTerms(ctx context.Context, exec ...core.DBExecutor) ([]academics.Term, error) {
	terms := make([]academics.Term, 0)
	if err := selectAll(ctx, repo.getExec(exec), &terms, "SELECT id, name, is_current FROM terms ORDER BY name"); err != nil {
		return nil, errors.Wrap(err, "querying terms")
	}
	return terms, nil
}

func (repo academicsRepository) SetCurrentTerm(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return repo.setCurrentPeriod(ctx, "terms", id, academics.ErrTermNotFound, exec)
}

// Students

func dateOfBirth(t null.Time) null.Time {
	if !t.Valid {
		return t
	}
	return null.TimeFrom(utc(t.Time))
}

func (repo academicsRepository) CreateStudent(ctx context.Context, s academics.Student, exec ...core.DBExecutor) error {
	_, err := execute(ctx, repo.getExec(exec), `
		INSERT INTO student_profiles (user_id, classroom_id, session_id, gender, date_of_birth, address, graduated)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.UserID, s.ClassroomID, s.SessionID, s.Gender, dateOfBirth(s.DateOfBirth), s.Address, s.Graduated,
	)
	if database.IsUniqueViolation(err) {
		return academics.ErrProfileExists
	}
	if err != nil {
		return trapIntegrity(err, "inserting student profile")
	}
	return nil
}

func (repo academicsRepository) UpdateStudent(ctx context.Context, s academics.Student, exec ...core.DBExecutor) error {
	res, err := execute(ctx, repo.getExec(exec), `
		UPDATE student_profiles SET classroom_id = ?, session_id = ?, gender = ?, date_of_birth = ?, address = ?, graduated = ?
		WHERE user_id = ?`,
		s.ClassroomID, s.SessionID, s.Gender, dateOfBirth(s.DateOfBirth), s.Address, s.Graduated, s.UserID,
	)
	if err != nil {
		return trapIntegrity(err, "updating student profile")
	}
	return mustAffect(res, academics.ErrStudentNotFound)
}

func (repo academicsRepository) GetStudent(ctx context.Context, userID string, exec ...core.DBExecutor) (academics.Student, error) {
	var s academics.Student
	if err := get(ctx, repo.getExec(exec), &s, studentSelect+" WHERE sp.user_id = ?", userID); err != nil {
		return academics.Student{}, trapNoRows(err, academics.ErrStudentNotFound, "getting student")
	}
	return s, nil
}

func (repo academicsRepository) QueryStudents(ctx context.Context, filter academics.StudentFilter, exec ...core.DBExecutor) ([]academics.Student, error) {
	var (
		w    where
		args []interface{}
	)
	if filter.Search != "" {
		val := likeArg(filter.Search)
		w = append(w, "(lower(u.name) LIKE ? OR lower(u.username) LIKE ? OR lower(u.email) LIKE ?)")
		args = append(args, val, val, val)
	}
	if filter.ClassroomID != "" {
		w = append(w, "sp.classroom_id = ?")
		args = append(args, filter.ClassroomID)
	}
	if filter.Graduated != nil {
		w = append(w, "sp.graduated = ?")
		args = append(args, *filter.Graduated)
	}

	students := make([]academics.Student, 0)
	if err := selectAll(ctx, repo.getExec(exec), &students, studentSelect+w.String()+" ORDER BY u.name", args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	return students, nil
}

func (repo academicsRepository) MoveStudents(ctx context.Context, ids []string, classroomID null.String, graduated bool, exec ...core.DBExecutor) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := executeIn(ctx, repo.getExec(exec),
		"UPDATE student_profiles SET classroom_id = ?, graduated = ? WHERE user_id IN (?)",
		classroomID, graduated, ids,
	)
	return errors.Wrap(err, "moving students")
}

// Teachers

func (repo academicsRepository) CreateTeacher(ctx context.Context, t academics.Teacher, exec ...core.DBExecutor) error {
	_, err := execute(ctx, repo.getExec(exec), `
		INSERT INTO teacher_profiles (user_id, gender, phone, address, department) VALUES (?, ?, ?, ?, ?)`,
		t.UserID, t.Gender, t.Phone, t.Address, t.Department,
	)
	if database.IsUniqueViolation(err) {
		return academics.ErrProfileExists
	}
	if err != nil {
		return trapIntegrity(err, "inserting teacher profile")
	}
	return nil
}

func (repo academicsRepository) UpdateTeacher(ctx context.Context, t academics.Teacher, exec ...core.DBExecutor) error {
	res, err := execute(ctx, repo.getExec(exec), `
		UPDATE teacher_profiles SET gender = ?, phone = ?, address = ?, department = ? WHERE user_id = ?`,
		t.Gender, t.Phone, t.Address, t.Department, t.UserID,
	)
	if err != nil {
		return errors.Wrap(err, "updating teacher profile")
	}
	return mustAffect(res, academics.ErrTeacherNotFound)
}

func (repo academicsRepository) GetTeacher(ctx context.Context, userID string, exec ...core.DBExecutor) (academics.Teacher, error) {
	var t academics.Teacher
	if err := get(ctx, repo.getExec(exec), &t, teacherSelect+" WHERE tp.user_id = ?", userID); err != nil {
		return academics.Teacher{}, trapNoRows(err, academics.ErrTeacherNotFound, "getting teacher")
	}
	return t, nil
}

func (repo academicsRepository) QueryTeachers(ctx context.Context, exec ...core.DBExecutor) ([]academics.Teacher, error) {
	teachers := make([]academics.Teacher, 0)
	if err := selectAll(ctx, repo.getExec(exec), &teachers, teacherSelect+" ORDER BY u.name"); err != nil {
		return nil, errors.Wrap(err, "querying teachers")
	}
	return teachers, nil
}

// Assignments

func (repo academicsRepository) CreateAssignment(ctx context.Context, a academics.ClassAssignment, exec ...core.DBExecutor) error {
	_, err := execute(ctx, repo.getExec(exec),
		"INSERT INTO class_assignments (id, teacher_id, classroom_id, subject_id) VALUES (?, ?, ?, ?)",
		a.ID, a.TeacherID, a.ClassroomID, a.SubjectID,
	)
	if database.IsUniqueViolation(err) {
		return academics.ErrAssignmentExists
	}
	if err != nil {
		return trapIntegrity(err, "inserting class assignment")
	}
	return nil
}

func (repo academicsRepository) DeleteAssignment(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := execute(ctx, repo.getExec(exec), "DELETE FROM class_assignments WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting class assignment")
	}
	return mustAffect(res, academics.ErrAssignmentNotFound)
}

func (repo academicsRepository) QueryAssignments(ctx context.Context, filter academics.AssignmentFilter, exec ...core.DBExecutor) ([]academics.ClassAssignment, error) {
	var (
		w    where
		args []interface{}
	)
	if filter.TeacherID != "" {
		w = append(w, "teacher_id = ?")
		args = append(args, filter.TeacherID)
	}
	if filter.ClassroomID != "" {
		w = append(w, "classroom_id = ?")
		args = append(args, filter.ClassroomID)
	}
	if filter.SubjectID != "" {
		w = append(w, "subject_id = ?")
		args = append(args, filter.SubjectID)
	}

	assignments := make([]academics.ClassAssignment, 0)
	q := "SELECT id, teacher_id, classroom_id, subject_id FROM class_assignments" + w.String() + " ORDER BY classroom_id, subject_id"
	if err := selectAll(ctx, repo.getExec(exec), &assignments, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying class assignments")
	}
	return assignments, nil
}

// Enrollments

func (repo academicsRepository) DeleteEnrollments(ctx context.Context, classroomID, subjectID string, exec ...core.DBExecutor) error {
	_, err := execute(ctx, repo.getExec(exec),
		"DELETE FROM enrollments WHERE classroom_id = ? AND subject_id = ?", classroomID, subjectID)
	return errors.Wrap(err, "deleting enrollments")
}

func (repo academicsRepository) CreateEnrollments(ctx context.Context, enrollments []academics.Enrollment, exec ...core.DBExecutor) error {
	e := repo.getExec(exec)
	for _, en := range enrollments {
		_, err := execute(ctx, e,
			"INSERT INTO enrollments (student_id, subject_id, classroom_id) VALUES (?, ?, ?)",
			en.StudentID, en.SubjectID, en.ClassroomID,
		)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return core.NewIntegrityError("student " + en.StudentID + " is already enrolled")
			}
			return trapIntegrity(err, "inserting enrollment")
		}
	}
	return nil
}

func (repo academicsRepository) EnrolledStudents(ctx context.Context, classroomID, subjectID string, exec ...core.DBExecutor) ([]academics.Student, error) {
	students := make([]academics.Student, 0)
	q := studentSelect + `
		JOIN enrollments en ON en.student_id = sp.user_id
		WHERE en.classroom_id = ? AND en.subject_id = ?
		ORDER BY u.name`
	if err := selectAll(ctx, repo.getExec(exec), &students, q, classroomID, subjectID); err != nil {
		return nil, errors.Wrap(err, "querying enrolled students")
	}
	return students, nil
}

func (repo academicsRepository) Counts(ctx context.Context, exec ...core.DBExecutor) (academics.AdminDashboard, error) {
	var dash academics.AdminDashboard
	e := repo.getExec(exec)
	for _, c := range []struct {
		dest  *int
		table string
	}{
		{&dash.Students, "student_profiles"},
		{&dash.Teachers, "teacher_profiles"},
		{&dash.Classes, "classrooms"},
		{&dash.Subjects, "subjects"},
	} {
		if err := get(ctx, e, c.dest, "SELECT COUNT(*) FROM "+c.table); err != nil {
			return academics.AdminDashboard{}, errors.Wrap(err, "counting "+c.table)
		}
	}
	return dash, nil
}
