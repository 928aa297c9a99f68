package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/academics"
	"github.com/trezcool/shule/core/user"
)

type academicsApi struct {
	svc      academics.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerAcademicsAPI(
	g *echo.Group,
	authed []echo.MiddlewareFunc,
	svc academics.Service,
	usrSvc user.Service,
	validate *validator.Validate,
) {
	api := academicsApi{svc: svc, usrSvc: usrSvc, validate: validate}
	admin := adminMiddleware()
	staff := roleMiddleware(user.KindAdmin, user.KindTeacher)

	ag := g.Group("/academics", authed...)

	ag.GET("/classrooms", api.queryClassrooms)
	ag.POST("/classrooms", api.createClassroom, admin)
	ag.GET("/classrooms/:id", api.retrieveClassroom)
	ag.PUT("/classrooms/:id", api.updateClassroom, admin)
	ag.DELETE("/classrooms/:id", api.destroyClassroom, admin)

	ag.GET("/subjects", api.querySubjects)
	ag.POST("/subjects", api.createSubject, admin)
	ag.GET("/subjects/:id", api.retrieveSubject)
	ag.PUT("/subjects/:id", api.updateSubject, admin)
	ag.DELETE("/subjects/:id", api.destroySubject, admin)

	ag.GET("/sessions", api.querySessions)
	ag.POST("/sessions", api.createSession, admin)
	ag.GET("/sessions/current", api.currentSession)
	ag.POST("/sessions/:id/set-current", api.setCurrentSession, admin)

	ag.GET("/terms", api.queryTerms)
	ag.POST("/terms", api.createTerm, admin)
	ag.GET("/terms/current", api.currentTerm)
	ag.POST("/terms/:id/set-current", api.setCurrentTerm, admin)

	ag.GET("/students", api.queryStudents, staff)
	ag.POST("/students", api.createStudent, admin)
	ag.POST("/students/promote", api.promoteStudents, admin)
	ag.GET("/students/:id", api.retrieveStudent, staff)
	ag.PUT("/students/:id", api.updateStudent, admin)

	ag.GET("/teachers", api.queryTeachers, admin)
	ag.POST("/teachers", api.createTeacher, admin)
	ag.GET("/teachers/:id", api.retrieveTeacher, admin)
	ag.PUT("/teachers/:id", api.updateTeacher, admin)

	ag.GET("/assignments", api.queryAssignments, staff)
	ag.POST("/assignments", api.assign, admin)
	ag.DELETE("/assignments/:id", api.unassign, admin)

	ag.GET("/enrollments", api.enrolledStudents, staff)
	ag.PUT("/enrollments", api.enroll, staff)
}

// Classrooms

func (api *academicsApi) queryClassrooms(ctx echo.Context) error {
	classes, err := api.svc.QueryClassrooms(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying classrooms")
	}
	if classes == nil {
		classes = []academics.Classroom{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *academicsApi) createClassroom(ctx echo.Context) error {
	var data academics.NameInput
	if err := bindValid(ctx, &data, api.validate, "NameInput"); err != nil {
		return err
	}
	class, err := api.svc.CreateClassroom(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating classroom")
	}
	return ctx.JSON(http.StatusCreated, class)
}

func (api *academicsApi) retrieveClassroom(ctx echo.Context) error {
	class, err := api.svc.GetClassroom(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting classroom")
	}
	return ctx.JSON(http.StatusOK, class)
}

func (api *academicsApi) updateClassroom(ctx echo.Context) error {
	var data academics.NameInput
	if err := bindValid(ctx, &data, api.validate, "NameInput"); err != nil {
		return err
	}
	class, err := api.svc.UpdateClassroom(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating classroom")
	}
	return ctx.JSON(http.StatusOK, class)
}

func (api *academicsApi) destroyClassroom(ctx echo.Context) error {
	if err := api.svc.DeleteClassroom(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting classroom")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Subjects

func (api *academicsApi) querySubjects(ctx echo.Context) error {
	subjects, err := api.svc.QuerySubjects(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if subjects == nil {
		subjects = []academics.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *academicsApi) createSubject(ctx echo.Context) error {
	var data academics.NameInput
	if err := bindValid(ctx, &data, api.validate, "NameInput"); err != nil {
		return err
	}
	subject, err := api.svc.CreateSubject(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, subject)
}

func (api *academicsApi) retrieveSubject(ctx echo.Context) error {
	subject, err := api.svc.GetSubject(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting subject")
	}
	return ctx.JSON(http.StatusOK, subject)
}

func (api *academicsApi) updateSubject(ctx echo.Context) error {
	var data academics.NameInput
	if err := bindValid(ctx, &data, api.validate, "NameInput"); err != nil {
		return err
	}
	subject, err := api.svc.UpdateSubject(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating subject")
	}
	return ctx.JSON(http.StatusOK, subject)
}

func (api *academicsApi) destroySubject(ctx echo.Context) error {
	if err := api.svc.DeleteSubject(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Sessions & Terms

func (api *academicsApi) querySessions(ctx echo.Context) error {
	sessions, err := api.svc.QuerySessions(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	if sessions == nil {
		sessions = []academics.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *academicsApi) createSession(ctx echo.Context) error {
	var data academics.NameInput
	if err := bindValid(ctx, &data, api.validate, "NameInput"); err != nil {
		return err
	}
	sess, err := api.svc.CreateSession(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating session")
	}
	return ctx.JSON(http.StatusCreated, sess)
}

func (api *academicsApi) currentSession(ctx echo.Context) error {
	sess, err := api.svc.CurrentSession(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting current session")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *academicsApi) setCurrentSession(ctx echo.Context) error {
	sess, err := api.svc.SetCurrentSession(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "setting current session")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *academicsApi) queryTerms(ctx echo.Context) error {
	terms, err := api.svc.QueryTerms(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying terms")
	}
	if terms == nil {
		terms = []academics.Term{}
	}
	return ctx.JSON(http.StatusOK, terms)
}

func (api *academicsApi) createTerm(ctx echo.Context) error {
	var data academics.NameInput
	if err := bindValid(ctx, &data, api.validate, "NameInput"); err != nil {
		return err
	}
	term, err := api.svc.CreateTerm(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating term")
	}
	return ctx.JSON(http.StatusCreated, term)
}

func (api *academicsApi) currentTerm(ctx echo.Context) error {
	term, err := api.svc.CurrentTerm(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting current term")
	}
	return ctx.JSON(http.StatusOK, term)
}

func (api *academicsApi) setCurrentTerm(ctx echo.Context) error {
	term, err := api.svc.SetCurrentTerm(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "setting current term")
	}
	return ctx.JSON(http.StatusOK, term)
}

// Students

type (
	newStudentRequest struct {
		UserID string `json:"user_id" validate:"required"`
		academics.StudentProfileInput
	}

	newTeacherRequest struct {
		UserID string `json:"user_id" validate:"required"`
		academics.TeacherProfileInput
	}
)

func (r *newStudentRequest) Validate(validate *validator.Validate) error {
	if err := r.StudentProfileInput.Validate(validate); err != nil {
		return err
	}
	return validate.Var(r.UserID, "required")
}

func (r *newTeacherRequest) Validate(validate *validator.Validate) error {
	if err := r.TeacherProfileInput.Validate(validate); err != nil {
		return err
	}
	return validate.Var(r.UserID, "required")
}

func (api *academicsApi) queryStudents(ctx echo.Context) error {
	filter := new(academics.StudentFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []academics.Student{})
	}
	filter.Clean()
	students, err := api.svc.QueryStudents(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []academics.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *academicsApi) profileUser(id string) (user.User, error) {
	usr, err := api.usrSvc.GetByID(id)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	return usr, nil
}

func (api *academicsApi) createStudent(ctx echo.Context) error {
	var data newStudentRequest
	if err := bindValid(ctx, &data, api.validate, "newStudentRequest"); err != nil {
		return err
	}
	usr, err := api.profileUser(data.UserID)
	if err != nil {
		return err
	}
	st, err := api.svc.CreateStudent(ctx.Request().Context(), usr, data.StudentProfileInput)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, st)
}

func (api *academicsApi) retrieveStudent(ctx echo.Context) error {
	st, err := api.svc.GetStudent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *academicsApi) updateStudent(ctx echo.Context) error {
	var data academics.StudentProfileInput
	if err := bindValid(ctx, &data, api.validate, "StudentProfileInput"); err != nil {
		return err
	}
	st, err := api.svc.UpdateStudent(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *academicsApi) promoteStudents(ctx echo.Context) error {
	var data academics.PromotionInput
	if err := bindValid(ctx, &data, api.validate, "PromotionInput"); err != nil {
		return err
	}
	if err := api.svc.PromoteStudents(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "promoting students")
	}
	return ctx.JSON(http.StatusOK, countResponse{Count: len(data.StudentIDs)})
}

// Teachers

func (api *academicsApi) queryTeachers(ctx echo.Context) error {
	teachers, err := api.svc.QueryTeachers(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	if teachers == nil {
		teachers = []academics.Teacher{}
	}
	return ctx.JSON(http.StatusOK, teachers)
}

func (api *academicsApi) createTeacher(ctx echo.Context) error {
	var data newTeacherRequest
	if err := bindValid(ctx, &data, api.validate, "newTeacherRequest"); err != nil {
		return err
	}
	usr, err := api.profileUser(data.UserID)
	if err != nil {
		return err
	}
	tc, err := api.svc.CreateTeacher(ctx.Request().Context(), usr, data.TeacherProfileInput)
	if err != nil {
		return errors.Wrap(err, "creating teacher")
	}
	return ctx.JSON(http.StatusCreated, tc)
}

func (api *academicsApi) retrieveTeacher(ctx echo.Context) error {
	tc, err := api.svc.GetTeacher(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting teacher")
	}
	return ctx.JSON(http.StatusOK, tc)
}

func (api *academicsApi) updateTeacher(ctx echo.Context) error {
	var data academics.TeacherProfileInput
	if err := bindValid(ctx, &data, api.validate, "TeacherProfileInput"); err != nil {
		return err
	}
	tc, err := api.svc.UpdateTeacher(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating teacher")
	}
	return ctx.JSON(http.StatusOK, tc)
}

// Assignments & Enrollments

func (api *academicsApi) queryAssignments(ctx echo.Context) error {
	filter := new(academics.AssignmentFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []academics.ClassAssignment{})
	}
	// teachers only see their own assignments
	if act, err := getContextActor(ctx); err == nil && !act.Privileged() {
		filter.TeacherID = act.User().ID
	}
	assignments, err := api.svc.QueryAssignments(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if assignments == nil {
		assignments = []academics.ClassAssignment{}
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *academicsApi) assign(ctx echo.Context) error {
	var data academics.AssignmentInput
	if err := bindValid(ctx, &data, api.validate, "AssignmentInput"); err != nil {
		return err
	}
	a, err := api.svc.Assign(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "assigning teacher")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *academicsApi) unassign(ctx echo.Context) error {
	if err := api.svc.Unassign(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "unassigning teacher")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *academicsApi) enrolledStudents(ctx echo.Context) error {
	students, err := api.svc.EnrolledStudents(ctx.Request().Context(), ctx.QueryParam("classroom_id"), ctx.QueryParam("subject_id"))
	if err != nil {
		return errors.Wrap(err, "querying enrolled students")
	}
	if students == nil {
		students = []academics.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *academicsApi) enroll(ctx echo.Context) error {
	act, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data academics.EnrollmentInput
	if err = bindValid(ctx, &data, api.validate, "EnrollmentInput"); err != nil {
		return err
	}
	students, err := api.svc.AssignStudentsToSubject(ctx.Request().Context(), act, data)
	if err != nil {
		return errors.Wrap(err, "enrolling students")
	}
	if students == nil {
		students = []academics.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}
