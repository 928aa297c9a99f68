package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/academics"
	"github.com/trezcool/shule/core/cbt"
	"github.com/trezcool/shule/core/library"
	"github.com/trezcool/shule/core/user"
)

type dashboardDeps struct {
	academics academics.Service
	cbt       cbt.Service
	library   library.Service
}

type (
	teacherDashboard struct {
		Assignments []academics.ClassAssignment `json:"assignments"`
		Tests       []cbt.Test                  `json:"tests"`
	}

	studentDashboard struct {
		AvailableTests []cbt.Test `json:"available_tests"`
	}
)

func registerDashboardAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps dashboardDeps) {
	g.GET("/dashboard", withActor(deps.dashboard), authed...)
}

// dashboard renders the dashboard of the actor's portal.
func (deps dashboardDeps) dashboard(ctx echo.Context, act user.Actor) error {
	reqCtx := ctx.Request().Context()

	switch act.(type) {
	case user.Admin:
		dash, err := deps.academics.AdminDashboard(reqCtx)
		if err != nil {
			return errors.Wrap(err, "building admin dashboard")
		}
		return ctx.JSON(http.StatusOK, dash)

	case user.Teacher:
		assignments, err := deps.academics.QueryAssignments(reqCtx, academics.AssignmentFilter{TeacherID: act.User().ID})
		if err != nil {
			return errors.Wrap(err, "querying assignments")
		}
		tests, err := deps.cbt.TeacherTests(reqCtx, act)
		if err != nil {
			return errors.Wrap(err, "querying teacher tests")
		}
		dash := teacherDashboard{Assignments: assignments, Tests: tests}
		if dash.Assignments == nil {
			dash.Assignments = []academics.ClassAssignment{}
		}
		if dash.Tests == nil {
			dash.Tests = []cbt.Test{}
		}
		return ctx.JSON(http.StatusOK, dash)

	case user.Librarian:
		dash, err := deps.library.Dashboard(reqCtx)
		if err != nil {
			return errors.Wrap(err, "building library dashboard")
		}
		return ctx.JSON(http.StatusOK, dash)

	case user.Student:
		tests, err := deps.cbt.AvailableTests(reqCtx, act)
		if err != nil {
			return errors.Wrap(err, "querying available tests")
		}
		if tests == nil {
			tests = []cbt.Test{}
		}
		return ctx.JSON(http.StatusOK, studentDashboard{AvailableTests: tests})
	}
	return errHttpForbidden
}
