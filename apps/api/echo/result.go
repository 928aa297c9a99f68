package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/result"
	"github.com/trezcool/shule/core/user"
)

type resultApi struct {
	svc      result.Service
	validate *validator.Validate
}

type lockResponse struct {
	Outcome result.LockOutcome `json:"outcome"`
}

func registerResultAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc result.Service, validate *validator.Validate) {
	api := resultApi{svc: svc, validate: validate}
	staff := roleMiddleware(user.KindAdmin, user.KindTeacher)

	rg := g.Group("/results", authed...)
	rg.POST("/upload", api.upload, staff)
	rg.POST("/lock-toggle", api.toggleLock, adminMiddleware())
	rg.GET("/class", api.classResults, staff)
	rg.GET("/teacher", api.teacherResults, roleMiddleware(user.KindTeacher))
	rg.GET("/me", api.myResults, roleMiddleware(user.KindStudent))
	rg.GET("/students/:id", api.studentReport, staff)
	rg.PUT("/:id", api.adminEdit, adminMiddleware())
}

func (api *resultApi) upload(ctx echo.Context) error {
	act, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data result.UploadInput
	if err = bindValid(ctx, &data, api.validate, "UploadInput"); err != nil {
		return err
	}
	records, err := api.svc.Upload(ctx.Request().Context(), act, data)
	if err != nil {
		return errors.Wrap(err, "uploading results")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *resultApi) adminEdit(ctx echo.Context) error {
	act, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data result.EditInput
	if err = bindValid(ctx, &data, api.validate, "EditInput"); err != nil {
		return err
	}
	rec, err := api.svc.AdminEdit(ctx.Request().Context(), act, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "editing result")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *resultApi) toggleLock(ctx echo.Context) error {
	act, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data result.Scope
	if err = bindValid(ctx, &data, api.validate, "Scope"); err != nil {
		return err
	}
	outcome, err := api.svc.ToggleLock(ctx.Request().Context(), act, data)
	if err != nil {
		return errors.Wrap(err, "toggling lock")
	}
	return ctx.JSON(http.StatusOK, lockResponse{Outcome: outcome})
}

func (api *resultApi) classResults(ctx echo.Context) error {
	var scope result.Scope
	if err := bindValid(ctx, &scope, api.validate, "Scope"); err != nil {
		return err
	}
	records, err := api.svc.ClassResults(ctx.Request().Context(), scope)
	if err != nil {
		return errors.Wrap(err, "querying class results")
	}
	if records == nil {
		records = []result.ScoreRecord{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *resultApi) teacherResults(ctx echo.Context) error {
	act, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var filter result.ReportFilter
	if err = bindValid(ctx, &filter, api.validate, "ReportFilter"); err != nil {
		return err
	}
	records, err := api.svc.TeacherResults(ctx.Request().Context(), act, filter)
	if err != nil {
		return errors.Wrap(err, "querying teacher results")
	}
	if records == nil {
		records = []result.ScoreRecord{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *resultApi) report(ctx echo.Context, studentID string) error {
	var filter result.ReportFilter
	if err := bindValid(ctx, &filter, api.validate, "ReportFilter"); err != nil {
		return err
	}
	report, err := api.svc.StudentReport(ctx.Request().Context(), studentID, filter)
	if err != nil {
		return errors.Wrap(err, "building student report")
	}
	if report.Results == nil {
		report.Results = []result.ScoreRecord{}
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *resultApi) studentReport(ctx echo.Context) error {
	return api.report(ctx, ctx.Param("id"))
}

func (api *resultApi) myResults(ctx echo.Context) error {
	act, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	return api.report(ctx, act.User().ID)
}
