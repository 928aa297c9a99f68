package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/cbt"
	"github.com/trezcool/shule/core/user"
)

type cbtApi struct {
	svc      cbt.Service
	validate *validator.Validate
}

func registerCBTAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc cbt.Service, validate *validator.Validate) {
	api := cbtApi{svc: svc, validate: validate}
	staff := roleMiddleware(user.KindAdmin, user.KindTeacher)
	student := roleMiddleware(user.KindStudent)

	cg := g.Group("/cbt", authed...)

	// teacher portal
	cg.GET("/tests", withActor(api.teacherTests), staff)
	cg.POST("/tests", withActor(api.createTest), staff)
	cg.PUT("/tests/:id", withActor(api.updateTest), staff)
	cg.DELETE("/tests/:id", withActor(api.destroyTest), staff)
	cg.POST("/tests/:id/activate", withActor(api.activateTest), staff)
	cg.GET("/tests/:id/questions", withActor(api.questions), staff)
	cg.POST("/tests/:id/questions", withActor(api.addQuestion), staff)
	cg.GET("/tests/:id/results", withActor(api.testResults), staff)
	cg.PUT("/questions/:id", withActor(api.updateQuestion), staff)
	cg.DELETE("/questions/:id", withActor(api.destroyQuestion), staff)

	// student portal
	cg.GET("/available", withActor(api.availableTests), student)
	cg.GET("/tests/:id/start", withActor(api.startTest), student)
	cg.POST("/tests/:id/submit", withActor(api.submit), student)
	cg.GET("/submissions", withActor(api.submissions), student)
	cg.GET("/submissions/:id", withActor(api.submissionResult), student)
}

func (api *cbtApi) teacherTests(ctx echo.Context, act user.Actor) error {
	tests, err := api.svc.TeacherTests(ctx.Request().Context(), act)
	if err != nil {
		return errors.Wrap(err, "querying teacher tests")
	}
	if tests == nil {
		tests = []cbt.Test{}
	}
	return ctx.JSON(http.StatusOK, tests)
}

func (api *cbtApi) createTest(ctx echo.Context, act user.Actor) error {
	var data cbt.TestInput
	if err := bindValid(ctx, &data, api.validate, "TestInput"); err != nil {
		return err
	}
	test, err := api.svc.CreateTest(ctx.Request().Context(), act, data)
	if err != nil {
		return errors.Wrap(err, "creating test")
	}
	return ctx.JSON(http.StatusCreated, test)
}

func (api *cbtApi) updateTest(ctx echo.Context, act user.Actor) error {
	var data cbt.TestInput
	if err := bindValid(ctx, &data, api.validate, "TestInput"); err != nil {
		return err
	}
	test, err := api.svc.UpdateTest(ctx.Request().Context(), act, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating test")
	}
	return ctx.JSON(http.StatusOK, test)
}

func (api *cbtApi) destroyTest(ctx echo.Context, act user.Actor) error {
	if err := api.svc.DeleteTest(ctx.Request().Context(), act, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting test")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *cbtApi) activateTest(ctx echo.Context, act user.Actor) error {
	test, err := api.svc.ActivateTest(ctx.Request().Context(), act, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "activating test")
	}
	return ctx.JSON(http.StatusOK, test)
}

func (api *cbtApi) questions(ctx echo.Context, act user.Actor) error {
	questions, err := api.svc.Questions(ctx.Request().Context(), act, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying questions")
	}
	if questions == nil {
		questions = []cbt.Question{}
	}
	return ctx.JSON(http.StatusOK, questions)
}

func (api *cbtApi) addQuestion(ctx echo.Context, act user.Actor) error {
	var data cbt.QuestionInput
	if err := bindValid(ctx, &data, api.validate, "QuestionInput"); err != nil {
		return err
	}
	q, err := api.svc.AddQuestion(ctx.Request().Context(), act, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding question")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *cbtApi) updateQuestion(ctx echo.Context, act user.Actor) error {
	var data cbt.QuestionInput
	if err := bindValid(ctx, &data, api.validate, "QuestionInput"); err != nil {
		return err
	}
	q, err := api.svc.UpdateQuestion(ctx.Request().Context(), act, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating question")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *cbtApi) destroyQuestion(ctx echo.Context, act user.Actor) error {
	if err := api.svc.DeleteQuestion(ctx.Request().Context(), act, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *cbtApi) testResults(ctx echo.Context, act user.Actor) error {
	results, err := api.svc.TestResults(ctx.Request().Context(), act, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "ranking test results")
	}
	if results == nil {
		results = []cbt.SubmissionResult{}
	}
	return ctx.JSON(http.StatusOK, results)
}

func (api *cbtApi) availableTests(ctx echo.Context, act user.Actor) error {
	tests, err := api.svc.AvailableTests(ctx.Request().Context(), act)
	if err != nil {
		return errors.Wrap(err, "querying available tests")
	}
	if tests == nil {
		tests = []cbt.Test{}
	}
	return ctx.JSON(http.StatusOK, tests)
}

func (api *cbtApi) startTest(ctx echo.Context, act user.Actor) error {
	paper, err := api.svc.StartTest(ctx.Request().Context(), act, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "starting test")
	}
	return ctx.JSON(http.StatusOK, paper)
}

func (api *cbtApi) submit(ctx echo.Context, act user.Actor) error {
	var data cbt.SubmitInput
	if err := bindValid(ctx, &data, api.validate, "SubmitInput"); err != nil {
		return err
	}
	res, err := api.svc.Submit(ctx.Request().Context(), act, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "submitting test")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *cbtApi) submissions(ctx echo.Context, act user.Actor) error {
	subs, err := api.svc.StudentSubmissions(ctx.Request().Context(), act)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []cbt.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *cbtApi) submissionResult(ctx echo.Context, act user.Actor) error {
	res, err := api.svc.SubmissionResult(ctx.Request().Context(), act, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting submission result")
	}
	return ctx.JSON(http.StatusOK, res)
}
