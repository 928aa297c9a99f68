package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/user"
)

type feeApi struct {
	svc      fee.Service
	validate *validator.Validate
}

func registerFeeAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc fee.Service, validate *validator.Validate) {
	api := feeApi{svc: svc, validate: validate}
	admin := adminMiddleware()

	fg := g.Group("/fees", authed...)
	fg.GET("", api.query, admin)
	fg.POST("", api.create, admin)
	fg.GET("/summary", api.summary, admin)
	fg.GET("/me", withActor(api.myFees), roleMiddleware(user.KindStudent))
	fg.GET("/:id", api.retrieve, admin)
	fg.PUT("/:id", api.update, admin)
	fg.DELETE("/:id", api.destroy, admin)
	fg.POST("/:id/invoice", api.sendInvoice, admin)
}

func (api *feeApi) query(ctx echo.Context) error {
	filter := new(fee.QueryFilter)
	if err := bindValid(ctx, filter, api.validate, "QueryFilter"); err != nil {
		return err
	}
	fees, err := api.svc.Query(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying fees")
	}
	if fees == nil {
		fees = []fee.Fee{}
	}
	return ctx.JSON(http.StatusOK, fees)
}

func (api *feeApi) myFees(ctx echo.Context, act user.Actor) error {
	fees, err := api.svc.Query(ctx.Request().Context(), fee.QueryFilter{StudentID: act.User().ID})
	if err != nil {
		return errors.Wrap(err, "querying fees")
	}
	if fees == nil {
		fees = []fee.Fee{}
	}
	return ctx.JSON(http.StatusOK, fees)
}

func (api *feeApi) create(ctx echo.Context) error {
	var data fee.FeeInput
	if err := bindValid(ctx, &data, api.validate, "FeeInput"); err != nil {
		return err
	}
	f, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating fee")
	}
	return ctx.JSON(http.StatusCreated, f)
}

func (api *feeApi) retrieve(ctx echo.Context) error {
	f, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting fee")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *feeApi) update(ctx echo.Context) error {
	var data fee.FeeInput
	if err := bindValid(ctx, &data, api.validate, "FeeInput"); err != nil {
		return err
	}
	f, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating fee")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *feeApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting fee")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *feeApi) summary(ctx echo.Context) error {
	summaries, err := api.svc.Summary(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "summarizing fees")
	}
	if summaries == nil {
		summaries = []fee.TermSummary{}
	}
	return ctx.JSON(http.StatusOK, summaries)
}

func (api *feeApi) sendInvoice(ctx echo.Context) error {
	if err := api.svc.SendInvoice(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "sending invoice")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Invoice sent."})
}
