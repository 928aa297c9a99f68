package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/library"
	"github.com/trezcool/shule/core/user"
)

type libraryApi struct {
	svc      library.Service
	validate *validator.Validate
}

func registerLibraryAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc library.Service, validate *validator.Validate) {
	api := libraryApi{svc: svc, validate: validate}
	librarian := roleMiddleware(user.KindAdmin, user.KindLibrarian)

	lg := g.Group("/library", authed...)
	lg.GET("/books", api.queryBooks)
	lg.POST("/books", api.addBook, librarian)
	lg.GET("/books/:id", api.retrieveBook)
	lg.PUT("/books/:id", api.updateBook, librarian)
	lg.DELETE("/books/:id", api.destroyBook, librarian)

	lg.POST("/borrow", api.borrow, librarian)
	lg.POST("/records/:id/return", api.giveBack, librarian)
	lg.GET("/records", api.records, librarian)
	lg.GET("/me", withActor(api.myRecords), roleMiddleware(user.KindStudent))
	lg.POST("/notify-overdue", api.notifyOverdue, librarian)
}

func (api *libraryApi) queryBooks(ctx echo.Context) error {
	filter := new(library.BookFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []library.Book{})
	}
	filter.Clean()
	books, err := api.svc.QueryBooks(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying books")
	}
	if books == nil {
		books = []library.Book{}
	}
	return ctx.JSON(http.StatusOK, books)
}

func (api *libraryApi) addBook(ctx echo.Context) error {
	var data library.BookInput
	if err := bindValid(ctx, &data, api.validate, "BookInput"); err != nil {
		return err
	}
	b, err := api.svc.AddBook(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "adding book")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *libraryApi) retrieveBook(ctx echo.Context) error {
	b, err := api.svc.GetBook(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting book")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *libraryApi) updateBook(ctx echo.Context) error {
	var data library.BookInput
	if err := bindValid(ctx, &data, api.validate, "BookInput"); err != nil {
		return err
	}
	b, err := api.svc.UpdateBook(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating book")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *libraryApi) destroyBook(ctx echo.Context) error {
	if err := api.svc.DeleteBook(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting book")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *libraryApi) borrow(ctx echo.Context) error {
	var data library.BorrowInput
	if err := bindValid(ctx, &data, api.validate, "BorrowInput"); err != nil {
		return err
	}
	rec, err := api.svc.Borrow(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "borrowing book")
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *libraryApi) giveBack(ctx echo.Context) error {
	rec, err := api.svc.Return(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "returning book")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *libraryApi) history(ctx echo.Context, filter library.RecordFilter) error {
	records, err := api.svc.History(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying borrow records")
	}
	if records == nil {
		records = []library.BorrowRecord{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *libraryApi) records(ctx echo.Context) error {
	filter := new(library.RecordFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to RecordFilter")
	}
	return api.history(ctx, *filter)
}

func (api *libraryApi) myRecords(ctx echo.Context, act user.Actor) error {
	return api.history(ctx, library.RecordFilter{StudentID: act.User().ID})
}

func (api *libraryApi) notifyOverdue(ctx echo.Context) error {
	n, err := api.svc.NotifyOverdue(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "notifying overdue borrowers")
	}
	return ctx.JSON(http.StatusOK, countResponse{Count: n})
}
