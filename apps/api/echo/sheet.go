package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/evalix/core"
	"github.com/trezcool/evalix/core/sheet"
)

type sheetApi struct {
	svc      sheet.ServiceInterface
	validate *validator.Validate
}

func registerSheetAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc sheet.ServiceInterface, validate *validator.Validate) {
	api := sheetApi{
		svc:      svc,
		validate: validate,
	}

	sg := g.Group("/sheets", jwt, teacherMiddleware())
	sg.GET("", api.list)

	pg := sg.Group("/periods/:year/:period")
	pg.GET("", api.get)
	pg.PUT("", api.save)

	sg.GET("/:id", api.retrieve)
	sg.DELETE("/:id", api.destroy, adminMiddleware())
}

// Handlers

func (api *sheetApi) list(ctx echo.Context) error {
	sheets, err := api.svc.ListAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing sheets")
	}
	if sheets == nil {
		sheets = []sheet.Sheet{}
	}
	return ctx.JSON(http.StatusOK, sheets)
}

func (api *sheetApi) get(ctx echo.Context) error {
	year, period, err := bindPeriod(ctx)
	if err != nil {
		return err
	}

	s, err := api.svc.GetSheet(ctx.Request().Context(), year, period)
	if err != nil {
		return errors.Wrap(err, "getting sheet")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *sheetApi) save(ctx echo.Context) error {
	year, period, err := bindPeriod(ctx)
	if err != nil {
		return err
	}

	var data sheet.Payload
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to sheet.Payload")
	}
	data = data.Derive()
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.SaveSheet(ctx.Request().Context(), year, period, data)
	if err != nil {
		return errors.Wrap(err, "saving sheet")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *sheetApi) retrieve(ctx echo.Context) error {
	s, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding sheet by ID")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *sheetApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting sheet")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func bindPeriod(ctx echo.Context) (year, period int, err error) {
	var fields []core.FieldError
	if year, err = strconv.Atoi(ctx.Param("year")); err != nil || year <= 0 {
		fields = append(fields, core.FieldError{Field: "year", Error: "must be a positive number"})
	}
	if period, err = strconv.Atoi(ctx.Param("period")); err != nil || period <= 0 {
		fields = append(fields, core.FieldError{Field: "period", Error: "must be a positive number"})
	}
	if fields != nil {
		return 0, 0, core.NewValidationError(sheet.ErrInvalidPeriod, fields...)
	}
	return year, period, nil
}
