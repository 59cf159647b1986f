package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/dashboard"
	"github.com/trezcool/academia/core/export"
)

type dashboardApi struct {
	svc *dashboard.Service
}

func registerDashboardAPI(g *echo.Group, session echo.MiddlewareFunc, svc *dashboard.Service) {
	api := dashboardApi{svc: svc}

	dg := g.Group("/dashboard", session)
	dg.GET("/student", api.student, studentMiddleware())
	dg.GET("/instructor", api.instructor, instructorMiddleware())
}

func (api *dashboardApi) student(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	dash, err := api.svc.StudentDashboard(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "building student dashboard")
	}
	return respondData(ctx, dash)
}

func (api *dashboardApi) instructor(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	dash, err := api.svc.InstructorDashboard(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "building instructor dashboard")
	}
	return respondData(ctx, dash)
}

type exportApi struct {
	svc      *export.Service
	validate *validator.Validate
}

func registerExportAPI(g *echo.Group, session echo.MiddlewareFunc, svc *export.Service, validate *validator.Validate) {
	api := exportApi{
		svc:      svc,
		validate: validate,
	}
	g.GET("/export", api.export, session)
}

func (api *exportApi) export(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var req export.Request
	if err = ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to export Request")
	}
	if err = req.Validate(api.validate); err != nil {
		return err
	}

	file, err := api.svc.Export(ctx.Request().Context(), usr, req)
	if err != nil {
		return errors.Wrap(err, "exporting")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file.Filename))
	return ctx.Blob(http.StatusOK, file.ContentType, file.Content)
}
