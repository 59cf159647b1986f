package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/course"
)

type courseApi struct {
	svc      *course.Service
	validate *validator.Validate
}

func registerCourseAPI(g *echo.Group, session echo.MiddlewareFunc, svc *course.Service, validate *validator.Validate) {
	api := courseApi{
		svc:      svc,
		validate: validate,
	}

	cg := g.Group("/courses", session)
	cg.POST("", api.create, instructorMiddleware())
	cg.GET("", api.query)

	// detail endpoints
	dg := cg.Group("/:courseID")
	dg.GET("", api.retrieve)
	dg.PATCH("", api.update)
	dg.DELETE("", api.destroy)
	dg.POST("/modules", api.addModule)
	dg.POST("/modules/:moduleID/lessons", api.addLesson)

	// student endpoints
	dg.POST("/enroll", api.enroll, studentMiddleware())
	dg.POST("/lessons/:lessonID/complete", api.completeLesson, studentMiddleware())
	dg.GET("/progress", api.progress, studentMiddleware())
}

func (api *courseApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data course.NewCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return respondSuccess(ctx, http.StatusCreated, "Course created.", c)
}

func (api *courseApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var filter course.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return respondData(ctx, []course.Course{})
	}
	filter.Clean()

	courses, err := api.svc.List(ctx.Request().Context(), usr, filter)
	if err != nil {
		return errors.Wrap(err, "listing courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return respondData(ctx, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	details, err := api.svc.Get(ctx.Request().Context(), ctx.Param("courseID"), usr)
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return respondData(ctx, details)
}

func (api *courseApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data course.UpdateCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Update(ctx.Request().Context(), ctx.Param("courseID"), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return respondSuccess(ctx, http.StatusOK, "Course updated.", c)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), ctx.Param("courseID"), usr); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return respondSuccess(ctx, http.StatusOK, "Course deleted.", nil)
}

func (api *courseApi) addModule(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data course.NewModule
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewModule")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.AddModule(ctx.Request().Context(), ctx.Param("courseID"), usr, data)
	if err != nil {
		return errors.Wrap(err, "adding module")
	}
	return respondSuccess(ctx, http.StatusCreated, "Module added.", m)
}

func (api *courseApi) addLesson(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data course.NewLesson
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLesson")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	l, err := api.svc.AddLesson(ctx.Request().Context(), ctx.Param("courseID"), ctx.Param("moduleID"), usr, data)
	if err != nil {
		return errors.Wrap(err, "adding lesson")
	}
	return respondSuccess(ctx, http.StatusCreated, "Lesson added.", l)
}

func (api *courseApi) enroll(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	e, err := api.svc.Enroll(ctx.Request().Context(), ctx.Param("courseID"), usr)
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return respondSuccess(ctx, http.StatusCreated, "Enrolled.", e)
}

func (api *courseApi) completeLesson(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.CompleteLesson(ctx.Request().Context(), ctx.Param("courseID"), ctx.Param("lessonID"), usr.ID)
	if err != nil {
		return errors.Wrap(err, "completing lesson")
	}
	return respondSuccess(ctx, http.StatusOK, "Lesson completed.", p)
}

func (api *courseApi) progress(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.Progress(ctx.Request().Context(), ctx.Param("courseID"), usr.ID)
	if err != nil {
		return errors.Wrap(err, "getting progress")
	}
	return respondData(ctx, p)
}
