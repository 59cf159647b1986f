package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (prr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	prr.Email = core.CleanString(prr.Email, true /* lower */)
	return validate.Struct(prr)
}

type authApi struct {
	svc      *user.Service
	sessions *sessionManager
	validate *validator.Validate
	logger   core.Logger
}

func registerAuthAPI(
	g *echo.Group,
	session echo.MiddlewareFunc,
	sessions *sessionManager,
	svc *user.Service,
	validate *validator.Validate,
	logger core.Logger,
) {
	api := authApi{
		svc:      svc,
		sessions: sessions,
		validate: validate,
		logger:   logger,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	// TODO: rate limit `/login` & `/password-reset`
	ag.POST("/signup", api.signup)
	ag.POST("/login", api.login)
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag.POST("/logout", api.logout, session)
	ag.GET("/me", api.me, session)
}

func (api *authApi) signup(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}
	if err := user.CheckSignupRole(data.Role); err != nil {
		return err
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	if err = api.sessions.startSession(ctx, usr); err != nil {
		return err
	}
	return respondSuccess(ctx, http.StatusCreated, "Account created.", usr)
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	if err = api.sessions.startSession(ctx, usr); err != nil {
		return err
	}
	return respondSuccess(ctx, http.StatusOK, "Logged in.", usr)
}

func (api *authApi) logout(ctx echo.Context) error {
	if err := api.sessions.endSession(ctx); err != nil {
		return errors.Wrap(err, "ending session")
	}
	return respondSuccess(ctx, http.StatusOK, "Logged out.", nil)
}

func (api *authApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	return respondData(ctx, usr)
}

func (api *authApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email)
	if !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		api.logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return respondSuccess(ctx, http.StatusOK, "If the email address supplied is associated with an active account on this system, "+
		"an email will arrive in your inbox shortly with instructions to reset your password.", nil)
}

func (api *authApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if _, err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return respondSuccess(ctx, http.StatusOK, "Password has been reset with the new password.", nil)
}

type userApi struct {
	svc *user.Service
}

func registerUserAPI(g *echo.Group, session echo.MiddlewareFunc, svc *user.Service) {
	api := userApi{svc: svc}

	ug := g.Group("/users", session, adminMiddleware())
	ug.GET("", api.query)
	ug.GET("/roles", api.queryRoles)
}

func (api *userApi) query(ctx echo.Context) error {
	var filter user.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return respondData(ctx, []user.User{})
	}
	filter.Clean()
	users, err := api.svc.Query(ctx.Request().Context(), filter, queryOrdering(ctx)...)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return respondData(ctx, users)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return respondData(ctx, user.Roles)
}
