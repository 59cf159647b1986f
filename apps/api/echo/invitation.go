package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/invitation"
)

type invitationApi struct {
	svc      *invitation.Service
	sessions *sessionManager
	validate *validator.Validate
}

func registerInvitationAPI(
	g *echo.Group,
	_ echo.MiddlewareFunc,
	sessions *sessionManager,
	svc *invitation.Service,
	validate *validator.Validate,
) {
	api := invitationApi{
		svc:      svc,
		sessions: sessions,
		validate: validate,
	}

	// the token is the credential: every endpoint is public
	ig := g.Group("/invitations/:token")
	ig.GET("", api.retrieve)
	ig.POST("/accept", api.accept)
	ig.POST("/reject", api.reject)
}

func (api *invitationApi) retrieve(ctx echo.Context) error {
	details, err := api.svc.Fetch(ctx.Request().Context(), ctx.Param("token"))
	if err != nil {
		return errors.Wrap(err, "fetching invitation")
	}
	return respondData(ctx, details)
}

func (api *invitationApi) accept(ctx echo.Context) error {
	var data invitation.AcceptInvitation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AcceptInvitation")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	accepted, usr, err := api.svc.Accept(ctx.Request().Context(), ctx.Param("token"), data)
	if err != nil {
		return errors.Wrap(err, "accepting invitation")
	}
	if err = api.sessions.startSession(ctx, usr); err != nil {
		return err
	}
	return respondSuccess(ctx, http.StatusOK, "Invitation accepted.", accepted)
}

func (api *invitationApi) reject(ctx echo.Context) error {
	var data invitation.RejectInvitation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RejectInvitation")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	inv, err := api.svc.Reject(ctx.Request().Context(), ctx.Param("token"), data)
	if err != nil {
		return errors.Wrap(err, "rejecting invitation")
	}
	return respondSuccess(ctx, http.StatusOK, "Invitation rejected.", inv)
}
