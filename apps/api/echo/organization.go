package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/invitation"
	"github.com/trezcool/academia/core/organization"
)

type organizationApi struct {
	svc        *organization.Service
	invitesSvc *invitation.Service
	validate   *validator.Validate
}

func registerOrganizationAPI(
	g *echo.Group,
	session echo.MiddlewareFunc,
	svc *organization.Service,
	invitesSvc *invitation.Service,
	validate *validator.Validate,
) {
	api := organizationApi{
		svc:        svc,
		invitesSvc: invitesSvc,
		validate:   validate,
	}

	// membership and ownership are checked by the services
	og := g.Group("/organizations", session)
	og.POST("", api.create)
	og.GET("", api.query)

	dg := og.Group("/:orgID")
	dg.GET("", api.retrieve)
	dg.PATCH("", api.update)

	dg.GET("/members", api.queryMembers)
	dg.PATCH("/members/:memberID", api.updateMember)
	dg.DELETE("/members/:memberID", api.destroyMember)

	dg.GET("/teams", api.queryTeams)
	dg.POST("/teams", api.createTeam)
	dg.GET("/teams/:teamID/members", api.queryTeamMembers)
	dg.POST("/teams/:teamID/members", api.addTeamMember)
	dg.DELETE("/teams/:teamID/members/:memberID", api.removeTeamMember)

	dg.GET("/invitations", api.queryInvitations)
	dg.POST("/invitations", api.invite)
	dg.POST("/invitations/:invitationID/resend", api.resendInvitation)
	dg.DELETE("/invitations/:invitationID", api.destroyInvitation)
}

// Organizations

func (api *organizationApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data organization.NewOrganization
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewOrganization")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	org, err := api.svc.Create(ctx.Request().Context(), data, usr.ID)
	if err != nil {
		return errors.Wrap(err, "creating organization")
	}
	return respondSuccess(ctx, http.StatusCreated, "Organization created.", org)
}

func (api *organizationApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	orgs, err := api.svc.ListForUser(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing organizations")
	}
	if orgs == nil {
		orgs = []organization.Organization{}
	}
	return respondData(ctx, orgs)
}

func (api *organizationApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	org, err := api.svc.Get(ctx.Request().Context(), ctx.Param("orgID"), usr.ID)
	if err != nil {
		return errors.Wrap(err, "getting organization")
	}
	return respondData(ctx, org)
}

func (api *organizationApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data organization.UpdateOrganization
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateOrganization")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	org, err := api.svc.Update(ctx.Request().Context(), ctx.Param("orgID"), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating organization")
	}
	return respondSuccess(ctx, http.StatusOK, "Organization updated.", org)
}

// Members

func (api *organizationApi) queryMembers(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var filter organization.MemberFilter
	if err = ctx.Bind(&filter); err != nil {
		return respondData(ctx, []organization.Member{})
	}
	filter.Clean()

	members, err := api.svc.ListMembers(ctx.Request().Context(), ctx.Param("orgID"), usr.ID, filter)
	if err != nil {
		return errors.Wrap(err, "listing members")
	}
	if members == nil {
		members = []organization.Member{}
	}
	return respondData(ctx, members)
}

func (api *organizationApi) updateMember(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data organization.UpdateMember
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMember")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.UpdateMember(ctx.Request().Context(), ctx.Param("orgID"), ctx.Param("memberID"), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating member")
	}
	return respondSuccess(ctx, http.StatusOK, "Member updated.", m)
}

func (api *organizationApi) destroyMember(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.RemoveMember(ctx.Request().Context(), ctx.Param("orgID"), ctx.Param("memberID"), usr.ID); err != nil {
		return errors.Wrap(err, "removing member")
	}
	return respondSuccess(ctx, http.StatusOK, "Member removed.", nil)
}

// Teams

func (api *organizationApi) queryTeams(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	teams, err := api.svc.ListTeams(ctx.Request().Context(), ctx.Param("orgID"), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing teams")
	}
	if teams == nil {
		teams = []organization.Team{}
	}
	return respondData(ctx, teams)
}

func (api *organizationApi) createTeam(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data organization.NewTeam
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeam")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	team, err := api.svc.CreateTeam(ctx.Request().Context(), ctx.Param("orgID"), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating team")
	}
	return respondSuccess(ctx, http.StatusCreated, "Team created.", team)
}

func (api *organizationApi) queryTeamMembers(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	members, err := api.svc.ListTeamMembers(ctx.Request().Context(), ctx.Param("orgID"), ctx.Param("teamID"), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing team members")
	}
	if members == nil {
		members = []organization.TeamMember{}
	}
	return respondData(ctx, members)
}

func (api *organizationApi) addTeamMember(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data organization.NewTeamMember
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeamMember")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	tm, err := api.svc.AddTeamMember(ctx.Request().Context(), ctx.Param("orgID"), ctx.Param("teamID"), usr.ID, data.MemberID)
	if err != nil {
		return errors.Wrap(err, "adding team member")
	}
	return respondSuccess(ctx, http.StatusCreated, "Member added to team.", tm)
}

func (api *organizationApi) removeTeamMember(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	err = api.svc.RemoveTeamMember(ctx.Request().Context(), ctx.Param("orgID"), ctx.Param("teamID"), ctx.Param("memberID"), usr.ID)
	if err != nil {
		return errors.Wrap(err, "removing team member")
	}
	return respondSuccess(ctx, http.StatusOK, "Member removed from team.", nil)
}

// Invitations

func (api *organizationApi) queryInvitations(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var filter invitation.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	if err = filter.Validate(api.validate); err != nil {
		return err
	}

	invs, err := api.invitesSvc.List(ctx.Request().Context(), ctx.Param("orgID"), usr.ID, filter)
	if err != nil {
		return errors.Wrap(err, "listing invitations")
	}
	if invs == nil {
		invs = []invitation.Invitation{}
	}
	return respondData(ctx, invs)
}

func (api *organizationApi) invite(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data invitation.NewInvitation
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewInvitation")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	created, err := api.invitesSvc.Create(ctx.Request().Context(), ctx.Param("orgID"), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating invitation")
	}
	return respondSuccess(ctx, http.StatusCreated, "Invitation sent.", created)
}

func (api *organizationApi) resendInvitation(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	inv, err := api.invitesSvc.Resend(ctx.Request().Context(), ctx.Param("orgID"), ctx.Param("invitationID"), usr.ID)
	if err != nil {
		return errors.Wrap(err, "resending invitation")
	}
	return respondSuccess(ctx, http.StatusOK, "Invitation resent.", inv)
}

func (api *organizationApi) destroyInvitation(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.invitesSvc.Delete(ctx.Request().Context(), ctx.Param("orgID"), ctx.Param("invitationID"), usr.ID); err != nil {
		return errors.Wrap(err, "deleting invitation")
	}
	return respondSuccess(ctx, http.StatusOK, "Invitation deleted.", nil)
}
