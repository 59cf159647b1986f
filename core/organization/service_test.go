package organization_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/organization"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/tests"
)

const pwd = "Pa$$w0rd!"

func TestCreateOrganization(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.UserRepo, "Owner", "owner@acme.test", pwd, user.RoleInstructor, true)

	org := testutil.CreateOrganization(t, env.OrgSvc, owner, "Acme School", "")
	assert.Equal(t, "acme-school", org.Slug)
	assert.Equal(t, organization.TierFree, org.SubscriptionTier)
	assert.Equal(t, organization.TierLimits(organization.TierFree), org.Metadata)
	assert.True(t, org.IsOwner(owner.ID))

	members, err := env.OrgSvc.ListMembers(ctx, org.ID, owner.ID, organization.MemberFilter{})
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, owner.ID, members[0].UserID)
	assert.Equal(t, organization.MemberRoleAdmin, members[0].Role)
	assert.Equal(t, owner.Email, members[0].UserEmail)

	_, err = env.OrgSvc.Create(ctx, organization.NewOrganization{Name: "Other", Slug: org.Slug}, owner.ID)
	assert.Equal(t, organization.ErrSlugExists, errors.Cause(err))

	orgs, err := env.OrgSvc.ListForUser(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, orgs, 1, "failed creation must not leave anything behind")
}

func TestOrganizationAccess(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.UserRepo, "Owner", "owner@acme.test", pwd, user.RoleInstructor, true)
	admin := testutil.CreateUser(t, env.UserRepo, "Admin", "admin@acme.test", pwd, user.RoleInstructor, true)
	member := testutil.CreateUser(t, env.UserRepo, "Member", "member@acme.test", pwd, user.RoleStudent, true)
	outsider := testutil.CreateUser(t, env.UserRepo, "Outsider", "outsider@acme.test", pwd, user.RoleStudent, true)

	org := testutil.CreateOrganization(t, env.OrgSvc, owner, "Acme", organization.TierBasic)
	adminM, err := env.OrgSvc.AddMember(ctx, org.ID, admin.ID, organization.MemberRoleAdmin, null.String{})
	require.NoError(t, err)
	_, err = env.OrgSvc.AddMember(ctx, org.ID, member.ID, "", null.StringFrom("Science"))
	require.NoError(t, err)

	_, err = env.OrgSvc.AddMember(ctx, org.ID, member.ID, "", null.String{})
	assert.Equal(t, organization.ErrMemberExists, errors.Cause(err))

	tests := []struct {
		name      string
		callerID  string
		wantGet   error
		wantInv   error
		wantOwner bool
	}{
		{name: "owner", callerID: owner.ID, wantOwner: true},
		{name: "admin member", callerID: admin.ID},
		{name: "plain member", callerID: member.ID, wantInv: core.ErrForbidden},
		{name: "outsider", callerID: outsider.ID, wantGet: core.ErrForbidden, wantInv: core.ErrForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.OrgSvc.Get(ctx, org.ID, tc.callerID)
			assert.Equal(t, tc.wantGet, errors.Cause(err))
			_, err = env.OrgSvc.CanInvite(ctx, org.ID, tc.callerID)
			assert.Equal(t, tc.wantInv, errors.Cause(err))
			isOwner, err := env.OrgSvc.IsOwner(ctx, org.ID, tc.callerID)
			require.NoError(t, err)
			assert.Equal(t, tc.wantOwner, isOwner)
		})
	}

	// suspended admins cannot invite
	suspended := organization.MemberStatusSuspended
	_, err = env.OrgSvc.UpdateMember(ctx, org.ID, adminM.ID, owner.ID, organization.UpdateMember{Status: &suspended})
	require.NoError(t, err)
	_, err = env.OrgSvc.CanInvite(ctx, org.ID, admin.ID)
	assert.Equal(t, core.ErrForbidden, errors.Cause(err))

	_, err = env.OrgSvc.Get(ctx, core.NewID(), owner.ID)
	assert.Equal(t, organization.ErrNotFound, errors.Cause(err))
	_, err = env.OrgSvc.Get(ctx, "not-an-id", owner.ID)
	assert.Equal(t, organization.ErrNotFound, errors.Cause(err))

	members, err := env.OrgSvc.ListMembers(ctx, org.ID, member.ID, organization.MemberFilter{Search: "scien"})
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, member.ID, members[0].UserID)
}

func TestUpdateOrganization(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.UserRepo, "Owner", "owner@acme.test", pwd, user.RoleInstructor, true)
	member := testutil.CreateUser(t, env.UserRepo, "Member", "member@acme.test", pwd, user.RoleStudent, true)
	org := testutil.CreateOrganization(t, env.OrgSvc, owner, "Acme", "")
	_, err := env.OrgSvc.AddMember(ctx, org.ID, member.ID, "", null.String{})
	require.NoError(t, err)

	name, tier := "Acme Academy", organization.TierPremium
	_, err = env.OrgSvc.Update(ctx, org.ID, member.ID, organization.UpdateOrganization{Name: &name})
	assert.Equal(t, core.ErrForbidden, errors.Cause(err))

	org, err = env.OrgSvc.Update(ctx, org.ID, owner.ID, organization.UpdateOrganization{Name: &name, Tier: &tier})
	require.NoError(t, err)
	assert.Equal(t, name, org.Name)
	assert.Equal(t, "acme", org.Slug)
	assert.Equal(t, organization.TierLimits(organization.TierPremium), org.Metadata)
}

func TestMembers(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.UserRepo, "Owner", "owner@acme.test", pwd, user.RoleInstructor, true)
	student := testutil.CreateUser(t, env.UserRepo, "Student", "student@acme.test", pwd, user.RoleStudent, true)
	org := testutil.CreateOrganization(t, env.OrgSvc, owner, "Acme", organization.TierBasic)

	m, err := env.OrgSvc.AddMember(ctx, org.ID, student.ID, "", null.String{})
	require.NoError(t, err)
	assert.Equal(t, organization.MemberRoleMember, m.Role)
	assert.Equal(t, student.Name, m.UserName)

	ok, err := env.OrgSvc.HasActiveMemberWithEmail(ctx, org.ID, " STUDENT@acme.test ")
	require.NoError(t, err)
	assert.True(t, ok)

	role, dept := organization.MemberRoleInstructor, "Maths"
	_, err = env.OrgSvc.UpdateMember(ctx, org.ID, m.ID, student.ID, organization.UpdateMember{Role: &role})
	assert.Equal(t, core.ErrForbidden, errors.Cause(err))
	m, err = env.OrgSvc.UpdateMember(ctx, org.ID, m.ID, owner.ID, organization.UpdateMember{Role: &role, Department: &dept})
	require.NoError(t, err)
	assert.Equal(t, organization.MemberRoleInstructor, m.Role)
	assert.Equal(t, null.StringFrom("Maths"), m.Department)

	ownerM, err := env.OrgRepo.GetMemberByUser(ctx, org.ID, owner.ID)
	require.NoError(t, err)
	_, err = env.OrgSvc.UpdateMember(ctx, org.ID, ownerM.ID, owner.ID, organization.UpdateMember{Role: &role})
	assert.Equal(t, organization.ErrOwnerMembership, errors.Cause(err))
	assert.Equal(t, organization.ErrOwnerMembership, errors.Cause(env.OrgSvc.RemoveMember(ctx, org.ID, ownerM.ID, owner.ID)))

	team, err := env.OrgSvc.CreateTeam(ctx, org.ID, owner.ID, organization.NewTeam{Name: "Grade 1", Slug: "grade-1"})
	require.NoError(t, err)
	_, err = env.OrgSvc.AddTeamMember(ctx, org.ID, team.ID, owner.ID, m.ID)
	require.NoError(t, err)

	require.NoError(t, env.OrgSvc.RemoveMember(ctx, org.ID, m.ID, owner.ID))
	ok, err = env.OrgSvc.HasActiveMemberWithEmail(ctx, org.ID, student.Email)
	require.NoError(t, err)
	assert.False(t, ok)

	tms, err := env.OrgSvc.ListTeamMembers(ctx, org.ID, team.ID, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, tms, "removing a member removes their team memberships")

	assert.Equal(t, organization.ErrMemberNotFound, errors.Cause(env.OrgSvc.RemoveMember(ctx, org.ID, m.ID, owner.ID)))
}

func TestTeams(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.UserRepo, "Owner", "owner@acme.test", pwd, user.RoleInstructor, true)
	s1 := testutil.CreateUser(t, env.UserRepo, "S1", "s1@acme.test", pwd, user.RoleStudent, true)
	s2 := testutil.CreateUser(t, env.UserRepo, "S2", "s2@acme.test", pwd, user.RoleStudent, true)
	org := testutil.CreateOrganization(t, env.OrgSvc, owner, "Acme", "")

	m1, err := env.OrgSvc.AddMember(ctx, org.ID, s1.ID, "", null.String{})
	require.NoError(t, err)
	m2, err := env.OrgSvc.AddMember(ctx, org.ID, s2.ID, "", null.String{})
	require.NoError(t, err)

	_, err = env.OrgSvc.CreateTeam(ctx, org.ID, s1.ID, organization.NewTeam{Name: "Nope", Slug: "nope"})
	assert.Equal(t, core.ErrForbidden, errors.Cause(err))

	_, err = env.OrgSvc.CreateTeam(ctx, org.ID, owner.ID, organization.NewTeam{Name: "Big", Slug: "big", MaxMembers: 11})
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "max_members", vErr.Fields[0].Field)

	team, err := env.OrgSvc.CreateTeam(ctx, org.ID, owner.ID, organization.NewTeam{Name: "Pair", Slug: "pair", MaxMembers: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, team.MaxMembers)

	_, err = env.OrgSvc.CreateTeam(ctx, org.ID, owner.ID, organization.NewTeam{Name: "Second", Slug: "second"})
	assert.Equal(t, organization.ErrTeamLimitReached, errors.Cause(err), "free tier allows one team")

	tm, err := env.OrgSvc.AddTeamMember(ctx, org.ID, team.ID, owner.ID, m1.ID)
	require.NoError(t, err)
	assert.Equal(t, s1.ID, tm.UserID)
	assert.Equal(t, s1.Email, tm.UserEmail)

	_, err = env.OrgSvc.AddTeamMember(ctx, org.ID, team.ID, owner.ID, m2.ID)
	assert.Equal(t, organization.ErrTeamFull, errors.Cause(err))
	_, err = env.OrgSvc.AddTeamMember(ctx, org.ID, team.ID, owner.ID, core.NewID())
	assert.Equal(t, organization.ErrMemberNotFound, errors.Cause(err))

	teams, err := env.OrgSvc.ListTeams(ctx, org.ID, s2.ID)
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, 1, teams[0].MemberCount)

	require.NoError(t, env.OrgSvc.RemoveTeamMember(ctx, org.ID, team.ID, m1.ID, owner.ID))
	assert.Equal(t, organization.ErrTeamMemberNotFound, errors.Cause(env.OrgSvc.RemoveTeamMember(ctx, org.ID, team.ID, m1.ID, owner.ID)))

	_, err = env.OrgSvc.AddTeamMember(ctx, org.ID, team.ID, owner.ID, m2.ID)
	require.NoError(t, err)
	_, err = env.OrgSvc.AddTeamMember(ctx, org.ID, core.NewID(), owner.ID, m2.ID)
	assert.Equal(t, organization.ErrTeamNotFound, errors.Cause(err))
}
