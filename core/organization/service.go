package organization

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
)

var (
	// errors
	ErrNotFound           = core.NewAppError(core.KindNotFound, "organization not found")
	ErrSlugExists         = core.NewAppError(core.KindConflict, "an organization with this slug already exists")
	ErrMemberNotFound     = core.NewAppError(core.KindNotFound, "member not found")
	ErrMemberExists       = core.NewAppError(core.KindConflict, "user is already a member of this organization")
	ErrOwnerMembership    = core.NewAppError(core.KindForbidden, "the organization owner's membership cannot be changed")
	ErrTeamNotFound       = core.NewAppError(core.KindNotFound, "team not found")
	ErrTeamSlugExists     = core.NewAppError(core.KindConflict, "a team with this slug already exists")
	ErrTeamLimitReached   = core.NewAppError(core.KindConflict, "team limit reached")
	ErrTeamFull           = core.NewAppError(core.KindConflict, "team is full")
	ErrTeamMemberExists   = core.NewAppError(core.KindConflict, "member is already in this team")
	ErrTeamMemberNotFound = core.NewAppError(core.KindNotFound, "team member not found")
)

type (
	Repository interface {
		// CreateOrganization returns ErrSlugExists when the slug is taken.
		CreateOrganization(ctx context.Context, org Organization) (Organization, error)
		GetOrganizationByID(ctx context.Context, id string) (Organization, error)
		QueryOrganizationsByUser(ctx context.Context, userID string) ([]Organization, error)
		UpdateOrganization(ctx context.Context, org Organization) (Organization, error)

		// CreateMember returns ErrMemberExists when the user is already a member.
		CreateMember(ctx context.Context, m Member) (Member, error)
		GetMemberByID(ctx context.Context, orgID, memberID string) (Member, error)
		MemberExists(ctx context.Context, orgID, userID string) (bool, error)
		GetMemberByUser(ctx context.Context, orgID, userID string) (Member, error)
		ActiveMemberExistsByEmail(ctx context.Context, orgID, email string) (bool, error)
		QueryMembers(ctx context.Context, orgID string, filter MemberFilter) ([]Member, error)
		UpdateMember(ctx context.Context, m Member) (Member, error)
		DeleteMember(ctx context.Context, orgID, memberID string) error

		// CreateTeam returns ErrTeamSlugExists when the slug is taken within the organization.
		CreateTeam(ctx context.Context, team Team) (Team, error)
		CountTeams(ctx context.Context, orgID string) (int, error)
		GetTeamByID(ctx context.Context, orgID, teamID string) (Team, error)
		QueryTeams(ctx context.Context, orgID string) ([]Team, error)

		// AddTeamMember returns ErrTeamMemberExists when the member is already in the team.
		AddTeamMember(ctx context.Context, tm TeamMember) (TeamMember, error)
		QueryTeamMembers(ctx context.Context, teamID string) ([]TeamMember, error)
		DeleteTeamMember(ctx context.Context, teamID, memberID string) error
	}

	Service struct {
		repo Repository
		tx   core.TxRunner
	}
)

func NewService(repo Repository, tx core.TxRunner) *Service {
	return &Service{repo: repo, tx: tx}
}

// Authorization

// IsMember reports whether the user has a membership in the organization.
func (svc *Service) IsMember(ctx context.Context, orgID, userID string) (bool, error) {
	if !core.IsValidID(orgID) || !core.IsValidID(userID) {
		return false, nil
	}
	return svc.repo.MemberExists(ctx, orgID, userID)
}

// IsOwner reports whether the user created the organization; ErrNotFound if there is none.
func (svc *Service) IsOwner(ctx context.Context, orgID, userID string) (bool, error) {
	org, err := svc.Find(ctx, orgID)
	if err != nil {
		return false, err
	}
	return org.IsOwner(userID), nil
}

// Find returns the organization without any access check.
func (svc *Service) Find(ctx context.Context, orgID string) (Organization, error) {
	if !core.IsValidID(orgID) {
		return Organization{}, ErrNotFound
	}
	return svc.repo.GetOrganizationByID(ctx, orgID)
}

func (svc *Service) requireMember(ctx context.Context, orgID, userID string) (Organization, error) {
	org, err := svc.Find(ctx, orgID)
	if err != nil {
		return Organization{}, err
	}
	ok, err := svc.IsMember(ctx, orgID, userID)
	if err != nil {
		return Organization{}, errors.Wrap(err, "checking membership")
	}
	if !ok {
		return Organization{}, core.ErrForbidden
	}
	return org, nil
}

func (svc *Service) requireOwner(ctx context.Context, orgID, userID string) (Organization, error) {
	org, err := svc.Find(ctx, orgID)
	if err != nil {
		return Organization{}, err
	}
	if !org.IsOwner(userID) {
		return Organization{}, core.ErrForbidden
	}
	return org, nil
}

// CanInvite returns the organization if the user is its owner or one of its active admins.
func (svc *Service) CanInvite(ctx context.Context, orgID, userID string) (Organization, error) {
	org, err := svc.Find(ctx, orgID)
	if err != nil {
		return Organization{}, err
	}
	if org.IsOwner(userID) {
		return org, nil
	}
	m, err := svc.repo.GetMemberByUser(ctx, orgID, userID)
	if err != nil {
		if errors.Cause(err) == ErrMemberNotFound {
			return Organization{}, core.ErrForbidden
		}
		return Organization{}, errors.Wrap(err, "finding member")
	}
	if m.Role != MemberRoleAdmin || !m.IsActive() {
		return Organization{}, core.ErrForbidden
	}
	return org, nil
}

// Organizations

// Create creates the organization and makes its creator its sole admin member.
func (svc *Service) Create(ctx context.Context, no NewOrganization, creatorID string) (Organization, error) {
	now := core.NowFunc()
	org := Organization{
		ID:               core.NewID(),
		Name:             no.Name,
		Slug:             no.Slug,
		SchoolCode:       no.SchoolCode,
		SubscriptionTier: no.Tier,
		CreatedBy:        creatorID,
		Metadata:         TierLimits(no.Tier),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if org.SubscriptionTier == "" {
		org.SubscriptionTier = TierFree
	}

	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if org, err = svc.repo.CreateOrganization(ctx, org); err != nil {
			return err
		}
		_, err = svc.repo.CreateMember(ctx, Member{
			ID:             core.NewID(),
			OrganizationID: org.ID,
			UserID:         creatorID,
			Role:           MemberRoleAdmin,
			Status:         MemberStatusActive,
			JoinedAt:       now,
			UpdatedAt:      now,
		})
		return errors.Wrap(err, "creating owner membership")
	})
	if err != nil {
		return Organization{}, errors.Wrap(err, "creating organization")
	}
	return org, nil
}

func (svc *Service) Get(ctx context.Context, orgID, callerID string) (Organization, error) {
	return svc.requireMember(ctx, orgID, callerID)
}

func (svc *Service) ListForUser(ctx context.Context, userID string) ([]Organization, error) {
	return svc.repo.QueryOrganizationsByUser(ctx, userID)
}

func (svc *Service) Update(ctx context.Context, orgID, callerID string, uo UpdateOrganization) (Organization, error) {
	org, err := svc.requireOwner(ctx, orgID, callerID)
	if err != nil {
		return Organization{}, err
	}
	if uo.Name != nil {
		org.Name = *uo.Name
	}
	if uo.SchoolCode != nil {
		org.SchoolCode = *uo.SchoolCode
	}
	if uo.Tier != nil && *uo.Tier != org.SubscriptionTier {
		org.SubscriptionTier = *uo.Tier
		org.Metadata = TierLimits(*uo.Tier)
	}
	org.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateOrganization(ctx, org)
}

// Members

// AddMember creates the membership of a user; ErrMemberExists if there is one already.
func (svc *Service) AddMember(ctx context.Context, orgID, userID, role string, department null.String) (Member, error) {
	if role == "" {
		role = MemberRoleMember
	}
	now := core.NowFunc()
	m, err := svc.repo.CreateMember(ctx, Member{
		ID:             core.NewID(),
		OrganizationID: orgID,
		UserID:         userID,
		Role:           role,
		Department:     department,
		Status:         MemberStatusActive,
		JoinedAt:       now,
		UpdatedAt:      now,
	})
	if err != nil {
		return Member{}, err
	}
	// reload with the user's name & email
	return svc.repo.GetMemberByID(ctx, orgID, m.ID)
}

// HasActiveMemberWithEmail reports whether the email belongs to an active member of the organization.
func (svc *Service) HasActiveMemberWithEmail(ctx context.Context, orgID, email string) (bool, error) {
	return svc.repo.ActiveMemberExistsByEmail(ctx, orgID, core.CleanString(email, true /* lower */))
}

func (svc *Service) ListMembers(ctx context.Context, orgID, callerID string, filter MemberFilter) ([]Member, error) {
	if _, err := svc.requireMember(ctx, orgID, callerID); err != nil {
		return nil, err
	}
	return svc.repo.QueryMembers(ctx, orgID, filter)
}

func (svc *Service) getMember(ctx context.Context, orgID, memberID string) (Member, error) {
	if !core.IsValidID(memberID) {
		return Member{}, ErrMemberNotFound
	}
	return svc.repo.GetMemberByID(ctx, orgID, memberID)
}

func (svc *Service) UpdateMember(ctx context.Context, orgID, memberID, callerID string, um UpdateMember) (Member, error) {
	org, err := svc.requireOwner(ctx, orgID, callerID)
	if err != nil {
		return Member{}, err
	}
	m, err := svc.getMember(ctx, orgID, memberID)
	if err != nil {
		return Member{}, err
	}
	if org.IsOwner(m.UserID) && (um.Role != nil || um.Status != nil) {
		return Member{}, ErrOwnerMembership
	}

	if um.Role != nil {
		m.Role = *um.Role
	}
	if um.Department != nil {
		m.Department = null.NewString(*um.Department, *um.Department != "")
	}
	if um.Status != nil {
		m.Status = *um.Status
	}
	m.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateMember(ctx, m)
}

func (svc *Service) RemoveMember(ctx context.Context, orgID, memberID, callerID string) error {
	org, err := svc.requireOwner(ctx, orgID, callerID)
	if err != nil {
		return err
	}
	m, err := svc.getMember(ctx, orgID, memberID)
	if err != nil {
		return err
	}
	if org.IsOwner(m.UserID) {
		return ErrOwnerMembership
	}
	return svc.repo.DeleteMember(ctx, orgID, memberID)
}

// Teams

func (svc *Service) CreateTeam(ctx context.Context, orgID, callerID string, nt NewTeam) (Team, error) {
	org, err := svc.requireOwner(ctx, orgID, callerID)
	if err != nil {
		return Team{}, err
	}

	limits := org.Metadata
	if limits.MaxTeams == 0 {
		limits = TierLimits(org.SubscriptionTier)
	}
	if nt.MaxMembers == 0 {
		nt.MaxMembers = limits.MaxMembersPerTeam
	}
	if nt.MaxMembers > limits.MaxMembersPerTeam {
		return Team{}, core.NewValidationError(nil, core.FieldError{
			Field: "max_members",
			Error: fmt.Sprintf("cannot exceed %d for the %s tier", limits.MaxMembersPerTeam, org.SubscriptionTier),
		})
	}

	var team Team
	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		count, err := svc.repo.CountTeams(ctx, orgID)
		if err != nil {
			return errors.Wrap(err, "counting teams")
		}
		if count >= limits.MaxTeams {
			return ErrTeamLimitReached
		}
		team, err = svc.repo.CreateTeam(ctx, Team{
			ID:             core.NewID(),
			OrganizationID: orgID,
			Name:           nt.Name,
			Slug:           nt.Slug,
			Description:    nt.Description,
			CreatedBy:      callerID,
			MaxMembers:     nt.MaxMembers,
			CreatedAt:      core.NowFunc(),
		})
		return err
	})
	return team, err
}

func (svc *Service) ListTeams(ctx context.Context, orgID, callerID string) ([]Team, error) {
	if _, err := svc.requireMember(ctx, orgID, callerID); err != nil {
		return nil, err
	}
	return svc.repo.QueryTeams(ctx, orgID)
}

func (svc *Service) getTeam(ctx context.Context, orgID, teamID string) (Team, error) {
	if !core.IsValidID(teamID) {
		return Team{}, ErrTeamNotFound
	}
	return svc.repo.GetTeamByID(ctx, orgID, teamID)
}

func (svc *Service) AddTeamMember(ctx context.Context, orgID, teamID, callerID, memberID string) (TeamMember, error) {
	if _, err := svc.requireOwner(ctx, orgID, callerID); err != nil {
		return TeamMember{}, err
	}

	var tm TeamMember
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		team, err := svc.getTeam(ctx, orgID, teamID)
		if err != nil {
			return err
		}
		// the member must belong to the team's organization
		if _, err = svc.getMember(ctx, orgID, memberID); err != nil {
			return err
		}
		if team.MemberCount >= team.MaxMembers {
			return ErrTeamFull
		}
		tm, err = svc.repo.AddTeamMember(ctx, TeamMember{TeamID: teamID, MemberID: memberID, AddedAt: core.NowFunc()})
		return err
	})
	return tm, err
}

func (svc *Service) ListTeamMembers(ctx context.Context, orgID, teamID, callerID string) ([]TeamMember, error) {
	if _, err := svc.requireMember(ctx, orgID, callerID); err != nil {
		return nil, err
	}
	if _, err := svc.getTeam(ctx, orgID, teamID); err != nil {
		return nil, err
	}
	return svc.repo.QueryTeamMembers(ctx, teamID)
}

func (svc *Service) RemoveTeamMember(ctx context.Context, orgID, teamID, memberID, callerID string) error {
	if _, err := svc.requireOwner(ctx, orgID, callerID); err != nil {
		return err
	}
	if _, err := svc.getTeam(ctx, orgID, teamID); err != nil {
		return err
	}
	if !core.IsValidID(memberID) {
		return ErrTeamMemberNotFound
	}
	return svc.repo.DeleteTeamMember(ctx, teamID, memberID)
}
