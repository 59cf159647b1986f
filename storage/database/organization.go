package database

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/organization"
)

var (
	memberSelect = psql.
			Select("m.*", "u.name AS user_name", "u.email AS user_email").
			From("members m").
			Join("users u ON u.id = m.user_id")

	teamSelect = psql.
			Select("t.*", "(SELECT COUNT(*) FROM team_members tm WHERE tm.team_id = t.id) AS member_count").
			From("teams t")

	teamMemberSelect = psql.
				Select("tm.team_id", "tm.member_id", "tm.added_at", "m.user_id", "m.role", "u.name AS user_name", "u.email AS user_email").
				From("team_members tm").
				Join("members m ON m.id = tm.member_id").
				Join("users u ON u.id = m.user_id")
)

type organizationRepository struct {
	db *sqlx.DB
}

var _ organization.Repository = (*organizationRepository)(nil)

func NewOrganizationRepository(db *sqlx.DB) organization.Repository {
	return &organizationRepository{db: db}
}

// Organizations

func (repo *organizationRepository) CreateOrganization(ctx context.Context, org organization.Organization) (organization.Organization, error) {
	_, err := exec(ctx, conn(ctx, repo.db), psql.Insert("organizations").
		Columns("id", "name", "slug", "school_code", "subscription_tier", "created_by", "metadata", "created_at", "updated_at").
		Values(org.ID, org.Name, org.Slug, org.SchoolCode, org.SubscriptionTier, org.CreatedBy, org.Metadata, org.CreatedAt, org.UpdatedAt))
	if err != nil {
		return organization.Organization{}, mapError(err, nil)
	}
	return org, nil
}

func (repo *organizationRepository) GetOrganizationByID(ctx context.Context, id string) (organization.Organization, error) {
	var org organization.Organization
	err := get(ctx, conn(ctx, repo.db), &org, psql.Select("*").From("organizations").Where(sq.Eq{"id": id}))
	return org, mapError(err, organization.ErrNotFound)
}

func (repo *organizationRepository) QueryOrganizationsByUser(ctx context.Context, userID string) ([]organization.Organization, error) {
	orgs := make([]organization.Organization, 0)
	err := selectAll(ctx, conn(ctx, repo.db), &orgs, psql.
		Select("o.*").
		From("organizations o").
		Join("members m ON m.organization_id = o.id").
		Where(sq.Eq{"m.user_id": userID}).
		OrderBy("o.created_at DESC"))
	if err != nil {
		return nil, errors.Wrap(err, "querying organizations")
	}
	return orgs, nil
}

func (repo *organizationRepository) UpdateOrganization(ctx context.Context, org organization.Organization) (organization.Organization, error) {
	n, err := exec(ctx, conn(ctx, repo.db), psql.Update("organizations").
		SetMap(map[string]interface{}{
			"name":              org.Name,
			"school_code":       org.SchoolCode,
			"subscription_tier": org.SubscriptionTier,
			"metadata":          org.Metadata,
			"updated_at":        org.UpdatedAt,
		}).
		Where(sq.Eq{"id": org.ID}))
	if err != nil {
		return organization.Organization{}, mapError(err, nil)
	}
	if n == 0 {
		return organization.Organization{}, organization.ErrNotFound
	}
	return org, nil
}

// Members

func (repo *organizationRepository) CreateMember(ctx context.Context, m organization.Member) (organization.Member, error) {
	_, err := exec(ctx, conn(ctx, repo.db), psql.Insert("members").
		Columns("id", "organization_id", "user_id", "role", "department", "status", "joined_at", "updated_at").
		Values(m.ID, m.OrganizationID, m.UserID, m.Role, m.Department, m.Status, m.JoinedAt, m.UpdatedAt))
	if err != nil {
		return organization.Member{}, mapError(err, nil)
	}
	return m, nil
}

func (repo *organizationRepository) getMember(ctx context.Context, where sq.Eq) (organization.Member, error) {
	var m organization.Member
	err := get(ctx, conn(ctx, repo.db), &m, memberSelect.Where(where))
	return m, mapError(err, organization.ErrMemberNotFound)
}

func (repo *organizationRepository) GetMemberByID(ctx context.Context, orgID, memberID string) (organization.Member, error) {
	return repo.getMember(ctx, sq.Eq{"m.organization_id": orgID, "m.id": memberID})
}

func (repo *organizationRepository) GetMemberByUser(ctx context.Context, orgID, userID string) (organization.Member, error) {
	return repo.getMember(ctx, sq.Eq{"m.organization_id": orgID, "m.user_id": userID})
}

func (repo *organizationRepository) MemberExists(ctx context.Context, orgID, userID string) (bool, error) {
	return existsQuery(ctx, conn(ctx, repo.db), psql.
		Select("1").
		From("members").
		Where(sq.Eq{"organization_id": orgID, "user_id": userID}))
}

func (repo *organizationRepository) ActiveMemberExistsByEmail(ctx context.Context, orgID, email string) (bool, error) {
	return existsQuery(ctx, conn(ctx, repo.db), psql.
		Select("1").
		From("members m").
		Join("users u ON u.id = m.user_id").
		Where(sq.Eq{"m.organization_id": orgID, "u.email": email, "m.status": organization.MemberStatusActive}))
}

func (repo *organizationRepository) QueryMembers(ctx context.Context, orgID string, filter organization.MemberFilter) ([]organization.Member, error) {
	q := memberSelect.Where(sq.Eq{"m.organization_id": orgID})
	if filter.Role != "" {
		q = q.Where(sq.Eq{"m.role": filter.Role})
	}
	if filter.Status != "" {
		q = q.Where(sq.Eq{"m.status": filter.Status})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(sq.Or{sq.ILike{"u.name": pattern}, sq.ILike{"u.email": pattern}, sq.ILike{"m.department": pattern}})
	}

	members := make([]organization.Member, 0)
	if err := selectAll(ctx, conn(ctx, repo.db), &members, q.OrderBy("m.joined_at")); err != nil {
		return nil, errors.Wrap(err, "querying members")
	}
	return members, nil
}

func (repo *organizationRepository) UpdateMember(ctx context.Context, m organization.Member) (organization.Member, error) {
	n, err := exec(ctx, conn(ctx, repo.db), psql.Update("members").
		SetMap(map[string]interface{}{
			"role":       m.Role,
			"department": m.Department,
			"status":     m.Status,
			"updated_at": m.UpdatedAt,
		}).
		Where(sq.Eq{"id": m.ID, "organization_id": m.OrganizationID}))
	if err != nil {
		return organization.Member{}, mapError(err, nil)
	}
	if n == 0 {
		return organization.Member{}, organization.ErrMemberNotFound
	}
	return m, nil
}

func (repo *organizationRepository) DeleteMember(ctx context.Context, orgID, memberID string) error {
	n, err := exec(ctx, conn(ctx, repo.db), psql.Delete("members").Where(sq.Eq{"id": memberID, "organization_id": orgID}))
	if err != nil {
		return errors.Wrap(err, "deleting member")
	}
	if n == 0 {
		return organization.ErrMemberNotFound
	}
	return nil
}

// Teams

func (repo *organizationRepository) CreateTeam(ctx context.Context, team organization.Team) (organization.Team, error) {
	_, err := exec(ctx, conn(ctx, repo.db), psql.Insert("teams").
		Columns("id", "organization_id", "name", "slug", "description", "created_by", "max_members", "created_at").
		Values(team.ID, team.OrganizationID, team.Name, team.Slug, team.Description, team.CreatedBy, team.MaxMembers, team.CreatedAt))
	if err != nil {
		return organization.Team{}, mapError(err, nil)
	}
	return team, nil
}

// lock serializes the transactions working on the same row; no-op outside a transaction.
func (repo *organizationRepository) lock(ctx context.Context, table, id string) error {
	if !inTx(ctx) {
		return nil
	}
	_, err := exec(ctx, conn(ctx, repo.db), psql.Select("id").From(table).Where(sq.Eq{"id": id}).Suffix("FOR UPDATE"))
	return errors.Wrapf(err, "locking %s", table)
}

// CountTeams locks the organization first when called within a transaction.
func (repo *organizationRepository) CountTeams(ctx context.Context, orgID string) (int, error) {
	if err := repo.lock(ctx, "organizations", orgID); err != nil {
		return 0, err
	}
	var count int
	err := get(ctx, conn(ctx, repo.db), &count, psql.Select("COUNT(*)").From("teams").Where(sq.Eq{"organization_id": orgID}))
	return count, errors.Wrap(err, "counting teams")
}

// GetTeamByID locks the team first when called within a transaction.
func (repo *organizationRepository) GetTeamByID(ctx context.Context, orgID, teamID string) (organization.Team, error) {
	if err := repo.lock(ctx, "teams", teamID); err != nil {
		return organization.Team{}, err
	}
	var team organization.Team
	err := get(ctx, conn(ctx, repo.db), &team, teamSelect.Where(sq.Eq{"t.id": teamID, "t.organization_id": orgID}))
	return team, mapError(err, organization.ErrTeamNotFound)
}

func (repo *organizationRepository) QueryTeams(ctx context.Context, orgID string) ([]organization.Team, error) {
	teams := make([]organization.Team, 0)
	err := selectAll(ctx, conn(ctx, repo.db), &teams, teamSelect.Where(sq.Eq{"t.organization_id": orgID}).OrderBy("t.name"))
	if err != nil {
		return nil, errors.Wrap(err, "querying teams")
	}
	return teams, nil
}

func (repo *organizationRepository) AddTeamMember(ctx context.Context, tm organization.TeamMember) (organization.TeamMember, error) {
	_, err := exec(ctx, conn(ctx, repo.db), psql.Insert("team_members").
		Columns("team_id", "member_id", "added_at").
		Values(tm.TeamID, tm.MemberID, tm.AddedAt))
	if err != nil {
		return organization.TeamMember{}, mapError(err, nil)
	}

	var added organization.TeamMember
	err = get(ctx, conn(ctx, repo.db), &added, teamMemberSelect.Where(sq.Eq{"tm.team_id": tm.TeamID, "tm.member_id": tm.MemberID}))
	return added, mapError(err, organization.ErrTeamMemberNotFound)
}

func (repo *organizationRepository) QueryTeamMembers(ctx context.Context, teamID string) ([]organization.TeamMember, error) {
	members := make([]organization.TeamMember, 0)
	err := selectAll(ctx, conn(ctx, repo.db), &members, teamMemberSelect.Where(sq.Eq{"tm.team_id": teamID}).OrderBy("tm.added_at"))
	if err != nil {
		return nil, errors.Wrap(err, "querying team members")
	}
	return members, nil
}

func (repo *organizationRepository) DeleteTeamMember(ctx context.Context, teamID, memberID string) error {
	n, err := exec(ctx, conn(ctx, repo.db), psql.Delete("team_members").Where(sq.Eq{"team_id": teamID, "member_id": memberID}))
	if err != nil {
		return errors.Wrap(err, "deleting team member")
	}
	if n == 0 {
		return organization.ErrTeamMemberNotFound
	}
	return nil
}
