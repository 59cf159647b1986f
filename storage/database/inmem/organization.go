package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/academia/core/organization"
)

type organizationRepository struct {
	db *DB
}

var _ organization.Repository = (*organizationRepository)(nil)

func NewOrganizationRepository(db *DB) organization.Repository {
	return &organizationRepository{db: db}
}

// Organizations

func (repo *organizationRepository) CreateOrganization(_ context.Context, org organization.Organization) (organization.Organization, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, o := range repo.db.t.orgs {
		if o.Slug == org.Slug {
			return organization.Organization{}, organization.ErrSlugExists
		}
	}
	repo.db.t.orgs[org.ID] = org
	return org, nil
}

func (repo *organizationRepository) GetOrganizationByID(_ context.Context, id string) (organization.Organization, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if org, ok := repo.db.t.orgs[id]; ok {
		return org, nil
	}
	return organization.Organization{}, organization.ErrNotFound
}

func (repo *organizationRepository) QueryOrganizationsByUser(_ context.Context, userID string) ([]organization.Organization, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	orgs := make([]organization.Organization, 0)
	for _, m := range repo.db.t.members {
		if m.UserID == userID {
			if org, ok := repo.db.t.orgs[m.OrganizationID]; ok {
				orgs = append(orgs, org)
			}
		}
	}
	sort.SliceStable(orgs, func(i, j int) bool { return orgs[i].CreatedAt.After(orgs[j].CreatedAt) })
	return orgs, nil
}

func (repo *organizationRepository) UpdateOrganization(_ context.Context, org organization.Organization) (organization.Organization, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.t.orgs[org.ID]
	if !ok {
		return organization.Organization{}, organization.ErrNotFound
	}
	orig.Name = org.Name
	orig.SchoolCode = org.SchoolCode
	orig.SubscriptionTier = org.SubscriptionTier
	orig.Metadata = org.Metadata
	orig.UpdatedAt = org.UpdatedAt
	repo.db.t.orgs[org.ID] = orig
	return orig, nil
}

// Members

// withUser fills the member's user fields; callers hold the lock.
func (repo *organizationRepository) withUser(m organization.Member) organization.Member {
	if usr, ok := repo.db.t.users[m.UserID]; ok {
		m.UserName = usr.Name
		m.UserEmail = usr.Email
	}
	return m
}

func (repo *organizationRepository) CreateMember(_ context.Context, m organization.Member) (organization.Member, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.t.members {
		if other.OrganizationID == m.OrganizationID && other.UserID == m.UserID {
			return organization.Member{}, organization.ErrMemberExists
		}
	}
	m.UserName, m.UserEmail = "", ""
	repo.db.t.members[m.ID] = m
	return m, nil
}

func (repo *organizationRepository) GetMemberByID(_ context.Context, orgID, memberID string) (organization.Member, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	m, ok := repo.db.t.members[memberID]
	if !ok || m.OrganizationID != orgID {
		return organization.Member{}, organization.ErrMemberNotFound
	}
	return repo.withUser(m), nil
}

func (repo *organizationRepository) findMember(orgID, userID string) (organization.Member, bool) {
	for _, m := range repo.db.t.members {
		if m.OrganizationID == orgID && m.UserID == userID {
			return m, true
		}
	}
	return organization.Member{}, false
}

func (repo *organizationRepository) MemberExists(_ context.Context, orgID, userID string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	_, ok := repo.findMember(orgID, userID)
	return ok, nil
}

func (repo *organizationRepository) GetMemberByUser(_ context.Context, orgID, userID string) (organization.Member, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if m, ok := repo.findMember(orgID, userID); ok {
		return repo.withUser(m), nil
	}
	return organization.Member{}, organization.ErrMemberNotFound
}

func (repo *organizationRepository) ActiveMemberExistsByEmail(_ context.Context, orgID, email string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, m := range repo.db.t.members {
		if m.OrganizationID != orgID || !m.IsActive() {
			continue
		}
		if usr, ok := repo.db.t.users[m.UserID]; ok && usr.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (repo *organizationRepository) QueryMembers(_ context.Context, orgID string, filter organization.MemberFilter) ([]organization.Member, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	members := make([]organization.Member, 0)
	for _, m := range repo.db.t.members {
		if m.OrganizationID != orgID {
			continue
		}
		if filter.Role != "" && m.Role != filter.Role {
			continue
		}
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		m = repo.withUser(m)
		if filter.Search != "" &&
			!containsFold(m.UserName, filter.Search) &&
			!containsFold(m.UserEmail, filter.Search) &&
			!containsFold(m.Department.String, filter.Search) {
			continue
		}
		members = append(members, m)
	}
	sort.SliceStable(members, func(i, j int) bool { return members[i].JoinedAt.Before(members[j].JoinedAt) })
	return members, nil
}

func (repo *organizationRepository) UpdateMember(_ context.Context, m organization.Member) (organization.Member, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.t.members[m.ID]
	if !ok || orig.OrganizationID != m.OrganizationID {
		return organization.Member{}, organization.ErrMemberNotFound
	}
	orig.Role = m.Role
	orig.Department = m.Department
	orig.Status = m.Status
	orig.UpdatedAt = m.UpdatedAt
	repo.db.t.members[m.ID] = orig
	return repo.withUser(orig), nil
}

func (repo *organizationRepository) DeleteMember(_ context.Context, orgID, memberID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	m, ok := repo.db.t.members[memberID]
	if !ok || m.OrganizationID != orgID {
		return organization.ErrMemberNotFound
	}
	delete(repo.db.t.members, memberID)
	for key := range repo.db.t.teamMembers {
		if key.memberID == memberID {
			delete(repo.db.t.teamMembers, key)
		}
	}
	return nil
}

// Teams

func (repo *organizationRepository) CreateTeam(_ context.Context, team organization.Team) (organization.Team, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, t := range repo.db.t.teams {
		if t.OrganizationID == team.OrganizationID && t.Slug == team.Slug {
			return organization.Team{}, organization.ErrTeamSlugExists
		}
	}
	team.MemberCount = 0
	repo.db.t.teams[team.ID] = team
	return team, nil
}

func (repo *organizationRepository) CountTeams(_ context.Context, orgID string) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var n int
	for _, t := range repo.db.t.teams {
		if t.OrganizationID == orgID {
			n++
		}
	}
	return n, nil
}

// withCount fills the team's member count; callers hold the lock.
func (repo *organizationRepository) withCount(team organization.Team) organization.Team {
	team.MemberCount = 0
	for key := range repo.db.t.teamMembers {
		if key.teamID == team.ID {
			team.MemberCount++
		}
	}
	return team
}

func (repo *organizationRepository) GetTeamByID(_ context.Context, orgID, teamID string) (organization.Team, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	team, ok := repo.db.t.teams[teamID]
	if !ok || team.OrganizationID != orgID {
		return organization.Team{}, organization.ErrTeamNotFound
	}
	return repo.withCount(team), nil
}

func (repo *organizationRepository) QueryTeams(_ context.Context, orgID string) ([]organization.Team, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	teams := make([]organization.Team, 0)
	for _, t := range repo.db.t.teams {
		if t.OrganizationID == orgID {
			teams = append(teams, repo.withCount(t))
		}
	}
	sort.SliceStable(teams, func(i, j int) bool { return teams[i].Name < teams[j].Name })
	return teams, nil
}

// withMember fills the team member's member and user fields; callers hold the lock.
func (repo *organizationRepository) withMember(tm organization.TeamMember) organization.TeamMember {
	if m, ok := repo.db.t.members[tm.MemberID]; ok {
		tm.UserID = m.UserID
		tm.Role = m.Role
		if usr, ok := repo.db.t.users[m.UserID]; ok {
			tm.UserName = usr.Name
			tm.UserEmail = usr.Email
		}
	}
	return tm
}

func (repo *organizationRepository) AddTeamMember(_ context.Context, tm organization.TeamMember) (organization.TeamMember, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	key := teamMemberKey{teamID: tm.TeamID, memberID: tm.MemberID}
	if _, ok := repo.db.t.teamMembers[key]; ok {
		return organization.TeamMember{}, organization.ErrTeamMemberExists
	}
	tm = organization.TeamMember{TeamID: tm.TeamID, MemberID: tm.MemberID, AddedAt: tm.AddedAt}
	repo.db.t.teamMembers[key] = tm
	return repo.withMember(tm), nil
}

func (repo *organizationRepository) QueryTeamMembers(_ context.Context, teamID string) ([]organization.TeamMember, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	members := make([]organization.TeamMember, 0)
	for key, tm := range repo.db.t.teamMembers {
		if key.teamID == teamID {
			members = append(members, repo.withMember(tm))
		}
	}
	sort.SliceStable(members, func(i, j int) bool { return members[i].AddedAt.Before(members[j].AddedAt) })
	return members, nil
}

func (repo *organizationRepository) DeleteTeamMember(_ context.Context, teamID, memberID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	key := teamMemberKey{teamID: teamID, memberID: memberID}
	if _, ok := repo.db.t.teamMembers[key]; !ok {
		return organization.ErrTeamMemberNotFound
	}
	delete(repo.db.t.teamMembers, key)
	return nil
}
