package organization

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
)

// Subscription tiers
const (
	TierFree       = "free"
	TierBasic      = "basic"
	TierPremium    = "premium"
	TierEnterprise = "enterprise"
)

// Member roles, scoped to an organization
const (
	MemberRoleAdmin      = "admin"
	MemberRoleInstructor = "instructor"
	MemberRoleMember     = "member"
)

// Member statuses
const (
	MemberStatusActive    = "active"
	MemberStatusInactive  = "inactive"
	MemberStatusSuspended = "suspended"
)

var tierLimits = map[string]Metadata{
	TierFree:       {MaxTeams: 1, MaxMembersPerTeam: 10},
	TierBasic:      {MaxTeams: 5, MaxMembersPerTeam: 30},
	TierPremium:    {MaxTeams: 20, MaxMembersPerTeam: 100},
	TierEnterprise: {MaxTeams: 100, MaxMembersPerTeam: 500},
}

// TierLimits returns the limits of the given subscription tier (free for unknown tiers).
func TierLimits(tier string) Metadata {
	if md, ok := tierLimits[tier]; ok {
		return md
	}
	return tierLimits[TierFree]
}

// Metadata is stored as JSON along the organization.
type Metadata struct {
	MaxTeams          int `json:"max_teams"`
	MaxMembersPerTeam int `json:"max_members_per_team"`
}

func (md Metadata) Value() (driver.Value, error) {
	return json.Marshal(md)
}

func (md *Metadata) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*md = Metadata{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("organization.Metadata: cannot scan %T", src)
	}
	return json.Unmarshal(data, md)
}

type Organization struct {
	ID               string    `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"`
	Slug             string    `json:"slug" db:"slug"`
	SchoolCode       string    `json:"school_code" db:"school_code"`
	SubscriptionTier string    `json:"subscription_tier" db:"subscription_tier"`
	CreatedBy        string    `json:"created_by" db:"created_by"`
	Metadata         Metadata  `json:"metadata" db:"metadata"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

func (org Organization) IsOwner(userID string) bool {
	return org.CreatedBy == userID
}

func (org Organization) Summary() Summary {
	return Summary{ID: org.ID, Name: org.Name, Slug: org.Slug}
}

type Summary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Member struct {
	ID             string      `json:"id" db:"id"`
	OrganizationID string      `json:"organization_id" db:"organization_id"`
	UserID         string      `json:"user_id" db:"user_id"`
	Role           string      `json:"role" db:"role"`
	Department     null.String `json:"department" db:"department"`
	Status         string      `json:"status" db:"status"`
	JoinedAt       time.Time   `json:"joined_at" db:"joined_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`

	// joined from users
	UserName  string `json:"user_name" db:"user_name"`
	UserEmail string `json:"user_email" db:"user_email"`
}

func (m Member) IsActive() bool { return m.Status == MemberStatusActive }

type Team struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	Slug           string    `json:"slug" db:"slug"`
	Description    string    `json:"description" db:"description"`
	CreatedBy      string    `json:"created_by" db:"created_by"`
	MaxMembers     int       `json:"max_members" db:"max_members"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	MemberCount    int       `json:"member_count" db:"member_count"`
}

type TeamMember struct {
	TeamID   string    `json:"team_id" db:"team_id"`
	MemberID string    `json:"member_id" db:"member_id"`
	AddedAt  time.Time `json:"added_at" db:"added_at"`

	// joined from members & users
	UserID    string `json:"user_id" db:"user_id"`
	Role      string `json:"role" db:"role"`
	UserName  string `json:"user_name" db:"user_name"`
	UserEmail string `json:"user_email" db:"user_email"`
}

// NewOrganization contains information needed to create a new Organization.
type NewOrganization struct {
	Name       string `json:"name" validate:"required,notblank,max=100"`
	Slug       string `json:"slug" validate:"required,slug,max=50"`
	SchoolCode string `json:"school_code" validate:"max=50"`
	Tier       string `json:"subscription_tier" validate:"omitempty,oneof=free basic premium enterprise"`
}

func (no *NewOrganization) Validate(validate *validator.Validate) error {
	no.Name = core.CleanString(no.Name)
	no.SchoolCode = core.CleanString(no.SchoolCode)
	no.Tier = core.CleanString(no.Tier, true /* lower */)
	if no.Tier == "" {
		no.Tier = TierFree
	}
	no.Slug = core.CleanString(no.Slug, true /* lower */)
	if no.Slug == "" {
		no.Slug = core.Slugify(no.Name)
	}
	return validate.Struct(no)
}

// UpdateOrganization defines what information may be provided to modify an existing Organization.
type UpdateOrganization struct {
	Name       *string `json:"name" validate:"omitempty,notblank,max=100"`
	SchoolCode *string `json:"school_code" validate:"omitempty,max=50"`
	Tier       *string `json:"subscription_tier" validate:"omitempty,oneof=free basic premium enterprise"`
}

func (uo *UpdateOrganization) Validate(validate *validator.Validate) error {
	cleanPtr(uo.Name, false)
	cleanPtr(uo.SchoolCode, false)
	cleanPtr(uo.Tier, true)
	return validate.Struct(uo)
}

type UpdateMember struct {
	Role       *string `json:"role" validate:"omitempty,oneof=admin instructor member"`
	Department *string `json:"department" validate:"omitempty,max=100"`
	Status     *string `json:"status" validate:"omitempty,oneof=active inactive suspended"`
}

func (um *UpdateMember) Validate(validate *validator.Validate) error {
	cleanPtr(um.Role, true)
	cleanPtr(um.Department, false)
	cleanPtr(um.Status, true)
	return validate.Struct(um)
}

// MemberFilter filters organization members; empty fields match everything.
type MemberFilter struct {
	Role   string `query:"role"`
	Status string `query:"status"`
	Search string `query:"search"`
}

func (mf *MemberFilter) Clean() {
	mf.Role = core.CleanString(mf.Role, true /* lower */)
	mf.Status = core.CleanString(mf.Status, true /* lower */)
	mf.Search = core.CleanString(mf.Search)
}

type NewTeam struct {
	Name        string `json:"name" validate:"required,notblank,max=100"`
	Slug        string `json:"slug" validate:"required,slug,max=50"`
	Description string `json:"description" validate:"max=500"`
	MaxMembers  int    `json:"max_members" validate:"min=0"`
}

func (nt *NewTeam) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Description = core.CleanString(nt.Description)
	nt.Slug = core.CleanString(nt.Slug, true /* lower */)
	if nt.Slug == "" {
		nt.Slug = core.Slugify(nt.Name)
	}
	return validate.Struct(nt)
}

type NewTeamMember struct {
	MemberID string `json:"member_id" validate:"required,uuid"`
}

func (ntm *NewTeamMember) Validate(validate *validator.Validate) error {
	ntm.MemberID = core.CleanString(ntm.MemberID, true /* lower */)
	return validate.Struct(ntm)
}

func cleanPtr(s *string, lower bool) {
	if s != nil {
		*s = core.CleanString(*s, lower)
	}
}
