package invitation

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/organization"
)

// Statuses; StatusExpired is derived at read time and never stored.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
	StatusExpired  = "expired"
)

type Invitation struct {
	ID              string      `json:"id" db:"id"`
	Token           string      `json:"-" db:"token"`
	Email           string      `json:"email" db:"email"`
	Role            string      `json:"role" db:"role"`
	Department      null.String `json:"department" db:"department"`
	OrganizationID  string      `json:"organization_id" db:"organization_id"`
	InviterID       string      `json:"inviter_id" db:"inviter_id"`
	Status          string      `json:"status" db:"status"`
	ExpiresAt       time.Time   `json:"expires_at" db:"expires_at"`
	AcceptedAt      null.Time   `json:"accepted_at" db:"accepted_at"`
	RejectedAt      null.Time   `json:"rejected_at" db:"rejected_at"`
	RejectionReason null.String `json:"rejection_reason" db:"rejection_reason"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
}

// IsExpired reports whether the invitation can no longer be answered, whatever its status.
func (inv Invitation) IsExpired(now time.Time) bool {
	return inv.ExpiresAt.Before(now)
}

func (inv Invitation) IsPending() bool {
	return inv.Status == StatusPending && !inv.AcceptedAt.Valid
}

// EffectiveStatus is the stored status, or StatusExpired for a pending invitation past its expiry.
func (inv Invitation) EffectiveStatus(now time.Time) string {
	if inv.Status == StatusPending && inv.IsExpired(now) {
		return StatusExpired
	}
	return inv.Status
}

type InviterSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Details is an invitation as shown to the invitee.
type Details struct {
	Invitation
	EffectiveStatus string               `json:"effective_status"`
	Organization    organization.Summary `json:"organization"`
	Inviter         InviterSummary       `json:"inviter"`
}

// Created is the result of a Create; URL is the acceptance link emailed to the invitee.
type Created struct {
	Invitation
	URL string `json:"url"`
}

// Accepted is the result of an Accept.
type Accepted struct {
	Invitation  Invitation          `json:"invitation"`
	Member      organization.Member `json:"member"`
	UserCreated bool                `json:"user_created"`
}

// NewInvitation contains information needed to invite someone to an organization.
type NewInvitation struct {
	Email      string `json:"email" validate:"required,email"`
	Role       string `json:"role" validate:"omitempty,oneof=admin instructor member"`
	Department string `json:"department" validate:"max=100"`
}

func (ni *NewInvitation) Validate(validate *validator.Validate) error {
	ni.Email = core.CleanString(ni.Email, true /* lower */)
	ni.Role = core.CleanString(ni.Role, true /* lower */)
	if ni.Role == "" {
		ni.Role = organization.MemberRoleMember
	}
	ni.Department = core.CleanString(ni.Department)
	return validate.Struct(ni)
}

// AcceptInvitation holds the account details of an invitee who has no account yet.
type AcceptInvitation struct {
	Name     string `json:"name" validate:"max=100"`
	Password string `json:"password" validate:"max=128"`
}

func (ai *AcceptInvitation) Validate(validate *validator.Validate) error {
	ai.Name = core.CleanString(ai.Name)
	return validate.Struct(ai)
}

type RejectInvitation struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (ri *RejectInvitation) Validate(validate *validator.Validate) error {
	ri.Reason = core.CleanString(ri.Reason)
	return validate.Struct(ri)
}

// QueryFilter filters the invitations of an organization.
type QueryFilter struct {
	Status string `query:"status" validate:"omitempty,oneof=pending accepted rejected expired"`
	Email  string `query:"email"`
}

func (qf *QueryFilter) Validate(validate *validator.Validate) error {
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.Email = core.CleanString(qf.Email, true /* lower */)
	return validate.Struct(qf)
}
