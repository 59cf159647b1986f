package invitation

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/organization"
	"github.com/trezcool/academia/core/user"
)

const tokenBytes = 32

var (
	// errors
	ErrNotFound         = core.NewAppError(core.KindNotFound, "invitation not found")
	ErrExpired          = core.NewAppError(core.KindExpired, "invitation has expired")
	ErrAlreadyProcessed = core.NewAppError(core.KindAlreadyProcessed, "invitation has already been processed")
	ErrAlreadyAccepted  = core.NewAppError(core.KindAlreadyProcessed, "invitation has already been accepted")
	ErrAlreadyRejected  = core.NewAppError(core.KindAlreadyProcessed, "invitation has already been rejected")
	ErrAlreadyMember    = core.NewAppError(core.KindConflict, "this email already belongs to a member of the organization")
	ErrPendingExists    = core.NewAppError(core.KindConflict, "a pending invitation already exists for this email")
)

type (
	Repository interface {
		CreateInvitation(ctx context.Context, inv Invitation) (Invitation, error)
		GetInvitationByToken(ctx context.Context, token string) (Invitation, error)
		GetInvitationByID(ctx context.Context, orgID, id string) (Invitation, error)
		// PendingInvitationExists reports whether a pending invitation, not expired at `now`, exists.
		PendingInvitationExists(ctx context.Context, orgID, email string, now time.Time) (bool, error)
		// MarkAccepted claims a pending invitation; ErrAlreadyProcessed if it is not pending anymore.
		MarkAccepted(ctx context.Context, id string, at time.Time) (Invitation, error)
		// MarkRejected closes a pending invitation; ErrAlreadyProcessed if it is not pending anymore.
		MarkRejected(ctx context.Context, id string, at time.Time, reason null.String) (Invitation, error)
		DeleteInvitation(ctx context.Context, id string) error
		QueryInvitations(ctx context.Context, orgID string, filter QueryFilter, now time.Time) ([]Invitation, error)
	}

	Service struct {
		repo    Repository
		orgSvc  *organization.Service
		usrSvc  *user.Service
		mailSvc core.EmailService
		tx      core.TxRunner
		conf    *core.Config
	}
)

func NewService(
	repo Repository,
	orgSvc *organization.Service,
	usrSvc *user.Service,
	mailSvc core.EmailService,
	tx core.TxRunner,
	conf *core.Config,
) *Service {
	return &Service{
		repo:    repo,
		orgSvc:  orgSvc,
		usrSvc:  usrSvc,
		mailSvc: mailSvc,
		tx:      tx,
		conf:    conf,
	}
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// URL returns the acceptance link of the invitation.
func (svc *Service) URL(inv Invitation) string {
	return svc.conf.FrontendBaseURL + "/invitation/" + inv.Token
}

func (svc *Service) expirationDelta() time.Duration {
	if svc.conf.InvitationExpirationDelta > 0 {
		return svc.conf.InvitationExpirationDelta
	}
	return 7 * 24 * time.Hour
}

// Create invites ni.Email to join the organization and emails them the acceptance link.
// The invitation is deleted again if the email cannot be sent.
func (svc *Service) Create(ctx context.Context, orgID, inviterID string, ni NewInvitation) (Created, error) {
	org, err := svc.orgSvc.CanInvite(ctx, orgID, inviterID)
	if err != nil {
		return Created{}, err
	}
	inviter, err := svc.usrSvc.GetByID(ctx, inviterID)
	if err != nil {
		return Created{}, errors.Wrap(err, "finding inviter")
	}

	if ni.Role == "" {
		ni.Role = organization.MemberRoleMember
	}
	now := core.NowFunc()
	isMember, err := svc.orgSvc.HasActiveMemberWithEmail(ctx, orgID, ni.Email)
	if err != nil {
		return Created{}, errors.Wrap(err, "checking membership")
	}
	if isMember {
		return Created{}, ErrAlreadyMember
	}
	exists, err := svc.repo.PendingInvitationExists(ctx, orgID, ni.Email, now)
	if err != nil {
		return Created{}, errors.Wrap(err, "checking pending invitations")
	}
	if exists {
		return Created{}, ErrPendingExists
	}

	token, err := generateToken()
	if err != nil {
		return Created{}, errors.Wrap(err, "generating token")
	}
	inv, err := svc.repo.CreateInvitation(ctx, Invitation{
		ID:             core.NewID(),
		Token:          token,
		Email:          ni.Email,
		Role:           ni.Role,
		Department:     null.NewString(ni.Department, ni.Department != ""),
		OrganizationID: orgID,
		InviterID:      inviterID,
		Status:         StatusPending,
		ExpiresAt:      now.Add(svc.expirationDelta()),
		CreatedAt:      now,
	})
	if err != nil {
		return Created{}, errors.Wrap(err, "creating invitation")
	}

	if err = svc.send(ctx, inv, org, inviter); err != nil {
		if delErr := svc.repo.DeleteInvitation(ctx, inv.ID); delErr != nil {
			return Created{}, errors.Wrapf(err, "sending invitation email (rollback failed: %v)", delErr)
		}
		return Created{}, errors.Wrap(err, "sending invitation email")
	}
	return Created{Invitation: inv, URL: svc.URL(inv)}, nil
}

func (svc *Service) send(ctx context.Context, inv Invitation, org organization.Organization, inviter user.User) error {
	return svc.mailSvc.SendMessage(ctx, &core.EmailMessage{
		To:           []mail.Address{{Address: inv.Email}},
		Subject:      "You're invited to join " + org.Name,
		TemplateName: "invitation",
		TemplateData: map[string]interface{}{
			"InviterName":      inviter.Name,
			"OrganizationName": org.Name,
			"Role":             inv.Role,
			"URL":              svc.URL(inv),
			"ExpiresAt":        inv.ExpiresAt,
		},
	})
}

func (svc *Service) getByToken(ctx context.Context, token string) (Invitation, error) {
	if token == "" {
		return Invitation{}, ErrNotFound
	}
	return svc.repo.GetInvitationByToken(ctx, token)
}

// Fetch returns the invitation with the summaries of its organization and inviter.
func (svc *Service) Fetch(ctx context.Context, token string) (Details, error) {
	inv, err := svc.getByToken(ctx, token)
	if err != nil {
		return Details{}, err
	}
	org, err := svc.orgSvc.Find(ctx, inv.OrganizationID)
	if err != nil {
		return Details{}, errors.Wrap(err, "finding organization")
	}
	inviter, err := svc.usrSvc.GetByID(ctx, inv.InviterID)
	if err != nil {
		return Details{}, errors.Wrap(err, "finding inviter")
	}
	return Details{
		Invitation:      inv,
		EffectiveStatus: inv.EffectiveStatus(core.NowFunc()),
		Organization:    org.Summary(),
		Inviter:         InviterSummary{ID: inviter.ID, Name: inviter.Name, Email: inviter.Email},
	}, nil
}

// checkAnswerable enforces: expired first, then already processed.
func checkAnswerable(inv Invitation, now time.Time) error {
	if inv.IsExpired(now) {
		return ErrExpired
	}
	switch {
	case inv.Status == StatusAccepted || inv.AcceptedAt.Valid:
		return ErrAlreadyAccepted
	case inv.Status == StatusRejected:
		return ErrAlreadyRejected
	case inv.Status != StatusPending:
		return ErrAlreadyProcessed
	}
	return nil
}

// Accept claims the invitation, finds or creates the invitee's account and makes them a
// member of the organization, all in one transaction.
func (svc *Service) Accept(ctx context.Context, token string, ai AcceptInvitation) (Accepted, user.User, error) {
	var (
		res Accepted
		usr user.User
	)
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		inv, err := svc.getByToken(ctx, token)
		if err != nil {
			return err
		}
		now := core.NowFunc()
		if err = checkAnswerable(inv, now); err != nil {
			return err
		}

		if inv, err = svc.repo.MarkAccepted(ctx, inv.ID, now); err != nil {
			return err
		}

		var created bool
		usr, created, err = svc.usrSvc.FindOrCreate(ctx, inv.Email, ai.Name, ai.Password)
		if err != nil {
			return err
		}
		if !usr.IsActive {
			return user.ErrAccountDeactivated
		}

		m, err := svc.orgSvc.AddMember(ctx, inv.OrganizationID, usr.ID, inv.Role, inv.Department)
		if err != nil {
			return err
		}
		res = Accepted{Invitation: inv, Member: m, UserCreated: created}
		return nil
	})
	if err != nil {
		return Accepted{}, user.User{}, err
	}
	return res, usr, nil
}

// Reject closes the invitation, keeping the optional reason.
func (svc *Service) Reject(ctx context.Context, token string, ri RejectInvitation) (Invitation, error) {
	inv, err := svc.getByToken(ctx, token)
	if err != nil {
		return Invitation{}, err
	}
	now := core.NowFunc()
	if err = checkAnswerable(inv, now); err != nil {
		return Invitation{}, err
	}
	return svc.repo.MarkRejected(ctx, inv.ID, now, null.NewString(ri.Reason, ri.Reason != ""))
}

func (svc *Service) getOwned(ctx context.Context, orgID, invitationID, callerID string) (Invitation, organization.Organization, error) {
	org, err := svc.orgSvc.Find(ctx, orgID)
	if err != nil {
		return Invitation{}, organization.Organization{}, err
	}
	if !org.IsOwner(callerID) {
		return Invitation{}, organization.Organization{}, core.ErrForbidden
	}
	if !core.IsValidID(invitationID) {
		return Invitation{}, organization.Organization{}, ErrNotFound
	}
	inv, err := svc.repo.GetInvitationByID(ctx, orgID, invitationID)
	return inv, org, err
}

// Resend emails the acceptance link again; the expiry is left untouched.
func (svc *Service) Resend(ctx context.Context, orgID, invitationID, callerID string) (Invitation, error) {
	inv, org, err := svc.getOwned(ctx, orgID, invitationID, callerID)
	if err != nil {
		return Invitation{}, err
	}
	if err = checkAnswerable(inv, core.NowFunc()); err != nil {
		return Invitation{}, err
	}

	inviter, err := svc.usrSvc.GetByID(ctx, inv.InviterID)
	if err != nil {
		return Invitation{}, errors.Wrap(err, "finding inviter")
	}
	if err = svc.send(ctx, inv, org, inviter); err != nil {
		return Invitation{}, errors.Wrap(err, "sending invitation email")
	}
	return inv, nil
}

func (svc *Service) Delete(ctx context.Context, orgID, invitationID, callerID string) error {
	inv, _, err := svc.getOwned(ctx, orgID, invitationID, callerID)
	if err != nil {
		return err
	}
	return svc.repo.DeleteInvitation(ctx, inv.ID)
}

// List returns the invitations of the organization, newest first.
func (svc *Service) List(ctx context.Context, orgID, callerID string, filter QueryFilter) ([]Invitation, error) {
	if _, err := svc.orgSvc.Get(ctx, orgID, callerID); err != nil {
		return nil, err
	}
	return svc.repo.QueryInvitations(ctx, orgID, filter, core.NowFunc())
}
