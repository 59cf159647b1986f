package database

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core/invitation"
)

type invitationRepository struct {
	db *sqlx.DB
}

var _ invitation.Repository = (*invitationRepository)(nil)

func NewInvitationRepository(db *sqlx.DB) invitation.Repository {
	return &invitationRepository{db: db}
}

func (repo *invitationRepository) CreateInvitation(ctx context.Context, inv invitation.Invitation) (invitation.Invitation, error) {
	_, err := exec(ctx, conn(ctx, repo.db), psql.Insert("invitations").
		Columns("id", "token", "email", "role", "department", "organization_id", "inviter_id", "status", "expires_at", "created_at").
		Values(inv.ID, inv.Token, inv.Email, inv.Role, inv.Department, inv.OrganizationID, inv.InviterID, inv.Status, inv.ExpiresAt, inv.CreatedAt))
	if err != nil {
		return invitation.Invitation{}, mapError(err, nil)
	}
	return inv, nil
}

func (repo *invitationRepository) getBy(ctx context.Context, where sq.Eq) (invitation.Invitation, error) {
	var inv invitation.Invitation
	err := get(ctx, conn(ctx, repo.db), &inv, psql.Select("*").From("invitations").Where(where))
	return inv, mapError(err, invitation.ErrNotFound)
}

func (repo *invitationRepository) GetInvitationByToken(ctx context.Context, token string) (invitation.Invitation, error) {
	return repo.getBy(ctx, sq.Eq{"token": token})
}

func (repo *invitationRepository) GetInvitationByID(ctx context.Context, orgID, id string) (invitation.Invitation, error) {
	return repo.getBy(ctx, sq.Eq{"organization_id": orgID, "id": id})
}

func (repo *invitationRepository) PendingInvitationExists(ctx context.Context, orgID, email string, now time.Time) (bool, error) {
	return existsQuery(ctx, conn(ctx, repo.db), psql.
		Select("1").
		From("invitations").
		Where(sq.Eq{"organization_id": orgID, "email": email, "status": invitation.StatusPending}).
		Where(sq.GtOrEq{"expires_at": now}))
}

// mark moves a pending invitation to its final status; the status condition makes
// concurrent answers race on the row lock, and only the first one updates it.
func (repo *invitationRepository) mark(ctx context.Context, id string, set map[string]interface{}) (invitation.Invitation, error) {
	query, args, err := psql.Update("invitations").
		SetMap(set).
		Where(sq.Eq{"id": id, "status": invitation.StatusPending, "accepted_at": nil}).
		Suffix("RETURNING *").
		ToSql()
	if err != nil {
		return invitation.Invitation{}, errors.Wrap(err, "building query")
	}

	var inv invitation.Invitation
	err = conn(ctx, repo.db).GetContext(ctx, &inv, query, args...)
	return inv, mapError(err, invitation.ErrAlreadyProcessed)
}

func (repo *invitationRepository) MarkAccepted(ctx context.Context, id string, at time.Time) (invitation.Invitation, error) {
	return repo.mark(ctx, id, map[string]interface{}{
		"status":      invitation.StatusAccepted,
		"accepted_at": at,
	})
}

func (repo *invitationRepository) MarkRejected(ctx context.Context, id string, at time.Time, reason null.String) (invitation.Invitation, error) {
	return repo.mark(ctx, id, map[string]interface{}{
		"status":           invitation.StatusRejected,
		"rejected_at":      at,
		"rejection_reason": reason,
	})
}

func (repo *invitationRepository) DeleteInvitation(ctx context.Context, id string) error {
	n, err := exec(ctx, conn(ctx, repo.db), psql.Delete("invitations").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting invitation")
	}
	if n == 0 {
		return invitation.ErrNotFound
	}
	return nil
}

func (repo *invitationRepository) QueryInvitations(ctx context.Context, orgID string, filter invitation.QueryFilter, now time.Time) ([]invitation.Invitation, error) {
	q := psql.Select("*").From("invitations").Where(sq.Eq{"organization_id": orgID})
	switch filter.Status {
	case invitation.StatusPending:
		q = q.Where(sq.Eq{"status": invitation.StatusPending}).Where(sq.GtOrEq{"expires_at": now})
	case invitation.StatusExpired:
		q = q.Where(sq.Eq{"status": invitation.StatusPending}).Where(sq.Lt{"expires_at": now})
	case "":
	default:
		q = q.Where(sq.Eq{"status": filter.Status})
	}
	if filter.Email != "" {
		q = q.Where(sq.Eq{"email": filter.Email})
	}

	invitations := make([]invitation.Invitation, 0)
	if err := selectAll(ctx, conn(ctx, repo.db), &invitations, q.OrderBy("created_at DESC")); err != nil {
		return nil, errors.Wrap(err, "querying invitations")
	}
	return invitations, nil
}
