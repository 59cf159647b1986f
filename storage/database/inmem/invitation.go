package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core/invitation"
)

type invitationRepository struct {
	db *DB
}

var _ invitation.Repository = (*invitationRepository)(nil)

func NewInvitationRepository(db *DB) invitation.Repository {
	return &invitationRepository{db: db}
}

func (repo *invitationRepository) CreateInvitation(_ context.Context, inv invitation.Invitation) (invitation.Invitation, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.t.invitations {
		if other.Token == inv.Token {
			return invitation.Invitation{}, invitation.ErrPendingExists
		}
	}
	repo.db.t.invitations[inv.ID] = inv
	return inv, nil
}

func (repo *invitationRepository) GetInvitationByToken(_ context.Context, token string) (invitation.Invitation, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, inv := range repo.db.t.invitations {
		if inv.Token == token {
			return inv, nil
		}
	}
	return invitation.Invitation{}, invitation.ErrNotFound
}

func (repo *invitationRepository) GetInvitationByID(_ context.Context, orgID, id string) (invitation.Invitation, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	inv, ok := repo.db.t.invitations[id]
	if !ok || inv.OrganizationID != orgID {
		return invitation.Invitation{}, invitation.ErrNotFound
	}
	return inv, nil
}

func (repo *invitationRepository) PendingInvitationExists(_ context.Context, orgID, email string, now time.Time) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, inv := range repo.db.t.invitations {
		if inv.OrganizationID == orgID && inv.Email == email && inv.Status == invitation.StatusPending && !inv.IsExpired(now) {
			return true, nil
		}
	}
	return false, nil
}

// mark applies update to the invitation if it is still pending.
func (repo *invitationRepository) mark(id string, update func(*invitation.Invitation)) (invitation.Invitation, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	inv, ok := repo.db.t.invitations[id]
	if !ok || !inv.IsPending() {
		return invitation.Invitation{}, invitation.ErrAlreadyProcessed
	}
	update(&inv)
	repo.db.t.invitations[id] = inv
	return inv, nil
}

func (repo *invitationRepository) MarkAccepted(_ context.Context, id string, at time.Time) (invitation.Invitation, error) {
	return repo.mark(id, func(inv *invitation.Invitation) {
		inv.Status = invitation.StatusAccepted
		inv.AcceptedAt = null.TimeFrom(at)
	})
}

func (repo *invitationRepository) MarkRejected(_ context.Context, id string, at time.Time, reason null.String) (invitation.Invitation, error) {
	return repo.mark(id, func(inv *invitation.Invitation) {
		inv.Status = invitation.StatusRejected
		inv.RejectedAt = null.TimeFrom(at)
		inv.RejectionReason = reason
	})
}

func (repo *invitationRepository) DeleteInvitation(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.t.invitations[id]; !ok {
		return invitation.ErrNotFound
	}
	delete(repo.db.t.invitations, id)
	return nil
}

func (repo *invitationRepository) QueryInvitations(_ context.Context, orgID string, filter invitation.QueryFilter, now time.Time) ([]invitation.Invitation, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	invitations := make([]invitation.Invitation, 0)
	for _, inv := range repo.db.t.invitations {
		if inv.OrganizationID != orgID {
			continue
		}
		if filter.Status != "" && inv.EffectiveStatus(now) != filter.Status {
			continue
		}
		if filter.Email != "" && inv.Email != filter.Email {
			continue
		}
		invitations = append(invitations, inv)
	}
	sort.SliceStable(invitations, func(i, j int) bool { return invitations[i].CreatedAt.After(invitations[j].CreatedAt) })
	return invitations, nil
}
