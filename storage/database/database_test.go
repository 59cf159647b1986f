package database

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/invitation"
	"github.com/trezcool/academia/core/organization"
	"github.com/trezcool/academia/core/user"
)

func TestMapError(t *testing.T) {
	other := errors.New("boom")
	tests := []struct {
		name     string
		err      error
		notFound error
		want     error
	}{
		{name: "nil", err: nil, want: nil},
		{name: "no rows", err: sql.ErrNoRows, notFound: user.ErrNotFound, want: user.ErrNotFound},
		{name: "wrapped no rows", err: errors.Wrap(sql.ErrNoRows, "getting"), notFound: course.ErrNotFound, want: course.ErrNotFound},
		{name: "no rows without mapping", err: sql.ErrNoRows, want: sql.ErrNoRows},
		{name: "member exists", err: &pq.Error{Code: "23505", Constraint: "members_organization_id_user_id_key"}, want: organization.ErrMemberExists},
		{name: "slug exists", err: &pq.Error{Code: "23505", Constraint: "organizations_slug_key"}, want: organization.ErrSlugExists},
		{name: "already enrolled", err: &pq.Error{Code: "23505", Constraint: "enrollments_course_id_student_id_key"}, want: course.ErrAlreadyEnrolled},
		{name: "other error", err: other, want: other},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, mapError(tc.err, tc.notFound))
		})
	}

	fk := &pq.Error{Code: "23503", Constraint: "members_user_id_fkey"}
	assert.Equal(t, error(fk), mapError(fk, nil))
}

// openTestDB connects to TEST_DATABASE_URL, migrates it and empties it.
func openTestDB(t *testing.T) *sqlx.DB {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	conf := core.NewTestConfig()
	conf.Database.URL = url

	db, err := Open(conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Ping(context.Background(), db))
	require.NoError(t, Migrate(db))
	_, err = db.Exec("TRUNCATE users, organizations, courses CASCADE")
	require.NoError(t, err)
	return db
}

func createTestUser(ctx context.Context, t *testing.T, repo user.Repository, email, role string) user.User {
	now := core.NowFunc().Truncate(time.Microsecond)
	usr := user.User{ID: core.NewID(), Name: email, Email: email, Role: role, IsActive: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, usr.SetPassword("Pa$$w0rd!"))
	usr, err := repo.CreateUser(ctx, usr)
	require.NoError(t, err)
	return usr
}

func TestRepositories(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := core.NowFunc().Truncate(time.Microsecond)

	usrRepo := NewUserRepository(db)
	orgRepo := NewOrganizationRepository(db)
	invRepo := NewInvitationRepository(db)
	tx := NewTxRunner(db)

	owner := createTestUser(ctx, t, usrRepo, "owner@example.com", user.RoleInstructor)
	_, err := usrRepo.CreateUser(ctx, user.User{ID: core.NewID(), Name: "dup", Email: owner.Email, Role: user.RoleStudent, PasswordHash: []byte("x"), CreatedAt: now, UpdatedAt: now})
	assert.Equal(t, user.ErrEmailExists, err)

	got, err := usrRepo.GetUserByEmail(ctx, owner.Email)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, got.ID)
	_, err = usrRepo.GetUserByID(ctx, core.NewID())
	assert.Equal(t, user.ErrNotFound, err)

	t.Run("organizations", func(t *testing.T) {
		org := organization.Organization{
			ID: core.NewID(), Name: "Acme", Slug: "acme", SubscriptionTier: organization.TierFree, CreatedBy: owner.ID,
			Metadata: organization.TierLimits(organization.TierFree), CreatedAt: now, UpdatedAt: now,
		}
		_, err := orgRepo.CreateOrganization(ctx, org)
		require.NoError(t, err)

		dup := org
		dup.ID = core.NewID()
		_, err = orgRepo.CreateOrganization(ctx, dup)
		assert.Equal(t, organization.ErrSlugExists, err)

		got, err := orgRepo.GetOrganizationByID(ctx, org.ID)
		require.NoError(t, err)
		assert.Equal(t, organization.TierLimits(organization.TierFree), got.Metadata)

		m := organization.Member{ID: core.NewID(), OrganizationID: org.ID, UserID: owner.ID, Role: organization.MemberRoleAdmin, Status: organization.MemberStatusActive, JoinedAt: now, UpdatedAt: now}
		_, err = orgRepo.CreateMember(ctx, m)
		require.NoError(t, err)
		m.ID = core.NewID()
		_, err = orgRepo.CreateMember(ctx, m)
		assert.Equal(t, organization.ErrMemberExists, err)

		ok, err := orgRepo.ActiveMemberExistsByEmail(ctx, org.ID, owner.Email)
		require.NoError(t, err)
		assert.True(t, ok)

		orgs, err := orgRepo.QueryOrganizationsByUser(ctx, owner.ID)
		require.NoError(t, err)
		assert.Len(t, orgs, 1)
	})

	t.Run("transactions roll back", func(t *testing.T) {
		err := tx.WithinTx(ctx, func(ctx context.Context) error {
			createTestUser(ctx, t, usrRepo, "rolled-back@example.com", user.RoleStudent)
			return errors.New("abort")
		})
		assert.EqualError(t, err, "abort")
		_, err = usrRepo.GetUserByEmail(ctx, "rolled-back@example.com")
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("invitations", func(t *testing.T) {
		orgs, err := orgRepo.QueryOrganizationsByUser(ctx, owner.ID)
		require.NoError(t, err)
		require.NotEmpty(t, orgs)

		inv := invitation.Invitation{
			ID: core.NewID(), Token: "token", Email: "x@y.com", Role: organization.MemberRoleMember,
			OrganizationID: orgs[0].ID, InviterID: owner.ID, Status: invitation.StatusPending,
			ExpiresAt: now.Add(time.Hour), CreatedAt: now,
		}
		_, err = invRepo.CreateInvitation(ctx, inv)
		require.NoError(t, err)

		ok, err := invRepo.PendingInvitationExists(ctx, inv.OrganizationID, inv.Email, now)
		require.NoError(t, err)
		assert.True(t, ok)

		accepted, err := invRepo.MarkAccepted(ctx, inv.ID, now)
		require.NoError(t, err)
		assert.Equal(t, invitation.StatusAccepted, accepted.Status)
		assert.True(t, accepted.AcceptedAt.Valid)

		_, err = invRepo.MarkAccepted(ctx, inv.ID, now)
		assert.Equal(t, invitation.ErrAlreadyProcessed, err)
		_, err = invRepo.MarkRejected(ctx, inv.ID, now, accepted.RejectionReason)
		assert.Equal(t, invitation.ErrAlreadyProcessed, err)

		list, err := invRepo.QueryInvitations(ctx, inv.OrganizationID, invitation.QueryFilter{Status: invitation.StatusAccepted}, now)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}
