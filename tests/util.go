package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/dashboard"
	"github.com/trezcool/academia/core/export"
	"github.com/trezcool/academia/core/invitation"
	"github.com/trezcool/academia/core/organization"
	"github.com/trezcool/academia/core/user"
	emailsvc "github.com/trezcool/academia/services/email"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
)

// Env wires every service over a fresh in-memory database.
type Env struct {
	Conf *core.Config
	DB   *inmemdb.DB
	Mail *emailsvc.ConsoleServiceMock

	UserRepo   user.Repository
	OrgRepo    organization.Repository
	InviteRepo invitation.Repository
	CourseRepo course.Repository

	UserSvc   *user.Service
	OrgSvc    *organization.Service
	InviteSvc *invitation.Service
	CourseSvc *course.Service
	DashSvc   *dashboard.Service
	ExportSvc *export.Service
}

func NewEnv(t *testing.T) *Env {
	t.Helper()
	env := &Env{
		Conf: core.NewTestConfig(),
		DB:   inmemdb.NewDB(),
	}
	env.Mail = emailsvc.NewConsoleServiceMock(env.Conf)
	tx := inmemdb.NewTxRunner(env.DB)

	env.UserRepo = inmemdb.NewUserRepository(env.DB)
	env.OrgRepo = inmemdb.NewOrganizationRepository(env.DB)
	env.InviteRepo = inmemdb.NewInvitationRepository(env.DB)
	env.CourseRepo = inmemdb.NewCourseRepository(env.DB)

	env.UserSvc = user.NewService(env.UserRepo, env.Mail, env.Conf)
	env.OrgSvc = organization.NewService(env.OrgRepo, tx)
	env.InviteSvc = invitation.NewService(env.InviteRepo, env.OrgSvc, env.UserSvc, env.Mail, tx, env.Conf)
	env.CourseSvc = course.NewService(env.CourseRepo, env.OrgSvc, tx)
	env.DashSvc = dashboard.NewService(inmemdb.NewDashboardRepository(env.DB))
	env.ExportSvc = export.NewService(env.DashSvc, env.UserSvc)
	return env
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        core.NewID(),
		Name:      name,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// CreateOrganization creates an organization owned by owner, with owner as its admin member.
func CreateOrganization(t *testing.T, svc *organization.Service, owner user.User, name, tier string) organization.Organization {
	t.Helper()
	org, err := svc.Create(context.Background(), organization.NewOrganization{
		Name: name,
		Slug: core.Slugify(name),
		Tier: tier,
	}, owner.ID)
	require.NoError(t, err)
	return org
}

// CreateCourse creates a course of instructor with one module holding the given number of lessons.
func CreateCourse(t *testing.T, svc *course.Service, instructor user.User, title, status string, lessons int) (course.Course, []course.Lesson) {
	t.Helper()
	ctx := context.Background()

	c, err := svc.Create(ctx, instructor, course.NewCourse{Title: title})
	require.NoError(t, err)
	m, err := svc.AddModule(ctx, c.ID, instructor, course.NewModule{Title: title + " basics"})
	require.NoError(t, err)

	ls := make([]course.Lesson, 0, lessons)
	for i := 0; i < lessons; i++ {
		l, err := svc.AddLesson(ctx, c.ID, m.ID, instructor, course.NewLesson{Title: "Lesson", DurationMinutes: 10})
		require.NoError(t, err)
		ls = append(ls, l)
	}

	if status != "" && status != course.StatusDraft {
		c, err = svc.Update(ctx, c.ID, instructor, course.UpdateCourse{Status: &status})
		require.NoError(t, err)
	}
	return c, ls
}

// SetNow freezes core.NowFunc at now until the test ends.
func SetNow(t *testing.T, now time.Time) {
	t.Helper()
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { core.NowFunc = orig })
}
