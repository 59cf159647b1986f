package course_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/tests"
)

const pwd = "Pa$$w0rd!"

func TestCreateCourse(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, env.UserRepo, "Tina", "tina@test.test", pwd, user.RoleInstructor, true)
	student := testutil.CreateUser(t, env.UserRepo, "Sam", "sam@test.test", pwd, user.RoleStudent, true)
	org := testutil.CreateOrganization(t, env.OrgSvc, student, "Sam's Club", "")

	_, err := env.CourseSvc.Create(ctx, student, course.NewCourse{Title: "Nope"})
	assert.Equal(t, course.ErrInstructorOnly, errors.Cause(err))

	_, err = env.CourseSvc.Create(ctx, instructor, course.NewCourse{Title: "Go", OrganizationID: org.ID})
	assert.Equal(t, course.ErrNotOrgMember, errors.Cause(err))

	c, err := env.CourseSvc.Create(ctx, instructor, course.NewCourse{Title: "Go", Description: "Learn Go"})
	require.NoError(t, err)
	assert.Equal(t, course.StatusDraft, c.Status)
	assert.Equal(t, instructor.ID, c.InstructorID)
	assert.Equal(t, instructor.Name, c.InstructorName)
	assert.False(t, c.OrganizationID.Valid)
}

func TestCourseStructure(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, env.UserRepo, "Tina", "tina@test.test", pwd, user.RoleInstructor, true)
	other := testutil.CreateUser(t, env.UserRepo, "Otto", "otto@test.test", pwd, user.RoleInstructor, true)
	admin := testutil.CreateUser(t, env.UserRepo, "Root", "root@test.test", pwd, user.RoleAdmin, true)
	student := testutil.CreateUser(t, env.UserRepo, "Sam", "sam@test.test", pwd, user.RoleStudent, true)

	c, err := env.CourseSvc.Create(ctx, instructor, course.NewCourse{Title: "Go"})
	require.NoError(t, err)

	m1, err := env.CourseSvc.AddModule(ctx, c.ID, instructor, course.NewModule{Title: "Basics"})
	require.NoError(t, err)
	m2, err := env.CourseSvc.AddModule(ctx, c.ID, instructor, course.NewModule{Title: "Concurrency"})
	require.NoError(t, err)
	assert.Equal(t, 1, m1.Position)
	assert.Equal(t, 2, m2.Position)
	assert.Empty(t, m1.Lessons)

	for _, title := range []string{"Channels", "Select"} {
		_, err = env.CourseSvc.AddLesson(ctx, c.ID, m2.ID, instructor, course.NewLesson{Title: title})
		require.NoError(t, err)
	}
	l, err := env.CourseSvc.AddLesson(ctx, c.ID, m1.ID, instructor, course.NewLesson{Title: "Types", DurationMinutes: 15})
	require.NoError(t, err)
	assert.Equal(t, 1, l.Position)

	_, err = env.CourseSvc.AddLesson(ctx, c.ID, core.NewID(), instructor, course.NewLesson{Title: "Lost"})
	assert.Equal(t, course.ErrModuleNotFound, errors.Cause(err))

	details, err := env.CourseSvc.Get(ctx, c.ID, instructor)
	require.NoError(t, err)
	require.Len(t, details.Modules, 2)
	assert.Equal(t, "Basics", details.Modules[0].Title)
	require.Len(t, details.Modules[1].Lessons, 2)
	assert.Equal(t, "Channels", details.Modules[1].Lessons[0].Title)
	assert.Equal(t, 2, details.Modules[1].Lessons[1].Position)

	// drafts are hidden from everyone but their instructor and admins
	_, err = env.CourseSvc.Get(ctx, c.ID, student)
	assert.Equal(t, course.ErrNotFound, errors.Cause(err))
	_, err = env.CourseSvc.AddModule(ctx, c.ID, other, course.NewModule{Title: "Mine"})
	assert.Equal(t, course.ErrNotFound, errors.Cause(err))
	_, err = env.CourseSvc.Get(ctx, c.ID, admin)
	require.NoError(t, err)

	published := course.StatusPublished
	_, err = env.CourseSvc.Update(ctx, c.ID, other, course.UpdateCourse{Status: &published})
	assert.Equal(t, course.ErrNotFound, errors.Cause(err))
	c, err = env.CourseSvc.Update(ctx, c.ID, admin, course.UpdateCourse{Status: &published})
	require.NoError(t, err)
	assert.True(t, c.IsPublished())

	_, err = env.CourseSvc.AddModule(ctx, c.ID, other, course.NewModule{Title: "Mine"})
	assert.Equal(t, course.ErrNotCourseOwner, errors.Cause(err))
	_, err = env.CourseSvc.AddModule(ctx, c.ID, admin, course.NewModule{Title: "Mine"})
	assert.Equal(t, course.ErrNotCourseOwner, errors.Cause(err))

	details, err = env.CourseSvc.Get(ctx, c.ID, student)
	require.NoError(t, err)
	assert.Len(t, details.Modules, 2)
}

func TestListCourses(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, env.UserRepo, "Tina", "tina@test.test", pwd, user.RoleInstructor, true)
	student := testutil.CreateUser(t, env.UserRepo, "Sam", "sam@test.test", pwd, user.RoleStudent, true)

	testutil.CreateCourse(t, env.CourseSvc, instructor, "Go", course.StatusPublished, 1)
	testutil.CreateCourse(t, env.CourseSvc, instructor, "Rust", course.StatusDraft, 1)
	testutil.CreateCourse(t, env.CourseSvc, instructor, "Gone", course.StatusArchived, 0)

	tests := []struct {
		name   string
		caller user.User
		filter course.QueryFilter
		want   int
	}{
		{name: "published only", caller: student, want: 1},
		{name: "search", caller: student, filter: course.QueryFilter{Search: "go"}, want: 1},
		{name: "search miss", caller: student, filter: course.QueryFilter{Search: "rust"}, want: 0},
		{name: "mine", caller: instructor, filter: course.QueryFilter{Mine: true}, want: 3},
		{name: "mine without courses", caller: student, filter: course.QueryFilter{Mine: true}, want: 0},
		{name: "status cannot be forced", caller: student, filter: course.QueryFilter{Status: course.StatusDraft}, want: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			courses, err := env.CourseSvc.List(ctx, tc.caller, tc.filter)
			require.NoError(t, err)
			assert.Len(t, courses, tc.want)
		})
	}
}

func TestEnrollmentAndProgress(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, env.UserRepo, "Tina", "tina@test.test", pwd, user.RoleInstructor, true)
	student := testutil.CreateUser(t, env.UserRepo, "Sam", "sam@test.test", pwd, user.RoleStudent, true)

	draft, _ := testutil.CreateCourse(t, env.CourseSvc, instructor, "Draft", course.StatusDraft, 1)
	archived, _ := testutil.CreateCourse(t, env.CourseSvc, instructor, "Old", course.StatusArchived, 1)
	c, lessons := testutil.CreateCourse(t, env.CourseSvc, instructor, "Go", course.StatusPublished, 3)
	other, otherLessons := testutil.CreateCourse(t, env.CourseSvc, instructor, "Other", course.StatusPublished, 1)

	_, err := env.CourseSvc.Enroll(ctx, draft.ID, student)
	assert.Equal(t, course.ErrNotFound, errors.Cause(err))
	_, err = env.CourseSvc.Enroll(ctx, archived.ID, student)
	assert.Equal(t, course.ErrNotOpen, errors.Cause(err))

	_, err = env.CourseSvc.CompleteLesson(ctx, c.ID, lessons[0].ID, student.ID)
	assert.Equal(t, course.ErrNotEnrolled, errors.Cause(err))

	e, err := env.CourseSvc.Enroll(ctx, c.ID, student)
	require.NoError(t, err)
	assert.Equal(t, student.ID, e.StudentID)
	_, err = env.CourseSvc.Enroll(ctx, c.ID, student)
	assert.Equal(t, course.ErrAlreadyEnrolled, errors.Cause(err))

	p, err := env.CourseSvc.Progress(ctx, c.ID, student.ID)
	require.NoError(t, err)
	assert.Equal(t, course.Progress{CourseID: c.ID, TotalLessons: 3}, p)

	p, err = env.CourseSvc.CompleteLesson(ctx, c.ID, lessons[0].ID, student.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.CompletedLessons)
	assert.InDelta(t, 33.33, p.Percentage, 0.01)
	assert.False(t, p.Completed)

	// completing twice changes nothing
	p, err = env.CourseSvc.CompleteLesson(ctx, c.ID, lessons[0].ID, student.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.CompletedLessons)

	_, err = env.CourseSvc.CompleteLesson(ctx, c.ID, otherLessons[0].ID, student.ID)
	assert.Equal(t, course.ErrLessonNotFound, errors.Cause(err))
	_, err = env.CourseSvc.CompleteLesson(ctx, c.ID, "nope", student.ID)
	assert.Equal(t, course.ErrLessonNotFound, errors.Cause(err))

	for _, l := range lessons[1:] {
		p, err = env.CourseSvc.CompleteLesson(ctx, c.ID, l.ID, student.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, course.Progress{CourseID: c.ID, CompletedLessons: 3, TotalLessons: 3, Percentage: 100, Completed: true}, p)

	_, err = env.CourseSvc.Progress(ctx, other.ID, student.ID)
	assert.Equal(t, course.ErrNotEnrolled, errors.Cause(err))

	// deleting a course drops its enrollments
	require.NoError(t, env.CourseSvc.Delete(ctx, c.ID, instructor))
	dash, err := env.DashSvc.StudentDashboard(ctx, student.ID)
	require.NoError(t, err)
	assert.Empty(t, dash.Courses)
	_, err = env.CourseSvc.Get(ctx, c.ID, instructor)
	assert.Equal(t, course.ErrNotFound, errors.Cause(err))
}
