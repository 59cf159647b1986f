package tests

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/dashboard"
	"github.com/trezcool/academia/core/export"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/tests"
)

func TestCourseAPI(t *testing.T) {
	app := setup(t)
	instructor := testutil.CreateUser(t, app.env.UserRepo, "Tina", "tina@test.test", pwd, user.RoleInstructor, true)
	student := testutil.CreateUser(t, app.env.UserRepo, "Sam", "sam@test.test", pwd, user.RoleStudent, true)
	instructorSession := app.login(t, instructor.Email)
	studentSession := app.login(t, student.Email)

	rec := app.do(t, http.MethodPost, "/v1/courses", echoMap{"title": "Go"}, studentSession)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodPost, "/v1/courses", echoMap{"title": "Go", "description": "Learn Go"}, instructorSession)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c course.Course
	decodeData(t, rec, &c)
	assert.Equal(t, course.StatusDraft, c.Status)
	coursePath := "/v1/courses/" + c.ID

	rec = app.do(t, http.MethodPost, coursePath+"/modules", echoMap{"title": "Basics"}, instructorSession)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var m course.Module
	decodeData(t, rec, &m)

	var lessons []course.Lesson
	for _, title := range []string{"Types", "Funcs"} {
		rec = app.do(t, http.MethodPost, coursePath+"/modules/"+m.ID+"/lessons", echoMap{"title": title, "duration_minutes": 10}, instructorSession)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var l course.Lesson
		decodeData(t, rec, &l)
		lessons = append(lessons, l)
	}
	assert.Equal(t, 2, lessons[1].Position)

	// drafts are hidden from students
	rec = app.do(t, http.MethodGet, coursePath, nil, studentSession)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = app.do(t, http.MethodPost, coursePath+"/enroll", nil, studentSession)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(t, http.MethodPatch, coursePath, echoMap{"status": "published"}, instructorSession)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodGet, coursePath, nil, studentSession)
	require.Equal(t, http.StatusOK, rec.Code)
	var details course.Details
	decodeData(t, rec, &details)
	require.Len(t, details.Modules, 1)
	assert.Len(t, details.Modules[0].Lessons, 2)

	rec = app.do(t, http.MethodGet, "/v1/courses", nil, studentSession)
	require.Equal(t, http.StatusOK, rec.Code)
	var courses []course.Course
	decodeData(t, rec, &courses)
	assert.Len(t, courses, 1)

	// instructors cannot enroll
	rec = app.do(t, http.MethodPost, coursePath+"/enroll", nil, instructorSession)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodPost, coursePath+"/lessons/"+lessons[0].ID+"/complete", nil, studentSession)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodPost, coursePath+"/enroll", nil, studentSession)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = app.do(t, http.MethodPost, coursePath+"/enroll", nil, studentSession)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, http.MethodPost, coursePath+"/lessons/"+lessons[0].ID+"/complete", nil, studentSession)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var p course.Progress
	decodeData(t, rec, &p)
	assert.Equal(t, 1, p.CompletedLessons)
	assert.Equal(t, float64(50), p.Percentage)

	rec = app.do(t, http.MethodGet, coursePath+"/progress", nil, studentSession)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &p)
	assert.Equal(t, course.Progress{CourseID: c.ID, CompletedLessons: 1, TotalLessons: 2, Percentage: 50}, p)

	rec = app.do(t, http.MethodGet, "/v1/dashboard/student", nil, studentSession)
	require.Equal(t, http.StatusOK, rec.Code)
	var studentDash dashboard.StudentDashboard
	decodeData(t, rec, &studentDash)
	assert.Equal(t, dashboard.StudentStats{
		TotalEnrolled:         1,
		InProgressCourses:     1,
		TotalLessonsCompleted: 1,
		AverageProgress:       50,
	}, studentDash.Stats)

	rec = app.do(t, http.MethodGet, "/v1/dashboard/student", nil, instructorSession)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodGet, "/v1/dashboard/instructor", nil, instructorSession)
	require.Equal(t, http.StatusOK, rec.Code)
	var instructorDash dashboard.InstructorDashboard
	decodeData(t, rec, &instructorDash)
	assert.Equal(t, 1, instructorDash.Stats.PublishedCourses)
	assert.Equal(t, 1, instructorDash.Stats.UniqueStudents)
	assert.Len(t, instructorDash.EnrollmentTrends, dashboard.TrendDays)

	rec = app.do(t, http.MethodDelete, coursePath, nil, instructorSession)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = app.do(t, http.MethodGet, coursePath, nil, instructorSession)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportAPI(t *testing.T) {
	app := setup(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, app.env.UserRepo, "Tina", "tina@test.test", pwd, user.RoleInstructor, true)
	student := testutil.CreateUser(t, app.env.UserRepo, "Sam", "sam@test.test", pwd, user.RoleStudent, true)
	stranger := testutil.CreateUser(t, app.env.UserRepo, "Stan", "stan@test.test", pwd, user.RoleStudent, true)
	instructorSession := app.login(t, instructor.Email)
	studentSession := app.login(t, student.Email)

	c, lessons := testutil.CreateCourse(t, app.env.CourseSvc, instructor, `Go, "the" language`, course.StatusPublished, 2)
	_, err := app.env.CourseSvc.Enroll(ctx, c.ID, student)
	require.NoError(t, err)
	_, err = app.env.CourseSvc.CompleteLesson(ctx, c.ID, lessons[0].ID, student.ID)
	require.NoError(t, err)

	today := core.NowFunc().Format(dashboard.DateLayout)

	rec := app.do(t, http.MethodGet, "/v1/export?format=csv&type=courses", nil, instructorSession)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, export.ContentTypeCSV, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="courses_`+today+`.csv"`, rec.Header().Get("Content-Disposition"))
	records, err := csv.NewReader(bytes.NewReader(rec.Body.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Course ID", records[0][0])
	assert.Equal(t, c.Title, records[1][1])

	rec = app.do(t, http.MethodGet, "/v1/export?format=pdf&type=enrollment-trends", nil, instructorSession)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, export.ContentTypePDF, rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	tests := []struct {
		name     string
		query    string
		session  *http.Cookie
		wantCode int
	}{
		{name: "own progress", query: "format=csv&type=progress", session: studentSession, wantCode: http.StatusOK},
		{name: "student progress for its instructor", query: "format=csv&type=progress&studentId=" + student.ID, session: instructorSession, wantCode: http.StatusOK},
		{name: "progress of a stranger", query: "format=csv&type=progress&studentId=" + stranger.ID, session: instructorSession, wantCode: http.StatusForbidden},
		{name: "another student's progress", query: "format=csv&type=progress&studentId=" + stranger.ID, session: studentSession, wantCode: http.StatusForbidden},
		{name: "unknown student's progress", query: "format=csv&type=progress&studentId=" + core.NewID(), session: studentSession, wantCode: http.StatusForbidden},
		{name: "students cannot export courses", query: "format=csv&type=courses", session: studentSession, wantCode: http.StatusForbidden},
		{name: "unknown format", query: "format=xls&type=courses", session: instructorSession, wantCode: http.StatusBadRequest},
		{name: "missing type", query: "format=csv", session: instructorSession, wantCode: http.StatusBadRequest},
		{name: "anonymous", query: "format=csv&type=courses", wantCode: http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := app.do(t, http.MethodGet, "/v1/export?"+tc.query, nil, tc.session)
			assert.Equal(t, tc.wantCode, rec.Code, rec.Body.String())
		})
	}
}
