package dashboard

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
)

type (
	Repository interface {
		// QueryStudentEnrollments returns the enrollments of a student.
		QueryStudentEnrollments(ctx context.Context, studentID string) ([]EnrollmentRow, error)
		// QueryInstructorCourses returns the courses taught by an instructor.
		QueryInstructorCourses(ctx context.Context, instructorID string) ([]CourseRow, error)
		// QueryInstructorEnrollments returns the enrollments in the courses taught by an instructor.
		QueryInstructorEnrollments(ctx context.Context, instructorID string) ([]EnrollmentRow, error)
	}

	// Service aggregates dashboards from the current state of the database; nothing is cached.
	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) StudentDashboard(ctx context.Context, studentID string) (StudentDashboard, error) {
	rows, err := svc.repo.QueryStudentEnrollments(ctx, studentID)
	if err != nil {
		return StudentDashboard{}, errors.Wrap(err, "querying student enrollments")
	}
	return buildStudentDashboard(rows), nil
}

func buildStudentDashboard(rows []EnrollmentRow) StudentDashboard {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].EnrolledAt.After(rows[j].EnrolledAt) })

	var (
		stats         StudentStats
		totalProgress float64
	)
	courses := make([]StudentCourseRow, 0, len(rows))
	for _, r := range rows {
		p := course.NewProgress(r.CourseID, r.CompletedLessons, r.TotalLessons)
		courses = append(courses, StudentCourseRow{
			CourseID:         r.CourseID,
			Title:            r.CourseTitle,
			InstructorName:   r.InstructorName,
			TotalLessons:     p.TotalLessons,
			CompletedLessons: p.CompletedLessons,
			Progress:         p.Percentage,
			Completed:        p.Completed,
			EnrolledAt:       r.EnrolledAt,
		})

		stats.TotalLessonsCompleted += p.CompletedLessons
		totalProgress += p.Percentage
		switch {
		case p.Completed:
			stats.CompletedCourses++
		case p.CompletedLessons > 0:
			stats.InProgressCourses++
		}
	}
	stats.TotalEnrolled = len(rows)
	if stats.TotalEnrolled > 0 {
		stats.AverageProgress = totalProgress / float64(stats.TotalEnrolled)
	}
	return StudentDashboard{Stats: stats, Courses: courses}
}

func (svc *Service) InstructorDashboard(ctx context.Context, instructorID string) (InstructorDashboard, error) {
	courses, err := svc.repo.QueryInstructorCourses(ctx, instructorID)
	if err != nil {
		return InstructorDashboard{}, errors.Wrap(err, "querying instructor courses")
	}
	enrollments, err := svc.repo.QueryInstructorEnrollments(ctx, instructorID)
	if err != nil {
		return InstructorDashboard{}, errors.Wrap(err, "querying instructor enrollments")
	}
	return buildInstructorDashboard(courses, enrollments, core.NowFunc()), nil
}

func buildInstructorDashboard(courses []CourseRow, enrollments []EnrollmentRow, now time.Time) InstructorDashboard {
	type counts struct{ enrollments, completions int }
	perCourse := make(map[string]*counts, len(courses))
	students := make(map[string]struct{})

	var stats InstructorStats
	var completions int
	for _, e := range enrollments {
		c, ok := perCourse[e.CourseID]
		if !ok {
			c = new(counts)
			perCourse[e.CourseID] = c
		}
		c.enrollments++
		if course.IsCompleted(e.CompletedLessons, e.TotalLessons) {
			c.completions++
			completions++
		}
		students[e.StudentID] = struct{}{}
	}

	sort.SliceStable(courses, func(i, j int) bool { return courses[i].CreatedAt.After(courses[j].CreatedAt) })
	rows := make([]InstructorCourseStats, 0, len(courses))
	for _, c := range courses {
		row := InstructorCourseStats{
			CourseID:     c.CourseID,
			Title:        c.Title,
			Status:       c.Status,
			TotalLessons: c.TotalLessons,
			CreatedAt:    c.CreatedAt,
		}
		if cnt, ok := perCourse[c.CourseID]; ok {
			row.EnrollmentCount = cnt.enrollments
			row.CompletionCount = cnt.completions
		}
		if c.Status == course.StatusPublished {
			stats.PublishedCourses++
		}
		rows = append(rows, row)
	}

	stats.TotalCourses = len(courses)
	stats.TotalEnrollments = len(enrollments)
	stats.UniqueStudents = len(students)
	if stats.TotalEnrollments > 0 {
		stats.AverageCompletionRate = float64(completions) / float64(stats.TotalEnrollments) * 100
	}

	return InstructorDashboard{
		Stats:            stats,
		Courses:          rows,
		EnrollmentTrends: EnrollmentTrends(enrollments, now),
	}
}

// EnrollmentTrends counts enrollments per calendar day (UTC) over the TrendDays days
// ending on `now`, oldest first; days without enrollments count 0.
func EnrollmentTrends(enrollments []EnrollmentRow, now time.Time) []TrendPoint {
	today := core.TruncateDay(now)
	first := today.AddDate(0, 0, -(TrendDays - 1))

	perDay := make(map[string]int, TrendDays)
	for _, e := range enrollments {
		day := core.TruncateDay(e.EnrolledAt)
		if day.Before(first) || day.After(today) {
			continue
		}
		perDay[day.Format(DateLayout)]++
	}

	points := make([]TrendPoint, 0, TrendDays)
	for d := first; !d.After(today); d = d.AddDate(0, 0, 1) {
		date := d.Format(DateLayout)
		points = append(points, TrendPoint{Date: date, Count: perDay[date]})
	}
	return points
}

// StudentProgress returns the course rows of a student, as seen by caller: the student
// themself and admins see every course, instructors only the courses they teach.
func (svc *Service) StudentProgress(ctx context.Context, caller user.User, studentID string) ([]StudentCourseRow, error) {
	rows, err := svc.repo.QueryStudentEnrollments(ctx, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying student enrollments")
	}
	if caller.ID == studentID || caller.IsAdmin() {
		return buildStudentDashboard(rows).Courses, nil
	}
	if !caller.IsInstructor() {
		return nil, core.ErrForbidden
	}

	taught := rows[:0]
	for _, r := range rows {
		if r.InstructorID == caller.ID {
			taught = append(taught, r)
		}
	}
	if len(taught) == 0 {
		return nil, core.ErrForbidden
	}
	return buildStudentDashboard(taught).Courses, nil
}
