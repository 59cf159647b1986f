package database

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/dashboard"
)

const (
	courseLessonCount = `(SELECT COUNT(*) FROM lessons l JOIN modules m ON m.id = l.module_id WHERE m.course_id = c.id)`

	completedLessonCount = `(SELECT COUNT(*) FROM lesson_completions lc
		JOIN lessons l ON l.id = lc.lesson_id
		JOIN modules m ON m.id = l.module_id
		WHERE m.course_id = c.id AND lc.student_id = e.student_id)`
)

var enrollmentSelect = psql.
	Select(
		"c.id AS course_id",
		"c.title AS course_title",
		"c.instructor_id",
		"u.name AS instructor_name",
		"e.student_id",
		"e.enrolled_at",
		courseLessonCount+" AS total_lessons",
		completedLessonCount+" AS completed_lessons",
	).
	From("enrollments e").
	Join("courses c ON c.id = e.course_id").
	Join("users u ON u.id = c.instructor_id")

type dashboardRepository struct {
	db *sqlx.DB
}

var _ dashboard.Repository = (*dashboardRepository)(nil)

func NewDashboardRepository(db *sqlx.DB) dashboard.Repository {
	return &dashboardRepository{db: db}
}

func (repo *dashboardRepository) QueryStudentEnrollments(ctx context.Context, studentID string) ([]dashboard.EnrollmentRow, error) {
	rows := make([]dashboard.EnrollmentRow, 0)
	err := selectAll(ctx, conn(ctx, repo.db), &rows, enrollmentSelect.
		Where(sq.Eq{"e.student_id": studentID}).
		OrderBy("e.enrolled_at DESC"))
	return rows, errors.Wrap(err, "querying student enrollments")
}

func (repo *dashboardRepository) QueryInstructorCourses(ctx context.Context, instructorID string) ([]dashboard.CourseRow, error) {
	rows := make([]dashboard.CourseRow, 0)
	err := selectAll(ctx, conn(ctx, repo.db), &rows, psql.
		Select("c.id AS course_id", "c.title", "c.status", "c.created_at", courseLessonCount+" AS total_lessons").
		From("courses c").
		Where(sq.Eq{"c.instructor_id": instructorID}).
		OrderBy("c.created_at DESC"))
	return rows, errors.Wrap(err, "querying instructor courses")
}

func (repo *dashboardRepository) QueryInstructorEnrollments(ctx context.Context, instructorID string) ([]dashboard.EnrollmentRow, error) {
	rows := make([]dashboard.EnrollmentRow, 0)
	err := selectAll(ctx, conn(ctx, repo.db), &rows, enrollmentSelect.
		Where(sq.Eq{"c.instructor_id": instructorID}).
		OrderBy("e.enrolled_at DESC"))
	return rows, errors.Wrap(err, "querying instructor enrollments")
}
