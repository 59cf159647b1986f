package database

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/course"
)

var courseSelect = psql.
	Select("c.*", "u.name AS instructor_name").
	From("courses c").
	Join("users u ON u.id = c.instructor_id")

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{db: db}
}

// Courses

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	_, err := exec(ctx, conn(ctx, repo.db), psql.Insert("courses").
		Columns("id", "organization_id", "instructor_id", "title", "description", "status", "created_at", "updated_at").
		Values(c.ID, c.OrganizationID, c.InstructorID, c.Title, c.Description, c.Status, c.CreatedAt, c.UpdatedAt))
	if err != nil {
		return course.Course{}, mapError(err, nil)
	}
	return c, nil
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	var c course.Course
	err := get(ctx, conn(ctx, repo.db), &c, courseSelect.Where(sq.Eq{"c.id": id}))
	return c, mapError(err, course.ErrNotFound)
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter) ([]course.Course, error) {
	q := courseSelect
	if filter.InstructorID != "" {
		q = q.Where(sq.Eq{"c.instructor_id": filter.InstructorID})
	}
	if filter.Status != "" {
		q = q.Where(sq.Eq{"c.status": filter.Status})
	}
	if filter.OrganizationID != "" {
		q = q.Where(sq.Eq{"c.organization_id": filter.OrganizationID})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(sq.Or{sq.ILike{"c.title": pattern}, sq.ILike{"c.description": pattern}})
	}

	courses := make([]course.Course, 0)
	if err := selectAll(ctx, conn(ctx, repo.db), &courses, q.OrderBy("c.created_at DESC")); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	n, err := exec(ctx, conn(ctx, repo.db), psql.Update("courses").
		SetMap(map[string]interface{}{
			"title":       c.Title,
			"description": c.Description,
			"status":      c.Status,
			"updated_at":  c.UpdatedAt,
		}).
		Where(sq.Eq{"id": c.ID}))
	if err != nil {
		return course.Course{}, mapError(err, nil)
	}
	if n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return c, nil
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	n, err := exec(ctx, conn(ctx, repo.db), psql.Delete("courses").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	if n == 0 {
		return course.ErrNotFound
	}
	return nil
}

// Modules

func (repo *courseRepository) CreateModule(ctx context.Context, m course.Module) (course.Module, error) {
	_, err := exec(ctx, conn(ctx, repo.db), psql.Insert("modules").
		Columns("id", "course_id", "title", "position").
		Values(m.ID, m.CourseID, m.Title, m.Position))
	if err != nil {
		return course.Module{}, mapError(err, nil)
	}
	return m, nil
}

func (repo *courseRepository) GetModuleByID(ctx context.Context, courseID, moduleID string) (course.Module, error) {
	var m course.Module
	err := get(ctx, conn(ctx, repo.db), &m, psql.Select("*").From("modules").Where(sq.Eq{"id": moduleID, "course_id": courseID}))
	return m, mapError(err, course.ErrModuleNotFound)
}

func (repo *courseRepository) QueryModules(ctx context.Context, courseID string) ([]course.Module, error) {
	modules := make([]course.Module, 0)
	err := selectAll(ctx, conn(ctx, repo.db), &modules, psql.Select("*").From("modules").Where(sq.Eq{"course_id": courseID}).OrderBy("position"))
	if err != nil {
		return nil, errors.Wrap(err, "querying modules")
	}
	return modules, nil
}

// NextModulePosition locks the course when called within a transaction.
func (repo *courseRepository) NextModulePosition(ctx context.Context, courseID string) (int, error) {
	if inTx(ctx) {
		if _, err := exec(ctx, conn(ctx, repo.db), psql.Select("id").From("courses").Where(sq.Eq{"id": courseID}).Suffix("FOR UPDATE")); err != nil {
			return 0, errors.Wrap(err, "locking course")
		}
	}
	var pos int
	err := get(ctx, conn(ctx, repo.db), &pos, psql.Select("COALESCE(MAX(position), 0) + 1").From("modules").Where(sq.Eq{"course_id": courseID}))
	return pos, err
}

// Lessons

func (repo *courseRepository) CreateLesson(ctx context.Context, l course.Lesson) (course.Lesson, error) {
	_, err := exec(ctx, conn(ctx, repo.db), psql.Insert("lessons").
		Columns("id", "module_id", "title", "content", "position", "duration_minutes").
		Values(l.ID, l.ModuleID, l.Title, l.Content, l.Position, l.DurationMinutes))
	if err != nil {
		return course.Lesson{}, mapError(err, nil)
	}
	return l, nil
}

func (repo *courseRepository) GetCourseLesson(ctx context.Context, courseID, lessonID string) (course.Lesson, error) {
	var l course.Lesson
	err := get(ctx, conn(ctx, repo.db), &l, psql.
		Select("l.*").
		From("lessons l").
		Join("modules m ON m.id = l.module_id").
		Where(sq.Eq{"l.id": lessonID, "m.course_id": courseID}))
	return l, mapError(err, course.ErrLessonNotFound)
}

func (repo *courseRepository) QueryCourseLessons(ctx context.Context, courseID string) ([]course.Lesson, error) {
	lessons := make([]course.Lesson, 0)
	err := selectAll(ctx, conn(ctx, repo.db), &lessons, psql.
		Select("l.*").
		From("lessons l").
		Join("modules m ON m.id = l.module_id").
		Where(sq.Eq{"m.course_id": courseID}).
		OrderBy("m.position", "l.position"))
	if err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}
	return lessons, nil
}

// NextLessonPosition locks the module when called within a transaction.
func (repo *courseRepository) NextLessonPosition(ctx context.Context, moduleID string) (int, error) {
	if inTx(ctx) {
		if _, err := exec(ctx, conn(ctx, repo.db), psql.Select("id").From("modules").Where(sq.Eq{"id": moduleID}).Suffix("FOR UPDATE")); err != nil {
			return 0, errors.Wrap(err, "locking module")
		}
	}
	var pos int
	err := get(ctx, conn(ctx, repo.db), &pos, psql.Select("COALESCE(MAX(position), 0) + 1").From("lessons").Where(sq.Eq{"module_id": moduleID}))
	return pos, err
}

// Enrollments & completions

func (repo *courseRepository) CreateEnrollment(ctx context.Context, e course.Enrollment) (course.Enrollment, error) {
	_, err := exec(ctx, conn(ctx, repo.db), psql.Insert("enrollments").
		Columns("id", "course_id", "student_id", "enrolled_at").
		Values(e.ID, e.CourseID, e.StudentID, e.EnrolledAt))
	if err != nil {
		return course.Enrollment{}, mapError(err, nil)
	}
	return e, nil
}

func (repo *courseRepository) EnrollmentExists(ctx context.Context, courseID, studentID string) (bool, error) {
	return existsQuery(ctx, conn(ctx, repo.db), psql.
		Select("1").
		From("enrollments").
		Where(sq.Eq{"course_id": courseID, "student_id": studentID}))
}

func (repo *courseRepository) CreateLessonCompletion(ctx context.Context, lc course.LessonCompletion) (course.LessonCompletion, error) {
	_, err := exec(ctx, conn(ctx, repo.db), psql.Insert("lesson_completions").
		Columns("id", "student_id", "lesson_id", "completed_at").
		Values(lc.ID, lc.StudentID, lc.LessonID, lc.CompletedAt))
	if err != nil {
		return course.LessonCompletion{}, mapError(err, nil)
	}
	return lc, nil
}

func (repo *courseRepository) CountCourseLessons(ctx context.Context, courseID string) (int, error) {
	var n int
	err := get(ctx, conn(ctx, repo.db), &n, psql.
		Select("COUNT(*)").
		From("lessons l").
		Join("modules m ON m.id = l.module_id").
		Where(sq.Eq{"m.course_id": courseID}))
	return n, err
}

func (repo *courseRepository) CountCompletedLessons(ctx context.Context, courseID, studentID string) (int, error) {
	var n int
	err := get(ctx, conn(ctx, repo.db), &n, psql.
		Select("COUNT(*)").
		From("lesson_completions lc").
		Join("lessons l ON l.id = lc.lesson_id").
		Join("modules m ON m.id = l.module_id").
		Where(sq.Eq{"m.course_id": courseID, "lc.student_id": studentID}))
	return n, err
}
