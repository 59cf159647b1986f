package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/academia/core/dashboard"
)

type dashboardRepository struct {
	db *DB
}

var _ dashboard.Repository = (*dashboardRepository)(nil)

func NewDashboardRepository(db *DB) dashboard.Repository {
	return &dashboardRepository{db: db}
}

// enrollmentRows builds the rows of the enrollments accepted by keep; callers hold the lock.
func (repo *dashboardRepository) enrollmentRows(keep func(studentID, instructorID string) bool) []dashboard.EnrollmentRow {
	t := repo.db.t
	rows := make([]dashboard.EnrollmentRow, 0)
	for _, e := range t.enrollments {
		c, ok := t.courses[e.CourseID]
		if !ok || !keep(e.StudentID, c.InstructorID) {
			continue
		}
		rows = append(rows, dashboard.EnrollmentRow{
			CourseID:         c.ID,
			CourseTitle:      c.Title,
			InstructorID:     c.InstructorID,
			InstructorName:   t.users[c.InstructorID].Name,
			StudentID:        e.StudentID,
			EnrolledAt:       e.EnrolledAt,
			TotalLessons:     len(courseLessons(t, c.ID)),
			CompletedLessons: countCompleted(t, c.ID, e.StudentID),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].EnrolledAt.After(rows[j].EnrolledAt) })
	return rows
}

func (repo *dashboardRepository) QueryStudentEnrollments(_ context.Context, studentID string) ([]dashboard.EnrollmentRow, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return repo.enrollmentRows(func(sid, _ string) bool { return sid == studentID }), nil
}

func (repo *dashboardRepository) QueryInstructorCourses(_ context.Context, instructorID string) ([]dashboard.CourseRow, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rows := make([]dashboard.CourseRow, 0)
	for _, c := range repo.db.t.courses {
		if c.InstructorID != instructorID {
			continue
		}
		rows = append(rows, dashboard.CourseRow{
			CourseID:     c.ID,
			Title:        c.Title,
			Status:       c.Status,
			CreatedAt:    c.CreatedAt,
			TotalLessons: len(courseLessons(repo.db.t, c.ID)),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	return rows, nil
}

func (repo *dashboardRepository) QueryInstructorEnrollments(_ context.Context, instructorID string) ([]dashboard.EnrollmentRow, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return repo.enrollmentRows(func(_, iid string) bool { return iid == instructorID }), nil
}
