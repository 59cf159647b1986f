package dashboard

import "time"

const (
	TrendDays  = 30
	DateLayout = "2006-01-02"
)

// Rows read from storage

type (
	// EnrollmentRow is one enrollment of a student with the lesson counts of its course.
	EnrollmentRow struct {
		CourseID         string    `db:"course_id"`
		CourseTitle      string    `db:"course_title"`
		InstructorID     string    `db:"instructor_id"`
		InstructorName   string    `db:"instructor_name"`
		StudentID        string    `db:"student_id"`
		EnrolledAt       time.Time `db:"enrolled_at"`
		TotalLessons     int       `db:"total_lessons"`
		CompletedLessons int       `db:"completed_lessons"`
	}

	// CourseRow is one course of an instructor with its lesson count.
	CourseRow struct {
		CourseID     string    `db:"course_id"`
		Title        string    `db:"title"`
		Status       string    `db:"status"`
		CreatedAt    time.Time `db:"created_at"`
		TotalLessons int       `db:"total_lessons"`
	}
)

// Student dashboard

type (
	StudentDashboard struct {
		Stats   StudentStats       `json:"stats"`
		Courses []StudentCourseRow `json:"courses"`
	}

	StudentStats struct {
		TotalEnrolled         int     `json:"total_enrolled"`
		CompletedCourses      int     `json:"completed_courses"`
		InProgressCourses     int     `json:"in_progress_courses"`
		TotalLessonsCompleted int     `json:"total_lessons_completed"`
		AverageProgress       float64 `json:"average_progress"`
	}

	StudentCourseRow struct {
		CourseID         string    `json:"course_id"`
		Title            string    `json:"title"`
		InstructorName   string    `json:"instructor_name"`
		TotalLessons     int       `json:"total_lessons"`
		CompletedLessons int       `json:"completed_lessons"`
		Progress         float64   `json:"progress"`
		Completed        bool      `json:"completed"`
		EnrolledAt       time.Time `json:"enrolled_at"`
	}
)

// Instructor dashboard

type (
	InstructorDashboard struct {
		Stats            InstructorStats         `json:"stats"`
		Courses          []InstructorCourseStats `json:"courses"`
		EnrollmentTrends []TrendPoint            `json:"enrollment_trends"`
	}

	InstructorStats struct {
		TotalCourses          int     `json:"total_courses"`
		PublishedCourses      int     `json:"published_courses"`
		TotalEnrollments      int     `json:"total_enrollments"`
		UniqueStudents        int     `json:"unique_students"`
		AverageCompletionRate float64 `json:"average_completion_rate"`
	}

	InstructorCourseStats struct {
		CourseID        string    `json:"course_id"`
		Title           string    `json:"title"`
		Status          string    `json:"status"`
		TotalLessons    int       `json:"total_lessons"`
		EnrollmentCount int       `json:"enrollment_count"`
		CompletionCount int       `json:"completion_count"`
		CreatedAt       time.Time `json:"created_at"`
	}

	// TrendPoint counts the enrollments of one calendar day (UTC).
	TrendPoint struct {
		Date  string `json:"date"` // YYYY-MM-DD
		Count int    `json:"count"`
	}
)
