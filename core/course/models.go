package course

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
)

// Statuses
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

type Course struct {
	ID             string      `json:"id" db:"id"`
	OrganizationID null.String `json:"organization_id" db:"organization_id"`
	InstructorID   string      `json:"instructor_id" db:"instructor_id"`
	Title          string      `json:"title" db:"title"`
	Description    string      `json:"description" db:"description"`
	Status         string      `json:"status" db:"status"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`

	// joined from users
	InstructorName string `json:"instructor_name" db:"instructor_name"`
}

func (c Course) IsPublished() bool { return c.Status == StatusPublished }

type Module struct {
	ID       string   `json:"id" db:"id"`
	CourseID string   `json:"course_id" db:"course_id"`
	Title    string   `json:"title" db:"title"`
	Position int      `json:"position" db:"position"`
	Lessons  []Lesson `json:"lessons" db:"-"`
}

type Lesson struct {
	ID              string `json:"id" db:"id"`
	ModuleID        string `json:"module_id" db:"module_id"`
	Title           string `json:"title" db:"title"`
	Content         string `json:"content" db:"content"`
	Position        int    `json:"position" db:"position"`
	DurationMinutes int    `json:"duration_minutes" db:"duration_minutes"`
}

type Enrollment struct {
	ID         string    `json:"id" db:"id"`
	CourseID   string    `json:"course_id" db:"course_id"`
	StudentID  string    `json:"student_id" db:"student_id"`
	EnrolledAt time.Time `json:"enrolled_at" db:"enrolled_at"`
}

type LessonCompletion struct {
	ID          string    `json:"id" db:"id"`
	StudentID   string    `json:"student_id" db:"student_id"`
	LessonID    string    `json:"lesson_id" db:"lesson_id"`
	CompletedAt time.Time `json:"completed_at" db:"completed_at"`
}

// Details is a course with its ordered modules and lessons.
type Details struct {
	Course
	Modules []Module `json:"modules"`
}

type Progress struct {
	CourseID         string  `json:"course_id"`
	CompletedLessons int     `json:"completed_lessons"`
	TotalLessons     int     `json:"total_lessons"`
	Percentage       float64 `json:"percentage"`
	Completed        bool    `json:"completed"`
}

// ProgressPercentage returns completed / total * 100, or 0 when there is nothing to complete.
func ProgressPercentage(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}

// IsCompleted reports whether every lesson of a non-empty course is completed.
func IsCompleted(completed, total int) bool {
	return total > 0 && completed >= total
}

func NewProgress(courseID string, completed, total int) Progress {
	return Progress{
		CourseID:         courseID,
		CompletedLessons: completed,
		TotalLessons:     total,
		Percentage:       ProgressPercentage(completed, total),
		Completed:        IsCompleted(completed, total),
	}
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title          string `json:"title" validate:"required,notblank,max=200"`
	Description    string `json:"description" validate:"max=5000"`
	OrganizationID string `json:"organization_id" validate:"omitempty,uuid"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.OrganizationID = core.CleanString(nc.OrganizationID, true /* lower */)
	return validate.Struct(nc)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
type UpdateCourse struct {
	Title       *string `json:"title" validate:"omitempty,notblank,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	Status      *string `json:"status" validate:"omitempty,oneof=draft published archived"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	if uc.Title != nil {
		*uc.Title = core.CleanString(*uc.Title)
	}
	if uc.Description != nil {
		*uc.Description = core.CleanString(*uc.Description)
	}
	if uc.Status != nil {
		*uc.Status = core.CleanString(*uc.Status, true /* lower */)
	}
	return validate.Struct(uc)
}

type NewModule struct {
	Title string `json:"title" validate:"required,notblank,max=200"`
}

func (nm *NewModule) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	return validate.Struct(nm)
}

type NewLesson struct {
	Title           string `json:"title" validate:"required,notblank,max=200"`
	Content         string `json:"content"`
	DurationMinutes int    `json:"duration_minutes" validate:"min=0,max=1440"`
}

func (nl *NewLesson) Validate(validate *validator.Validate) error {
	nl.Title = core.CleanString(nl.Title)
	return validate.Struct(nl)
}

// QueryFilter filters courses; Mine lists the caller's own courses whatever their status.
type QueryFilter struct {
	Mine           bool   `query:"mine"`
	Search         string `query:"search"`
	OrganizationID string `query:"organization_id"`

	InstructorID string `query:"-"`
	Status       string `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.OrganizationID = core.CleanString(qf.OrganizationID, true /* lower */)
}
