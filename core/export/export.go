package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/dashboard"
)

// Formats
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

// Kinds
const (
	KindCourses          = "courses"
	KindEnrollmentTrends = "enrollment-trends"
	KindProgress         = "progress"
)

const (
	ContentTypeCSV = "text/csv; charset=utf-8"
	ContentTypePDF = "application/pdf"
)

var (
	ErrUnknownFormat = core.NewValidationError(nil, core.FieldError{Field: "format", Error: "must be one of csv, pdf"})
	ErrUnknownKind   = core.NewValidationError(nil, core.FieldError{Field: "type", Error: "must be one of courses, enrollment-trends, progress"})
)

// Table is the format independent content of an export.
type Table struct {
	Title  string
	Name   string // file name prefix
	Header []string
	Rows   [][]string
}

type File struct {
	Content     []byte
	ContentType string
	Filename    string
}

// Filename returns "<name>_<YYYY-MM-DD>.<ext>".
func Filename(name, ext string, at time.Time) string {
	return fmt.Sprintf("%s_%s.%s", name, at.UTC().Format(dashboard.DateLayout), ext)
}

// Render renders the table in the given format; `at` is the generation time.
func Render(t Table, format string, at time.Time) (File, error) {
	switch format {
	case FormatCSV:
		content, err := CSV(t)
		if err != nil {
			return File{}, errors.Wrap(err, "rendering csv")
		}
		return File{Content: content, ContentType: ContentTypeCSV, Filename: Filename(t.Name, FormatCSV, at)}, nil
	case FormatPDF:
		content, err := PDF(t, at)
		if err != nil {
			return File{}, errors.Wrap(err, "rendering pdf")
		}
		return File{Content: content, ContentType: ContentTypePDF, Filename: Filename(t.Name, FormatPDF, at)}, nil
	}
	return File{}, ErrUnknownFormat
}

// CSV writes the header then one record per row; fields holding a comma, a quote or
// a line break are quoted, with inner quotes doubled.
func CSV(t Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dashboard.DateLayout)
}

func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// CoursesTable lists the courses of an instructor dashboard.
func CoursesTable(rows []dashboard.InstructorCourseStats) Table {
	t := Table{
		Title:  "Courses",
		Name:   "courses",
		Header: []string{"Course ID", "Title", "Status", "Lessons", "Enrollments", "Completions", "Created"},
		Rows:   make([][]string, 0, len(rows)),
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			r.CourseID,
			r.Title,
			r.Status,
			strconv.Itoa(r.TotalLessons),
			strconv.Itoa(r.EnrollmentCount),
			strconv.Itoa(r.CompletionCount),
			formatDate(r.CreatedAt),
		})
	}
	return t
}

// TrendsTable lists enrollments per day.
func TrendsTable(points []dashboard.TrendPoint) Table {
	t := Table{
		Title:  "Enrollment trends",
		Name:   "enrollment_trends",
		Header: []string{"Date", "Enrollments"},
		Rows:   make([][]string, 0, len(points)),
	}
	for _, p := range points {
		t.Rows = append(t.Rows, []string{p.Date, strconv.Itoa(p.Count)})
	}
	return t
}

// ProgressTable lists one row per enrollment of a student.
func ProgressTable(studentName string, rows []dashboard.StudentCourseRow) Table {
	title := "Course progress"
	if studentName != "" {
		title += " - " + studentName
	}
	t := Table{
		Title:  title,
		Name:   "progress",
		Header: []string{"Course ID", "Title", "Instructor", "Lessons", "Completed lessons", "Progress (%)", "Completed", "Enrolled"},
		Rows:   make([][]string, 0, len(rows)),
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			r.CourseID,
			r.Title,
			r.InstructorName,
			strconv.Itoa(r.TotalLessons),
			strconv.Itoa(r.CompletedLessons),
			formatPercent(r.Progress),
			yesNo(r.Completed),
			formatDate(r.EnrolledAt),
		})
	}
	return t
}
