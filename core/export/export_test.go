package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/dashboard"
)

var exportedAt = time.Date(2024, 3, 9, 15, 4, 5, 0, time.UTC)

func TestCSV(t *testing.T) {
	table := ProgressTable("Jane", []dashboard.StudentCourseRow{
		{CourseID: "c1", Title: "Go, the language", InstructorName: `Rob "Commander" Pike`, TotalLessons: 4, CompletedLessons: 4, Progress: 100, Completed: true, EnrolledAt: exportedAt},
		{CourseID: "c2", Title: "Line\nbreaks", InstructorName: "Ken", TotalLessons: 0, EnrolledAt: exportedAt.AddDate(0, 0, -1)},
		{CourseID: "c3", Title: "Plain", InstructorName: "Russ", TotalLessons: 3, CompletedLessons: 1, Progress: 100.0 / 3, EnrolledAt: exportedAt.AddDate(0, 0, -2)},
	})

	content, err := CSV(table)
	require.NoError(t, err)

	out := string(content)
	assert.True(t, strings.HasPrefix(out, "Course ID,Title,Instructor,Lessons,Completed lessons,Progress (%),Completed,Enrolled\n"))
	assert.Contains(t, out, `c1,"Go, the language","Rob ""Commander"" Pike",4,4,100.00,yes,2024-03-09`)
	assert.Contains(t, out, "c2,\"Line\nbreaks\",Ken,0,0,0.00,no,2024-03-08")
	assert.Contains(t, out, "c3,Plain,Russ,3,1,33.33,no,2024-03-07")

	records, err := csv.NewReader(bytes.NewReader(content)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1+3, "header + one row per enrollment")
	assert.Equal(t, "Go, the language", records[1][1])
	assert.Equal(t, `Rob "Commander" Pike`, records[1][2])
}

func TestCSVEmpty(t *testing.T) {
	content, err := CSV(CoursesTable(nil))
	require.NoError(t, err)
	assert.Equal(t, "Course ID,Title,Status,Lessons,Enrollments,Completions,Created\n", string(content))
}

func TestRender(t *testing.T) {
	trends := TrendsTable([]dashboard.TrendPoint{{Date: "2024-03-08", Count: 2}, {Date: "2024-03-09", Count: 0}})

	tests := []struct {
		name            string
		format          string
		wantContentType string
		wantFilename    string
		wantPrefix      string
		wantErr         error
	}{
		{name: "csv", format: FormatCSV, wantContentType: "text/csv; charset=utf-8", wantFilename: "enrollment_trends_2024-03-09.csv", wantPrefix: "Date,Enrollments\n"},
		{name: "pdf", format: FormatPDF, wantContentType: "application/pdf", wantFilename: "enrollment_trends_2024-03-09.pdf", wantPrefix: "%PDF-"},
		{name: "unknown format", format: "xlsx", wantErr: ErrUnknownFormat},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			file, err := Render(trends, tc.format, exportedAt)
			if tc.wantErr != nil {
				assert.Equal(t, tc.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantContentType, file.ContentType)
			assert.Equal(t, tc.wantFilename, file.Filename)
			assert.True(t, bytes.HasPrefix(file.Content, []byte(tc.wantPrefix)))
		})
	}
}

func TestPDFManyRows(t *testing.T) {
	rows := make([]dashboard.InstructorCourseStats, 0, 120)
	for i := 0; i < 120; i++ {
		rows = append(rows, dashboard.InstructorCourseStats{
			CourseID:  "course",
			Title:     strings.Repeat("Très long titre ", 10),
			Status:    "published",
			CreatedAt: exportedAt,
		})
	}
	content, err := PDF(CoursesTable(rows), exportedAt)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, []byte("%PDF-")))
}

func Test_fitText(t *testing.T) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetFont(pdfFont, "", 9)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	tests := []struct {
		name      string
		text      string
		width     float64
		truncated bool
	}{
		{name: "fits", text: "Zoë", width: 50},
		{name: "ascii truncated", text: strings.Repeat("Go ", 30), width: 30, truncated: true},
		{name: "accents truncated", text: "Élève Zoë Ångström à l'école française", width: 30, truncated: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fitText(pdf, tr, tt.text, tt.width)
			assert.LessOrEqual(t, pdf.GetStringWidth(got), tt.width-2*pdfCellMargin)
			if !tt.truncated {
				assert.Equal(t, tr(tt.text), got)
				return
			}
			// one cp1252 byte per source rune
			require.True(t, strings.HasSuffix(got, "..."))
			kept := []rune(tt.text)[:len(got)-3]
			assert.Equal(t, tr(string(kept)+"..."), got)
			assert.NotContains(t, got, "\uFFFD")
		})
	}
}

func TestCoursesTable(t *testing.T) {
	table := CoursesTable([]dashboard.InstructorCourseStats{
		{CourseID: "c1", Title: "Go", Status: "draft", TotalLessons: 3, EnrollmentCount: 5, CompletionCount: 2, CreatedAt: exportedAt},
	})
	assert.Equal(t, "courses", table.Name)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, []string{"c1", "Go", "draft", "3", "5", "2", "2024-03-09"}, table.Rows[0])
}
