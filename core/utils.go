package core

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	NowFunc = func() time.Time { return time.Now().UTC() } // mockable

	slugInvalidChars = regexp.MustCompile(`[^a-z0-9-]+`)
	slugDashes       = regexp.MustCompile(`-{2,}`)
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// NewID returns a new random UUID string.
func NewID() string {
	return uuid.New().String()
}

// IsValidID reports whether id is a well-formed UUID.
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Slugify lowers `s` and reduces it to [a-z0-9-].
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), "-")
	s = slugInvalidChars.ReplaceAllString(s, "")
	s = slugDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// TruncateDay returns midnight UTC of t's day.
func TruncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
