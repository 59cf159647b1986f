package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/academia/core"
)

func Test_queryOrdering(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []core.DBOrdering
	}{
		{name: "none", query: "", want: nil},
		{name: "empty", query: "?ordering=", want: nil},
		{name: "single asc", query: "?ordering=name", want: []core.DBOrdering{{Field: "name", Ascending: true}}},
		{
			name:  "mixed",
			query: "?ordering=-created_at,%20name%20",
			want:  []core.DBOrdering{{Field: "created_at"}, {Field: "name", Ascending: true}},
		},
		{
			name:  "blanks and repeats",
			query: "?ordering=email,,-,-email",
			want:  []core.DBOrdering{{Field: "email", Ascending: true}},
		},
	}
	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			ctx := e.NewContext(req, httptest.NewRecorder())
			assert.Equal(t, tt.want, queryOrdering(ctx))
		})
	}
}
