package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/academia/core"
)

const orderingParam = "ordering"

// queryOrdering reads "?ordering=name,-created_at" into DB orderings.
// A leading "-" sorts descending; blank and repeated fields are skipped.
func queryOrdering(ctx echo.Context) []core.DBOrdering {
	raw := ctx.QueryParam(orderingParam)
	if raw == "" {
		return nil
	}

	var (
		orderings []core.DBOrdering
		seen      = make(map[string]bool)
	)
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		field = strings.TrimPrefix(field, "-")
		if field == "" || seen[field] {
			continue
		}
		seen[field] = true
		orderings = append(orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
	return orderings
}
