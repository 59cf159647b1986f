package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

// roleMiddleware lets through session users holding one of the given global roles.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			for _, role := range roles {
				if usr.Role == role {
					return next(ctx)
				}
			}
			return core.ErrForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.RoleAdmin)
}

func instructorMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.RoleInstructor, user.RoleAdmin)
}

func studentMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.RoleStudent)
}
