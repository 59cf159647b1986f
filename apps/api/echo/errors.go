package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

var kindStatus = map[core.ErrorKind]int{
	core.KindUnauthorized:     http.StatusUnauthorized,
	core.KindForbidden:        http.StatusForbidden,
	core.KindNotFound:         http.StatusNotFound,
	core.KindConflict:         http.StatusConflict,
	core.KindExpired:          http.StatusBadRequest,
	core.KindAlreadyProcessed: http.StatusBadRequest,
}

// errorStatus maps err to a status code and the value of the "error" member of the response body.
// Anything it does not recognize is a 500.
func errorStatus(err error, translator ut.Translator) (int, interface{}) {
	switch cause := errors.Cause(err).(type) {
	case *echo.HTTPError:
		if cause == middleware.ErrJWTMissing {
			return http.StatusUnauthorized, core.ErrUnauthorized.Message
		}
		if herr, ok := cause.Internal.(*echo.HTTPError); ok {
			cause = herr
		}
		return cause.Code, cause.Message

	case *core.AppError:
		if code, ok := kindStatus[cause.Kind]; ok {
			return code, cause.Message
		}

	case validator.ValidationErrors:
		fields := make(map[string]string, len(cause))
		for _, fe := range cause {
			fields[fe.Field()] = fe.Translate(translator)
		}
		return http.StatusBadRequest, fields

	case *core.ValidationError:
		if len(cause.Fields) == 0 {
			return http.StatusBadRequest, cause.Error()
		}
		fields := make(map[string]string, len(cause.Fields))
		for _, fe := range cause.Fields {
			fields[fe.Field] = fe.Error
		}
		return http.StatusBadRequest, fields
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}

// newAppHTTPErrorHandler renders every error as {"error": ...}.
// Server errors are logged with the session's user; a core shutdown error also calls signalShutdown.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, message := errorStatus(err, translator)

		if code == http.StatusInternalServerError {
			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr = user.User{ID: claims.Subject, Name: claims.Name, Email: claims.Email}
			}
			req := ctx.Request()
			logger.Error(req.Method+" "+req.URL.Path, errors.WithStack(err), usr)

			if core.IsShutdown(err) {
				signalShutdown()
			}
			if ctx.Echo().Debug {
				message = err.Error()
			}
		}

		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, echo.Map{"error": message})
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}
