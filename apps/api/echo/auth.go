package echoapi

import (
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

const (
	SessionCookieName = "academia_session"

	contextTokenKey = "userToken"
	contextUserKey  = "user"
)

var errSessionRevoked = echo.NewHTTPError(http.StatusUnauthorized, "session has been revoked")

// Claims represents the authorization claims transmitted via the session JWT.
type Claims struct {
	jwt.StandardClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

type sessionManager struct {
	conf      *core.Config
	store     core.SessionStore
	users     *user.Service
	jwtConfig middleware.JWTConfig
}

func newSessionManager(conf *core.Config, store core.SessionStore, users *user.Service) *sessionManager {
	return &sessionManager{
		conf:  conf,
		store: store,
		users: users,
		jwtConfig: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    contextTokenKey,
			Claims:        new(Claims),
			TokenLookup:   "cookie:" + SessionCookieName,
		},
	}
}

func (sm *sessionManager) newClaims(usr user.User) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        core.NewID(),
			Issuer:    sm.conf.AppName,
			Subject:   usr.ID,
			ExpiresAt: now.Add(sm.conf.SessionExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Email: usr.Email,
		Name:  usr.Name,
		Role:  usr.Role,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func (sm *sessionManager) GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(sm.jwtConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(sm.jwtConfig.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// startSession signs a new session for usr and sets the session cookie.
func (sm *sessionManager) startSession(ctx echo.Context, usr user.User) error {
	token, err := sm.GenerateToken(sm.newClaims(usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	sm.setCookie(ctx, token, int(sm.conf.SessionExpirationDelta.Seconds()))
	return nil
}

func (sm *sessionManager) setCookie(ctx echo.Context, value string, maxAge int) {
	ctx.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   !sm.conf.Debug,
		SameSite: http.SameSiteLaxMode,
	})
}

// endSession revokes the current session until its expiry and clears the cookie.
func (sm *sessionManager) endSession(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if ttl := time.Until(time.Unix(claims.ExpiresAt, 0)); ttl > 0 {
		if err = sm.store.Revoke(ctx.Request().Context(), claims.Id, ttl); err != nil {
			return errors.Wrap(err, "revoking session")
		}
	}
	sm.setCookie(ctx, "", -1)
	return nil
}

// middleware authenticates the session cookie, then loads the active session user into the context.
func (sm *sessionManager) middleware() echo.MiddlewareFunc {
	jwtMiddleware := middleware.JWTWithConfig(sm.jwtConfig)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return jwtMiddleware(func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}

			revoked, err := sm.store.IsRevoked(ctx.Request().Context(), claims.Id)
			if err != nil {
				return errors.Wrap(err, "checking session revocation")
			}
			if revoked {
				return errSessionRevoked
			}

			usr, err := sm.users.GetByID(ctx.Request().Context(), claims.Subject)
			if err != nil {
				if errors.Cause(err) == user.ErrNotFound {
					return core.ErrUnauthorized
				}
				return errors.Wrap(err, "finding user by ID")
			}
			if !usr.IsActive {
				return user.ErrAccountDeactivated
			}
			ctx.Set(contextUserKey, usr)
			return next(ctx)
		})
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, core.ErrUnauthorized
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, core.ErrUnauthorized
}
