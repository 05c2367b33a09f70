package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UserRoleKey contextKey = "user_role"
	RecordIDKey contextKey = "record_id"
	HandleKey   contextKey = "handle"
)

// TokenParser validates bearer tokens.
type TokenParser interface {
	Parse(token string) (*Claims, error)
}

type JWTConfig struct {
	Parser  TokenParser
	Skipper func(c echo.Context) bool
}

// JWTMiddleware authenticates the bearer token and stores the caller identity
// on the request context.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			scheme, tokenStr, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(tokenStr) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims, err := cfg.Parser.Parse(strings.TrimSpace(tokenStr))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			ctx := WithClaims(c.Request().Context(), claims.SessionClaims)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// WithClaims stores session identity on ctx.
func WithClaims(ctx context.Context, sc SessionClaims) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, sc.AccountID)
	ctx = context.WithValue(ctx, UserRoleKey, sc.Role)
	ctx = context.WithValue(ctx, HandleKey, sc.Handle)
	if sc.RecordID != "" {
		ctx = context.WithValue(ctx, RecordIDKey, sc.RecordID)
	}
	return ctx
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(UserRoleKey).(string)
	return role
}

func RecordIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(RecordIDKey).(string)
	return id
}
