package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication: infrastructure endpoints, login and the
// self-service claiming flow used by patients who have no account yet.
var publicPaths = map[string]bool{
	"/health":                        true,
	"/health/db":                     true,
	"/metrics":                       true,
	"/api/v1/auth/login":             true,
	"/api/v1/claim/search":           true,
	"/api/v1/claim/select":           true,
	"/api/v1/claim/challenge":        true,
	"/api/v1/claim/challenge/resend": true,
	"/api/v1/claim/verify":           true,
}

// AuthSkipper returns true for requests whose route should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Path())
}

func IsPublicPath(path string) bool {
	return publicPaths[strings.TrimSuffix(path, "/")] || publicPaths[path]
}
