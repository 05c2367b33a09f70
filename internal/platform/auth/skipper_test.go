package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestAuthSkipper(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/health", true},
		{"/metrics", true},
		{"/api/v1/auth/login", true},
		{"/api/v1/claim/verify", true},
		{"/api/v1/claim/challenge/resend", true},
		{"/api/v1/auth/password", false},
		{"/api/v1/patients", false},
		{"/api/v1/staff/:id/credentials", false},
		{"/", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			c := e.NewContext(req, httptest.NewRecorder())
			c.SetPath(tt.path)
			if got := AuthSkipper(c); got != tt.want {
				t.Errorf("AuthSkipper(%s) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
