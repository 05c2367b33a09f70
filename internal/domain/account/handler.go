package account

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/apperr"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/auth"
)

type Handler struct {
	store *Store
	auth  *Authenticator
}

func NewHandler(store *Store, authenticator *Authenticator) *Handler {
	return &Handler{store: store, auth: authenticator}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/auth")
	g.POST("/login", h.Login)
	g.GET("/me", h.Me)
	g.PUT("/me", h.UpdateMe)
	g.PUT("/password", h.ChangePassword)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}
	res, err := h.auth.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, res)
}

func callerID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "no session")
	}
	return id, nil
}

func (h *Handler) Me(c echo.Context) error {
	id, err := callerID(c)
	if err != nil {
		return err
	}
	a, err := h.store.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) UpdateMe(c echo.Context) error {
	id, err := callerID(c)
	if err != nil {
		return err
	}
	var upd ProfileUpdate
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	// account status is managed by the credential lifecycle only
	upd.Status = nil

	a, err := h.store.UpdateProfile(c.Request().Context(), id, upd)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) ChangePassword(c echo.Context) error {
	id, err := callerID(c)
	if err != nil {
		return err
	}
	var req passwordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.store.ChangeVerifier(c.Request().Context(), id, req.CurrentPassword, req.NewPassword); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
