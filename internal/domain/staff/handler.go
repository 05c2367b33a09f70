package staff

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/account"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/apperr"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/auth"
	"github.com/kristalyn-ag/dentist-app-sub002/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	clinician := string(account.RoleClinician)
	assistant := string(account.RoleAssistant)

	readGroup := api.Group("/staff", auth.RequireRole(clinician, assistant))
	readGroup.GET("", h.List)
	readGroup.GET("/:id", h.Get)

	writeGroup := api.Group("/staff", auth.RequireRole(clinician))
	writeGroup.POST("", h.Create)
	writeGroup.PUT("/:id", h.Update)
	writeGroup.DELETE("/:id", h.Delete)
	writeGroup.POST("/:id/credentials", h.IssueCredentials)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

type profileView struct {
	*Profile
	State string `json:"credential_state"`
}

func view(p *Profile) profileView {
	return profileView{Profile: p, State: p.State()}
}

func (h *Handler) Create(c echo.Context) error {
	var p Profile
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &p); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, view(&p))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, view(p))
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	views := make([]profileView, 0, len(items))
	for _, p := range items {
		views = append(views, view(p))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg.Limit, pg.Offset))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	existing, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if err := c.Bind(existing); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	existing.ID = id
	if err := h.svc.Update(c.Request().Context(), existing); err != nil {
		return apperr.ToHTTP(err)
	}
	updated, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, view(updated))
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) IssueCredentials(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	creds, err := h.svc.IssueCredentials(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, creds)
}
