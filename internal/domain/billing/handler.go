package billing

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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

// RegisterRoutes mounts treatment and payment endpoints for staffRoles and
// the manual recompute for adminRole.
func (h *Handler) RegisterRoutes(api *echo.Group, staffRoles []string, adminRole string) {
	staff := api.Group("", auth.RequireRole(staffRoles...))
	staff.POST("/patients/:id/treatments", h.CreateTreatment)
	staff.GET("/patients/:id/treatments", h.ListTreatments)
	staff.GET("/treatments/:id", h.GetTreatment)
	staff.PUT("/treatments/:id", h.UpdateTreatment)
	staff.DELETE("/treatments/:id", h.DeleteTreatment)

	staff.POST("/payments", h.RecordPayment)
	staff.GET("/payments/:id", h.GetPayment)
	staff.DELETE("/payments/:id", h.DeletePayment)
	staff.GET("/patients/:id/payments", h.ListPayments)

	api.POST("/patients/:id/balance/recompute", h.RecomputeBalance, auth.RequireRole(adminRole))
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// -- Treatment Handlers --

func (h *Handler) CreateTreatment(c echo.Context) error {
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	var t Treatment
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t.PatientID = patientID
	if err := h.svc.CreateTreatment(c.Request().Context(), &t); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) ListTreatments(c echo.Context) error {
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListTreatments(c.Request().Context(), patientID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if items == nil {
		items = []*Treatment{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetTreatment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	t, err := h.svc.GetTreatment(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) UpdateTreatment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	existing, err := h.svc.GetTreatment(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if err := c.Bind(existing); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	existing.ID = id
	if err := h.svc.UpdateTreatment(c.Request().Context(), existing); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, existing)
}

func (h *Handler) DeleteTreatment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteTreatment(c.Request().Context(), id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Payment Handlers --

func (h *Handler) RecordPayment(c echo.Context) error {
	var p Payment
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RecordPayment(c.Request().Context(), &p); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPayment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPayment(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePayment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeletePayment(c.Request().Context(), id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListPayments(c echo.Context) error {
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPayments(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) RecomputeBalance(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	total, err := h.svc.RecomputePatientBalance(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"patient_id":    id,
		"total_balance": total,
	})
}
