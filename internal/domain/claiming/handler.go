package claiming

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/apperr"
	"github.com/kristalyn-ag/dentist-app-sub002/pkg/date"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the claiming endpoints. They are reached without a
// session.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/claim")
	g.POST("/search", h.Search)
	g.POST("/select", h.Select)
	g.POST("/challenge", h.SendChallenge)
	g.POST("/challenge/resend", h.ResendChallenge)
	g.POST("/verify", h.Verify)
}

type searchRequest struct {
	Name        string    `json:"name"`
	DateOfBirth date.Date `json:"date_of_birth"`
	Phone       string    `json:"phone"`
}

func (h *Handler) Search(c echo.Context) error {
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.Search(c.Request().Context(), req.Name, req.DateOfBirth, req.Phone)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, res)
}

type selectRequest struct {
	RecordID  uuid.UUID  `json:"record_id"`
	LastVisit *date.Date `json:"last_visit,omitempty"`
}

func (h *Handler) Select(c echo.Context) error {
	var req selectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.RecordID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "record_id is required")
	}
	if req.LastVisit != nil && req.LastVisit.IsZero() {
		req.LastVisit = nil
	}
	res, err := h.svc.Select(c.Request().Context(), req.RecordID, req.LastVisit)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, res)
}

type challengeRequest struct {
	RecordID uuid.UUID `json:"record_id"`
}

type challengeFailure struct {
	apperr.Body
	Challenge *ChallengeResult `json:"challenge"`
}

func (h *Handler) SendChallenge(c echo.Context) error {
	return h.dispatch(c, h.svc.SendChallenge)
}

func (h *Handler) ResendChallenge(c echo.Context) error {
	return h.dispatch(c, h.svc.ResendChallenge)
}

func (h *Handler) dispatch(c echo.Context, send func(ctx context.Context, id uuid.UUID) (*ChallengeResult, error)) error {
	var req challengeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.RecordID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "record_id is required")
	}

	res, err := send(c.Request().Context(), req.RecordID)
	if err != nil {
		// The challenge exists but the text did not go out; the client may resend.
		if res != nil && errors.Is(err, apperr.ErrDependency) {
			return c.JSON(apperr.HTTPStatus(err), challengeFailure{
				Body:      apperr.Body{Code: apperr.ErrDependency.Code, Message: "verification code could not be delivered"},
				Challenge: res,
			})
		}
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, res)
}

type verifyRequest struct {
	RecordID uuid.UUID `json:"record_id"`
	Code     string    `json:"code"`
	NewAccountFields
}

func (h *Handler) Verify(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.RecordID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "record_id is required")
	}
	res, err := h.svc.VerifyAndLink(c.Request().Context(), req.RecordID, req.Code, req.NewAccountFields)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, res)
}
