package billing_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/billing"
)

func request(method, body, id string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	if id != "" {
		c.SetParamNames("id")
		c.SetParamValues(id)
	}
	return c, rec
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected echo.HTTPError, got %v", err)
	}
	return he.Code
}

func TestHandler_TreatmentAndPayment(t *testing.T) {
	e := newEnv(t)
	h := billing.NewHandler(e.svc)
	r := e.seedRecord(t)

	c, rec := request(http.MethodPost, `{"description":"Braces","cost":"2000","installment_plan":{"months":4}}`, r.ID.String())
	if err := h.CreateTreatment(c); err != nil {
		t.Fatalf("create treatment: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var tr billing.Treatment
	if err := json.Unmarshal(rec.Body.Bytes(), &tr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tr.PatientID != r.ID || tr.Status != "planned" || !strings.Contains(string(tr.InstallmentPlan), "months") {
		t.Errorf("unexpected treatment %s", rec.Body.String())
	}

	body := fmt.Sprintf(`{"patient_id":%q,"treatment_id":%q,"amount":500,"method":"cash","paid_on":"2024-05-01"}`, r.ID, tr.ID)
	c, rec = request(http.MethodPost, body, "")
	if err := h.RecordPayment(c); err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), `"paid_on":"2024-05-01"`) {
		t.Fatalf("unexpected payment response %d %s", rec.Code, rec.Body.String())
	}

	c, rec = request(http.MethodGet, "", tr.ID.String())
	if err := h.GetTreatment(c); err != nil {
		t.Fatalf("get treatment: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"remaining_balance":"1500"`) {
		t.Errorf("expected remaining 1500, got %s", rec.Body.String())
	}

	c, rec = request(http.MethodGet, "", r.ID.String())
	if err := h.ListPayments(c); err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("expected one payment, got %s", rec.Body.String())
	}

	c, rec = request(http.MethodPost, "", r.ID.String())
	if err := h.RecomputeBalance(c); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total_balance":"1500"`) {
		t.Errorf("expected total 1500, got %s", rec.Body.String())
	}
}

func TestHandler_ListTreatmentsEmpty(t *testing.T) {
	e := newEnv(t)
	h := billing.NewHandler(e.svc)
	r := e.seedRecord(t)

	c, rec := request(http.MethodGet, "", r.ID.String())
	if err := h.ListTreatments(c); err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}
}

func TestHandler_Errors(t *testing.T) {
	e := newEnv(t)
	h := billing.NewHandler(e.svc)
	r := e.seedRecord(t)

	c, _ := request(http.MethodPost, `{"description":"Braces","cost":"-1"}`, r.ID.String())
	if code := httpStatus(t, h.CreateTreatment(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
	c, _ = request(http.MethodPost, `{"description":"Braces","cost":"10"}`, "00000000-0000-0000-0000-000000000001")
	if code := httpStatus(t, h.CreateTreatment(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
	c, _ = request(http.MethodPost, fmt.Sprintf(`{"patient_id":%q,"amount":"0","method":"cash"}`, r.ID), "")
	if code := httpStatus(t, h.RecordPayment(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
	c, _ = request(http.MethodDelete, "", "not-a-uuid")
	if code := httpStatus(t, h.DeletePayment(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}
