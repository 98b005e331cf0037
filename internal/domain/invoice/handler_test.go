package invoice

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medicore/medicore/internal/platform/auth"
	"github.com/medicore/medicore/pkg/respond"
)

func newInvoiceHTTP(t *testing.T) *echo.Echo {
	t.Helper()
	svc, _ := newTestService()
	e := echo.New()
	e.HTTPErrorHandler = respond.HTTPErrorHandler(zerolog.Nop())
	api := e.Group("/api/v1")
	NewHandler(svc).RegisterRoutes(api, auth.NewRBAC(nil))
	return e
}

func request(e *echo.Echo, method, target, role string, body any) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = strings.NewReader(string(raw))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if role != "" {
		ident := &auth.Identity{AccountID: uuid.NewString(), Role: role}
		req = req.WithContext(auth.WithIdentity(req.Context(), ident))
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) apiEnvelope {
	t.Helper()
	var env apiEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func issueBody(patientID uuid.UUID) map[string]any {
	return map[string]any{
		"patientId": patientID.String(),
		"items": []map[string]any{
			{"description": "Consultation", "quantity": 1, "amountCents": 15000},
			{"description": "X-ray", "quantity": 2, "amountCents": 8000},
		},
	}
}

func issueOne(t *testing.T, e *echo.Echo, role string) *Invoice {
	t.Helper()
	rec := request(e, http.MethodPost, "/api/v1/invoices", role, issueBody(uuid.New()))
	if rec.Code != http.StatusCreated {
		t.Fatalf("issue: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var inv Invoice
	if err := json.Unmarshal(decode(t, rec).Data, &inv); err != nil {
		t.Fatalf("decode invoice: %v", err)
	}
	return &inv
}

func TestInvoicesHTTP_RoleMatrix(t *testing.T) {
	e := newInvoiceHTTP(t)

	rec := request(e, http.MethodGet, "/api/v1/invoices", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated list: expected 401, got %d", rec.Code)
	}

	rec = request(e, http.MethodGet, "/api/v1/invoices", "doctor", nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("doctor list: expected 403, got %d", rec.Code)
	}

	rec = request(e, http.MethodGet, "/api/v1/invoices", "accountant", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("accountant list: expected 200, got %d", rec.Code)
	}

	// The front desk raises invoices but never settles them.
	inv := issueOne(t, e, "receptionist")
	rec = request(e, http.MethodGet, "/api/v1/invoices", "receptionist", nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("receptionist list: expected 403, got %d", rec.Code)
	}
	rec = request(e, http.MethodPost, fmt.Sprintf("/api/v1/invoices/%s/payments", inv.ID), "receptionist", nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("receptionist payment: expected 403, got %d", rec.Code)
	}
}

func TestIssueHTTP_ComputesTotal(t *testing.T) {
	e := newInvoiceHTTP(t)

	inv := issueOne(t, e, "accountant")
	if inv.TotalCents != 31000 {
		t.Errorf("expected total 31000, got %d", inv.TotalCents)
	}
	if inv.Status != StatusPending {
		t.Errorf("expected pending, got %s", inv.Status)
	}
	if !invoiceNoPattern.MatchString(inv.InvoiceNo) {
		t.Errorf("expected INV-YYYYMMDD-NNNN, got %q", inv.InvoiceNo)
	}
	if len(inv.Items) != 2 {
		t.Errorf("expected 2 items, got %d", len(inv.Items))
	}
}

func TestIssueHTTP_Validation(t *testing.T) {
	e := newInvoiceHTTP(t)

	rec := request(e, http.MethodPost, "/api/v1/invoices", "accountant", map[string]any{
		"patientId": "not-a-uuid",
		"items":     []map[string]any{},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	env := decode(t, rec)
	fields := map[string]bool{}
	for _, fe := range env.Errors {
		fields[fe.Field] = true
	}
	for _, want := range []string{"patientId", "items"} {
		if !fields[want] {
			t.Errorf("expected a %s error, got %v", want, env.Errors)
		}
	}

	rec = request(e, http.MethodPost, "/api/v1/invoices", "accountant", map[string]any{
		"patientId": uuid.NewString(),
		"items": []map[string]any{
			{"description": "", "quantity": 0, "amountCents": -5},
		},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	env = decode(t, rec)
	fields = map[string]bool{}
	for _, fe := range env.Errors {
		fields[fe.Field] = true
	}
	for _, want := range []string{"items[0].description", "items[0].quantity", "items[0].amountCents"} {
		if !fields[want] {
			t.Errorf("expected a %s error, got %v", want, env.Errors)
		}
	}
}

func TestPayHTTP(t *testing.T) {
	e := newInvoiceHTTP(t)
	inv := issueOne(t, e, "accountant")
	target := fmt.Sprintf("/api/v1/invoices/%s/payments", inv.ID)

	rec := request(e, http.MethodPost, target, "accountant", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("payment: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var paid Invoice
	if err := json.Unmarshal(decode(t, rec).Data, &paid); err != nil {
		t.Fatalf("decode invoice: %v", err)
	}
	if paid.Status != StatusPaid {
		t.Errorf("expected paid, got %s", paid.Status)
	}
	if paid.PaidAt == nil {
		t.Error("expected paid_at in the response")
	}

	rec = request(e, http.MethodPost, target, "accountant", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("second payment: expected 409, got %d", rec.Code)
	}
	if env := decode(t, rec); !strings.Contains(env.Message, "not pending") {
		t.Errorf("expected a not-pending message, got %q", env.Message)
	}

	rec = request(e, http.MethodPost, fmt.Sprintf("/api/v1/invoices/%s/void", inv.ID), "accountant", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("void after payment: expected 409, got %d", rec.Code)
	}
}

func TestVoidHTTP(t *testing.T) {
	e := newInvoiceHTTP(t)
	inv := issueOne(t, e, "admin")

	rec := request(e, http.MethodPost, fmt.Sprintf("/api/v1/invoices/%s/void", inv.ID), "admin", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("void: expected 200, got %d", rec.Code)
	}
	var voided Invoice
	if err := json.Unmarshal(decode(t, rec).Data, &voided); err != nil {
		t.Fatalf("decode invoice: %v", err)
	}
	if voided.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", voided.Status)
	}

	rec = request(e, http.MethodPost, fmt.Sprintf("/api/v1/invoices/%s/payments", inv.ID), "admin", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("payment after void: expected 409, got %d", rec.Code)
	}
}

func TestListHTTP_Filters(t *testing.T) {
	e := newInvoiceHTTP(t)
	open := issueOne(t, e, "accountant")
	settled := issueOne(t, e, "accountant")

	rec := request(e, http.MethodPost, fmt.Sprintf("/api/v1/invoices/%s/payments", settled.ID), "accountant", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("payment: expected 200, got %d", rec.Code)
	}

	rec = request(e, http.MethodGet, "/api/v1/invoices?status=pending", "accountant", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var page struct {
		Items []*Invoice `json:"items"`
		Total int        `json:"total"`
	}
	if err := json.Unmarshal(decode(t, rec).Data, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].ID != open.ID {
		t.Errorf("expected only the pending invoice, got total=%d", page.Total)
	}

	rec = request(e, http.MethodGet, "/api/v1/invoices?status=overdue", "accountant", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad status filter: expected 400, got %d", rec.Code)
	}

	rec = request(e, http.MethodGet, "/api/v1/invoices?patient_id="+open.PatientID.String(), "accountant", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list by patient: expected 200, got %d", rec.Code)
	}
	if err := json.Unmarshal(decode(t, rec).Data, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Total != 1 {
		t.Errorf("expected 1 invoice for the patient, got %d", page.Total)
	}
}

func TestGetHTTP(t *testing.T) {
	e := newInvoiceHTTP(t)
	inv := issueOne(t, e, "accountant")

	rec := request(e, http.MethodGet, "/api/v1/invoices/"+inv.ID.String(), "accountant", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("get: expected 200, got %d", rec.Code)
	}

	rec = request(e, http.MethodGet, "/api/v1/invoices/"+uuid.NewString(), "accountant", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown invoice: expected 404, got %d", rec.Code)
	}

	rec = request(e, http.MethodGet, "/api/v1/invoices/nope", "accountant", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: expected 400, got %d", rec.Code)
	}
}
