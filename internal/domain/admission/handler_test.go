package admission

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medicore/medicore/internal/platform/auth"
	"github.com/medicore/medicore/pkg/respond"
)

func newAdmissionHTTP(t *testing.T) (*echo.Echo, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	e := echo.New()
	e.HTTPErrorHandler = respond.HTTPErrorHandler(zerolog.Nop())
	NewHandler(NewService(repo)).RegisterRoutes(e.Group("/api/v1"), auth.NewRBAC(nil))
	return e, repo
}

func request(e *echo.Echo, method, target, role string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if role != "" {
		id := &auth.Identity{AccountID: uuid.NewString(), Role: role}
		req = req.WithContext(auth.WithIdentity(req.Context(), id))
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
		t.Fatalf("invalid envelope: %v in %s", err, rec.Body.String())
	}
	return env
}

func admitBody(ward, bed string) map[string]string {
	return map[string]string{
		"patientId":   uuid.NewString(),
		"ward":        ward,
		"bed":         bed,
		"attendingId": uuid.NewString(),
		"diagnosis":   "pneumonia",
	}
}

func admitOne(t *testing.T, e *echo.Echo, ward, bed string) Admission {
	t.Helper()
	rec := request(e, http.MethodPost, "/api/v1/admissions", "doctor", admitBody(ward, bed))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var a Admission
	if err := json.Unmarshal(decode(t, rec).Data, &a); err != nil {
		t.Fatalf("invalid admission payload: %v", err)
	}
	return a
}

func TestAdmissionsHTTP_RoleMatrix(t *testing.T) {
	e, _ := newAdmissionHTTP(t)

	if rec := request(e, http.MethodGet, "/api/v1/admissions", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 unauthenticated, got %d", rec.Code)
	}
	if rec := request(e, http.MethodGet, "/api/v1/admissions", "receptionist", nil); rec.Code != http.StatusForbidden {
		t.Errorf("expected status 403 for receptionist, got %d", rec.Code)
	}
	if rec := request(e, http.MethodGet, "/api/v1/admissions", "nurse", nil); rec.Code != http.StatusOK {
		t.Errorf("expected status 200 for nurse, got %d", rec.Code)
	}
}

func TestAdmissionsHTTP_AdmitAndConflict(t *testing.T) {
	e, _ := newAdmissionHTTP(t)

	a := admitOne(t, e, "ICU", "3")
	if a.Status != StatusAdmitted {
		t.Errorf("expected admitted, got %s", a.Status)
	}

	rec := request(e, http.MethodPost, "/api/v1/admissions", "nurse", admitBody("ICU", "3"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409 for occupied bed, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdmissionsHTTP_Validation(t *testing.T) {
	e, _ := newAdmissionHTTP(t)

	rec := request(e, http.MethodPost, "/api/v1/admissions", "doctor", map[string]string{
		"patientId": "nope",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	env := decode(t, rec)
	fields := map[string]bool{}
	for _, fe := range env.Errors {
		fields[fe.Field] = true
	}
	for _, want := range []string{"patientId", "attendingId", "ward", "bed", "diagnosis"} {
		if !fields[want] {
			t.Errorf("expected %s field error, got %+v", want, env.Errors)
		}
	}
}

func TestAdmissionsHTTP_Discharge(t *testing.T) {
	e, repo := newAdmissionHTTP(t)
	a := admitOne(t, e, "ICU", "3")
	target := "/api/v1/admissions/" + a.ID.String() + "/discharge"

	rec := request(e, http.MethodPut, target, "doctor", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var closed Admission
	if err := json.Unmarshal(decode(t, rec).Data, &closed); err != nil {
		t.Fatalf("invalid admission payload: %v", err)
	}
	if closed.Status != StatusDischarged || closed.DischargedAt == nil {
		t.Errorf("expected discharged record, got %+v", closed)
	}
	if repo.stored(a.ID).Status != StatusDischarged {
		t.Error("expected stored record discharged")
	}

	rec = request(e, http.MethodPut, target, "doctor", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected status 409 for second discharge, got %d", rec.Code)
	}
}

func TestAdmissionsHTTP_ListByWard(t *testing.T) {
	e, _ := newAdmissionHTTP(t)
	admitOne(t, e, "ICU", "1")
	admitOne(t, e, "GEN", "1")

	rec := request(e, http.MethodGet, "/api/v1/admissions?ward=ICU", "nurse", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var page struct {
		Items []Admission `json:"items"`
		Total int         `json:"total"`
	}
	if err := json.Unmarshal(decode(t, rec).Data, &page); err != nil {
		t.Fatalf("invalid page payload: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].Ward != "ICU" {
		t.Errorf("expected the ICU stay, got total=%d", page.Total)
	}
}

func TestAdmissionsHTTP_GetUnknown(t *testing.T) {
	e, _ := newAdmissionHTTP(t)

	if rec := request(e, http.MethodGet, "/api/v1/admissions/"+uuid.NewString(), "doctor", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
	if rec := request(e, http.MethodGet, "/api/v1/admissions/not-a-uuid", "doctor", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}
