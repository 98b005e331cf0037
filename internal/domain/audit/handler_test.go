package audit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medicore/medicore/internal/platform/auth"
)

func serveList(t *testing.T, repo *fakeRepo, target string, identity *auth.Identity) *httptest.ResponseRecorder {
	t.Helper()
	h := NewHandler(NewService(repo, zerolog.Nop()))
	e := echo.New()
	api := e.Group("/api/v1")
	h.RegisterRoutes(api, auth.NewRBAC(nil))

	req := httptest.NewRequest(http.MethodGet, target, nil)
	if identity != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), identity))
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type listBody struct {
	Success bool `json:"success"`
	Data    struct {
		Items []struct {
			Action  string `json:"action"`
			ActorID string `json:"actor_id"`
		} `json:"items"`
		Total int `json:"total"`
	} `json:"data"`
}

func TestList_RequiresAdmin(t *testing.T) {
	repo := &fakeRepo{}

	rec := serveList(t, repo, "/api/v1/audit-events", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 without identity, got %d", rec.Code)
	}

	rec = serveList(t, repo, "/api/v1/audit-events", &auth.Identity{AccountID: uuid.NewString(), Role: "doctor"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected status 403 for doctor, got %d", rec.Code)
	}

	rec = serveList(t, repo, "/api/v1/audit-events", &auth.Identity{AccountID: uuid.NewString(), Role: "admin"})
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200 for admin, got %d", rec.Code)
	}
}

func TestList_ReturnsEnvelope(t *testing.T) {
	actor := uuid.New()
	repo := &fakeRepo{events: []*Event{
		{ID: uuid.New(), ActorID: &actor, Action: ActionLoginSuccess},
		{ID: uuid.New(), ActorID: &actor, Action: ActionLogout},
	}}

	rec := serveList(t, repo, "/api/v1/audit-events", &auth.Identity{AccountID: uuid.NewString(), Role: "admin"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body listBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !body.Success {
		t.Error("expected success envelope")
	}
	if body.Data.Total != 2 {
		t.Errorf("expected total 2, got %d", body.Data.Total)
	}
	if len(body.Data.Items) != 2 {
		t.Errorf("expected 2 items, got %d", len(body.Data.Items))
	}
}

func TestList_FiltersByActor(t *testing.T) {
	actorA := uuid.New()
	actorB := uuid.New()
	repo := &fakeRepo{events: []*Event{
		{ID: uuid.New(), ActorID: &actorA, Action: ActionLoginFailure},
		{ID: uuid.New(), ActorID: &actorA, Action: ActionLoginFailure},
		{ID: uuid.New(), ActorID: &actorB, Action: ActionLoginFailure},
	}}

	rec := serveList(t, repo, "/api/v1/audit-events?actor_id="+actorA.String(),
		&auth.Identity{AccountID: uuid.NewString(), Role: "admin"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body listBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body.Data.Total != 2 {
		t.Errorf("expected total 2, got %d", body.Data.Total)
	}
	if repo.lastParams["actor_id"] != actorA.String() {
		t.Errorf("expected actor_id filter %s, got %s", actorA, repo.lastParams["actor_id"])
	}
}

func TestList_FiltersByAction(t *testing.T) {
	actor := uuid.New()
	repo := &fakeRepo{events: []*Event{
		{ID: uuid.New(), ActorID: &actor, Action: ActionLoginFailure},
		{ID: uuid.New(), ActorID: &actor, Action: ActionLogout},
	}}

	rec := serveList(t, repo, "/api/v1/audit-events?action=logout",
		&auth.Identity{AccountID: uuid.NewString(), Role: "admin"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body listBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body.Data.Total != 1 {
		t.Errorf("expected total 1, got %d", body.Data.Total)
	}
	if len(body.Data.Items) != 1 || body.Data.Items[0].Action != ActionLogout {
		t.Errorf("expected logout item, got %+v", body.Data.Items)
	}
}

func TestList_InvalidActorID(t *testing.T) {
	repo := &fakeRepo{}
	rec := serveList(t, repo, "/api/v1/audit-events?actor_id=not-a-uuid",
		&auth.Identity{AccountID: uuid.NewString(), Role: "admin"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}
