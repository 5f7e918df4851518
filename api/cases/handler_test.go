package cases

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aidline/aidline/core/model"
	infrastore "github.com/aidline/aidline/infra/store"
)

func seedStore(t *testing.T) *infrastore.MemoryStore {
	t.Helper()
	s := infrastore.NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	for _, c := range []*model.Case{
		{ID: "c-1", ReporterID: "u-1", Status: model.StatusPending, Severity: 2, History: []model.StatusChange{}, CreatedAt: base},
		{ID: "c-2", ReporterID: "u-2", Status: model.StatusAssigned, Severity: 4, History: []model.StatusChange{}, CreatedAt: base.Add(time.Minute)},
	} {
		if err := s.Create(ctx, c); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return s
}

func TestListHandler_Basic(t *testing.T) {
	h := NewListHandler(seedStore(t), "")
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/cases", nil)
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var out []model.Case
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 || out[0].ID != "c-1" {
		t.Fatalf("unexpected output %#v", out)
	}
}

func TestListHandler_Filter(t *testing.T) {
	h := NewListHandler(seedStore(t), "")
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/cases?status=pending", nil)
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var out []model.Case
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].ID != "c-1" {
		t.Fatalf("unexpected filter result %#v", out)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/cases?status=bogus", nil)
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rr.Code)
	}
}

func TestGetHandler(t *testing.T) {
	h := NewGetHandler(seedStore(t), "")
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/cases/c-2", nil)
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var out model.Case
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.ID != "c-2" || out.Status != model.StatusAssigned {
		t.Fatalf("unexpected case %#v", out)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/cases/ghost", nil)
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestHandlers_Auth(t *testing.T) {
	h := NewListHandler(seedStore(t), "secret")
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/cases", nil)
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/cases", nil)
	req.Header.Set("Authorization", "Bearer secret")
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestMux_Routing(t *testing.T) {
	mux := NewMux(seedStore(t), "")
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/cases/c-1", nil)
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
}
