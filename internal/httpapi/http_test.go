package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/mchenry-intel/ingestion-pipeline/internal/config"
	"github.com/mchenry-intel/ingestion-pipeline/internal/domain"
	"github.com/mchenry-intel/ingestion-pipeline/internal/store"
)

func setupTest(t *testing.T) (*Router, *store.Store) {
	t.Helper()
	cfg := config.Load()
	cfg.DBPath = filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return NewRouter(cfg, st), st
}

func seedIncident(t *testing.T, st *store.Store, review domain.ReviewStatus) *domain.Incident {
	t.Helper()
	inc := &domain.Incident{
		IncidentType:       "fire",
		Category:           "fire",
		UrgencyScore:       3,
		LocationResolution: domain.ResolutionCentroid,
		Region:             "sussex-county-nj",
		ReportedAt:         time.Now().UTC(),
		Title:              "structure fire on Main St",
		Description:        "structure fire on Main St",
		Status:             domain.IncidentActive,
		ReviewStatus:       review,
	}
	if err := st.CreateIncident(context.Background(), inc); err != nil {
		t.Fatalf("seed incident: %v", err)
	}
	return inc
}

func TestListIncidentsFiltersByRegion(t *testing.T) {
	router, st := setupTest(t)
	seedIncident(t, st, domain.ReviewNeedsReview)

	mux := http.NewServeMux()
	router.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/incidents?region=sussex-county-nj", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rr.Code, rr.Body.String())
	}

	var incidents []*domain.Incident
	if err := json.Unmarshal(rr.Body.Bytes(), &incidents); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(incidents) != 1 {
		t.Fatalf("expected 1 incident, got %d", len(incidents))
	}

	req = httptest.NewRequest(http.MethodGet, "/incidents?region=nowhere", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if err := json.Unmarshal(rr.Body.Bytes(), &incidents); err != nil {
		t.Fatalf("decode empty response: %v", err)
	}
	if len(incidents) != 0 {
		t.Fatalf("expected 0 incidents for unmatched region, got %d", len(incidents))
	}
}

func TestReviewQueueApprovalSetsApprovedStatus(t *testing.T) {
	router, st := setupTest(t)
	inc := seedIncident(t, st, domain.ReviewNeedsReview)

	mux := http.NewServeMux()
	router.Register(mux)

	body, _ := json.Marshal(map[string]string{
		"incident_id": inc.ID,
		"decision":    "approved",
		"reviewer":    "dispatcher-1",
	})
	req := httptest.NewRequest(http.MethodPost, "/review-queue", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d: %s", rr.Code, rr.Body.String())
	}

	updated, err := st.GetIncident(context.Background(), inc.ID)
	if err != nil {
		t.Fatalf("get incident: %v", err)
	}
	if updated.ReviewStatus != domain.ReviewApproved {
		t.Fatalf("expected approved, got %s", updated.ReviewStatus)
	}
}

func TestReviewQueueRejectsInvalidDecision(t *testing.T) {
	router, st := setupTest(t)
	inc := seedIncident(t, st, domain.ReviewNeedsReview)

	mux := http.NewServeMux()
	router.Register(mux)

	body, _ := json.Marshal(map[string]string{
		"incident_id": inc.ID,
		"decision":    "maybe",
	})
	req := httptest.NewRequest(http.MethodPost, "/review-queue", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := setupTest(t)
	mux := http.NewServeMux()
	router.Register(mux)
	req := httptest.NewRequest(http.MethodGet, "/ops/health", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
}

func TestMetricsEndpointReturnsCounters(t *testing.T) {
	router, _ := setupTest(t)
	mux := http.NewServeMux()
	router.Register(mux)
	req := httptest.NewRequest(http.MethodGet, "/ops/metrics", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rr.Code)
	}
	var snapshot map[string]int64
	if err := json.Unmarshal(rr.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if _, ok := snapshot["reports_ingested"]; !ok {
		t.Fatalf("expected reports_ingested counter in snapshot")
	}
}
