// Package httpapi exposes the read surface for incidents, the review
// queue, and rollups, plus operator endpoints for health and metrics.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mchenry-intel/ingestion-pipeline/internal/config"
	"github.com/mchenry-intel/ingestion-pipeline/internal/domain"
	"github.com/mchenry-intel/ingestion-pipeline/internal/metrics"
	"github.com/mchenry-intel/ingestion-pipeline/internal/store"
	"github.com/mchenry-intel/ingestion-pipeline/internal/workflow"
)

// Router builds HTTP handlers for the public read API and operator
// endpoints.
type Router struct {
	cfg   config.Config
	store *store.Store
}

// NewRouter builds a Router.
func NewRouter(cfg config.Config, st *store.Store) *Router {
	return &Router{cfg: cfg, store: st}
}

// Register wires every handler onto mux.
func (r *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/incidents", r.listIncidents)
	mux.HandleFunc("/review-queue", r.reviewQueue)
	mux.HandleFunc("/rollup", r.rollup)
	mux.HandleFunc("/ops/health", r.health)
	mux.HandleFunc("/ops/metrics", r.metrics)
}

// GET /incidents?region=&category=&since=&review_status=&limit=&offset=
func (r *Router) listIncidents(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := req.URL.Query()
	filter := store.IncidentFilter{
		Region:       q.Get("region"),
		Category:     q.Get("category"),
		ReviewStatus: q.Get("review_status"),
		Limit:        atoiDefault(q.Get("limit"), 50),
		Offset:       atoiDefault(q.Get("offset"), 0),
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			http.Error(w, "invalid since: "+err.Error(), http.StatusBadRequest)
			return
		}
		filter.Since = &t
	}

	incidents, err := r.store.ListIncidents(req.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, incidents)
}

// GET /review-queue?limit=&offset=
// POST /review-queue {"incident_id": "...", "decision": "approved"|"rejected", "reviewer": "..."}
func (r *Router) reviewQueue(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		q := req.URL.Query()
		limit := atoiDefault(q.Get("limit"), 50)
		offset := atoiDefault(q.Get("offset"), 0)
		items, err := r.store.ReviewQueue(req.Context(), limit, offset)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, items)
	case http.MethodPost:
		r.submitReviewDecision(w, req)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (r *Router) submitReviewDecision(w http.ResponseWriter, req *http.Request) {
	var body struct {
		IncidentID string `json:"incident_id"`
		Decision   string `json:"decision"`
		Reviewer   string `json:"reviewer"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	decision := domain.ReviewStatus(strings.ToLower(strings.TrimSpace(body.Decision)))
	if decision != domain.ReviewApproved && decision != domain.ReviewRejected {
		http.Error(w, "decision must be \"approved\" or \"rejected\"", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.IncidentID) == "" {
		http.Error(w, "incident_id required", http.StatusBadRequest)
		return
	}

	inc, err := r.store.GetIncident(req.Context(), body.IncidentID)
	if err == store.ErrNotFound {
		http.NotFound(w, req)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := workflow.ApplyReviewDecision(req.Context(), r.store, inc, decision, body.Reviewer, config.Now()); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /rollup?municipality=&limit=
func (r *Router) rollup(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := req.URL.Query()
	municipality := strings.ToLower(strings.TrimSpace(q.Get("municipality")))
	limit := atoiDefault(q.Get("limit"), 8)

	rollups, err := r.store.RollupsByMunicipality(req.Context(), municipality, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, rollups)
}

func (r *Router) health(w http.ResponseWriter, req *http.Request) {
	if err := r.store.DB().PingContext(req.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) metrics(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, metrics.Snapshot())
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func respondJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("httpapi: write json: %v", err)
	}
}
