package adapters

import (
	"context"
	"testing"

	"github.com/mchenry-intel/ingestion-pipeline/internal/domain"
)

func TestAPIAdapterExtractsRecordsAtNestedPath(t *testing.T) {
	doer := &fakeDoer{body: `{"data":{"records":[
        {"id":"cad-1","type":"fire","location":"123 Main St"},
        {"id":"cad-2","type":"medical","location":"45 Elm Ave"}
    ]}}`}
	adapter := NewAPIAdapter(doer)
	src := &domain.Source{
		ID:     "cad-feed",
		URL:    "https://api.example.com/dispatch",
		Config: map[string]any{"records_path": "data.records", "id_field": "id"},
	}

	obs, err := adapter.Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(obs) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(obs))
	}
	if obs[0].ExternalID != "cad-1" || obs[1].ExternalID != "cad-2" {
		t.Fatalf("unexpected external ids: %q, %q", obs[0].ExternalID, obs[1].ExternalID)
	}
}

func TestAPIAdapterFallsBackToTopLevelArray(t *testing.T) {
	doer := &fakeDoer{body: `[{"id":"a"},{"id":"b"}]`}
	adapter := NewAPIAdapter(doer)
	src := &domain.Source{ID: "src", URL: "https://api.example.com/list"}

	obs, err := adapter.Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(obs) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(obs))
	}
}

func TestAPIAdapterGeneratesFallbackIDWhenFieldMissing(t *testing.T) {
	doer := &fakeDoer{body: `[{"type":"traffic"}]`}
	adapter := NewAPIAdapter(doer)
	src := &domain.Source{ID: "src-9", URL: "https://api.example.com/list"}

	obs, err := adapter.Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(obs) != 1 || obs[0].ExternalID != "src-9-0" {
		t.Fatalf("expected a generated fallback id, got %+v", obs)
	}
}

func TestAPIAdapterErrorsWhenRecordsPathMissing(t *testing.T) {
	doer := &fakeDoer{body: `{"unexpected":true}`}
	adapter := NewAPIAdapter(doer)
	src := &domain.Source{URL: "https://api.example.com/list", Config: map[string]any{"records_path": "data.records"}}

	if _, err := adapter.Fetch(context.Background(), src); err == nil {
		t.Fatalf("expected an error when records_path resolves to nothing")
	}
}
