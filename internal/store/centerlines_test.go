package store

import (
	"context"
	"testing"

	"github.com/mchenry-intel/ingestion-pipeline/internal/domain"
)

func TestFindCenterlinesMatchesRegionAndNormalizedName(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	line := &domain.StreetCenterline{
		Region:               "sussex-county-nj",
		StreetName:           "Main St",
		StreetNameNormalized: "Main Street",
		FromAddress:          100,
		ToAddress:            200,
		City:                 "Newton",
		FromPoint:            domain.Point{Lat: 41.0, Lon: -74.0},
		ToPoint:              domain.Point{Lat: 41.1, Lon: -74.1},
	}
	if err := st.InsertCenterline(ctx, line); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := st.FindCenterlines(ctx, "sussex-county-nj", "Main Street")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 || got[0].City != "Newton" {
		t.Fatalf("unexpected centerlines: %+v", got)
	}

	miss, err := st.FindCenterlines(ctx, "sussex-county-nj", "Oak Avenue")
	if err != nil {
		t.Fatalf("find miss: %v", err)
	}
	if len(miss) != 0 {
		t.Fatalf("expected no match for a different street, got %+v", miss)
	}
}

func TestLoadCenterlinesBulkInsertsWithinOneTransaction(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	lines := []domain.StreetCenterline{
		{Region: "r", StreetName: "Elm St", StreetNameNormalized: "Elm Street", FromAddress: 1, ToAddress: 99},
		{Region: "r", StreetName: "Oak Ave", StreetNameNormalized: "Oak Avenue", FromAddress: 1, ToAddress: 99},
	}
	if err := st.LoadCenterlines(ctx, lines); err != nil {
		t.Fatalf("load: %v", err)
	}

	got, err := st.FindCenterlines(ctx, "r", "Elm Street")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one Elm Street segment, got %d", len(got))
	}
}
