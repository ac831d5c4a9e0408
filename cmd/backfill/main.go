// Command backfill replays a directory of scanner recordings collected
// before the pipeline was running through the same extraction, geocoding,
// and deduplication path the scheduler uses, then recomputes rollups for
// the most recent -weeks weeks (default 8).
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/mchenry-intel/ingestion-pipeline/internal/adapters"
	"github.com/mchenry-intel/ingestion-pipeline/internal/app"
	"github.com/mchenry-intel/ingestion-pipeline/internal/config"
	"github.com/mchenry-intel/ingestion-pipeline/internal/domain"
	"github.com/mchenry-intel/ingestion-pipeline/internal/rollup"
)

func main() {
	region := flag.String("region", "", "region to backfill (defaults to REGION env)")
	weeksBack := flag.Int("weeks", 8, "number of past weeks to recompute rollups for")
	flag.Parse()

	cfg := config.Load()
	if *region != "" {
		cfg.Region = *region
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	ctx := context.Background()

	audio := application.Audio()
	if audio == nil {
		log.Fatal("backfill: audio watcher disabled, nothing to replay")
	}

	sources, err := application.Store().ListActiveSources(ctx)
	if err != nil {
		log.Fatalf("list sources: %v", err)
	}
	var audioSource *domain.Source
	for _, s := range sources {
		if s.SourceType == domain.SourceTypeAudio && s.Region == cfg.Region {
			audioSource = s
			break
		}
	}
	if audioSource == nil {
		log.Fatalf("backfill: no active audio source configured for region %s", cfg.Region)
	}

	obs, err := audio.Backfill(ctx)
	if err != nil {
		log.Fatalf("scan audio directory: %v", err)
	}
	log.Printf("backfill: found %d recordings in %s", len(obs), cfg.AudioDir)

	replayed := 0
	for _, o := range obs {
		if err := replay(ctx, application, audioSource, o); err != nil {
			log.Printf("backfill: replay %s: %v", o.ExternalID, err)
			continue
		}
		replayed++
	}
	log.Printf("backfill: replayed %d/%d recordings", replayed, len(obs))

	engine := rollup.New(application.Store())
	now := config.Now()
	for i := 0; i < *weeksBack; i++ {
		weekOf := now.Add(-time.Duration(i) * 7 * 24 * time.Hour)
		n, err := engine.RunWeek(ctx, cfg.Region, weekOf)
		if err != nil {
			log.Printf("backfill: rollup week %d: %v", i, err)
			continue
		}
		log.Printf("backfill: recomputed %d rollups for week of %s", n, rollup.WeekStart(weekOf).Format("2006-01-02"))
	}
}

func replay(ctx context.Context, application *app.App, src *domain.Source, o adapters.RawObservation) error {
	return application.Scheduler().IngestObservation(ctx, src, o)
}
