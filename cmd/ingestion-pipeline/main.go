// Command ingestion-pipeline runs the local-intelligence ingestion
// service: the scheduler, the audio watcher, the weekly rollup loop, and
// the HTTP read API, all wired around a single SQLite store.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/mchenry-intel/ingestion-pipeline/internal/app"
	"github.com/mchenry-intel/ingestion-pipeline/internal/config"
)

func main() {
	cfg := config.Load()
	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	if err := application.Run(ctx); err != nil {
		log.Fatalf("run: %v", err)
	}
}
