package adapters

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mchenry-intel/ingestion-pipeline/internal/domain"
)

// AudioAdapter watches a directory for newly written scanner recordings,
// runs each one through voice-activity detection and a keyword prefilter,
// and turns only the segments that clear both into RawObservations. This
// is the cost-control path: the overwhelming majority of scanner audio is
// dead air, channel noise, or routine chatter that never justifies an LLM
// extraction call. Audio sources have no poll cadence of their own: the
// watcher buffers observations as recordings land, and the scheduler
// drains that buffer through Fetch on every cycle, skipping the due check
// it applies to other sources.
type AudioAdapter struct {
	dir         string
	transcriber Transcriber

	mu      sync.Mutex
	pending []RawObservation
	watcher *fsnotify.Watcher
	started bool
}

// NewAudioAdapter builds an AudioAdapter that watches dir for new
// recordings. Call Start once before the scheduler begins calling Fetch.
func NewAudioAdapter(dir string, transcriber Transcriber) *AudioAdapter {
	return &AudioAdapter{dir: dir, transcriber: transcriber}
}

// Start begins watching the configured directory. It is idempotent and
// safe to call once at startup regardless of how many audio sources exist,
// since a single directory typically serves one scanner feed.
func (a *AudioAdapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("audio adapter: %w", err)
	}
	if err := w.Add(a.dir); err != nil {
		w.Close()
		return fmt.Errorf("audio adapter: watch %s: %w", a.dir, err)
	}
	a.watcher = w
	a.started = true

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-w.Events:
				if !ok {
					return
				}
				if evt.Op&(fsnotify.Create|fsnotify.Rename) == 0 || !isAudioFile(evt.Name) {
					continue
				}
				a.processRecording(ctx, evt.Name)
			case <-w.Errors:
				// a watch error leaves the directory unmonitored until the
				// next scheduler restart; there is no in-process recovery
				// for a lost inotify descriptor.
			}
		}
	}()
	return nil
}

// processRecording runs the VAD + transcribe + keyword-prefilter chain
// for one file and enqueues an observation per segment that survives it.
func (a *AudioAdapter) processRecording(ctx context.Context, path string) {
	segments, err := detectVoicedSegments(path)
	if err != nil {
		log.Printf("audio adapter: vad %s: %v", path, err)
		return
	}
	for i, seg := range segments {
		text, err := a.transcriber.Transcribe(ctx, path, seg.startSample, seg.endSample)
		if err != nil {
			log.Printf("audio adapter: transcribe %s segment %d: %v", path, i, err)
			continue
		}
		if !isDispatchRelevant(text) {
			continue
		}
		a.enqueue(fmt.Sprintf("%s#%d", filepath.Base(path), i), path, text)
	}
}

func (a *AudioAdapter) enqueue(externalID, path, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = append(a.pending, RawObservation{
		ExternalID: externalID,
		SourceURL:  path,
		Text:       text,
		FetchedAt:  time.Now().UTC(),
	})
}

// Fetch drains whatever segments the watcher has produced since the last
// call. Unlike the polling adapters, src is not used; the actual trigger
// is the filesystem event delivered to Start.
func (a *AudioAdapter) Fetch(ctx context.Context, src *domain.Source) ([]RawObservation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.pending
	a.pending = nil
	return out, nil
}

// Backfill runs the full VAD/transcribe/keyword pipeline over every
// existing recording already in the watched directory, used by the
// standalone backfill entrypoint to reprocess recordings collected before
// the pipeline was running.
func (a *AudioAdapter) Backfill(ctx context.Context) ([]RawObservation, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("audio adapter backfill: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !isAudioFile(e.Name()) {
			continue
		}
		a.processRecording(ctx, filepath.Join(a.dir, e.Name()))
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.pending
	a.pending = nil
	return out, nil
}

func isAudioFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return true
	default:
		return false
	}
}
