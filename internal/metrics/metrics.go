package metrics

import "sync/atomic"

var (
	reportsIngested   int64
	ingestErrors      int64
	fetchErrors       int64
	incidentsCreated  int64
	incidentsLinked   int64
	rollupsComputed   int64
	extractionRetries int64
)

func IncReportsIngested()   { atomic.AddInt64(&reportsIngested, 1) }
func IncIngestErrors()      { atomic.AddInt64(&ingestErrors, 1) }
func IncFetchErrors()       { atomic.AddInt64(&fetchErrors, 1) }
func IncIncidentsCreated()  { atomic.AddInt64(&incidentsCreated, 1) }
func IncIncidentsLinked()   { atomic.AddInt64(&incidentsLinked, 1) }
func IncRollupsComputed()   { atomic.AddInt64(&rollupsComputed, 1) }
func IncExtractionRetries() { atomic.AddInt64(&extractionRetries, 1) }

// Snapshot returns a point-in-time copy of every counter, served by the
// /ops/metrics endpoint.
func Snapshot() map[string]int64 {
	return map[string]int64{
		"reports_ingested":   atomic.LoadInt64(&reportsIngested),
		"ingest_errors":      atomic.LoadInt64(&ingestErrors),
		"fetch_errors":       atomic.LoadInt64(&fetchErrors),
		"incidents_created":  atomic.LoadInt64(&incidentsCreated),
		"incidents_linked":   atomic.LoadInt64(&incidentsLinked),
		"rollups_computed":   atomic.LoadInt64(&rollupsComputed),
		"extraction_retries": atomic.LoadInt64(&extractionRetries),
	}
}
