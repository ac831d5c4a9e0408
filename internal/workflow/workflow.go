// Package workflow computes an incident's confidence score and derives its
// review status, preserving human review decisions against automatic
// recomputation.
package workflow

import (
	"context"
	"time"

	"github.com/mchenry-intel/ingestion-pipeline/internal/domain"
)

const (
	maxConfidence = 0.99

	reportCountBonus    = 0.05
	maxReportCountSteps = 3

	sourceDiversityBonus = 0.10
	maxDiversitySteps    = 2

	// AutoPublishThreshold and above: no review needed, published directly.
	AutoPublishThreshold = 0.9
	// Below NeedsReviewThreshold: routed to the human review queue.
	NeedsReviewThreshold = 0.6
)

// ReportSummary is the subset of an IncidentReport's data the confidence
// formula needs, avoiding a dependency on the full report shape.
type ReportSummary struct {
	ExtractionConfidence float64
	SourceType           domain.SourceType
}

// Recompute derives an incident's confidence score and report-count/source-
// diversity fields from its linked reports, then derives a review status
// from the score. If the incident's current review status is final
// (approved or rejected), the review status is left untouched — only the
// confidence, report count, and source-type fields are refreshed, since
// the raw evidence still matters for the public read API even after a
// human has made the call.
func Recompute(inc *domain.Incident, reports []ReportSummary, now time.Time) {
	inc.ReportCount = len(reports)
	inc.SourceTypes = distinctSourceTypes(reports)
	inc.ConfidenceScore = confidenceScore(reports, inc.SourceTypes)
	inc.UpdatedAt = now

	if inc.ReviewStatus.IsFinal() {
		return
	}
	inc.ReviewStatus = deriveReviewStatus(inc.ConfidenceScore)
}

func confidenceScore(reports []ReportSummary, sourceTypes []string) float64 {
	if len(reports) == 0 {
		return 0
	}
	var sum float64
	for _, r := range reports {
		sum += r.ExtractionConfidence
	}
	avgConfidence := sum / float64(len(reports))

	reportSteps := len(reports) - 1
	if reportSteps > maxReportCountSteps {
		reportSteps = maxReportCountSteps
	}
	if reportSteps < 0 {
		reportSteps = 0
	}

	diversitySteps := len(sourceTypes) - 1
	if diversitySteps > maxDiversitySteps {
		diversitySteps = maxDiversitySteps
	}
	if diversitySteps < 0 {
		diversitySteps = 0
	}

	score := avgConfidence +
		reportCountBonus*float64(reportSteps) +
		sourceDiversityBonus*float64(diversitySteps)
	if score > maxConfidence {
		score = maxConfidence
	}
	return score
}

func deriveReviewStatus(score float64) domain.ReviewStatus {
	switch {
	case score >= AutoPublishThreshold:
		return domain.ReviewAutoPublished
	case score < NeedsReviewThreshold:
		return domain.ReviewNeedsReview
	default:
		return domain.ReviewUnverified
	}
}

func distinctSourceTypes(reports []ReportSummary) []string {
	seen := make(map[domain.SourceType]bool)
	var out []string
	for _, r := range reports {
		if seen[r.SourceType] {
			continue
		}
		seen[r.SourceType] = true
		out = append(out, string(r.SourceType))
	}
	return out
}

// Store is the subset of persistence the workflow engine needs.
type Store interface {
	ReportsByIncident(ctx context.Context, incidentID string) ([]*domain.IncidentReport, error)
	GetSourceType(ctx context.Context, sourceID string) (domain.SourceType, error)
	UpdateIncidentDerived(ctx context.Context, inc *domain.Incident) error
	SetReviewDecision(ctx context.Context, id string, status domain.ReviewStatus, reviewer string, at time.Time) error
	RetractIncident(ctx context.Context, id string, at time.Time) error
	UpdateReportLink(ctx context.Context, reportID string, status domain.DedupStatus, incidentID string, at time.Time) error
}

// RecomputeIncident loads an incident's linked reports, recomputes its
// derived fields, and persists the result.
func RecomputeIncident(ctx context.Context, store Store, inc *domain.Incident, now time.Time) error {
	reports, err := store.ReportsByIncident(ctx, inc.ID)
	if err != nil {
		return err
	}
	summaries := make([]ReportSummary, 0, len(reports))
	for _, r := range reports {
		srcType, err := store.GetSourceType(ctx, r.SourceID)
		if err != nil {
			continue
		}
		summaries = append(summaries, ReportSummary{ExtractionConfidence: r.ExtractionConfidence, SourceType: srcType})
	}
	Recompute(inc, summaries, now)
	return store.UpdateIncidentDerived(ctx, inc)
}

// ApplyReviewDecision records a human decision (approve or reject) as
// terminal, then, when the decision is a rejection, cascades that
// rejection onto every report linked to the incident so they no longer
// count as ingested evidence for future dedup or rollup passes.
func ApplyReviewDecision(ctx context.Context, store Store, inc *domain.Incident, decision domain.ReviewStatus, reviewer string, now time.Time) error {
	if decision != domain.ReviewApproved && decision != domain.ReviewRejected {
		return errInvalidDecision
	}
	if err := store.SetReviewDecision(ctx, inc.ID, decision, reviewer, now); err != nil {
		return err
	}
	if decision != domain.ReviewRejected {
		return nil
	}

	if err := store.RetractIncident(ctx, inc.ID, now); err != nil {
		return err
	}
	reports, err := store.ReportsByIncident(ctx, inc.ID)
	if err != nil {
		return err
	}
	for _, r := range reports {
		if err := store.UpdateReportLink(ctx, r.ID, domain.DedupRejected, inc.ID, now); err != nil {
			return err
		}
	}
	return nil
}

var errInvalidDecision = decisionError("workflow: review decision must be approved or rejected")

type decisionError string

func (e decisionError) Error() string { return string(e) }
