// Package domain holds the durable entity types shared by the store,
// the extraction/geocode/dedup stages, and the HTTP read surface.
package domain

import "time"

// SourceType enumerates where a Source's raw observations come from.
type SourceType string

const (
	SourceTypeHTML   SourceType = "html"
	SourceTypeRSS    SourceType = "rss"
	SourceTypeAPI    SourceType = "api"
	SourceTypeAudio  SourceType = "audio"
	SourceTypeManual SourceType = "manual"
)

// SourceCategory enumerates the editorial category of a Source.
type SourceCategory string

const (
	CategoryNews     SourceCategory = "news"
	CategoryCrime    SourceCategory = "crime"
	CategoryFire     SourceCategory = "fire"
	CategoryPermits  SourceCategory = "permits"
	CategoryBusiness SourceCategory = "business"
)

// Source is a configured data origin polled by the scheduler.
type Source struct {
	ID               string
	Name             string
	SourceType       SourceType
	URL              string
	Region           string
	Category         SourceCategory
	Config           map[string]any
	IsActive         bool
	ReliabilityScore float64
	LastFetchedAt    *time.Time
	CreatedAt        time.Time
}

// DedupStatus is the lifecycle state of an IncidentReport.
type DedupStatus string

const (
	DedupPending     DedupStatus = "pending"
	DedupMatched     DedupStatus = "matched"
	DedupNewIncident DedupStatus = "new_incident"
	DedupRejected    DedupStatus = "rejected"
)

// Point is a geographic coordinate. A nil *Point means "no location."
type Point struct {
	Lat float64
	Lon float64
}

// IncidentReport is a single raw observation produced by extraction.
type IncidentReport struct {
	ID                   string
	SourceID             string
	ExternalID           string
	SourceURL            string
	RawText              string
	IncidentType         string
	Category             ExtractionCategory
	Address              *string
	City                 *string
	Location             *Point
	LocationResolution   LocationResolution
	LocationConfidence   float64
	OccurredAt           *time.Time
	IngestedAt           time.Time
	ExtractionModel      string
	ExtractionConfidence float64
	UrgencyScore         int
	DedupStatus          DedupStatus
	DedupProcessedAt     *time.Time
	IncidentID           *string
}

// LocationResolution is the geocoder tier that produced a location.
type LocationResolution string

const (
	ResolutionParcel   LocationResolution = "parcel"
	ResolutionBlock    LocationResolution = "block"
	ResolutionCentroid LocationResolution = "centroid"
	ResolutionUnknown  LocationResolution = "unknown"
)

// ReviewStatus drives the confidence-workflow state machine.
type ReviewStatus string

const (
	ReviewAutoPublished ReviewStatus = "auto_published"
	ReviewUnverified    ReviewStatus = "unverified"
	ReviewNeedsReview   ReviewStatus = "needs_review"
	ReviewApproved      ReviewStatus = "approved"
	ReviewRejected      ReviewStatus = "rejected"
)

// IsFinal reports whether a review status has been fixed by a human and
// must never be overwritten by an automatic recompute.
func (s ReviewStatus) IsFinal() bool {
	return s == ReviewApproved || s == ReviewRejected
}

// IncidentStatus is the operational lifecycle of a canonical incident.
type IncidentStatus string

const (
	IncidentActive    IncidentStatus = "active"
	IncidentResolved  IncidentStatus = "resolved"
	IncidentRetracted IncidentStatus = "retracted"
)

// Incident is the canonical, deduplicated occurrence.
type Incident struct {
	ID                 string
	IncidentType       string
	Category           string
	UrgencyScore       int
	Location           *Point
	LocationResolution LocationResolution
	LocationConfidence float64
	Address            *string
	City               *string
	Region             string
	OccurredAt         *time.Time
	ReportedAt         time.Time
	Title              string
	Description        string
	ReportCount        int
	SourceTypes        []string
	ConfidenceScore    float64
	ReviewStatus       ReviewStatus
	ReviewedAt         *time.Time
	ReviewedBy         *string
	Status             IncidentStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StreetCenterline is cached reference geometry for block-level geocoding.
type StreetCenterline struct {
	ID                   string
	Region               string
	StreetName           string
	StreetNameNormalized string
	FromAddress          int
	ToAddress            int
	City                 string
	FromPoint            Point
	ToPoint              Point
}

// Midpoint returns the geometric midpoint of the centerline.
func (c StreetCenterline) Midpoint() Point {
	return Point{
		Lat: (c.FromPoint.Lat + c.ToPoint.Lat) / 2,
		Lon: (c.FromPoint.Lon + c.ToPoint.Lon) / 2,
	}
}

// WeeklyRollup is an aggregate snapshot for one ISO week and municipality
// (Municipality is nil for the incidents that carry no city).
type WeeklyRollup struct {
	ID                  string
	WeekStart           time.Time
	Municipality        *string
	IncidentsByCategory map[string]int
	NewsByCategory      map[string]int
	IncidentTrend       int
	SummaryText         string
	CreatedAt           time.Time
}

// ExtractionCategory is the closed set the extraction engine must map into.
type ExtractionCategory string

const (
	CategoryViolentCrime  ExtractionCategory = "violent_crime"
	CategoryPropertyCrime ExtractionCategory = "property_crime"
	CategoryFireIncident  ExtractionCategory = "fire"
	CategoryMedical       ExtractionCategory = "medical"
	CategoryTraffic       ExtractionCategory = "traffic"
	CategoryDrugs         ExtractionCategory = "drugs"
	CategoryMissingPerson ExtractionCategory = "missing_person"
	CategorySuspicious    ExtractionCategory = "suspicious"
	CategoryOther         ExtractionCategory = "other"
)

// ValidExtractionCategories is the closed set an extractor output must
// belong to; anything else is a malformed extraction.
var ValidExtractionCategories = map[ExtractionCategory]struct{}{
	CategoryViolentCrime:  {},
	CategoryPropertyCrime: {},
	CategoryFireIncident:  {},
	CategoryMedical:       {},
	CategoryTraffic:       {},
	CategoryDrugs:         {},
	CategoryMissingPerson: {},
	CategorySuspicious:    {},
	CategoryOther:         {},
}
