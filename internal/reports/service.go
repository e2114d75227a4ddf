// Package reports implements report ingestion and the analyst verification
// workflow that feeds the alert dispatcher.
package reports

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/tidewatch/tidewatch/internal/blob"
	"github.com/tidewatch/tidewatch/internal/database"
	"github.com/tidewatch/tidewatch/internal/dispatch"
	"github.com/tidewatch/tidewatch/internal/ml"
	"github.com/tidewatch/tidewatch/internal/observability"
	"github.com/tidewatch/tidewatch/internal/triage"
)

// ErrInvalidStatus rejects verification targets outside the two
// analyst-settable values.
var ErrInvalidStatus = errors.New("status must be Verified or Needs Verification")

// Classifier is the ML collaborator ingestion depends on. ClassifyText
// fails closed; DetectImageTampering returns nil when heuristics are
// unavailable.
type Classifier interface {
	ClassifyText(ctx context.Context, text string) ml.Classification
	DetectImageTampering(ctx context.Context, image []byte) *ml.TamperCheck
}

// AlertDispatcher fans a verified-hazard alert out to the notification
// channels.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, report *database.Report, actor uint) (*dispatch.Result, error)
}

// Service manages hazard reports: ingestion with automatic triage, analyst
// verification, and the queries the analyst views run on.
type Service struct {
	store      *database.ReportStore
	classifier Classifier
	blobs      blob.Store
	dispatcher AlertDispatcher
	metrics    *observability.Metrics
}

// NewService creates a report service. dispatcher may be nil to disable
// alerting; metrics may be nil to disable instrumentation.
func NewService(store *database.ReportStore, classifier Classifier, blobs blob.Store,
	dispatcher AlertDispatcher, metrics *observability.Metrics) *Service {
	return &Service{
		store:      store,
		classifier: classifier,
		blobs:      blobs,
		dispatcher: dispatcher,
		metrics:    metrics,
	}
}

// CreateInput is one incoming hazard observation
type CreateInput struct {
	Text        string  `validate:"required,min=3,max=2000"`
	Lat         float64 `validate:"gte=-90,lte=90"`
	Lon         float64 `validate:"gte=-180,lte=180"`
	Source      database.ReportSource
	SubmittedBy uint `validate:"required"`

	// Media is an optional image attachment; MediaType must be set with it
	Media     []byte
	MediaType string
}

// Create ingests a report: validates, uploads media, classifies the text,
// runs image heuristics when media is attached, and persists the report
// with its triage decision already applied.
func (s *Service) Create(ctx context.Context, input CreateInput) (*database.Report, error) {
	if input.Source == "" {
		input.Source = database.SourceCitizen
	}
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	report := &database.Report{
		UUID:        uuid.New().String(),
		Text:        input.Text,
		Lat:         input.Lat,
		Lon:         input.Lon,
		Source:      input.Source,
		SubmittedBy: input.SubmittedBy,
	}

	if len(input.Media) > 0 {
		ref, err := s.blobs.Upload(ctx, input.Media, input.MediaType)
		if err != nil {
			if errors.Is(err, blob.ErrUnsupportedType) {
				return nil, &ValidationError{Fields: map[string]string{
					"media_type": fmt.Sprintf("must be one of the supported image types, got %q", input.MediaType),
				}}
			}
			return nil, fmt.Errorf("upload report media: %w", err)
		}
		report.MediaID = ref.ID
		report.MediaURL = ref.URL
	}

	classification := s.classifier.ClassifyText(ctx, input.Text)
	report.Label = classification.Label
	report.Confidence = classification.Confidence

	// Image heuristics run only when media was attached; a nil result means
	// the check could not run and the verdict stays absent.
	triageInput := triage.Input{
		Label:      classification.Label,
		Confidence: classification.Confidence,
	}
	if report.HasMedia() {
		if tamper := s.classifier.DetectImageTampering(ctx, input.Media); tamper != nil {
			report.HeuristicsVerdict = tamper.Verdict
			report.HeuristicsReasons = tamper.Reasons
			triageInput.Verdict = tamper.Verdict
			triageInput.HasVerdict = true
		}
	}

	decision := triage.Decide(triageInput)
	report.Status = decision.Status
	report.PriorityScore = decision.PriorityScore

	if err := s.store.Create(report); err != nil {
		return nil, fmt.Errorf("persist report: %w", err)
	}

	s.countIngested(report)
	log.Printf("Report %s ingested from %s: label=%s status=%s score=%d",
		report.UUID, report.Source, report.Label, report.Status, report.PriorityScore)
	return report, nil
}

// Verify applies an analyst decision to a report. On a transition to
// Verified with a panic-labeled text classification it dispatches the alert
// synchronously; a dispatch failure is logged and audited but never rolls
// back the status change.
func (s *Service) Verify(ctx context.Context, reportUUID string, actor uint, target database.ReportStatus) (*database.Report, error) {
	if target != database.StatusVerified && target != database.StatusNeedsVerification {
		return nil, fmt.Errorf("%w, got %q", ErrInvalidStatus, target)
	}

	report, err := s.store.GetByUUID(reportUUID)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateVerification(report, target, actor); err != nil {
		return nil, fmt.Errorf("persist verification of report %s: %w", reportUUID, err)
	}
	log.Printf("Report %s set to %s by user %d", reportUUID, target, actor)

	// The text-classification label alone gates alerting; the image
	// heuristics verdict does not.
	if target == database.StatusVerified && report.Label == database.LabelPanic && s.dispatcher != nil {
		if _, err := s.dispatcher.Dispatch(ctx, report, actor); err != nil {
			log.Printf("Alert dispatch for report %s failed: %v", reportUUID, err)
		}
	}

	return report, nil
}

// Get returns one report by its public id
func (s *Service) Get(reportUUID string) (*database.Report, error) {
	return s.store.GetByUUID(reportUUID)
}

// List returns a filtered, paginated page of reports, newest first
func (s *Service) List(filter database.ReportFilter) ([]database.Report, int64, error) {
	return s.store.List(filter)
}

// Near returns reports within radiusKm of a point, closest first
func (s *Service) Near(lat, lon, radiusKm float64, limit int) ([]database.Report, error) {
	return s.store.Near(lat, lon, radiusKm, limit)
}

// ImportSocial ingests a batch of social-feed posts. Invalid posts are
// skipped and counted; a persistence failure aborts the batch.
func (s *Service) ImportSocial(ctx context.Context, posts []CreateInput) (int, error) {
	imported := 0
	for _, post := range posts {
		if _, err := s.Create(ctx, post); err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				log.Printf("Skipping invalid social post: %v", verr)
				s.countRejected()
				continue
			}
			return imported, err
		}
		imported++
	}
	return imported, nil
}

func (s *Service) validateInput(input CreateInput) error {
	fields := validateStruct(input)
	if !database.ValidSource(input.Source) {
		if fields == nil {
			fields = make(map[string]string)
		}
		fields["source"] = fmt.Sprintf("must be a known report source, got %q", input.Source)
	}
	if len(input.Media) > 0 && input.MediaType == "" {
		if fields == nil {
			fields = make(map[string]string)
		}
		fields["media_type"] = "is required when media is attached"
	}
	if fields != nil {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (s *Service) countIngested(report *database.Report) {
	if s.metrics == nil {
		return
	}
	s.metrics.ReportsIngested.WithLabelValues(string(report.Source)).Inc()
	s.metrics.TriageDecisions.WithLabelValues(string(report.Status)).Inc()
}

func (s *Service) countRejected() {
	if s.metrics != nil {
		s.metrics.FeedMessages.WithLabelValues("rejected").Inc()
	}
}
