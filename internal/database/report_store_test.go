package database

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"
)

func makeReport(uuid string, status ReportStatus) *Report {
	return &Report{
		UUID:        uuid,
		Text:        "waves over the seawall",
		Lat:         16.49,
		Lon:         81.63,
		Source:      SourceCitizen,
		Label:       LabelRelevant,
		Confidence:  0.8,
		Status:      status,
		SubmittedBy: 1,
	}
}

func TestReportStore_CreateAndGetByUUID(t *testing.T) {
	store := NewReportStore(setupTestDB(t))

	report := makeReport("r-1", StatusPending)
	report.HeuristicsReasons = StringList{"exif missing", "resaved jpeg"}
	if err := store.Create(report); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if report.ID == 0 {
		t.Error("ID not assigned")
	}

	got, err := store.GetByUUID("r-1")
	if err != nil {
		t.Fatalf("GetByUUID() error = %v", err)
	}
	if got.Text != report.Text || got.Status != StatusPending {
		t.Errorf("got %+v", got)
	}
	if len(got.HeuristicsReasons) != 2 {
		t.Errorf("reasons round-trip failed: %v", got.HeuristicsReasons)
	}
}

func TestReportStore_GetByUUIDNotFound(t *testing.T) {
	store := NewReportStore(setupTestDB(t))
	if _, err := store.GetByUUID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestReportStore_ListFiltersAndPaginates(t *testing.T) {
	db := setupTestDB(t)
	store := NewReportStore(db)

	for i := 0; i < 5; i++ {
		r := makeReport(fmt.Sprintf("v-%d", i), StatusVerified)
		r.Source = SourceTwitter
		// Distinct creation times make the newest-first ordering observable
		r.CreatedAt = time.Date(2026, 8, 1, 10, i, 0, 0, time.UTC)
		if err := store.Create(r); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	if err := store.Create(makeReport("p-0", StatusPending)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	reports, total, err := store.List(ReportFilter{Status: StatusVerified, Page: 1, Limit: 3})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(reports) != 3 {
		t.Fatalf("page size = %d, want 3", len(reports))
	}
	if reports[0].UUID != "v-4" {
		t.Errorf("first = %s, want newest v-4", reports[0].UUID)
	}

	reports, _, err = store.List(ReportFilter{Status: StatusVerified, Page: 2, Limit: 3})
	if err != nil {
		t.Fatalf("List() page 2 error = %v", err)
	}
	if len(reports) != 2 {
		t.Errorf("page 2 size = %d, want 2", len(reports))
	}

	reports, total, err = store.List(ReportFilter{Source: SourceCitizen})
	if err != nil {
		t.Fatalf("List() by source error = %v", err)
	}
	if total != 1 || reports[0].UUID != "p-0" {
		t.Errorf("source filter: total=%d reports=%v", total, reports)
	}
}

func TestReportStore_UpdateVerification(t *testing.T) {
	db := setupTestDB(t)
	store := NewReportStore(db)

	report := makeReport("r-1", StatusNeedsVerification)
	if err := store.Create(report); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := store.UpdateVerification(report, StatusVerified, 42); err != nil {
		t.Fatalf("UpdateVerification() error = %v", err)
	}
	if report.Status != StatusVerified || report.VerifiedBy == nil || *report.VerifiedBy != 42 {
		t.Errorf("in-memory report not updated: %+v", report)
	}

	stored, err := store.GetByUUID("r-1")
	if err != nil {
		t.Fatalf("GetByUUID() error = %v", err)
	}
	if stored.Status != StatusVerified || stored.VerifiedBy == nil || *stored.VerifiedBy != 42 {
		t.Errorf("persisted report not updated: %+v", stored)
	}
	// Triage fields survive the verification update untouched
	if stored.Label != LabelRelevant || stored.Confidence != 0.8 {
		t.Errorf("immutable fields changed: %+v", stored)
	}
}

func TestReportStore_Near(t *testing.T) {
	db := setupTestDB(t)
	store := NewReportStore(db)

	// Around Chennai Marina Beach; distances from the query point grow per row
	seeds := []struct {
		uuid     string
		lat, lon float64
	}{
		{"closest", 13.0500, 80.2824},
		{"close", 13.0700, 80.2900},
		{"far", 13.5000, 80.3000},      // ~50 km north
		{"very-far", 16.5000, 81.6000}, // hundreds of km away
	}
	for _, s := range seeds {
		r := makeReport(s.uuid, StatusVerified)
		r.Lat, r.Lon = s.lat, s.lon
		if err := store.Create(r); err != nil {
			t.Fatalf("Create(%s) error = %v", s.uuid, err)
		}
	}

	results, err := store.Near(13.0499, 80.2824, 10, 10)
	if err != nil {
		t.Fatalf("Near() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2 within 10 km", len(results))
	}
	if results[0].UUID != "closest" || results[1].UUID != "close" {
		t.Errorf("ordering = [%s, %s], want closest first", results[0].UUID, results[1].UUID)
	}

	results, err = store.Near(13.0499, 80.2824, 10, 1)
	if err != nil {
		t.Fatalf("Near() with limit error = %v", err)
	}
	if len(results) != 1 || results[0].UUID != "closest" {
		t.Errorf("limited results = %v", results)
	}

	results, err = store.Near(0, 0, 5, 10)
	if err != nil {
		t.Fatalf("Near() empty area error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %v, want none", results)
	}
}

func TestReportStore_ListExcludingStatus(t *testing.T) {
	store := NewReportStore(setupTestDB(t))
	store.Create(makeReport("p", StatusPending))
	store.Create(makeReport("v", StatusVerified))
	store.Create(makeReport("n", StatusNeedsVerification))

	reports, err := store.ListExcludingStatus(StatusPending)
	if err != nil {
		t.Fatalf("ListExcludingStatus() error = %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("len = %d, want 2", len(reports))
	}
	for _, r := range reports {
		if r.Status == StatusPending {
			t.Errorf("pending report %s not excluded", r.UUID)
		}
	}
}

func TestReportStore_CountByStatus(t *testing.T) {
	store := NewReportStore(setupTestDB(t))
	store.Create(makeReport("a", StatusVerified))
	store.Create(makeReport("b", StatusVerified))
	store.Create(makeReport("c", StatusPending))

	counts, err := store.CountByStatus()
	if err != nil {
		t.Fatalf("CountByStatus() error = %v", err)
	}
	if counts[StatusVerified] != 2 || counts[StatusPending] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestHaversineKm(t *testing.T) {
	// Chennai to Visakhapatnam, roughly 600 km
	d := HaversineKm(13.0827, 80.2707, 17.6868, 83.2185)
	if d < 550 || d > 650 {
		t.Errorf("distance = %f, want ~600 km", d)
	}

	if d := HaversineKm(13.0, 80.0, 13.0, 80.0); math.Abs(d) > 1e-9 {
		t.Errorf("zero distance = %f", d)
	}
}
