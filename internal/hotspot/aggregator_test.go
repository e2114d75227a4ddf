package hotspot

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tidewatch/tidewatch/internal/database"
	"github.com/tidewatch/tidewatch/internal/ml"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

type fakeClusterer struct {
	clusters []ml.Cluster
	calls    int
	points   []ml.Point
}

func (f *fakeClusterer) ComputeHotspots(ctx context.Context, points []ml.Point) []ml.Cluster {
	f.calls++
	f.points = points
	return f.clusters
}

type failingSource struct{}

func (failingSource) ListExcludingStatus(database.ReportStatus) ([]database.Report, error) {
	return nil, errors.New("db down")
}

func seedReport(t *testing.T, db *gorm.DB, uuid string, lat, lon float64, status database.ReportStatus) {
	t.Helper()
	report := &database.Report{
		UUID: uuid, Text: "waves", Lat: lat, Lon: lon,
		Source: database.SourceCitizen, Status: status, SubmittedBy: 1,
	}
	if err := database.NewReportStore(db).Create(report); err != nil {
		t.Fatalf("seed report: %v", err)
	}
}

func TestHotspots_EmptyReportSet(t *testing.T) {
	db := setupTestDB(t)
	clusterer := &fakeClusterer{clusters: []ml.Cluster{{Count: 99}}}
	agg := NewAggregator(database.NewReportStore(db), clusterer)

	clusters, err := agg.Hotspots(context.Background())
	if err != nil {
		t.Fatalf("Hotspots() error = %v", err)
	}
	if clusters == nil || len(clusters) != 0 {
		t.Errorf("clusters = %v, want empty non-nil list", clusters)
	}
	if clusterer.calls != 0 {
		t.Error("clustering service must not be called for an empty report set")
	}
}

func TestHotspots_ExcludesPendingReports(t *testing.T) {
	db := setupTestDB(t)
	seedReport(t, db, "r1", 16.5, 81.6, database.StatusVerified)
	seedReport(t, db, "r2", 16.6, 81.7, database.StatusNeedsVerification)
	seedReport(t, db, "r3", 10.0, 76.0, database.StatusPending)

	want := []ml.Cluster{{Center: ml.Point{Lat: 16.55, Lon: 81.65}, Count: 2}}
	clusterer := &fakeClusterer{clusters: want}
	agg := NewAggregator(database.NewReportStore(db), clusterer)

	clusters, err := agg.Hotspots(context.Background())
	if err != nil {
		t.Fatalf("Hotspots() error = %v", err)
	}
	if len(clusters) != 1 || clusters[0].Count != 2 {
		t.Errorf("clusters = %v", clusters)
	}
	if len(clusterer.points) != 2 {
		t.Errorf("forwarded %d points, want 2 (pending excluded)", len(clusterer.points))
	}
}

func TestHotspots_StoreErrorSurfaces(t *testing.T) {
	agg := NewAggregator(failingSource{}, &fakeClusterer{})
	if _, err := agg.Hotspots(context.Background()); err == nil {
		t.Fatal("expected the store error to surface")
	}
}

func TestLatest_CachesLastComputation(t *testing.T) {
	db := setupTestDB(t)
	seedReport(t, db, "r1", 16.5, 81.6, database.StatusVerified)

	clusterer := &fakeClusterer{clusters: []ml.Cluster{{Count: 1}}}
	agg := NewAggregator(database.NewReportStore(db), clusterer)

	if got := agg.Latest(); len(got) != 0 {
		t.Errorf("Latest() before any computation = %v", got)
	}
	if _, err := agg.Hotspots(context.Background()); err != nil {
		t.Fatalf("Hotspots() error = %v", err)
	}
	if got := agg.Latest(); len(got) != 1 || got[0].Count != 1 {
		t.Errorf("Latest() = %v", got)
	}
	if clusterer.calls != 1 {
		t.Errorf("Latest() must not recompute, calls = %d", clusterer.calls)
	}
}

func TestStart_StopsOnSignal(t *testing.T) {
	db := setupTestDB(t)
	agg := NewAggregator(database.NewReportStore(db), &fakeClusterer{})

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		agg.Start(10*time.Millisecond, stop)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	close(stop)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("aggregator did not stop")
	}
}
