// Package hotspot computes geographic clusters of triaged hazard reports
// via the external clustering service.
package hotspot

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/tidewatch/tidewatch/internal/database"
	"github.com/tidewatch/tidewatch/internal/ml"
)

// Clusterer is the external clustering collaborator. It fails closed: an
// unreachable service yields an empty cluster list, never an error.
type Clusterer interface {
	ComputeHotspots(ctx context.Context, points []ml.Point) []ml.Cluster
}

// ReportSource provides the coordinates the aggregator clusters
type ReportSource interface {
	ListExcludingStatus(status database.ReportStatus) ([]database.Report, error)
}

// Aggregator batches report coordinates, forwards them to the clustering
// service, and caches the latest result for cheap reads.
type Aggregator struct {
	store     ReportSource
	clusterer Clusterer

	mu     sync.RWMutex
	latest []ml.Cluster
}

// NewAggregator creates a hotspot aggregator
func NewAggregator(store ReportSource, clusterer Clusterer) *Aggregator {
	return &Aggregator{
		store:     store,
		clusterer: clusterer,
		latest:    []ml.Cluster{},
	}
}

// Hotspots recomputes clusters over all triaged reports. Reports still in
// Pending are excluded. An empty report set yields an empty list without
// calling the clustering service.
func (a *Aggregator) Hotspots(ctx context.Context) ([]ml.Cluster, error) {
	reports, err := a.store.ListExcludingStatus(database.StatusPending)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return []ml.Cluster{}, nil
	}

	points := make([]ml.Point, len(reports))
	for i, r := range reports {
		points[i] = ml.Point{Lat: r.Lat, Lon: r.Lon}
	}

	clusters := a.clusterer.ComputeHotspots(ctx, points)

	a.mu.Lock()
	a.latest = clusters
	a.mu.Unlock()
	return clusters, nil
}

// Latest returns the most recently computed clusters without recomputing
func (a *Aggregator) Latest() []ml.Cluster {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest
}

// Start begins periodic recomputation
func (a *Aggregator) Start(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			clusters, err := a.Hotspots(context.Background())
			if err != nil {
				log.Printf("Hotspot recomputation error: %v", err)
			} else if len(clusters) > 0 {
				log.Printf("Hotspot recomputation: %d clusters", len(clusters))
			}
		case <-stop:
			log.Println("Hotspot aggregator stopped")
			return
		}
	}
}
