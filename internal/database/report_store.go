package database

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

const (
	// DefaultPageSize bounds listing queries when the caller gives no limit
	DefaultPageSize = 20

	// MaxNearResults caps proximity query results
	MaxNearResults = 200

	kmPerDegreeLat = 111.0
)

// ReportStore persists hazard reports. All methods operate on single
// documents; no multi-row transactions are needed because no invariant
// spans two rows.
type ReportStore struct {
	db *gorm.DB
}

// NewReportStore creates a report store backed by the given database
func NewReportStore(db *gorm.DB) *ReportStore {
	return &ReportStore{db: db}
}

// Create inserts a new report
func (s *ReportStore) Create(report *Report) error {
	if err := s.db.Create(report).Error; err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

// GetByUUID retrieves a report by its UUID
func (s *ReportStore) GetByUUID(uuid string) (*Report, error) {
	var report Report
	err := s.db.Where("uuid = ?", uuid).First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// ReportFilter narrows List queries. Zero values mean "no filter".
type ReportFilter struct {
	Status ReportStatus
	Source ReportSource
	Label  MLLabel
	Page   int
	Limit  int
}

// List returns reports newest first, filtered and paginated, along with the
// total count matching the filter.
func (s *ReportStore) List(filter ReportFilter) ([]Report, int64, error) {
	q := s.db.Model(&Report{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Source != "" {
		q = q.Where("source = ?", filter.Source)
	}
	if filter.Label != "" {
		q = q.Where("label = ?", filter.Label)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = DefaultPageSize
	}

	var reports []Report
	err := q.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&reports).Error
	if err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

// UpdateVerification applies one verification transition: status plus the
// acting analyst. This is the only mutation a report sees after creation.
func (s *ReportStore) UpdateVerification(report *Report, status ReportStatus, actor uint) error {
	err := s.db.Model(report).Updates(map[string]interface{}{
		"status":      status,
		"verified_by": actor,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update report %s: %w", report.UUID, err)
	}
	report.Status = status
	report.VerifiedBy = &actor
	return nil
}

// Near returns up to limit reports within radiusKm of the given point,
// closest first. A coarse bounding box narrows the scan before the exact
// haversine distance check.
func (s *ReportStore) Near(lat, lon, radiusKm float64, limit int) ([]Report, error) {
	if limit < 1 || limit > MaxNearResults {
		limit = MaxNearResults
	}

	latDelta := radiusKm / kmPerDegreeLat
	lonScale := math.Cos(lat * math.Pi / 180)
	lonDelta := 180.0
	if lonScale > 0.01 {
		lonDelta = radiusKm / (kmPerDegreeLat * lonScale)
	}

	var candidates []Report
	err := s.db.
		Where("lat BETWEEN ? AND ?", lat-latDelta, lat+latDelta).
		Where("lon BETWEEN ? AND ?", lon-lonDelta, lon+lonDelta).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	type scored struct {
		report   Report
		distance float64
	}
	within := make([]scored, 0, len(candidates))
	for _, r := range candidates {
		d := HaversineKm(lat, lon, r.Lat, r.Lon)
		if d <= radiusKm {
			within = append(within, scored{report: r, distance: d})
		}
	}
	sort.Slice(within, func(i, j int) bool {
		return within[i].distance < within[j].distance
	})

	if len(within) > limit {
		within = within[:limit]
	}
	results := make([]Report, len(within))
	for i, w := range within {
		results[i] = w.report
	}
	return results, nil
}

// ListExcludingStatus returns all reports whose status differs from the
// given one. The hotspot aggregator uses this to skip Pending reports.
func (s *ReportStore) ListExcludingStatus(status ReportStatus) ([]Report, error) {
	var reports []Report
	if err := s.db.Where("status <> ?", status).Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

// CountByStatus returns report counts grouped by status
func (s *ReportStore) CountByStatus() (map[ReportStatus]int64, error) {
	type row struct {
		Status ReportStatus
		Count  int64
	}
	var rows []row
	err := s.db.Model(&Report{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[ReportStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// HaversineKm computes the great-circle distance between two WGS84 points
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0

	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
