package database

import (
	"fmt"

	"gorm.io/gorm"
)

// AlertLogStore persists dispatch audit records. Rows are append-only;
// the store exposes no update or delete operations.
type AlertLogStore struct {
	db *gorm.DB
}

// NewAlertLogStore creates an alert log store backed by the given database
func NewAlertLogStore(db *gorm.DB) *AlertLogStore {
	return &AlertLogStore{db: db}
}

// Append inserts one alert log row
func (s *AlertLogStore) Append(entry *AlertLog) error {
	if err := s.db.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append alert log: %w", err)
	}
	return nil
}

// List returns alert logs newest first with pagination, plus the total count
func (s *AlertLogStore) List(page, limit int) ([]AlertLog, int64, error) {
	var total int64
	if err := s.db.Model(&AlertLog{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}

	var logs []AlertLog
	err := s.db.Preload("Report").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// ExistsForReport reports whether any alert was already logged for the given
// report. The dispatcher's re-alert policy uses this to dedupe.
func (s *AlertLogStore) ExistsForReport(reportID uint) (bool, error) {
	var count int64
	err := s.db.Model(&AlertLog{}).Where("report_id = ?", reportID).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
