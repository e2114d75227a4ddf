package database

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceTokenStore persists push-delivery endpoints, at most one per user
type DeviceTokenStore struct {
	db *gorm.DB
}

// NewDeviceTokenStore creates a device token store backed by the given database
func NewDeviceTokenStore(db *gorm.DB) *DeviceTokenStore {
	return &DeviceTokenStore{db: db}
}

// Upsert registers or replaces the token for a user. The conflict clause
// makes concurrent logins by the same user converge on a single row.
func (s *DeviceTokenStore) Upsert(userID uint, token string) error {
	entry := DeviceToken{UserID: userID, Token: token}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"token", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to upsert device token for user %d: %w", userID, err)
	}
	return nil
}

// TokensForRole returns the active device tokens of every user with the
// given role. Push fan-out uses this to reach all citizens.
func (s *DeviceTokenStore) TokensForRole(role UserRole) ([]string, error) {
	var tokens []string
	err := s.db.Model(&DeviceToken{}).
		Joins("JOIN users ON users.id = device_tokens.user_id").
		Where("users.role = ?", role).
		Pluck("device_tokens.token", &tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}
