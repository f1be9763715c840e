// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Device model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/qris-donation-backend/internal/domain"
)

// TouchDevice records a webhook delivery from deviceID: the row is created on
// first sight, otherwise last_seen is refreshed and total_notifications is
// incremented. The upsert is a single statement.
func TouchDevice(ctx context.Context, db *gorm.DB, deviceID string, now time.Time) error {
	now = now.UTC()
	d := &domain.Device{
		DeviceID:           deviceID,
		LastSeen:           now,
		TotalNotifications: 1,
		CreatedAt:          now,
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "device_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"last_seen":           now,
			"total_notifications": gorm.Expr("total_notifications + 1"),
		}),
	}).Create(d).Error
}

// ListDevices returns all devices, most recently seen first.
func ListDevices(ctx context.Context, db *gorm.DB) ([]domain.Device, error) {
	var out []domain.Device
	err := db.WithContext(ctx).Order("last_seen DESC").Find(&out).Error
	return out, err
}
