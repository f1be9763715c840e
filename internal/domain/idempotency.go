// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// Idempotency records the outcome of a previously accepted webhook delivery,
// keyed by (device_id, key). A device retrying the same delivery gets the
// original notification id back instead of creating a duplicate row.
type Idempotency struct {
	ID             string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	DeviceID       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_device_key,priority:1"`
	Key            string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_device_key,priority:2"`
	NotificationID int64     `gorm:"type:INTEGER NOT NULL"`
	Status         int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt      time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt      time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
