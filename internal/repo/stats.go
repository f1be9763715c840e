// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries for the admin
// statistics endpoint. Each function is context-aware and safe to call from
// services or handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/qris-donation-backend/internal/domain"
)

// AppCount is one row of the "top apps" aggregate.
type AppCount struct {
	PackageName string  `json:"package_name"`
	AppName     *string `json:"app_name"`
	Count       int64   `json:"count"`
}

// Stats aggregates ingestion counters.
type Stats struct {
	TotalNotifications int64      `json:"totalNotifications"`
	TotalDevices       int64      `json:"totalDevices"`
	NotificationsToday int64      `json:"notificationsToday"`
	TopApps            []AppCount `json:"topApps"`
}

// IngestStats computes totals, today's count (UTC day containing now) and
// the ten most frequent apps.
//
// Return values:
//   - stats: aggregate counters (TopApps is never nil)
//   - err:   database error, if any
func IngestStats(ctx context.Context, db *gorm.DB, now time.Time) (Stats, error) {
	var s Stats
	q := db.WithContext(ctx)

	if err := q.Model(&domain.Notification{}).Count(&s.TotalNotifications).Error; err != nil {
		return Stats{}, err
	}
	if err := q.Model(&domain.Device{}).Count(&s.TotalDevices).Error; err != nil {
		return Stats{}, err
	}

	now = now.UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if err := q.Model(&domain.Notification{}).
		Where("created_at >= ? AND created_at < ?", dayStart, dayStart.Add(24*time.Hour)).
		Count(&s.NotificationsToday).Error; err != nil {
		return Stats{}, err
	}

	s.TopApps = []AppCount{}
	if err := q.Model(&domain.Notification{}).
		Select("package_name, app_name, COUNT(*) AS count").
		Group("package_name, app_name").
		Order("COUNT(*) DESC, package_name ASC").
		Limit(10).
		Scan(&s.TopApps).Error; err != nil {
		return Stats{}, err
	}
	return s, nil
}
