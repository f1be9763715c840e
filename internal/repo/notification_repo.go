// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Notification model: webhook inserts, admin listings, the public donation
// feed and donor metadata updates.
//
// Error semantics:
//   - Missing rows surface as ErrNotFound (gorm.ErrRecordNotFound).
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/qris-donation-backend/internal/domain"
)

// CreateNotification inserts n and fills in its auto-increment ID. CreatedAt
// defaults to the current UTC time when unset.
func CreateNotification(ctx context.Context, db *gorm.DB, n *domain.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(n).Error
}

// GetNotification fetches a single notification by id.
func GetNotification(ctx context.Context, db *gorm.DB, id int64) (*domain.Notification, error) {
	var n domain.Notification
	if err := db.WithContext(ctx).Where("id = ?", id).First(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// ListNotifications returns notifications newest first, optionally scoped to
// a single device.
func ListNotifications(ctx context.Context, db *gorm.DB, deviceID string, offset, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	q := db.WithContext(ctx).Model(&domain.Notification{})
	if deviceID != "" {
		q = q.Where("device_id = ?", deviceID)
	}
	err := q.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&out).Error
	return out, err
}

// ListDonations returns the newest notifications that carry a detected
// amount. It backs the public donation feed.
func ListDonations(ctx context.Context, db *gorm.DB, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	err := db.WithContext(ctx).
		Where("amount_detected IS NOT NULL AND amount_detected != ''").
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateDonorMetadata attaches donor metadata to notification e.ID. Only
// non-empty fields are written. Returns ErrNotFound when the row does not
// exist.
func UpdateDonorMetadata(ctx context.Context, db *gorm.DB, e domain.Enrichment) error {
	updates := map[string]any{}
	if e.DonorName != "" {
		updates["donor_name"] = e.DonorName
	}
	if e.Message != "" {
		updates["message"] = e.Message
	}
	if e.GifURL != "" {
		updates["gif_url"] = e.GifURL
	}

	if len(updates) == 0 {
		_, err := GetNotification(ctx, db, e.ID)
		return err
	}
	updates["updated_at"] = time.Now().UTC()

	res := db.WithContext(ctx).Model(&domain.Notification{}).Where("id = ?", e.ID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
