// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the namespaced durable key-value store
// used for client state (base payload, active session, metadata cache).
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/qris-donation-backend/internal/domain"
)

// GetKV returns the value stored under (namespace, key) or ErrNotFound.
func GetKV(ctx context.Context, db *gorm.DB, namespace, key string) (string, error) {
	var e domain.KVEntry
	err := db.WithContext(ctx).
		Where("namespace = ? AND key = ?", namespace, key).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return e.Value, nil
}

// PutKV inserts or overwrites the value under (namespace, key).
func PutKV(ctx context.Context, db *gorm.DB, namespace, key, value string) error {
	e := &domain.KVEntry{
		Namespace: namespace,
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(e).Error
}

// DeleteKV removes (namespace, key). Deleting a missing key is not an error.
func DeleteKV(ctx context.Context, db *gorm.DB, namespace, key string) error {
	return db.WithContext(ctx).
		Where("namespace = ? AND key = ?", namespace, key).
		Delete(&domain.KVEntry{}).Error
}
