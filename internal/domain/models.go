// Package domain defines the persistence models for ingested device
// notifications, the devices that send them, and the namespaced key-value
// entries backing client state. These types are mapped with GORM and form
// the core data layer of the donation backend.
package domain

import (
	"time"
)

// Notification is a raw device notification captured by the webhook. Rows
// with a non-empty AmountDetected are exposed on the public donation feed.
//
// Fields:
//   - ID: auto-increment primary key; strictly increasing, used as the
//     matcher watermark.
//   - DeviceID / PackageName: required origin identifiers.
//   - AmountDetected: amount parsed on-device, kept as the raw decimal string.
//   - Extras: raw JSON of the notification extras bundle.
//   - DonorName / Message / GifURL: donor metadata attached after a match.
//   - CreatedAt: ingestion time (indexed, feed order).
type Notification struct {
	ID             int64   `json:"id"              gorm:"primaryKey;autoIncrement"`
	DeviceID       string  `json:"device_id"       gorm:"type:varchar(128);not null;index:idx_notifications_device"`
	PackageName    string  `json:"package_name"    gorm:"type:varchar(255);not null"`
	AppName        *string `json:"app_name"        gorm:"type:varchar(255)"`
	PostedAt       *string `json:"posted_at"       gorm:"type:varchar(64)"`
	Title          *string `json:"title"           gorm:"type:text"`
	Text           *string `json:"text"            gorm:"type:text"`
	SubText        *string `json:"sub_text"        gorm:"type:text"`
	BigText        *string `json:"big_text"        gorm:"type:text"`
	ChannelID      *string `json:"channel_id"      gorm:"type:varchar(255)"`
	NotificationID *int64  `json:"notification_id"`
	AmountDetected *string `json:"amount_detected" gorm:"type:varchar(64);index:idx_notifications_amount"`
	Extras         *string `json:"extras"          gorm:"type:text"`

	DonorName *string `json:"donor_name,omitempty" gorm:"type:varchar(100)"`
	Message   *string `json:"message,omitempty"    gorm:"type:varchar(400)"`
	GifURL    *string `json:"gif_url,omitempty"    gorm:"type:varchar(1024)"`

	CreatedAt time.Time `json:"created_at" gorm:"index:idx_notifications_created"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }

// Device tracks every device that has posted to the webhook.
type Device struct {
	ID                 int64     `json:"id"                  gorm:"primaryKey;autoIncrement"`
	DeviceID           string    `json:"device_id"           gorm:"type:varchar(128);not null;uniqueIndex:ux_devices_device_id"`
	LastSeen           time.Time `json:"last_seen"           gorm:"index"`
	TotalNotifications int64     `json:"total_notifications" gorm:"not null;default:0"`
	CreatedAt          time.Time `json:"created_at"`
}

// TableName returns the database table name for Device.
func (Device) TableName() string { return "devices" }

// KVEntry is a namespaced durable key-value pair. Values are JSON documents.
// A namespace isolates one client's state (base payload, session, metadata
// cache) from another's.
type KVEntry struct {
	Namespace string    `gorm:"type:varchar(64);primaryKey"`
	Key       string    `gorm:"type:varchar(128);primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the database table name for KVEntry.
func (KVEntry) TableName() string { return "kv_entries" }
