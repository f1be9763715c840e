// Package services – NotificationService
//
// This file implements ingestion of device notifications delivered by the
// phone-side listener, plus the admin read models (listing, devices, stats).
// Every accepted delivery is stored and the sending device's counters are
// bumped in the same transaction.
package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/qris-donation-backend/internal/domain"
	"github.com/tbourn/qris-donation-backend/internal/repo"
	"github.com/tbourn/qris-donation-backend/internal/utils"
)

// Notification is the webhook body as sent by the device listener.
type Notification struct {
	DeviceID       string          `json:"deviceId"`
	PackageName    string          `json:"packageName"`
	AppName        *string         `json:"appName"`
	PostedAt       json.RawMessage `json:"postedAt" swaggertype:"string"`
	Title          *string         `json:"title"`
	Text           *string         `json:"text"`
	SubText        *string         `json:"subText"`
	BigText        *string         `json:"bigText"`
	ChannelID      *string         `json:"channelId"`
	NotificationID *int64          `json:"notificationId"`
	AmountDetected json.RawMessage `json:"amountDetected" swaggertype:"string"`
	Extras         json.RawMessage `json:"extras" swaggertype:"object"`
}

// NotificationService stores and reports on device notifications.
type NotificationService struct {
	DB *gorm.DB

	// Now defaults to time.Now.
	Now func() time.Time
}

func (s *NotificationService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Ingest validates and stores one delivery and returns the stored row.
func (s *NotificationService) Ingest(ctx context.Context, in Notification) (*domain.Notification, error) {
	ctx, span := otel.Tracer("services/NotificationService").Start(ctx, "Ingest",
		trace.WithAttributes(
			attribute.String("device.id", in.DeviceID),
			attribute.String("package.name", in.PackageName),
		),
	)
	defer span.End()

	deviceID := strings.TrimSpace(in.DeviceID)
	pkg := strings.TrimSpace(in.PackageName)
	if deviceID == "" || pkg == "" {
		return nil, ErrMissingFields
	}

	now := s.now()
	n := &domain.Notification{
		DeviceID:       deviceID,
		PackageName:    pkg,
		AppName:        in.AppName,
		PostedAt:       rawText(in.PostedAt),
		Title:          in.Title,
		Text:           in.Text,
		SubText:        in.SubText,
		BigText:        in.BigText,
		ChannelID:      in.ChannelID,
		NotificationID: in.NotificationID,
		AmountDetected: rawText(in.AmountDetected),
		Extras:         rawJSON(in.Extras),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateNotification(ctx, tx, n); err != nil {
			return err
		}
		return repo.TouchDevice(ctx, tx, deviceID, now)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int64("notification.id", n.ID))
	return n, nil
}

// List returns notifications newest first. limit defaults to 100 and is
// capped at 500.
func (s *NotificationService) List(ctx context.Context, deviceID string, limit, offset int) ([]domain.Notification, error) {
	ctx, span := otel.Tracer("services/NotificationService").Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("device.id", deviceID),
			attribute.Int("limit", limit),
			attribute.Int("offset", offset),
		),
	)
	defer span.End()

	if offset < 0 {
		offset = 0
	}
	return repo.ListNotifications(ctx, s.DB, strings.TrimSpace(deviceID), offset, utils.ClampLimit(limit, 100, 500))
}

// Devices returns every known device, most recently seen first.
func (s *NotificationService) Devices(ctx context.Context) ([]domain.Device, error) {
	ctx, span := otel.Tracer("services/NotificationService").Start(ctx, "Devices")
	defer span.End()
	return repo.ListDevices(ctx, s.DB)
}

// Stats returns ingestion counters for the current UTC day.
func (s *NotificationService) Stats(ctx context.Context) (repo.Stats, error) {
	ctx, span := otel.Tracer("services/NotificationService").Start(ctx, "Stats")
	defer span.End()
	return repo.IngestStats(ctx, s.DB, s.now())
}

// rawText turns a JSON string or number into its text; null and empty
// values become nil.
func rawText(raw json.RawMessage) *string {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
	} else {
		s = string(raw)
	}
	return &s
}

// rawJSON keeps a JSON value verbatim; null and empty values become nil.
func rawJSON(raw json.RawMessage) *string {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	s := string(raw)
	return &s
}
