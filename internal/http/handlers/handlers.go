package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tbourn/qris-donation-backend/internal/domain"
	"github.com/tbourn/qris-donation-backend/internal/events"
	"github.com/tbourn/qris-donation-backend/internal/repo"
	"github.com/tbourn/qris-donation-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// NotificationService ingests device notifications and serves the admin
// read models.
type NotificationService interface {
	Ingest(ctx context.Context, in services.Notification) (*domain.Notification, error)
	List(ctx context.Context, deviceID string, limit, offset int) ([]domain.Notification, error)
	Devices(ctx context.Context) ([]domain.Device, error)
	Stats(ctx context.Context) (repo.Stats, error)
}

// DonationService serves the public donation feed.
type DonationService interface {
	Feed(ctx context.Context, limit int) ([]domain.Donation, error)
	SaveMetadata(ctx context.Context, e domain.Enrichment) (domain.Enrichment, error)
}

// QRISService manages the base payload and the active donation session.
type QRISService interface {
	Settings(ctx context.Context) (services.Settings, error)
	SetBasePayload(ctx context.Context, payload string) (services.Settings, error)
	Generate(ctx context.Context, in services.GenerateInput) (*services.Generated, error)
	ActiveSession(ctx context.Context) (*domain.Session, error)
	ClearSession(ctx context.Context) error
	Presets() services.Presets
}

// IdempotencyStore remembers which notification a device's retry key
// produced.
type IdempotencyStore interface {
	// Lookup returns the notification id recorded for (deviceID, key).
	Lookup(ctx context.Context, deviceID, key string, now time.Time) (int64, bool)
	// Remember records id for (deviceID, key). Failures are not fatal.
	Remember(ctx context.Context, deviceID, key string, id int64, status int) error
}

// Subscriber hands out live event streams.
type Subscriber interface {
	Subscribe() (<-chan events.Event, func())
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints. Optional collaborators may be set on
// the returned value before routes are mounted.
type Handlers struct {
	notifSvc    NotificationService
	donationSvc DonationService
	qrisSvc     QRISService

	// Idem enables Idempotency-Key replay on the webhook.
	Idem IdempotencyStore
	// Stream feeds the websocket endpoint; nil disables it.
	Stream Subscriber
	// PingInterval is the websocket keepalive period (default 54s).
	PingInterval time.Duration

	upgrader websocket.Upgrader
}

// New constructs Handlers bound to the given services.
func New(notifSvc NotificationService, donationSvc DonationService, qrisSvc QRISService) *Handlers {
	return &Handlers{
		notifSvc:    notifSvc,
		donationSvc: donationSvc,
		qrisSvc:     qrisSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// timestamp is the acknowledgement time in RFC 3339 UTC.
func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
