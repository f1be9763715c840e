// Package services – QRISService
//
// This file implements the donation-side QRIS flow: managing the merchant's
// static base payload, turning it into a dynamic payload for a chosen
// amount, and keeping the single active session the matcher correlates
// incoming payments with.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/qris-donation-backend/internal/domain"
	"github.com/tbourn/qris-donation-backend/internal/events"
	"github.com/tbourn/qris-donation-backend/internal/qris"
	"github.com/tbourn/qris-donation-backend/internal/state"
)

// DefaultMinDonation is the smallest accepted amount in rupiah.
const DefaultMinDonation int64 = 100

// PresetAmounts are the quick-pick amounts offered to donors.
var PresetAmounts = []int64{10000, 25000, 50000, 100000}

// Publisher receives session lifecycle events.
type Publisher interface {
	Publish(ev events.Event) int
}

// Settings is the current static payload and its decoded form.
type Settings struct {
	Payload    string          `json:"payload"`
	Inspection qris.Inspection `json:"inspection"`
}

// GenerateInput is a donor's request for a payment code.
type GenerateInput struct {
	Amount       int64  `json:"amount"`
	DonorName    string `json:"donorName"`
	DonorMessage string `json:"donorMessage"`
	GifURL       string `json:"gifUrl"`
}

// Generated is a ready-to-render dynamic payload and the session it opened.
type Generated struct {
	Payload         string         `json:"payload"`
	Amount          int64          `json:"amount"`
	AmountFormatted string         `json:"amount_formatted"`
	Session         domain.Session `json:"session"`
}

// Presets lists quick-pick amounts and the minimum.
type Presets struct {
	Amounts []int64 `json:"amounts"`
	Min     int64   `json:"min"`
}

// QRISService owns the base payload and the active session of one client.
type QRISService struct {
	Store      *state.Store
	MinAmount  int64
	SessionTTL time.Duration
	Sanitizer  *Sanitizer
	Events     Publisher

	// Now defaults to time.Now.
	Now func() time.Time
}

func (s *QRISService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *QRISService) minAmount() int64 {
	if s.MinAmount > 0 {
		return s.MinAmount
	}
	return DefaultMinDonation
}

func (s *QRISService) publish(typ string, data any) {
	if s.Events != nil {
		s.Events.Publish(events.New(typ, data))
	}
}

// Settings returns the configured base payload and its inspection.
func (s *QRISService) Settings(ctx context.Context) (Settings, error) {
	ctx, span := otel.Tracer("services/QRISService").Start(ctx, "Settings")
	defer span.End()

	payload, err := s.Store.BasePayload(ctx)
	if errors.Is(err, state.ErrNoBasePayload) {
		return Settings{}, ErrNoBasePayload
	}
	if err != nil {
		return Settings{}, err
	}
	return Settings{Payload: payload, Inspection: qris.Inspect(payload)}, nil
}

// SetBasePayload validates and stores a static payload. It must carry a
// checksum anchor and decode without a remainder.
func (s *QRISService) SetBasePayload(ctx context.Context, payload string) (Settings, error) {
	ctx, span := otel.Tracer("services/QRISService").Start(ctx, "SetBasePayload")
	defer span.End()

	payload = strings.TrimSpace(payload)
	if err := ValidateBasePayload(payload); err != nil {
		return Settings{}, err
	}
	if err := s.Store.SetBasePayload(ctx, payload); err != nil {
		return Settings{}, err
	}
	return Settings{Payload: payload, Inspection: qris.Inspect(payload)}, nil
}

// ValidateBasePayload reports ErrInvalidBasePayload unless payload has a
// checksum anchor and decodes completely.
func ValidateBasePayload(payload string) error {
	if !strings.Contains(payload, "6304") {
		return ErrInvalidBasePayload
	}
	if _, err := qris.DecodeStrict(payload); err != nil {
		return errors.Join(ErrInvalidBasePayload, err)
	}
	return nil
}

// Generate builds the dynamic payload for in.Amount and opens a new session,
// superseding any previous one.
func (s *QRISService) Generate(ctx context.Context, in GenerateInput) (*Generated, error) {
	ctx, span := otel.Tracer("services/QRISService").Start(ctx, "Generate",
		trace.WithAttributes(attribute.Int64("amount", in.Amount)),
	)
	defer span.End()

	base, err := s.Store.BasePayload(ctx)
	if errors.Is(err, state.ErrNoBasePayload) {
		return nil, ErrNoBasePayload
	}
	if err != nil {
		return nil, err
	}

	payload, err := qris.BuildChecked(base, in.Amount, s.minAmount())
	if err != nil {
		return nil, err
	}

	san := s.Sanitizer
	if san == nil {
		san = NewSanitizer()
	}
	gif, err := san.GifURL(in.GifURL)
	if err != nil {
		return nil, err
	}

	sess := domain.NewSession(in.Amount, s.now(), s.SessionTTL)
	sess.DonorName = san.Text(in.DonorName, MaxDonorNameRunes)
	sess.DonorMessage = san.Text(in.DonorMessage, MaxMessageRunes)
	sess.GifURL = gif

	if err := s.Store.SaveSession(ctx, sess); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("session.id", sess.ID))
	s.publish(events.TypeSessionCreated, sess)

	return &Generated{
		Payload:         payload,
		Amount:          in.Amount,
		AmountFormatted: qris.FormatRupiah(in.Amount),
		Session:         sess,
	}, nil
}

// ActiveSession returns the unexpired session or ErrNoActiveSession.
func (s *QRISService) ActiveSession(ctx context.Context) (*domain.Session, error) {
	ctx, span := otel.Tracer("services/QRISService").Start(ctx, "ActiveSession")
	defer span.End()

	sess, err := s.Store.Session(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil || !sess.Active(s.now()) {
		return nil, ErrNoActiveSession
	}
	return sess, nil
}

// ClearSession cancels the active session, if any.
func (s *QRISService) ClearSession(ctx context.Context) error {
	ctx, span := otel.Tracer("services/QRISService").Start(ctx, "ClearSession")
	defer span.End()

	if err := s.Store.ClearSession(ctx); err != nil {
		return err
	}
	s.publish(events.TypeSessionCleared, nil)
	return nil
}

// Presets returns the quick-pick amounts and the configured minimum.
func (s *QRISService) Presets() Presets {
	out := make([]int64, len(PresetAmounts))
	copy(out, PresetAmounts)
	return Presets{Amounts: out, Min: s.minAmount()}
}
