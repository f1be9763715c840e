// Package services – DonationService
//
// This file implements the public donation feed: the newest payment
// notifications projected onto the feed shape, and donor metadata updates
// attached to a record after it was matched to a session.
package services

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/qris-donation-backend/internal/domain"
	"github.com/tbourn/qris-donation-backend/internal/repo"
	"github.com/tbourn/qris-donation-backend/internal/utils"
)

// DefaultFeedLimit is the page size when none is requested.
const DefaultFeedLimit = 10

// DonationService serves the donation feed.
type DonationService struct {
	DB        *gorm.DB
	Sanitizer *Sanitizer
}

// Feed returns up to limit donations, newest first. limit is clamped to
// [1, 100].
func (s *DonationService) Feed(ctx context.Context, limit int) ([]domain.Donation, error) {
	ctx, span := otel.Tracer("services/DonationService").Start(ctx, "Feed",
		trace.WithAttributes(attribute.Int("limit", limit)),
	)
	defer span.End()

	rows, err := repo.ListDonations(ctx, s.DB, utils.ClampLimit(limit, DefaultFeedLimit, 100))
	if err != nil {
		return nil, err
	}
	out := make([]domain.Donation, 0, len(rows))
	for _, n := range rows {
		out = append(out, domain.DonationFromNotification(n))
	}
	return out, nil
}

// SaveMetadata sanitizes e and attaches it to the record e.ID. It returns
// the values actually stored.
func (s *DonationService) SaveMetadata(ctx context.Context, e domain.Enrichment) (domain.Enrichment, error) {
	ctx, span := otel.Tracer("services/DonationService").Start(ctx, "SaveMetadata",
		trace.WithAttributes(attribute.Int64("donation.id", e.ID)),
	)
	defer span.End()

	if e.ID <= 0 {
		return domain.Enrichment{}, ErrInvalidDonationID
	}
	san := s.Sanitizer
	if san == nil {
		san = NewSanitizer()
	}
	gif, err := san.GifURL(e.GifURL)
	if err != nil {
		return domain.Enrichment{}, err
	}
	clean := domain.Enrichment{
		ID:        e.ID,
		DonorName: san.Text(e.DonorName, MaxDonorNameRunes),
		Message:   san.Text(e.Message, MaxMessageRunes),
		GifURL:    gif,
	}

	if err := repo.UpdateDonorMetadata(ctx, s.DB, clean); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Enrichment{}, ErrDonationNotFound
		}
		return domain.Enrichment{}, err
	}
	return clean, nil
}
