// Package feed is the HTTP client for the public donation feed: it reads the
// most recent payment notifications and writes donor metadata back to the
// origin. The wire contract is the one served at /public/donations.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/qris-donation-backend/internal/domain"
)

const maxBody = 4 << 20

// ErrRejected is returned when the feed answers with success=false.
var ErrRejected = errors.New("feed: request rejected")

// Client talks to one feed endpoint. The zero HTTP field uses a client with
// a 10s timeout.
type Client struct {
	URL    string
	APIKey string
	HTTP   *http.Client
}

// New returns a Client for url. apiKey is sent as x-api-key when non-empty.
func New(url, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{URL: url, APIKey: apiKey, HTTP: &http.Client{Timeout: timeout}}
}

// Recent returns up to limit feed records in the order the origin serves them.
func (c *Client) Recent(ctx context.Context, limit int) ([]domain.Donation, error) {
	ctx, span := otel.Tracer("feed").Start(ctx, "Recent", trace.WithAttributes(
		attribute.Int("feed.limit", limit),
	))
	defer span.End()

	u := c.URL
	if limit > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + "limit=" + strconv.Itoa(limit)
	}

	var body wireResponse
	if err := c.do(ctx, http.MethodGet, u, nil, &body); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !body.Success {
		err := fmt.Errorf("%w: %s", ErrRejected, body.Error)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	out := make([]domain.Donation, 0, len(body.Data))
	for _, w := range body.Data {
		out = append(out, w.donation())
	}
	span.SetAttributes(attribute.Int("feed.records", len(out)))
	return out, nil
}

// PersistMetadata writes donor metadata for e.ID back to the origin.
func (c *Client) PersistMetadata(ctx context.Context, e domain.Enrichment) error {
	ctx, span := otel.Tracer("feed").Start(ctx, "PersistMetadata", trace.WithAttributes(
		attribute.Int64("donation.id", e.ID),
	))
	defer span.End()

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("feed: encode: %w", err)
	}
	var body wireResponse
	if err := c.do(ctx, http.MethodPut, c.URL, payload, &body); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if !body.Success {
		return fmt.Errorf("%w: %s", ErrRejected, body.Error)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, url string, payload []byte, dst any) error {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return fmt.Errorf("feed: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("x-api-key", c.APIKey)
	}

	hc := c.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("feed: http: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("feed: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("feed: http %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("feed: json decode: %w", err)
	}
	return nil
}
