// Package state keeps one client's durable donation state (the static base
// payload, the active session and the donor metadata cache) in the
// namespaced key-value table. Values are stored as JSON documents.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"gorm.io/gorm"

	"github.com/tbourn/qris-donation-backend/internal/domain"
	"github.com/tbourn/qris-donation-backend/internal/repo"
)

const (
	keyBasePayload = "base_payload"
	keySession     = "session"
	keyMetadata    = "metadata"

	// maxMetadataEntries bounds the metadata cache; the lowest ids go first.
	maxMetadataEntries = 500
)

// ErrNoBasePayload is returned when no static payload has been configured.
var ErrNoBasePayload = errors.New("base payload not configured")

// Store is a typed view over the kv_entries rows of one namespace.
type Store struct {
	DB        *gorm.DB
	Namespace string

	// serializes read-modify-write sequences
	mu sync.Mutex
}

// New returns a Store scoped to namespace.
func New(db *gorm.DB, namespace string) *Store {
	return &Store{DB: db, Namespace: namespace}
}

// BasePayload returns the configured static payload or ErrNoBasePayload.
func (s *Store) BasePayload(ctx context.Context) (string, error) {
	var v string
	found, err := s.get(ctx, keyBasePayload, &v)
	if err != nil {
		return "", err
	}
	if !found || v == "" {
		return "", ErrNoBasePayload
	}
	return v, nil
}

// SetBasePayload replaces the static payload.
func (s *Store) SetBasePayload(ctx context.Context, payload string) error {
	return s.put(ctx, keyBasePayload, payload)
}

// Session returns the stored session, or nil when there is none. Expiry is
// not checked here; callers decide what an expired session means.
func (s *Store) Session(ctx context.Context) (*domain.Session, error) {
	var sess domain.Session
	found, err := s.get(ctx, keySession, &sess)
	if err != nil || !found {
		return nil, err
	}
	return &sess, nil
}

// SaveSession stores sess, superseding any previous session.
func (s *Store) SaveSession(ctx context.Context, sess domain.Session) error {
	return s.put(ctx, keySession, sess)
}

// ClearSession removes the active session. Clearing twice is a no-op.
func (s *Store) ClearSession(ctx context.Context) error {
	return repo.DeleteKV(ctx, s.DB, s.Namespace, keySession)
}

// ClearSessionIf clears the session only while it is still the one with the
// given id, so a session opened after a match is left alone. It reports
// whether a session was cleared.
func (s *Store) ClearSessionIf(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.Session(ctx)
	if err != nil || cur == nil || cur.ID != id {
		return false, err
	}
	if err := s.ClearSession(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Metadata returns the donor metadata cache keyed by record id. The map is
// never nil.
func (s *Store) Metadata(ctx context.Context) (map[int64]domain.Enrichment, error) {
	m := map[int64]domain.Enrichment{}
	if _, err := s.get(ctx, keyMetadata, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// PutMetadata merges e into the cache entry for e.ID. Empty fields keep the
// previously cached values.
func (s *Store) PutMetadata(ctx context.Context, e domain.Enrichment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.Metadata(ctx)
	if err != nil {
		return err
	}
	cur := m[e.ID]
	cur.ID = e.ID
	if e.DonorName != "" {
		cur.DonorName = e.DonorName
	}
	if e.Message != "" {
		cur.Message = e.Message
	}
	if e.GifURL != "" {
		cur.GifURL = e.GifURL
	}
	m[e.ID] = cur
	trimMetadata(m, maxMetadataEntries)
	return s.put(ctx, keyMetadata, m)
}

func trimMetadata(m map[int64]domain.Enrichment, max int) {
	if len(m) <= max {
		return
	}
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids[:len(ids)-max] {
		delete(m, id)
	}
}

func (s *Store) get(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := repo.GetKV(ctx, s.DB, s.Namespace, key)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("state: decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) put(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", key, err)
	}
	return repo.PutKV(ctx, s.DB, s.Namespace, key, string(raw))
}
