package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/qris-donation-backend/internal/domain"
	"github.com/tbourn/qris-donation-backend/internal/repo"
	"github.com/tbourn/qris-donation-backend/internal/services"
)

// ---------- service fakes ----------

type fakeNotifSvc struct {
	ingest  func(context.Context, services.Notification) (*domain.Notification, error)
	list    func(context.Context, string, int, int) ([]domain.Notification, error)
	devices func(context.Context) ([]domain.Device, error)
	stats   func(context.Context) (repo.Stats, error)
	calls   int
}

func (f *fakeNotifSvc) Ingest(ctx context.Context, in services.Notification) (*domain.Notification, error) {
	f.calls++
	if f.ingest != nil {
		return f.ingest(ctx, in)
	}
	return &domain.Notification{ID: int64(f.calls), DeviceID: in.DeviceID, PackageName: in.PackageName}, nil
}

func (f *fakeNotifSvc) List(ctx context.Context, dev string, limit, offset int) ([]domain.Notification, error) {
	if f.list != nil {
		return f.list(ctx, dev, limit, offset)
	}
	return nil, nil
}

func (f *fakeNotifSvc) Devices(ctx context.Context) ([]domain.Device, error) {
	if f.devices != nil {
		return f.devices(ctx)
	}
	return nil, nil
}

func (f *fakeNotifSvc) Stats(ctx context.Context) (repo.Stats, error) {
	if f.stats != nil {
		return f.stats(ctx)
	}
	return repo.Stats{TopApps: []repo.AppCount{}}, nil
}

type fakeDonationSvc struct {
	feed func(context.Context, int) ([]domain.Donation, error)
	save func(context.Context, domain.Enrichment) (domain.Enrichment, error)
}

func (f fakeDonationSvc) Feed(ctx context.Context, limit int) ([]domain.Donation, error) {
	if f.feed != nil {
		return f.feed(ctx, limit)
	}
	return nil, nil
}

func (f fakeDonationSvc) SaveMetadata(ctx context.Context, e domain.Enrichment) (domain.Enrichment, error) {
	if f.save != nil {
		return f.save(ctx, e)
	}
	return e, nil
}

type fakeQRISSvc struct {
	settings func(context.Context) (services.Settings, error)
	setBase  func(context.Context, string) (services.Settings, error)
	generate func(context.Context, services.GenerateInput) (*services.Generated, error)
	active   func(context.Context) (*domain.Session, error)
	clearErr error
	cleared  int
}

func (f *fakeQRISSvc) Settings(ctx context.Context) (services.Settings, error) {
	if f.settings != nil {
		return f.settings(ctx)
	}
	return services.Settings{}, services.ErrNoBasePayload
}

func (f *fakeQRISSvc) SetBasePayload(ctx context.Context, p string) (services.Settings, error) {
	if f.setBase != nil {
		return f.setBase(ctx, p)
	}
	return services.Settings{Payload: p}, nil
}

func (f *fakeQRISSvc) Generate(ctx context.Context, in services.GenerateInput) (*services.Generated, error) {
	if f.generate != nil {
		return f.generate(ctx, in)
	}
	return &services.Generated{Amount: in.Amount}, nil
}

func (f *fakeQRISSvc) ActiveSession(ctx context.Context) (*domain.Session, error) {
	if f.active != nil {
		return f.active(ctx)
	}
	return nil, services.ErrNoActiveSession
}

func (f *fakeQRISSvc) ClearSession(context.Context) error {
	f.cleared++
	return f.clearErr
}

func (f *fakeQRISSvc) Presets() services.Presets {
	return services.Presets{Amounts: []int64{10000, 25000}, Min: 100}
}

// memIdem is an in-memory IdempotencyStore.
type memIdem struct {
	mu   sync.Mutex
	seen map[string]int64
}

func newMemIdem() *memIdem { return &memIdem{seen: map[string]int64{}} }

func (m *memIdem) Lookup(_ context.Context, dev, key string, _ time.Time) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.seen[dev+"|"+key]
	return id, ok
}

func (m *memIdem) Remember(_ context.Context, dev, key string, id int64, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[dev+"|"+key] = id
	return nil
}

// ---------- request helpers ----------

func doJSON(t *testing.T, r http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return m
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}
