package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/qris-donation-backend/internal/config"
	"github.com/tbourn/qris-donation-backend/internal/events"
	"github.com/tbourn/qris-donation-backend/internal/http/middleware"
	"github.com/tbourn/qris-donation-backend/internal/repo"
	"github.com/tbourn/qris-donation-backend/internal/state"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:routerdb_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     100,
		RateBurst:   50,
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
		QRIS: config.QRISConfig{
			MinDonation: 100,
			SessionTTL:  10 * time.Minute,
		},
		IdempotencyTTL: time.Hour,
	}
}

func newRouter(t *testing.T, cfg config.Config) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	RegisterRoutes(r, db, state.New(db, "test"), events.NewHub(4), cfg)
	return r, db
}

func serve(r *gin.Engine, method, path string, body string, hdr map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newRouter(t, testConfig())

	w := serve(r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}
	var health map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health["status"] != "OK" {
		t.Fatalf("health status = %v", health["status"])
	}
	if _, ok := health["uptime"]; !ok {
		t.Fatalf("health missing uptime: %v", health)
	}

	w = serve(r, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	w = serve(r, http.MethodGet, "/nope", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"success":false`) {
		t.Fatalf("404 body = %s", w.Body.String())
	}

	w = serve(r, http.MethodPost, "/health", "", nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r, _ := newRouter(t, cfg)

	w := serve(r, http.MethodGet, "/health", "", map[string]string{"Origin": "http://example.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func TestRegisterRoutes_WebhookRequiresAPIKey(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = "s3cret"
	r, _ := newRouter(t, cfg)

	body := `{"deviceId":"dev-1","packageName":"id.dana","appName":"DANA","title":"Masuk","text":"Rp 25.000 dari Budi","amountDetected":"25000"}`

	w := serve(r, http.MethodPost, "/webhook", body, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no key expected 401, got %d", w.Code)
	}

	w = serve(r, http.MethodPost, "/webhook", body, map[string]string{middleware.HeaderAPIKey: "s3cret"})
	if w.Code != http.StatusOK {
		t.Fatalf("with key expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// the public feed stays open and reflects the ingested notification
	w = serve(r, http.MethodGet, "/public/donations?limit=5", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("feed expected 200, got %d", w.Code)
	}
	var feed struct {
		Success bool `json:"success"`
		Count   int  `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &feed); err != nil {
		t.Fatalf("decode feed: %v", err)
	}
	if !feed.Success || feed.Count != 1 {
		t.Fatalf("feed = %+v", feed)
	}
}

func TestRegisterRoutes_WebhookIdempotentReplay(t *testing.T) {
	r, db := newRouter(t, testConfig())

	body := `{"deviceId":"dev-1","packageName":"id.dana","title":"Masuk","text":"Rp 10.000"}`
	hdr := map[string]string{
		middleware.HeaderDeviceID:       "dev-1",
		middleware.HeaderIdempotencyKey: "evt-1",
	}

	first := serve(r, http.MethodPost, "/webhook", body, hdr)
	if first.Code != http.StatusOK {
		t.Fatalf("first webhook = %d: %s", first.Code, first.Body.String())
	}
	second := serve(r, http.MethodPost, "/webhook", body, hdr)
	if second.Code != http.StatusOK {
		t.Fatalf("replayed webhook = %d: %s", second.Code, second.Body.String())
	}
	if second.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("expected replay header, got %v", second.Header())
	}

	var n int64
	if err := db.Table("notifications").Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected a single stored notification, got %d", n)
	}
}

func TestRegisterRoutes_QRISFlow(t *testing.T) {
	r, _ := newRouter(t, testConfig())

	// generate before configuration conflicts
	w := serve(r, http.MethodPost, "/api/v1/qris/generate", `{"amount":5000}`, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("generate without payload expected 409, got %d: %s", w.Code, w.Body.String())
	}

	w = serve(r, http.MethodGet, "/api/v1/qris/presets", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("presets = %d", w.Code)
	}

	w = serve(r, http.MethodGet, "/api/v1/qris/session", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("session before generate expected 404, got %d", w.Code)
	}

	w = serve(r, http.MethodDelete, "/api/v1/qris/session", "", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("clear session expected 204, got %d", w.Code)
	}
}

func TestRegisterRoutes_LiveRequiresUpgrade(t *testing.T) {
	r, _ := newRouter(t, testConfig())

	w := serve(r, http.MethodGet, "/api/v1/donations/live", "", nil)
	if w.Code != http.StatusUpgradeRequired {
		t.Fatalf("plain GET on live expected 426, got %d", w.Code)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		w := serve(r, http.MethodGet, path, "", nil)
		if w.Code != http.StatusOK || w.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, w.Code, w.Body.String())
		}
	}
}

func Test_joinPath(t *testing.T) {
	cases := map[[2]string]string{
		{"", "/x"}:        "/x",
		{"/", "/x"}:       "/x",
		{"/api/v1", "/x"}: "/api/v1/x",
	}
	for in, want := range cases {
		if got := joinPath(in[0], in[1]); got != want {
			t.Fatalf("joinPath(%q,%q)=%q want %q", in[0], in[1], got, want)
		}
	}
}

func Test_idempotencyShim_Proxies(t *testing.T) {
	db := newTestDB(t)
	shim := idempotencyShim{db: db, ttl: time.Hour}
	ctx := context.Background()

	if _, ok := shim.Lookup(ctx, "dev", "k1", time.Now()); ok {
		t.Fatalf("unexpected hit on empty store")
	}
	if err := shim.Remember(ctx, "dev", "k1", 42, http.StatusOK); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	id, ok := shim.Lookup(ctx, "dev", "k1", time.Now())
	if !ok || id != 42 {
		t.Fatalf("Lookup = %d,%v", id, ok)
	}
	// duplicate is swallowed, first writer wins
	if err := shim.Remember(ctx, "dev", "k1", 43, http.StatusOK); err != nil {
		t.Fatalf("duplicate Remember: %v", err)
	}
	if id, _ := shim.Lookup(ctx, "dev", "k1", time.Now()); id != 42 {
		t.Fatalf("first writer should win, got %d", id)
	}
	// expired
	if _, ok := shim.Lookup(ctx, "dev", "k1", time.Now().Add(2*time.Hour)); ok {
		t.Fatalf("expected expiry")
	}
}
