package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func serveSecurity(opt SecurityOptions, req *http.Request) http.Header {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), SecurityHeaders(opt))
	r.GET("/h", func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	h := serveSecurity(SecurityOptions{}, httptest.NewRequest(http.MethodGet, "/h", nil))
	want := map[string]string{
		"X-Content-Type-Options":        "nosniff",
		"X-Frame-Options":               "DENY",
		"Referrer-Policy":               "no-referrer",
		"Access-Control-Expose-Headers": "X-Request-ID",
	}
	for k, v := range want {
		if h.Get(k) != v {
			t.Fatalf("%s=%q want %q", k, h.Get(k), v)
		}
	}
	for _, k := range []string{"Permissions-Policy", "Cache-Control", "Strict-Transport-Security"} {
		if h.Get(k) != "" {
			t.Fatalf("%s should be unset by default", k)
		}
	}
}

func TestSecurityHeaders_OptionalHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/h", nil)
	req.TLS = &tls.ConnectionState{}
	h := serveSecurity(SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour, NoStore: true, EnablePolicy: true}, req)

	if h.Get("Strict-Transport-Security") != "max-age=3600; includeSubDomains; preload" {
		t.Fatalf("HSTS=%q", h.Get("Strict-Transport-Security"))
	}
	if h.Get("Cache-Control") != "no-store" || h.Get("Permissions-Policy") == "" {
		t.Fatalf("optional headers missing: %v", h)
	}

	plain := serveSecurity(SecurityOptions{EnableHSTS: true}, httptest.NewRequest(http.MethodGet, "/h", nil))
	if plain.Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS must not be sent over plain HTTP")
	}

	proxied := httptest.NewRequest(http.MethodGet, "/h", nil)
	proxied.Header.Set("X-Forwarded-Proto", "HTTPS")
	if serveSecurity(SecurityOptions{EnableHSTS: true}, proxied).Get("Strict-Transport-Security") == "" {
		t.Fatalf("HSTS expected behind TLS-terminating proxy")
	}
}
