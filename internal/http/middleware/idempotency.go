// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements Idempotency-Key support for webhook deliveries. Phone
// listeners retry on flaky networks; a retried delivery carrying the same key
// from the same device must not create a second notification row.
//
// The middleware only validates and stashes the key and the device identity
// (X-Device-ID). Replaying the stored result is left to the handler.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the idempotency key.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderDeviceID optionally identifies the sending device ahead of the body.
const HeaderDeviceID = "X-Device-ID"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
	ctxKeyDeviceID   = "deviceID"
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the validated key stashed by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether a stored result exists for this request's key.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// DeviceID returns the device identity stashed from X-Device-ID, or "".
func DeviceID(c *gin.Context) string {
	v, _ := c.Get(ctxKeyDeviceID)
	return asString(v)
}

// IdempotencyOptions configures key validation.
type IdempotencyOptions struct {
	// MaxLen caps the key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters; nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

// IdempotencyLookup reports whether an unexpired result exists for
// (deviceID, key). Errors never block the request.
type IdempotencyLookup func(ctx context.Context, deviceID, key string, now time.Time) (bool, error)

// IdempotencyValidator validates the Idempotency-Key header when present.
// An invalid key is rejected with 400. When lookup finds a stored result the
// request is marked as a replay and exempted from rate limiting.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}

	return func(c *gin.Context) {
		if dev := strings.TrimSpace(c.GetHeader(HeaderDeviceID)); dev != "" {
			c.Set(ctxKeyDeviceID, dev)
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"success":    false,
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if dev := DeviceID(c); lookup != nil && dev != "" {
			if exists, _ := lookup(c.Request.Context(), dev, key, time.Now().UTC()); exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}
