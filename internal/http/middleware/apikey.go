package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderAPIKey carries the shared secret of device and admin clients.
const HeaderAPIKey = "X-Api-Key"

// PlaceholderAPIKey is the sample key shipped in example configs. A server
// configured with it (or with no key) runs without authentication.
const PlaceholderAPIKey = "your-secret-api-key"

// APIKeyEnabled reports whether key actually enables authentication.
func APIKeyEnabled(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && key != PlaceholderAPIKey
}

// APIKey rejects requests whose X-Api-Key header does not equal key. It is a
// no-op when APIKeyEnabled(key) is false.
func APIKey(key string) gin.HandlerFunc {
	key = strings.TrimSpace(key)
	enabled := APIKeyEnabled(key)
	want := []byte(key)

	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}
		got := []byte(c.GetHeader(HeaderAPIKey))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success":    false,
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "unauthorized",
				"message":    "invalid API key",
			})
			return
		}
		c.Next()
	}
}
