package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// CacheConfig represents cache control configuration
type CacheConfig struct {
	MaxAge  int
	Private bool
	NoStore bool
	Vary    []string
}

// NoStoreConfig is used for anything carrying patient data.
func NoStoreConfig() CacheConfig {
	return CacheConfig{NoStore: true, Private: true, Vary: []string{"Authorization"}}
}

// PublicConfig lets browsers and proxies reuse a response for maxAge.
func PublicConfig(maxAge time.Duration) CacheConfig {
	return CacheConfig{MaxAge: int(maxAge / time.Second)}
}

// Cache adds cache control headers to responses
func Cache(config CacheConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || config.NoStore {
			c.Header("Cache-Control", "no-store")
		} else {
			directives := []string{"public"}
			if config.Private {
				directives[0] = "private"
			}
			if config.MaxAge > 0 {
				directives = append(directives, "max-age="+strconv.Itoa(config.MaxAge))
			}
			c.Header("Cache-Control", strings.Join(directives, ", "))
		}

		if len(config.Vary) > 0 {
			c.Header("Vary", strings.Join(config.Vary, ", "))
		}

		c.Next()
	}
}
