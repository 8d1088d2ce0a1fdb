package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSConfig holds CORS and frame embedding configuration.
// The app is rendered inside CRM admin iframes, so alongside the usual CORS
// headers it emits a frame-ancestors policy naming the admin origins that
// may embed it.
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int // in seconds
	// FrameAncestors are the origins allowed to embed the app in an iframe
	FrameAncestors []string
}

// DefaultCORSConfig returns default CORS configuration
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{
			"https://*.commerce7.com",
			"https://admin.shopify.com",
			"https://*.myshopify.com",
		},
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Content-Length",
			"Accept",
			"Accept-Encoding",
			"Authorization",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		AllowCredentials: false,
		MaxAge:           86400, // 24 hours
		FrameAncestors: []string{
			"https://*.commerce7.com",
			"https://admin.shopify.com",
			"https://*.myshopify.com",
		},
	}
}

// CORS middleware with default configuration
func CORS() gin.HandlerFunc {
	return CORSWithConfig(DefaultCORSConfig())
}

// CORSWithConfig middleware with custom configuration
func CORSWithConfig(config CORSConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Embedding policy applies to every response, CORS or not
		if len(config.FrameAncestors) > 0 {
			c.Header("Content-Security-Policy", "frame-ancestors "+strings.Join(config.FrameAncestors, " "))
		}

		origin := c.Request.Header.Get("Origin")

		// When credentials are allowed, we must echo back the specific origin, not "*"
		allowedOrigin := origin
		if origin == "" {
			allowedOrigin = "*"
		} else if len(config.AllowOrigins) > 0 && config.AllowOrigins[0] != "*" {
			allowedOrigin = ""
			for _, o := range config.AllowOrigins {
				if originMatches(origin, o) {
					allowedOrigin = origin
					break
				}
			}
		}

		if allowedOrigin == "" {
			c.Next()
			return
		}

		// Set CORS headers
		c.Header("Access-Control-Allow-Origin", allowedOrigin)
		c.Header("Access-Control-Allow-Methods", strings.Join(config.AllowMethods, ", "))
		c.Header("Access-Control-Allow-Headers", strings.Join(config.AllowHeaders, ", "))
		c.Header("Access-Control-Expose-Headers", strings.Join(config.ExposeHeaders, ", "))

		if config.AllowCredentials && allowedOrigin != "*" {
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		if config.MaxAge > 0 {
			c.Header("Access-Control-Max-Age", "86400")
		}

		// Handle preflight request
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// originMatches matches an Origin header against an allowed pattern.
// A pattern of the form "https://*.example.com" matches any single-level
// subdomain of example.com.
func originMatches(origin, pattern string) bool {
	if pattern == "*" || pattern == origin {
		return true
	}
	if i := strings.Index(pattern, "*."); i >= 0 {
		scheme := pattern[:i]
		domain := pattern[i+1:] // ".example.com"
		return strings.HasPrefix(origin, scheme) && strings.HasSuffix(origin, domain) &&
			len(origin) > len(scheme)+len(domain)
	}
	return false
}
