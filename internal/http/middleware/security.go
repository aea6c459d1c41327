// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders, a hardening middleware that attaches a
// conservative set of HTTP security headers suitable for a JSON API behind a
// reverse proxy. HSTS is opt-in and only applied when the request is actually
// HTTPS; there is no CSP since the API never serves HTML.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures the headers emitted by SecurityHeaders.
//
// EnableHSTS should only be set when traffic is HTTPS end-to-end (including
// between proxy and app). HSTSMaxAge defaults to 180 days when unset.
// NoStore adds Cache-Control: no-store (plus legacy Pragma/Expires) to keep
// registry responses out of caches. EnablePolicy adds browser feature
// policies, harmless for the non-browser field clients.
type SecurityOptions struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration
	NoStore      bool
	EnablePolicy bool
}

// SecurityHeaders returns a Gin middleware that adds conservative security
// headers to each response.
//
// Always sets X-Content-Type-Options, X-Frame-Options, and Referrer-Policy.
// Permissions-Policy, cache controls, and Strict-Transport-Security follow
// the options above; HSTS is never emitted on plain-HTTP requests. When an
// X-Request-ID is present it is exposed via Access-Control-Expose-Headers so
// browser clients can correlate logs.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security",
				"max-age="+strconv.Itoa(maxAge)+"; includeSubDomains; preload")
		}

		if rid := h.Get("X-Request-ID"); rid != "" {
			const hdr = "Access-Control-Expose-Headers"
			cur := h.Get(hdr)
			if cur == "" {
				h.Set(hdr, "X-Request-ID")
			} else if !strings.Contains(cur, "X-Request-ID") {
				h.Set(hdr, cur+", X-Request-ID")
			}
		}

		c.Next()
	}
}

// isHTTPS reports whether the request used HTTPS directly (r.TLS != nil) or
// via a reverse proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
