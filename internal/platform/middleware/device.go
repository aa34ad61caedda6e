package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"memberhub/pkg/requestcontext"
)

// DeviceSummary retrieves the human-readable device description, if set.
func DeviceSummary(ctx context.Context) string {
	return requestcontext.Device(ctx)
}

// ClientDevice parses the User-Agent header into a short device summary and
// attaches it to the context; the engine copies it onto audit events.
func ClientDevice(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithDevice(r.Context(), ParseUserAgent(r.UserAgent()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ParseUserAgent renders a user-agent string as "Browser on Platform".
func ParseUserAgent(raw string) string {
	if raw == "" {
		return "Unknown Device"
	}

	ua := useragent.New(raw)
	browser, _ := ua.Browser()
	platform := ua.OS()
	if platform == "" {
		platform = ua.Platform()
	}
	if browser == "" {
		browser = "Unknown Browser"
	}
	if platform == "" {
		platform = "Unknown Platform"
	}
	return fmt.Sprintf("%s on %s", browser, strings.ReplaceAll(platform, "_", "."))
}

// ClientIP extracts the originating client address, preferring forwarding
// headers set by the edge proxy.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
