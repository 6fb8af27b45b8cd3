package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"

	applog "expensetracker/internal/log"
)

// securityMetrics tracks security-related events.
type securityMetrics struct {
	rateLimitHits      atomic.Int64
	suspiciousRequests atomic.Int64
}

// logSummary reports the counters, once per server lifetime at shutdown.
func (m *securityMetrics) logSummary(ctx context.Context, logger *applog.Logger) {
	logger.InfoContext(ctx, "Security summary",
		"rate_limit_hits", m.rateLimitHits.Load(),
		"suspicious_requests", m.suspiciousRequests.Load())
}

// trustedProxies defines networks that are trusted to set forwarding headers.
var trustedProxies = []*net.IPNet{
	parsecidr("127.0.0.0/8"),
	parsecidr("10.0.0.0/8"),
	parsecidr("172.16.0.0/12"),
	parsecidr("192.168.0.0/16"),
}

func parsecidr(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("failed to parse trusted proxy CIDR %s: %v", cidr, err))
	}
	return network
}

func isTrustedProxy(ip net.IP) bool {
	for _, network := range trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// extractClientIP returns the peer address, or the first forwarded address
// when the peer is a trusted proxy.
func extractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsedDirectIP := net.ParseIP(directIP)
	if parsedDirectIP == nil || !isTrustedProxy(parsedDirectIP) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return directIP
}

var suspiciousPatterns = []string{
	"../", "..\\", ".env", ".git", "wp-admin", "phpmyadmin",
	"<script", "union select", "etc/passwd",
}

// isSuspicious flags probing paths and queries. It only feeds logs.
func isSuspicious(r *http.Request) bool {
	path := strings.ToLower(r.URL.Path)
	query := strings.ToLower(r.URL.RawQuery)
	for _, pattern := range suspiciousPatterns {
		if strings.Contains(path, pattern) || strings.Contains(query, pattern) {
			return true
		}
	}
	return len(r.URL.String()) > 2048
}

// withSecurity sets security headers, logs suspicious requests and rate
// limits writes per client.
func (s *Server) withSecurity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := applog.FromContext(r.Context())
		clientIP := extractClientIP(r)

		if isSuspicious(r) {
			s.metrics.suspiciousRequests.Add(1)
			logger.WarnContext(r.Context(), "Suspicious request",
				applog.FieldClientIP, clientIP,
				applog.FieldPath, r.URL.Path)
		}

		if r.Method != http.MethodGet && r.Method != http.MethodHead && !s.rateLimiter.allow(clientIP) {
			s.metrics.rateLimitHits.Add(1)
			logger.WarnContext(r.Context(), "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method)
			TooManyRequestsError("60").Write(w)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}
