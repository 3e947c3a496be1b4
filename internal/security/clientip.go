package security

import (
	"net"
	"net/http"
	"strings"
)

// ThrottleKey derives the per-client throttle identity for a request.
// It takes the first entry of X-Forwarded-For when present, then
// X-Real-IP, and falls back to "anonymous" when neither header carries
// a usable value. Unattributable requests therefore share one bucket
// rather than each getting a fresh quota.
func ThrottleKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		first = strings.TrimSpace(first)
		if first != "" {
			return first
		}
	}
	if rip := strings.TrimSpace(r.Header.Get("X-Real-IP")); rip != "" {
		return rip
	}
	return "anonymous"
}

// TrustedClientIP extracts the real client IP based on trusted_proxies configuration.
// If trusted_proxies is empty, uses RemoteAddr only (safe default).
// If set, extracts rightmost non-trusted IP from X-Forwarded-For.
func TrustedClientIP(remoteAddr string, xForwardedFor string, trustedProxies []string) string {
	remoteIP := stripPort(remoteAddr)

	if len(trustedProxies) == 0 {
		return remoteIP
	}

	trustedNets := parseCIDRs(trustedProxies)

	if xForwardedFor == "" {
		return remoteIP
	}

	parts := strings.Split(xForwardedFor, ",")
	ips := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			ips = append(ips, trimmed)
		}
	}

	// Walk from the rightmost IP toward the left.
	// Return the first (rightmost) IP that is NOT in trusted proxies.
	for i := len(ips) - 1; i >= 0; i-- {
		ip := net.ParseIP(ips[i])
		if ip == nil {
			continue
		}
		if !isIPTrusted(ip, trustedNets) {
			return ips[i]
		}
	}

	// All IPs in XFF are trusted — fallback to RemoteAddr
	return remoteIP
}

// stripPort removes the port from addr (handles both IPv4 and IPv6).
func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		// No port present, return as-is
		return addr
	}
	return host
}

// parseCIDRs parses a slice of CIDR strings or plain IPs into []*net.IPNet.
func parseCIDRs(cidrs []string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, ipNet, err := net.ParseCIDR(c)
		if err == nil {
			nets = append(nets, ipNet)
			continue
		}
		// Plain IP — convert to /32 or /128
		ip := net.ParseIP(c)
		if ip != nil {
			mask := net.CIDRMask(128, 128)
			if ip.To4() != nil {
				mask = net.CIDRMask(32, 32)
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: mask})
		}
	}
	return nets
}

// isIPTrusted checks if an IP falls within any of the trusted CIDR ranges.
func isIPTrusted(ip net.IP, trustedNets []*net.IPNet) bool {
	for _, n := range trustedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
