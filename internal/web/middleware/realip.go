package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// proxySet holds the networks whose forwarding headers are believed.
type proxySet []netip.Prefix

// parseProxies accepts CIDRs and bare addresses. Entries that are neither
// are logged and skipped; config validation rejects them earlier.
func parseProxies(entries []string) proxySet {
	var set proxySet
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if p, err := netip.ParsePrefix(e); err == nil {
			set = append(set, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(e); err == nil {
			a = a.Unmap()
			set = append(set, netip.PrefixFrom(a, a.BitLen()))
			continue
		}
		slog.Warn("realip: skipping trusted proxy entry", "entry", e)
	}
	return set
}

func (s proxySet) trusts(a netip.Addr) bool {
	a = a.Unmap()
	for _, p := range s {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// clientAddr resolves the address a request is attributed to. The peer
// address is used unless the peer is a trusted proxy. Behind a trusted
// proxy X-Real-IP wins; otherwise X-Forwarded-For is walked from the
// right, skipping trusted hops, so a client-supplied leftmost entry cannot
// pick its own rate limit bucket.
func (s proxySet) clientAddr(r *http.Request) (netip.Addr, bool) {
	peer, ok := parseHostAddr(r.RemoteAddr)
	if !ok || !s.trusts(peer) {
		return netip.Addr{}, false
	}

	if v := strings.TrimSpace(r.Header.Get("X-Real-IP")); v != "" {
		a, err := netip.ParseAddr(v)
		return a.Unmap(), err == nil
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		a, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			return netip.Addr{}, false
		}
		if !s.trusts(a) {
			return a.Unmap(), true
		}
	}
	return netip.Addr{}, false
}

func parseHostAddr(addr string) (netip.Addr, bool) {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	a, err := netip.ParseAddr(addr)
	return a.Unmap(), err == nil
}

// TrustedRealIP rewrites r.RemoteAddr to the client address forwarded by a
// trusted proxy. The rate limiter and request logger key on RemoteAddr, so
// with no trusted proxies configured every request keeps its peer address.
func TrustedRealIP(trustedProxies []string) func(http.Handler) http.Handler {
	proxies := parseProxies(trustedProxies)

	return func(next http.Handler) http.Handler {
		if len(proxies) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a, ok := proxies.clientAddr(r); ok {
				r.RemoteAddr = a.String()
			}
			next.ServeHTTP(w, r)
		})
	}
}
