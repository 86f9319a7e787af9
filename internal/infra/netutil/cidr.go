package netutil

import (
	"net"
	"strings"
)

// MustParseCIDRs parses CIDR strings into []*net.IPNet; invalid
// entries are ignored. Bare addresses ("10.1.2.3", "::1") are accepted
// as single-host networks, so operator allowlists do not need the /32
// spelled out.
func MustParseCIDRs(cidrs []string) (out []*net.IPNet) {
	for _, s := range cidrs {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !strings.Contains(s, "/") {
			if n := hostNet(s); n != nil {
				out = append(out, n)
			}
			continue
		}
		_, n, err := net.ParseCIDR(s)
		if err == nil && n != nil {
			out = append(out, n)
		}
	}
	return
}

// hostNet wraps a single address in a full-length mask.
func hostNet(s string) *net.IPNet {
	ip := net.ParseIP(s)
	if ip == nil {
		return nil
	}
	bits := 8 * net.IPv6len
	if v4 := ip.To4(); v4 != nil {
		ip = v4
		bits = 8 * net.IPv4len
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}
}
