package netutil

import (
	"net"
	"testing"
)

func contains(nets []*net.IPNet, addr string) bool {
	ip := net.ParseIP(addr)
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func TestMustParseCIDRs(t *testing.T) {
	nets := MustParseCIDRs([]string{"127.0.0.0/8", "10.1.2.3", " ::1 ", "not-a-cidr", ""})
	if len(nets) != 3 {
		t.Fatalf("expected 3 parsed networks, got %d", len(nets))
	}
	for _, addr := range []string{"127.0.0.1", "127.255.0.9", "10.1.2.3", "::1"} {
		if !contains(nets, addr) {
			t.Fatalf("expected %s to be allowed", addr)
		}
	}
	for _, addr := range []string{"10.1.2.4", "192.168.0.1"} {
		if contains(nets, addr) {
			t.Fatalf("expected %s to be rejected (bare IP is a single host)", addr)
		}
	}
}
