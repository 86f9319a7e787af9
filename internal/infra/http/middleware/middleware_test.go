package middleware

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	var got string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetRequestID(r.Context())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if got == "" {
		t.Fatal("request id missing from context")
	}
	if hdr := rec.Header().Get("X-Request-Id"); hdr != got {
		t.Fatalf("header %q != context id %q", hdr, got)
	}
}

func TestRequestIDKeepsInbound(t *testing.T) {
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if hdr := rec.Header().Get("X-Request-Id"); hdr != "abc-123" {
		t.Fatalf("inbound id not kept, got %q", hdr)
	}
}

func TestAdminGate(t *testing.T) {
	_, local, _ := net.ParseCIDR("127.0.0.0/8")
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	cases := []struct {
		name    string
		allowed []*net.IPNet
		remote  string
		want    int
	}{
		{"allowed", []*net.IPNet{local}, "127.0.0.1:5555", http.StatusNoContent},
		{"denied", []*net.IPNet{local}, "10.1.2.3:5555", http.StatusForbidden},
		{"empty allowlist fails closed", nil, "127.0.0.1:5555", http.StatusForbidden},
		{"unparseable remote", []*net.IPNet{local}, "not an ip", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			req.RemoteAddr = tc.remote
			rec := httptest.NewRecorder()
			AdminGate(tc.allowed, next).ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

// The logging wrapper must not hide http.Hijacker from handlers;
// websocket upgrades depend on it.
func TestLoggerPreservesHijack(t *testing.T) {
	h := Logger(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Error("wrapped writer lost http.Hijacker")
			return
		}
		conn, buf, err := hj.Hijack()
		if err != nil {
			t.Errorf("hijack: %v", err)
			return
		}
		defer conn.Close()
		_, _ = buf.WriteString("HTTP/1.1 204 No Content\r\nConnection: close\r\n\r\n")
		_ = buf.Flush()
	}))
	srv := httptest.NewServer(RequestID(h))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
}
