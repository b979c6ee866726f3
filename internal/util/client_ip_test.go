package util

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
)

func TestClientIP(t *testing.T) {
	trusted, err := NewTrustedProxies([]string{"10.0.0.0/8", "192.168.1.10"})
	if err != nil {
		t.Fatalf("new trusted proxies: %v", err)
	}

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xrip       string
		trusted    *TrustedProxies
		want       string
	}{
		{"untrusted peer ignores headers", "198.51.100.10:1234", "203.0.113.5", "203.0.113.6", nil, "198.51.100.10"},
		{"trusted peer uses forwarded", "10.0.0.20:1234", "203.0.113.5", "", trusted, "203.0.113.5"},
		{"rightmost untrusted hop", "10.0.0.20:1234", "198.51.100.1, 203.0.113.5, 10.0.0.10", "", trusted, "203.0.113.5"},
		{"single trusted address", "192.168.1.10:80", "203.0.113.9", "", trusted, "203.0.113.9"},
		{"real ip fallback", "10.0.0.20:1234", "garbage", "203.0.113.7", trusted, "203.0.113.7"},
		{"every hop trusted", "10.0.0.20:1234", "10.0.0.5, 10.0.0.10", "", trusted, "10.0.0.5"},
		{"ipv4 mapped peer", "[::ffff:10.0.0.20]:1234", "203.0.113.5", "", trusted, "203.0.113.5"},
		{"unparseable peer", "pipe", "", "", trusted, "pipe"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.xrip != "" {
				req.Header.Set("X-Real-IP", tc.xrip)
			}
			if got := ClientIP(req, tc.trusted); got != tc.want {
				t.Fatalf("client ip = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewTrustedProxies(t *testing.T) {
	tp, err := NewTrustedProxies([]string{" ", "10.0.0.0/8", "2001:db8::1"})
	if err != nil {
		t.Fatalf("expected valid entries, got err: %v", err)
	}
	if !tp.Contains(netip.MustParseAddr("10.1.2.3")) || !tp.Contains(netip.MustParseAddr("2001:db8::1")) {
		t.Fatalf("expected configured ranges to match")
	}
	if tp.Contains(netip.MustParseAddr("2001:db8::2")) {
		t.Fatalf("single address must not widen to a range")
	}
	if _, err := NewTrustedProxies([]string{"bad-cidr"}); err == nil {
		t.Fatalf("expected parse error for invalid entry")
	}
	if tp, err := NewTrustedProxies(nil); err != nil || tp != nil {
		t.Fatalf("empty input should trust nobody, got %v, %v", tp, err)
	}
}

func TestWithClientIPStoresAddress(t *testing.T) {
	trusted, _ := NewTrustedProxies([]string{"10.0.0.1"})
	var got string
	h := WithClientIP(trusted, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientIPFromRequest(r)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.4")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "203.0.113.4" {
		t.Fatalf("client ip = %q", got)
	}

	bare := httptest.NewRequest(http.MethodGet, "/", nil)
	bare.RemoteAddr = "10.0.0.1:5555"
	bare.Header.Set("X-Forwarded-For", "203.0.113.4")
	if ip := ClientIPFromRequest(bare); ip != "10.0.0.1" {
		t.Fatalf("without middleware forwarded headers must be ignored, got %q", ip)
	}
}
