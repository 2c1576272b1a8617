package middleware

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		realIP     string
		remoteAddr string
		want       string
	}{
		{name: "forwarded single", forwarded: "203.0.113.1", remoteAddr: "198.51.100.10:1234", want: "203.0.113.1"},
		{name: "forwarded list uses first valid", forwarded: "junk, 203.0.113.1 , 198.51.100.2", remoteAddr: "198.51.100.10:1234", want: "203.0.113.1"},
		{name: "real ip when forwarded invalid", forwarded: "junk", realIP: "192.0.2.7", remoteAddr: "198.51.100.10:1234", want: "192.0.2.7"},
		{name: "remote host", remoteAddr: "198.51.100.10:1234", want: "198.51.100.10"},
		{name: "ipv6 forwarded", forwarded: "2001:db8::1", remoteAddr: net.JoinHostPort("2001:db8::2", "443"), want: "2001:db8::1"},
		{name: "ipv6 remote", remoteAddr: net.JoinHostPort("2001:db8::2", "443"), want: "2001:db8::2"},
		{name: "remote without port", remoteAddr: "203.0.113.1", want: "203.0.113.1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/jobs", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if tc.realIP != "" {
				req.Header.Set("X-Real-IP", tc.realIP)
			}
			if got := ClientIP(req); got != tc.want {
				t.Fatalf("ClientIP() = %q, want %q", got, tc.want)
			}
		})
	}
}
