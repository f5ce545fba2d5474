package ratelimit

import (
	"net/http/httptest"
	"testing"
)

func TestShouldLimit(t *testing.T) {
	c := NewPathClassifier(nil)

	tests := []struct {
		path string
		want bool
	}{
		{"/actuator/health", true},
		{"/actuator/health/liveness", true},
		{"/api/collections/product", false},
		{"/internal/tenants/refresh", false},
		{"/", false},
	}
	for _, tt := range tests {
		if got := c.ShouldLimit(tt.path); got != tt.want {
			t.Errorf("ShouldLimit(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestShouldLimit_CustomPrefixes(t *testing.T) {
	c := NewPathClassifier([]string{"/status", "/public"})

	if !c.ShouldLimit("/status/ready") {
		t.Error("configured prefix not limited")
	}
	if c.ShouldLimit("/actuator/health") {
		t.Error("default prefix limited after override")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		remoteAddr string
		want       string
	}{
		{"forwarded single", "203.0.113.9", "10.0.0.1:4242", "203.0.113.9"},
		{"forwarded chain", "203.0.113.9, 10.0.0.7", "10.0.0.1:4242", "203.0.113.9"},
		{"forwarded padded", "  203.0.113.9 , 10.0.0.7", "10.0.0.1:4242", "203.0.113.9"},
		{"forwarded blank", "   ", "10.0.0.1:4242", "10.0.0.1"},
		{"remote addr", "", "10.0.0.1:4242", "10.0.0.1"},
		{"remote addr no port", "", "10.0.0.1", "10.0.0.1"},
		{"nothing", "", "", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/actuator/health", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
