package tripauth

import (
	"strings"
	"testing"
)

func TestSecurityReportLocalDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Backend = StorageMemory
	engine, err := New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	r := engine.SecurityReport()
	if r.TLS || !r.Loopback || r.PersistentSession {
		t.Fatalf("unexpected report %+v", r)
	}
	if r.GeocoderHost != "nominatim.openstreetmap.org" {
		t.Fatalf("expected geocoder host, got %q", r.GeocoderHost)
	}
	for _, w := range r.Warnings() {
		if strings.Contains(w, "plain http") {
			t.Fatalf("loopback http must not warn: %v", r.Warnings())
		}
	}
}

func TestSecurityReportWarnsOnRemotePlainHTTP(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.BaseURL = "http://planner.example.com"
	cfg.Storage.Backend = StorageMemory
	cfg.Geocoder.BaseURL = ""
	cfg.OTP.EnforceResendCooldown = true
	engine, err := New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	warnings := engine.SecurityReport().Warnings()
	if len(warnings) != 1 || !strings.Contains(warnings[0], "plain http") {
		t.Fatalf("expected one plain-http warning, got %v", warnings)
	}
}

func TestIsLoopback(t *testing.T) {
	for host, want := range map[string]bool{
		"localhost":   true,
		"127.0.0.1":   true,
		"::1":         true,
		"example.com": false,
		"10.0.0.1":    false,
	} {
		if got := isLoopback(host); got != want {
			t.Fatalf("isLoopback(%q) = %v, want %v", host, got, want)
		}
	}
}
