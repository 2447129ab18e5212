package tripauth

import (
	"net"
	"net/url"
	"strings"
	"time"
)

// SecurityReport summarizes how the configuration treats the bearer token.
type SecurityReport struct {
	APIBaseURL string
	// TLS is true when the backend is reached over https.
	TLS bool
	// Loopback is true when the backend host is localhost or a loopback address.
	Loopback               bool
	Storage                StorageBackend
	PersistentSession      bool
	SessionFilePath        string
	RedisSessionTTL        time.Duration
	ChallengeTTL           time.Duration
	ResendCooldownEnforced bool
	GeocoderHost           string
	MetricsEnabled         bool
}

// Warnings lists settings that expose the token or user data.
func (r SecurityReport) Warnings() []string {
	var out []string
	if !r.TLS && !r.Loopback {
		out = append(out, "bearer token is sent over plain http to a non-local backend")
	}
	if r.Storage == StorageRedis && r.RedisSessionTTL == 0 {
		out = append(out, "redis session has no ttl and lives until logout")
	}
	if !r.ResendCooldownEnforced {
		out = append(out, "resend is not throttled client-side")
	}
	if r.GeocoderHost != "" {
		out = append(out, "activity locations are sent to "+r.GeocoderHost)
	}
	return out
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	report := SecurityReport{
		APIBaseURL:             e.config.API.BaseURL,
		Storage:                e.config.Storage.Backend,
		PersistentSession:      e.config.Storage.Backend != StorageMemory,
		ChallengeTTL:           e.config.OTP.ChallengeTTL,
		ResendCooldownEnforced: e.config.OTP.EnforceResendCooldown,
		MetricsEnabled:         e.metrics.Enabled(),
	}
	if u, err := url.Parse(e.config.API.BaseURL); err == nil {
		report.TLS = u.Scheme == "https"
		report.Loopback = isLoopback(u.Hostname())
	}
	switch e.config.Storage.Backend {
	case StorageFile:
		report.SessionFilePath = e.config.Storage.FilePath
	case StorageRedis:
		report.RedisSessionTTL = e.config.Storage.RedisTTL
	}
	if e.geocoder != nil {
		if u, err := url.Parse(e.config.Geocoder.BaseURL); err == nil {
			report.GeocoderHost = u.Hostname()
		}
	}
	return report
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
