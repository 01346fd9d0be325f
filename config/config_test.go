package config

import (
	"errors"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.ChannelID = "UCtest"
	cfg.DBURL = "postgres://pipeline@localhost/warehouse"
	return cfg
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestValidateRequiredFields(t *testing.T) {
	cases := []struct {
		field  string
		mutate func(*Config)
	}{
		{"channel_id", func(c *Config) { c.ChannelID = "" }},
		{"channel_id", func(c *Config) { c.ChannelID = "   " }},
		{"db_url", func(c *Config) { c.DBURL = "" }},
	}
	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(&cfg)
		err := cfg.Validate()
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("%s: error = %v, want *ValidationError", tc.field, err)
			continue
		}
		if verr.Field != tc.field {
			t.Errorf("field = %s, want %s", verr.Field, tc.field)
		}
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"malformed start date", func(c *Config) { c.StartDate = "01/05/2024" }},
		{"malformed end date", func(c *Config) { c.EndDate = "tomorrow" }},
		{"negative lag", func(c *Config) { c.LagDays = -1 }},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }},
		{"zero backoff", func(c *Config) { c.InitialBackoff = 0 }},
		{"max below initial backoff", func(c *Config) { c.MaxBackoff = c.InitialBackoff / 2 }},
		{"multiplier below one", func(c *Config) { c.BackoffMultiplier = 0.5 }},
		{"page size above API cap", func(c *Config) { c.PageSize = 51 }},
		{"zero reconcile batch", func(c *Config) { c.ReconcileBatchSize = 0 }},
	}
	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(&cfg)
		var verr *ValidationError
		if !errors.As(cfg.Validate(), &verr) {
			t.Errorf("%s: want *ValidationError", tc.name)
		}
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("YTP_CHANNEL_ID", "UCenv")
	t.Setenv("YTP_LAG_DAYS", "5")
	t.Setenv("YTP_REQUEST_TIMEOUT", "45s")
	t.Setenv("YTP_SMTP_TO", "a@example.com, b@example.com")
	t.Setenv("YTP_SMTP_USE_SSL", "true")
	t.Setenv("YTP_BACKOFF_MULTIPLIER", "1.5")

	cfg := DefaultConfig()
	cfg.loadFromEnv()

	if cfg.ChannelID != "UCenv" {
		t.Errorf("ChannelID = %q, want UCenv", cfg.ChannelID)
	}
	if cfg.LagDays != 5 {
		t.Errorf("LagDays = %d, want 5", cfg.LagDays)
	}
	if cfg.RequestTimeout != 45*time.Second {
		t.Errorf("RequestTimeout = %v, want 45s", cfg.RequestTimeout)
	}
	if len(cfg.Email.To) != 2 || cfg.Email.To[1] != "b@example.com" {
		t.Errorf("Email.To = %v, want two trimmed addresses", cfg.Email.To)
	}
	if !cfg.Email.UseSSL {
		t.Error("UseSSL should be set")
	}
	if cfg.BackoffMultiplier != 1.5 {
		t.Errorf("BackoffMultiplier = %v, want 1.5", cfg.BackoffMultiplier)
	}
}

func TestEnvIgnoresUnsetAndMalformed(t *testing.T) {
	t.Setenv("YTP_LAG_DAYS", "not-a-number")

	cfg := DefaultConfig()
	before := cfg.LagDays
	cfg.loadFromEnv()

	if cfg.LagDays != before {
		t.Errorf("LagDays = %d, want default %d kept on malformed env", cfg.LagDays, before)
	}
}

func TestConfiguredHelpers(t *testing.T) {
	if (EmailConfig{}).Configured() {
		t.Error("empty email config should not count as configured")
	}
	if !(EmailConfig{Host: "smtp.example.com", To: []string{"x@example.com"}}).Configured() {
		t.Error("host plus recipient should be enough")
	}
	if (LineConfig{ChannelToken: "tok"}).Configured() {
		t.Error("line config without recipient should not count as configured")
	}
	if (PlaylistConfig{ShortsTop: "a", VODsTop: "b"}).Configured() {
		t.Error("playlist config needs all three IDs")
	}
	if !(PlaylistConfig{ShortsTop: "a", VODsTop: "b", RecentHot: "c"}).Configured() {
		t.Error("three IDs should count as configured")
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Field: "db_url", Reason: "required"}
	want := "config: db_url: required"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
