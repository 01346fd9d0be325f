// Package config manages application configuration.
//
// Configuration is resolved from three sources, highest priority first:
// environment variables, a ytpipeline.json file (working directory or
// ~/.config/ytpipeline/), and built-in defaults. Validation failures are
// returned as *ValidationError rather than terminating the process; only
// the CLI boundary decides to exit.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ValidationError describes a configuration value that failed validation.
type ValidationError struct {
	// Field is the configuration key that failed.
	Field string
	// Reason is a human-readable explanation.
	Reason string
}

// Error returns a string representation of the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// EmailConfig describes the SMTP channel for run notifications.
type EmailConfig struct {
	Host    string        `json:"host"`
	Port    int           `json:"port"`
	User    string        `json:"user"`
	Pass    string        `json:"pass"`
	From    string        `json:"from"`
	To      []string      `json:"to"`
	UseSSL  bool          `json:"use_ssl"`
	Timeout time.Duration `json:"timeout"`
}

// Configured reports whether the channel has enough settings to send.
func (e EmailConfig) Configured() bool {
	return e.Host != "" && len(e.To) > 0
}

// LineConfig describes the LINE Messaging API push channel.
type LineConfig struct {
	// ChannelToken is the LINE channel access token.
	ChannelToken string `json:"channel_token"`
	// To is the user or group ID to push the digest to.
	To string `json:"to"`
}

// Configured reports whether the channel has enough settings to send.
func (l LineConfig) Configured() bool {
	return l.ChannelToken != "" && l.To != ""
}

// PlaylistConfig holds the three curated playlist IDs kept in sync.
type PlaylistConfig struct {
	// ShortsTop is the playlist holding the top shorts ranking.
	ShortsTop string `json:"shorts_top"`
	// VODsTop is the playlist holding the top VOD ranking.
	VODsTop string `json:"vods_top"`
	// RecentHot is the playlist holding the recent trending ranking.
	RecentHot string `json:"recent_hot"`
}

// Configured reports whether all three playlist IDs are present.
func (p PlaylistConfig) Configured() bool {
	return p.ShortsTop != "" && p.VODsTop != "" && p.RecentHot != ""
}

// Config holds all application configuration. It is immutable after Load:
// components receive it by value and never mutate it.
type Config struct {
	// ChannelID is the YouTube channel the pipeline runs against.
	ChannelID string `json:"channel_id"`
	// DBURL is the Postgres connection string for the warehouse.
	DBURL string `json:"db_url"`

	// StartDate is the backfill floor (YYYY-MM-DD) used when no watermark
	// or channel creation date is available.
	StartDate string `json:"start_date"`
	// EndDate optionally caps ingestion (YYYY-MM-DD). Empty means today-lag.
	EndDate string `json:"end_date"`
	// LagDays keeps ingestion this many days behind today, because
	// upstream analytics for recent days is still rolling.
	LagDays int `json:"lag_days"`

	// OAuth client files for the token provider.
	ClientSecretFile string `json:"client_secret_file"`
	TokenFile        string `json:"token_file"`

	// Request/retry settings.
	RequestTimeout    time.Duration `json:"request_timeout"`
	MaxAttempts       int           `json:"max_attempts"`
	InitialBackoff    time.Duration `json:"initial_backoff"`
	MaxBackoff        time.Duration `json:"max_backoff"`
	BackoffMultiplier float64       `json:"backoff_multiplier"`
	// PageSize is the page size for list endpoints (YouTube caps at 50).
	PageSize int64 `json:"page_size"`

	// Playlist reconciliation settings.
	Playlists          PlaylistConfig `json:"playlists"`
	ReconcileBatchSize int            `json:"reconcile_batch_size"`
	ReconcileCooldown  time.Duration  `json:"reconcile_cooldown"`

	// LogDir receives per-run summary artifacts.
	LogDir string `json:"log_dir"`

	// Notification channels.
	Email             EmailConfig `json:"email"`
	DiscordWebhookURL string      `json:"discord_webhook_url"`
	Line              LineConfig  `json:"line"`
}

// DefaultConfig returns configuration with safe defaults.
func DefaultConfig() Config {
	return Config{
		LagDays:            2,
		RequestTimeout:     30 * time.Second,
		MaxAttempts:        5,
		InitialBackoff:     1 * time.Second,
		MaxBackoff:         30 * time.Second,
		BackoffMultiplier:  2.0,
		PageSize:           50,
		ReconcileBatchSize: 10,
		ReconcileCooldown:  2 * time.Second,
		LogDir:             "logs",
		ClientSecretFile:   "credentials/oauth_client_secret.json",
		TokenFile:          "credentials/oauth_token.json",
		Email:              EmailConfig{Port: 587, Timeout: 15 * time.Second},
	}
}

// Load loads configuration from environment variables, config file, and
// applies defaults. Priority: env vars > config file > defaults.
func Load() (Config, error) {
	cfg := DefaultConfig()

	if err := cfg.loadFromFile(); err != nil {
		// Config file is optional.
		if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("load config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFromFile attempts to load config from ytpipeline.json in the current
// directory or the user config directory.
func (c *Config) loadFromFile() error {
	paths := []string{
		"ytpipeline.json",
		filepath.Join(os.Getenv("HOME"), ".config", "ytpipeline", "ytpipeline.json"),
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}

	return os.ErrNotExist
}

// loadFromEnv overrides config with environment variables.
func (c *Config) loadFromEnv() {
	setString(&c.ChannelID, "YTP_CHANNEL_ID")
	setString(&c.DBURL, "YTP_DB_URL")
	setString(&c.StartDate, "YTP_START_DATE")
	setString(&c.EndDate, "YTP_END_DATE")
	setInt(&c.LagDays, "YTP_LAG_DAYS")
	setString(&c.ClientSecretFile, "YTP_CLIENT_SECRET_FILE")
	setString(&c.TokenFile, "YTP_TOKEN_FILE")
	setDuration(&c.RequestTimeout, "YTP_REQUEST_TIMEOUT")
	setInt(&c.MaxAttempts, "YTP_MAX_ATTEMPTS")
	setDuration(&c.InitialBackoff, "YTP_INITIAL_BACKOFF")
	setDuration(&c.MaxBackoff, "YTP_MAX_BACKOFF")
	setFloat(&c.BackoffMultiplier, "YTP_BACKOFF_MULTIPLIER")
	setInt64(&c.PageSize, "YTP_PAGE_SIZE")
	setString(&c.Playlists.ShortsTop, "YTP_PLAYLIST_SHORTS_TOP")
	setString(&c.Playlists.VODsTop, "YTP_PLAYLIST_VODS_TOP")
	setString(&c.Playlists.RecentHot, "YTP_PLAYLIST_RECENT_HOT")
	setInt(&c.ReconcileBatchSize, "YTP_RECONCILE_BATCH_SIZE")
	setDuration(&c.ReconcileCooldown, "YTP_RECONCILE_COOLDOWN")
	setString(&c.LogDir, "YTP_LOG_DIR")

	setString(&c.Email.Host, "YTP_SMTP_HOST")
	setInt(&c.Email.Port, "YTP_SMTP_PORT")
	setString(&c.Email.User, "YTP_SMTP_USER")
	setString(&c.Email.Pass, "YTP_SMTP_PASS")
	setString(&c.Email.From, "YTP_SMTP_FROM")
	setList(&c.Email.To, "YTP_SMTP_TO")
	setBool(&c.Email.UseSSL, "YTP_SMTP_USE_SSL")
	setString(&c.DiscordWebhookURL, "YTP_DISCORD_WEBHOOK_URL")
	setString(&c.Line.ChannelToken, "YTP_LINE_CHANNEL_TOKEN")
	setString(&c.Line.To, "YTP_LINE_TO")
}

// Validate checks configuration validity. Required keys are those the
// pipeline cannot run without; channel-specific extras (playlist IDs,
// notification channels) are validated where they are used.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ChannelID) == "" {
		return &ValidationError{Field: "channel_id", Reason: "required"}
	}
	if strings.TrimSpace(c.DBURL) == "" {
		return &ValidationError{Field: "db_url", Reason: "required"}
	}
	if c.StartDate != "" {
		if _, err := time.Parse("2006-01-02", c.StartDate); err != nil {
			return &ValidationError{Field: "start_date", Reason: "must be YYYY-MM-DD"}
		}
	}
	if c.EndDate != "" {
		if _, err := time.Parse("2006-01-02", c.EndDate); err != nil {
			return &ValidationError{Field: "end_date", Reason: "must be YYYY-MM-DD"}
		}
	}
	if c.LagDays < 0 {
		return &ValidationError{Field: "lag_days", Reason: "must be non-negative"}
	}
	if c.MaxAttempts < 1 {
		return &ValidationError{Field: "max_attempts", Reason: "must be at least 1"}
	}
	if c.InitialBackoff <= 0 {
		return &ValidationError{Field: "initial_backoff", Reason: "must be positive"}
	}
	if c.MaxBackoff < c.InitialBackoff {
		return &ValidationError{Field: "max_backoff", Reason: "must be >= initial_backoff"}
	}
	if c.BackoffMultiplier < 1 {
		return &ValidationError{Field: "backoff_multiplier", Reason: "must be >= 1"}
	}
	if c.PageSize < 1 || c.PageSize > 50 {
		return &ValidationError{Field: "page_size", Reason: "must be between 1 and 50"}
	}
	if c.ReconcileBatchSize < 1 {
		return &ValidationError{Field: "reconcile_batch_size", Reason: "must be at least 1"}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setList(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		var out []string
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true" || v == "1"
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
