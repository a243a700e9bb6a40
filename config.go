package authkit

import (
	"errors"
	"strings"
	"time"

	"github.com/fynlo/authkit/permissions"
)

// Config defines the client's tunable behavior. Configure it before
// [Builder.Build]; the built client treats it as immutable.
type Config struct {
	API         APIConfig
	Permissions PermissionsConfig
	Events      EventsConfig
	Metrics     MetricsConfig
	Security    SecurityConfig
}

// APIConfig locates the auth backend.
type APIConfig struct {
	// BaseURL is the backend root, e.g. "https://api.example.com".
	BaseURL string
	// Timeout bounds each request when no custom http.Client is supplied.
	Timeout time.Duration
}

// PermissionsConfig tunes the permission cache.
type PermissionsConfig struct {
	// CacheTTL is how long a fetched permission set counts as fresh.
	CacheTTL time.Duration
	// SnapshotKey is the store key the last-known-good set persists under.
	SnapshotKey string
}

// EventsConfig tunes the event bus.
type EventsConfig struct {
	// BufferSize is each subscriber's channel capacity. Events beyond it
	// are dropped and counted, never blocking the publisher.
	BufferSize int
}

// MetricsConfig enables the counter registry.
type MetricsConfig struct {
	Enabled bool
}

// SecurityConfig tunes challenge handling.
type SecurityConfig struct {
	// QuestionCount is how many security questions the side-channel fetch
	// requests when a step-up response carries none.
	QuestionCount int
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			Timeout: 15 * time.Second,
		},
		Permissions: PermissionsConfig{
			CacheTTL:    permissions.DefaultTTL,
			SnapshotKey: permissions.DefaultSnapshotKey,
		},
		Events: EventsConfig{
			BufferSize: 16,
		},
		Security: SecurityConfig{
			QuestionCount: 3,
		},
	}
}

func cloneConfig(cfg Config) Config {
	// All fields are value types; a shallow copy is a full copy.
	return cfg
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.API.BaseURL) == "" {
		return errors.New("API.BaseURL is required")
	}
	if cfg.API.Timeout < 0 || cfg.API.Timeout > 5*time.Minute {
		return errors.New("invalid API.Timeout")
	}
	if cfg.Permissions.CacheTTL < 0 {
		return errors.New("invalid Permissions.CacheTTL")
	}
	if cfg.Events.BufferSize < 0 {
		return errors.New("invalid Events.BufferSize")
	}
	if cfg.Security.QuestionCount < 0 {
		return errors.New("invalid Security.QuestionCount")
	}
	return nil
}
