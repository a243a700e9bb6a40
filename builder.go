package authkit

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/fynlo/authkit/internal/backend"
	"github.com/fynlo/authkit/permissions"
	"github.com/fynlo/authkit/store"
)

// Builder assembles a [Client]. Construction is allocation-only; no I/O
// happens until [Client.Initialize].
type Builder struct {
	config     Config
	httpClient *http.Client
	secure     store.Store
	legacy     store.Store
	idents     store.Store
	logger     *slog.Logger
	sink       func(Event)
	built      bool
}

// New starts a Builder with default configuration.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL sets the backend root URL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.API.BaseURL = baseURL
	return b
}

// WithHTTPClient overrides the default HTTP client (and its timeout).
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithCredentialStore sets the secure store holding the session token.
// Required.
func (b *Builder) WithCredentialStore(s store.Store) *Builder {
	b.secure = s
	return b
}

// WithLegacyStore sets an old plaintext store to migrate the token out of on
// first Initialize. Optional.
func (b *Builder) WithLegacyStore(s store.Store) *Builder {
	b.legacy = s
	return b
}

// WithIdentifierStore sets the lightweight store for non-secret identifiers
// (user id, device id, push token). Defaults to the credential store.
func (b *Builder) WithIdentifierStore(s store.Store) *Builder {
	b.idents = s
	return b
}

// WithLogger sets the structured logger. Defaults to discard.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithEventSink registers fn to receive every published event, for callers
// that want a single callback instead of managing a [Subscription]. The sink
// runs on its own goroutine; a slow sink loses events rather than blocking
// publishers.
func (b *Builder) WithEventSink(fn func(Event)) *Builder {
	b.sink = fn
	return b
}

// WithMetricsEnabled toggles the counter registry.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and assembles the Client. A Builder can
// build at most once.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}
	b.built = true

	if err := validateConfig(b.config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if b.secure == nil {
		return nil, fmt.Errorf("invalid config: credential store is required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	idents := b.idents
	if idents == nil {
		idents = b.secure
	}
	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: b.config.API.Timeout}
	}

	c := &Client{
		cfg:     b.config,
		api:     backend.NewClient(b.config.API.BaseURL, httpClient, logger),
		secure:  b.secure,
		legacy:  b.legacy,
		idents:  idents,
		bus:     newBus(b.config.Events.BufferSize),
		metrics: NewMetrics(b.config.Metrics.Enabled),
		logger:  logger,
	}

	perms, err := permissions.NewCache(c.fetchPermissionNames, permissions.CacheConfig{
		TTL:         b.config.Permissions.CacheTTL,
		Snapshot:    idents,
		SnapshotKey: b.config.Permissions.SnapshotKey,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	c.perms = perms

	if b.sink != nil {
		sub := c.bus.Subscribe()
		go func(fn func(Event)) {
			for ev := range sub.Events() {
				fn(ev)
			}
		}(b.sink)
	}

	return c, nil
}
