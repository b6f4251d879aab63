package operations

import (
	"fmt"

	"github.com/acwea904/qlback/internal/archive"
	"github.com/acwea904/qlback/internal/config"
	"github.com/acwea904/qlback/internal/logger"
	"github.com/acwea904/qlback/internal/notify"
	"github.com/acwea904/qlback/internal/retention"
	"github.com/acwea904/qlback/internal/webdav"
)

// Manager wires the snapshot, storage, retention and notification pieces
// of the pipeline together.
type Manager struct {
	cfg      config.Config
	builder  *archive.Builder
	store    *webdav.Client
	retain   *retention.Manager
	reporter *notify.Reporter
	log      logger.Logger
}

// NewManager loads, parses, and validates the YAML config at configPath,
// then builds the pipeline around it.
func NewManager(configPath string) (*Manager, error) {
	var cfg config.Config
	if err := cfg.Load(configPath); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewManagerWithConfig(cfg)
}

// NewManagerWithConfig builds the pipeline from an already validated
// configuration.
func NewManagerWithConfig(cfg config.Config) (*Manager, error) {
	log := logger.Global()

	store, err := webdav.New(cfg.Storage.URL, log,
		webdav.WithCredentials(cfg.Storage.Username, cfg.Storage.Password),
		webdav.WithTimeout(cfg.Storage.Timeout),
		webdav.WithRetryMax(cfg.Storage.RetryMax),
	)
	if err != nil {
		return nil, fmt.Errorf("storage client init: %w", err)
	}

	reporter := notify.NewReporter(notify.Config{
		BotToken: cfg.Telegram.BotToken,
		ChatID:   cfg.Telegram.ChatID,
		APIBase:  cfg.Telegram.APIBase,
		Timeout:  cfg.Telegram.Timeout,
	}, log)

	return &Manager{
		cfg:      cfg,
		builder:  archive.NewBuilder(log),
		store:    store,
		retain:   retention.NewManager(store, log),
		reporter: reporter,
		log:      log,
	}, nil
}

// KeepLast exposes the configured retention size, for display.
func (m *Manager) KeepLast() int {
	return m.cfg.Retention.KeepLast
}
