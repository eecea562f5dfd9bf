package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ajaxzhan/simos/internal/config"
	"github.com/ajaxzhan/simos/internal/logging"
	"github.com/ajaxzhan/simos/internal/metrics"
	"github.com/ajaxzhan/simos/internal/persist"
	"github.com/ajaxzhan/simos/internal/shell"
	"github.com/ajaxzhan/simos/internal/system"
	"github.com/ajaxzhan/simos/pkg/types"
)

// machine is a booted system together with the services around it.
type machine struct {
	cfg     *config.Config
	sys     *system.System
	store   persist.Store
	saver   *persist.Saver
	metrics *metrics.Metrics
	server  *http.Server
}

// boot loads configuration, restores the saved state and starts the
// metrics endpoint when one is configured. Notifications are written to
// notices.
func boot(ctx context.Context, notices io.Writer) (*machine, error) {
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	if err := logging.Init(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}

	m := &machine{cfg: cfg}

	var registry *prometheus.Registry
	if cfg.Metrics.Addr != "" {
		registry = prometheus.NewRegistry()
		m.metrics = metrics.New(registry)
	}

	m.store, err = persist.OpenStore(cfg.Storage.Type, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Type, err)
	}
	m.saver = persist.NewSaver(m.store, cfg.Storage.Key, cfg.Storage.GetSaveDebounce())

	snap, err := persist.Load(ctx, m.store, cfg.Storage.Key)
	if err != nil {
		logging.Error("Saved state could not be decoded", logging.String("key", cfg.Storage.Key), logging.Err(err))
		// An undecodable snapshot is damaged like an invalid one.
		snap = &system.Snapshot{}
	}

	m.sys, err = system.Restore(snap, system.Options{
		RootPassword: cfg.System.RootPassword,
		Aliases:      cfg.System.Aliases,
		Base:         shell.BaseOptions(cfg.System.Hostname, cfg.System.Apps),
		Notifier: system.NotifierFunc(func(n types.Notification) {
			fmt.Fprintf(notices, "\n[%s] %s\n", n.Title, n.Message)
		}),
		Metrics:  m.metrics,
		OnChange: m.saver.Schedule,
	})
	if err != nil {
		_ = m.store.Close()
		return nil, fmt.Errorf("restore system: %w", err)
	}

	logging.Info("System booted",
		logging.String("hostname", m.sys.Hostname()),
		logging.String("storage", cfg.Storage.Type),
		logging.Bool("safe_mode", m.sys.ReadOnly()),
		logging.Bool("restored", snap != nil && !m.sys.ReadOnly()),
	)

	if registry != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(registry))
		m.server = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logging.Info("Metrics endpoint listening", logging.String("addr", cfg.Metrics.Addr))
			if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics endpoint failed", logging.Err(err))
			}
		}()
	}
	return m, nil
}

// terminalOptions returns the shell options derived from configuration.
func (m *machine) terminalOptions(launcher shell.AppLauncher) shell.Options {
	return shell.Options{
		Path:     m.cfg.System.Path,
		Term:     m.cfg.System.Term,
		Launcher: launcher,
		Metrics:  m.metrics,
	}
}

// shutdown flushes pending state and releases resources.
func (m *machine) shutdown(ctx context.Context) {
	if m.server != nil {
		if err := m.server.Shutdown(ctx); err != nil {
			logging.Warn("Failed to stop metrics endpoint", logging.Err(err))
		}
	}
	if err := m.saver.Close(ctx); err != nil {
		logging.Warn("Failed to persist final state", logging.Err(err))
	}
	if err := m.store.Close(); err != nil {
		logging.Warn("Failed to close store", logging.Err(err))
	}
	logging.Info("System shut down")
}
