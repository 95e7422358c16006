package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"marsad/internal/audit"
	"marsad/internal/config"
	"marsad/internal/findings"
	"marsad/internal/logging"
)

// Daemon coordinates the audit runner and HTTP control surface and enforces
// single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *findings.Store
	runner *audit.Runner
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *findings.Store, runner *audit.Runner, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || runner == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, runner, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "marsadd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		runner:   runner,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = srv
	return d, nil
}

// Start acquires the daemon lock and begins serving the control surface.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another marsad daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	d.logger.Info("marsad daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts down the control surface, waits for any in-flight audit run to
// observe cancellation, and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.runner.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("marsad daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// StartAudit triggers a new audit run on the daemon's root context so the
// run outlives the HTTP request that asked for it.
func (d *Daemon) StartAudit() (*findings.Run, error) {
	ctx := d.ctx
	if ctx == nil {
		return nil, errors.New("daemon not running")
	}
	return d.runner.Start(ctx)
}

// StorePath returns the findings database location.
func (d *Daemon) StorePath() string {
	return d.store.Path()
}
