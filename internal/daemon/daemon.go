package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"
	"log/slog"

	"claimscan/internal/attempts"
	"claimscan/internal/camera"
	"claimscan/internal/config"
	"claimscan/internal/deps"
	"claimscan/internal/logging"
	"claimscan/internal/preflight"
	"claimscan/internal/scanner"
)

// Daemon coordinates the scanner services and enforces single-instance execution.
type Daemon struct {
	cfg         *config.Config
	logger      *slog.Logger
	store       *attempts.Store
	coordinator *scanner.Coordinator
	cam         *camera.Manager

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	api     *apiServer
	hotplug *hotplugMonitor
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	Scanner        scanner.Status
	AttemptStats   map[attempts.Status]int
	AttemptsDBPath string
	LockFilePath   string
	Dependencies   []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *attempts.Store, coordinator *scanner.Coordinator, cam *camera.Manager, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || coordinator == nil || cam == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, coordinator, camera manager, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "claimscand.lock")
	d := &Daemon{
		cfg:         cfg,
		logger:      logger,
		store:       store,
		coordinator: coordinator,
		cam:         cam,
		lockPath:    lockPath,
		lock:        flock.New(lockPath),
	}

	server, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = server
	d.hotplug = newHotplugMonitor(logger)
	return d, nil
}

// Start acquires the daemon lock and launches the API server and hotplug monitor.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another claimscan daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	if err := d.api.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}
	if err := d.hotplug.Start(d.ctx); err != nil {
		d.logger.Warn("hotplug monitor unavailable", logging.Error(err))
	}

	d.running.Store(true)
	d.logger.Info("claimscan daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop closes the scanner, stops background services, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.coordinator.Close()
	d.hotplug.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("claimscan daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stopped"),
	)
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the daemon has been started.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status summarizes daemon runtime state for the API and CLI.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		Scanner:        d.coordinator.Status(),
		AttemptsDBPath: d.store.Path(),
		LockFilePath:   d.lockPath,
		Dependencies:   preflight.CheckSystemDeps(d.cfg),
	}
	if stats, err := d.store.Stats(ctx); err == nil {
		status.AttemptStats = stats
	}
	return status
}
