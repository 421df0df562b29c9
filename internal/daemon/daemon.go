// Package daemon runs the mirror sync on a schedule.
//
// The daemon:
// 1. Runs a full sync on startup
// 2. Repeats it at a fixed interval
// 3. Watches a trigger file so operators can force an immediate run
// 4. Handles graceful shutdown
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mirrorkit/hubmirror/internal/pipeline"
)

// Runner executes a single sync run. Satisfied by *pipeline.Orchestrator.
type Runner interface {
	Run(ctx context.Context) (*pipeline.Summary, error)
}

// Config holds configuration for the daemon.
type Config struct {
	// Interval is how often to run a scheduled sync.
	Interval time.Duration

	// TriggerFile is a path whose creation forces an immediate sync.
	// The file is removed once the run is queued. Empty disables the watch.
	TriggerFile string

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval: 15 * time.Minute,
		Logger:   log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon schedules sync runs and reacts to manual triggers.
type Daemon struct {
	runner Runner
	config *Config

	watcher *fsnotify.Watcher
	trigger chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Daemon instance. Use Start() to begin the schedule.
func New(runner Runner, config *Config) (*Daemon, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive")
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		runner:  runner,
		config:  config,
		trigger: make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start begins the daemon's operation.
//
// The daemon will:
// 1. Perform an initial sync
// 2. Re-run on every interval tick
// 3. Run immediately when the trigger file appears
//
// This blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	if d.config.TriggerFile != "" {
		if err := d.watchTriggerFile(); err != nil {
			return err
		}
	}

	d.wg.Add(1)
	go d.runLoop()

	// Wait for shutdown
	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()

	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			d.config.Logger.Printf("Error closing watcher: %v", err)
		}
	}

	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// Trigger queues an immediate sync run. Safe to call from any goroutine;
// a run already queued absorbs further triggers.
func (d *Daemon) Trigger() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

// watchTriggerFile watches the trigger file's directory, since the file
// itself does not exist between triggers.
func (d *Daemon) watchTriggerFile() error {
	dir := filepath.Dir(d.config.TriggerFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create trigger directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch trigger directory: %w", err)
	}
	d.watcher = watcher

	d.config.Logger.Printf("Watching trigger file: %s", d.config.TriggerFile)

	d.wg.Add(1)
	go d.watchFileEvents()
	return nil
}

// watchFileEvents monitors filesystem events and queues triggered runs.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}

			// Only care about Create and Write on the trigger file itself
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(d.config.TriggerFile) {
				continue
			}

			d.config.Logger.Printf("Trigger file detected: %s", event.Name)
			if err := os.Remove(d.config.TriggerFile); err != nil && !os.IsNotExist(err) {
				d.config.Logger.Printf("Warning: failed to remove trigger file: %v", err)
			}
			d.Trigger()

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// runLoop performs the initial sync, then runs on every tick or trigger.
func (d *Daemon) runLoop() {
	defer d.wg.Done()

	d.runOnce()

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.runOnce()

		case <-d.trigger:
			d.runOnce()
		}
	}
}

// runOnce executes a single sync run. An already-running sync is not an
// error; the in-flight run covers this tick.
func (d *Daemon) runOnce() {
	summary, err := d.runner.Run(d.ctx)
	if err != nil {
		if errors.Is(err, pipeline.ErrSyncInProgress) {
			d.config.Logger.Println("Sync already running, skipping")
			return
		}
		d.config.Logger.Printf("Sync failed: %v", err)
		return
	}

	d.config.Logger.Printf("Sync complete: %d companies, %d contacts",
		summary.CompaniesSynced, summary.ContactsSynced)
}
