// Package orchestrator decides when sync passes run.
//
// The orchestrator owns no sync logic itself. It watches for the
// moments a pass is worth attempting (startup, coming back online, an
// explicit nudge from the CLI, a periodic tick) and drives the syncer
// through them, publishing its status to any listeners.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/inkwell-app/inkwell/internal/syncer"
)

// Status is the orchestrator's externally visible state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusSynced  Status = "synced"
	StatusError   Status = "error"
	StatusOffline Status = "offline"
)

// SyncRunner is the single sync pass the orchestrator schedules.
type SyncRunner interface {
	Run(ctx context.Context) (syncer.Result, error)
}

// Config holds orchestrator settings.
type Config struct {
	// Interval between periodic passes.
	Interval time.Duration

	// OnlinePollInterval is how often connectivity is re-checked while
	// looking for an offline-to-online transition.
	OnlinePollInterval time.Duration

	// TriggerFile, when set, is watched; touching it requests a pass.
	// The CLI touches it so a foreground `inkwell sync` nudges a
	// running daemon instead of racing it.
	TriggerFile string

	// Logger for scheduling activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval:           5 * time.Minute,
		OnlinePollInterval: 15 * time.Second,
		Logger:             log.New(os.Stderr, "[orchestrator] ", log.LstdFlags),
	}
}

// Orchestrator schedules sync passes.
type Orchestrator struct {
	runner SyncRunner
	online func() bool
	config *Config

	syncing  atomic.Bool
	triggers chan struct{}

	mu         sync.Mutex
	status     Status
	lastResult syncer.Result
	lastErr    error
	nextSub    int
	listeners  map[int]func(Status)

	wg sync.WaitGroup
}

// New creates an Orchestrator. online reports whether the remote store
// is reachable right now (in practice: whether a credential exists).
func New(runner SyncRunner, online func() bool, config *Config) *Orchestrator {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[orchestrator] ", log.LstdFlags)
	}
	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}
	if config.OnlinePollInterval <= 0 {
		config.OnlinePollInterval = 15 * time.Second
	}
	return &Orchestrator{
		runner:    runner,
		online:    online,
		config:    config,
		triggers:  make(chan struct{}, 1),
		status:    StatusIdle,
		listeners: make(map[int]func(Status)),
	}
}

// Status returns the current status.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// LastResult returns the most recent pass outcome.
func (o *Orchestrator) LastResult() (syncer.Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastResult, o.lastErr
}

// Subscribe registers a status listener and returns an id for
// Unsubscribe. Listeners are called synchronously on every transition,
// so they must be quick.
func (o *Orchestrator) Subscribe(fn func(Status)) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextSub++
	o.listeners[o.nextSub] = fn
	return o.nextSub
}

// Unsubscribe removes a listener.
func (o *Orchestrator) Unsubscribe(id int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.listeners, id)
}

func (o *Orchestrator) setStatus(s Status) {
	o.mu.Lock()
	if o.status == s {
		o.mu.Unlock()
		return
	}
	o.status = s
	fns := make([]func(Status), 0, len(o.listeners))
	for _, fn := range o.listeners {
		fns = append(fns, fn)
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// TriggerSync requests a pass. A request arriving while a pass is
// already running is dropped: that pass will drain whatever the
// request was about.
func (o *Orchestrator) TriggerSync() {
	if o.syncing.Load() {
		return
	}
	select {
	case o.triggers <- struct{}{}:
	default:
	}
}

// RunOnce performs one guarded pass. It is what every trigger funnels
// into, and is safe to call directly for a foreground sync.
func (o *Orchestrator) RunOnce(ctx context.Context) (syncer.Result, error) {
	if !o.syncing.CompareAndSwap(false, true) {
		return syncer.Result{}, nil
	}
	defer o.syncing.Store(false)

	if !o.online() {
		o.setStatus(StatusOffline)
		return syncer.Result{}, nil
	}

	o.setStatus(StatusSyncing)
	res, err := o.runner.Run(ctx)

	o.mu.Lock()
	o.lastResult = res
	o.lastErr = err
	o.mu.Unlock()

	switch {
	case err != nil:
		o.config.Logger.Printf("Sync pass failed: %v", err)
		o.setStatus(StatusError)
	case res.Failed > 0:
		o.config.Logger.Printf("Sync pass finished with failures: %d ok, %d failed",
			res.Processed, res.Failed)
		o.setStatus(StatusError)
	default:
		if res.Processed > 0 {
			o.config.Logger.Printf("Sync pass finished: %d delivered", res.Processed)
		}
		o.setStatus(StatusSynced)
	}
	return res, err
}

// Start runs the scheduling loops until ctx is cancelled. A pass is
// triggered immediately on startup.
func (o *Orchestrator) Start(ctx context.Context) error {
	var watcher *fsnotify.Watcher
	if o.config.TriggerFile != "" {
		var err error
		watcher, err = fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		// Watch the directory: the file itself may not exist yet, and
		// editors replace files rather than writing through them.
		dir := filepath.Dir(o.config.TriggerFile)
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		o.config.Logger.Printf("Watching trigger file: %s", o.config.TriggerFile)
	}

	o.wg.Add(2)
	go o.runLoop(ctx)
	go o.schedule(ctx)
	if watcher != nil {
		o.wg.Add(1)
		go o.watchTriggerFile(ctx, watcher)
	}

	o.TriggerSync()

	<-ctx.Done()
	if watcher != nil {
		watcher.Close()
	}
	o.wg.Wait()
	return nil
}

func (o *Orchestrator) runLoop(ctx context.Context) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.triggers:
			o.RunOnce(ctx)
		}
	}
}

// schedule drives the periodic ticker and watches for the machine
// coming back online.
func (o *Orchestrator) schedule(ctx context.Context) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.config.Interval)
	defer ticker.Stop()
	poll := time.NewTicker(o.config.OnlinePollInterval)
	defer poll.Stop()

	wasOnline := o.online()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.TriggerSync()
		case <-poll.C:
			nowOnline := o.online()
			if nowOnline && !wasOnline {
				o.config.Logger.Println("Back online, triggering sync")
				o.TriggerSync()
			}
			if !nowOnline {
				o.setStatus(StatusOffline)
			}
			wasOnline = nowOnline
		}
	}
}

func (o *Orchestrator) watchTriggerFile(ctx context.Context, watcher *fsnotify.Watcher) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Name != o.config.TriggerFile {
				continue
			}
			// Chmod covers timestamp-only touches, which is how the
			// CLI nudges an already-created trigger file.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Chmod) == 0 {
				continue
			}
			o.config.Logger.Println("Trigger file touched")
			o.TriggerSync()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			o.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}
