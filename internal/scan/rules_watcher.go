package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"resumeguard/internal/errors"

	"github.com/fsnotify/fsnotify"
)

// RulesWatcher watches the detection rules file and triggers a reload when it changes
type RulesWatcher struct {
	mu sync.RWMutex

	file        string
	lastModTime time.Time

	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	debounceTimer *time.Timer

	stopChan   chan struct{}
	reloadChan chan struct{}

	reloadCallback func()
	logger         *errors.Logger

	running bool
}

// NewRulesWatcher creates a watcher for a single rules file
func NewRulesWatcher(file string, debounceDelay time.Duration, reloadCallback func(), logger *errors.Logger) *RulesWatcher {
	if debounceDelay == 0 {
		debounceDelay = time.Second
	}
	if logger == nil {
		logger = errors.Discard()
	}

	return &RulesWatcher{
		file:           file,
		debounceDelay:  debounceDelay,
		stopChan:       make(chan struct{}),
		reloadChan:     make(chan struct{}, 1),
		reloadCallback: reloadCallback,
		logger:         logger,
	}
}

// Start begins watching the rules file
func (rw *RulesWatcher) Start() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.running {
		return fmt.Errorf("rules watcher is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	rw.fsWatcher = watcher

	if stat, err := os.Stat(rw.file); err == nil {
		rw.lastModTime = stat.ModTime()
	}

	// Editors and config management replace files by rename, so watch the directory
	dir := filepath.Dir(rw.file)
	if err := rw.fsWatcher.Add(dir); err != nil {
		if closeErr := rw.fsWatcher.Close(); closeErr != nil {
			rw.logger.LogError(closeErr, "Failed to close file watcher during cleanup")
		}
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	rw.running = true
	go rw.watchLoop()

	rw.logger.Info("Rules file watcher started",
		"file", rw.file,
		"debounce_delay", rw.debounceDelay)
	return nil
}

// Stop stops the rules file watcher
func (rw *RulesWatcher) Stop() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if !rw.running {
		return nil
	}

	close(rw.stopChan)
	if rw.debounceTimer != nil {
		rw.debounceTimer.Stop()
	}
	rw.running = false

	if err := rw.fsWatcher.Close(); err != nil {
		rw.logger.LogError(err, "Failed to close file system watcher")
		return err
	}

	rw.logger.Info("Rules file watcher stopped")
	return nil
}

// IsRunning returns whether the watcher is currently running
func (rw *RulesWatcher) IsRunning() bool {
	rw.mu.RLock()
	defer rw.mu.RUnlock()
	return rw.running
}

func (rw *RulesWatcher) watchLoop() {
	for {
		select {
		case event, ok := <-rw.fsWatcher.Events:
			if !ok {
				return
			}
			if rw.shouldProcessEvent(event) {
				rw.scheduleReload()
			}

		case err, ok := <-rw.fsWatcher.Errors:
			if !ok {
				return
			}
			rw.logger.LogError(err, "File watcher error")

		case <-rw.reloadChan:
			if rw.hasFileChanged() {
				rw.logger.Info("Rules file changed, triggering reload", "file", rw.file)
				rw.reloadCallback()
			}

		case <-rw.stopChan:
			return
		}
	}
}

// shouldProcessEvent reports whether event touches the rules file
func (rw *RulesWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(rw.file) &&
		filepath.Base(event.Name) != filepath.Base(rw.file) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// hasFileChanged compares the modification time against the last reload
func (rw *RulesWatcher) hasFileChanged() bool {
	stat, err := os.Stat(rw.file)
	if err != nil {
		return false
	}

	rw.mu.Lock()
	defer rw.mu.Unlock()
	if stat.ModTime().Equal(rw.lastModTime) {
		return false
	}
	rw.lastModTime = stat.ModTime()
	return true
}

func (rw *RulesWatcher) scheduleReload() {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.debounceTimer != nil {
		rw.debounceTimer.Stop()
	}

	rw.debounceTimer = time.AfterFunc(rw.debounceDelay, func() {
		select {
		case rw.reloadChan <- struct{}{}:
		default:
		}
	})
}
