package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads Config from configPath whenever the file changes on
// disk, handing the new value to every registered callback. Callbacks run
// synchronously on the watcher goroutine; they should not block.
type Watcher struct {
	configPath string
	watcher    *fsnotify.Watcher
	mu         sync.Mutex
	callbacks  []func(*Config)
	stopCh     chan struct{}
}

// NewWatcher creates a Watcher for configPath. If configPath is empty, the
// returned Watcher is a no-op: Start/Stop succeed but nothing ever fires.
func NewWatcher(configPath string) (*Watcher, error) {
	if configPath == "" {
		return &Watcher{stopCh: make(chan struct{})}, nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(configPath); err != nil {
		fw.Close()
		return nil, err
	}

	return &Watcher{
		configPath: configPath,
		watcher:    fw,
		stopCh:     make(chan struct{}),
	}, nil
}

// OnReload registers a callback invoked with the freshly loaded config
// after each detected change.
func (w *Watcher) OnReload(cb func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Start begins watching in a background goroutine. Safe to call on a
// no-op Watcher (returns immediately, nothing to watch).
func (w *Watcher) Start() {
	if w.watcher == nil {
		return
	}
	go w.loop()
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := LoadConfig(w.configPath)
			if err != nil {
				continue
			}
			w.mu.Lock()
			cbs := append([]func(*Config){}, w.callbacks...)
			w.mu.Unlock()
			for _, cb := range cbs {
				cb(cfg)
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		case <-w.stopCh:
			return
		}
	}
}

// Stop shuts down the watcher goroutine and releases the underlying
// filesystem watch.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	if w.watcher == nil {
		return nil
	}
	return w.watcher.Close()
}
