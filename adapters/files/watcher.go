package files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatcherConfig holds configuration for the schema file watcher
type WatcherConfig struct {
	Paths     []string `json:"paths" yaml:"paths"`
	Patterns  []string `json:"patterns" yaml:"patterns"`
	Events    []string `json:"events" yaml:"events"`
	Recursive bool     `json:"recursive" yaml:"recursive"`
}

// FileEvent is a change to a watched schema file
type FileEvent struct {
	Path      string
	Operation string
}

// Watcher reports changes to schema files
type Watcher struct {
	config  WatcherConfig
	watcher *fsnotify.Watcher
	logger  *zap.Logger
}

// NewWatcher creates a watcher; Run starts it
func NewWatcher(config WatcherConfig, logger *zap.Logger) (*Watcher, error) {
	if len(config.Paths) == 0 {
		return nil, fmt.Errorf("at least one path is required")
	}
	if len(config.Events) == 0 {
		config.Events = []string{"CREATE", "WRITE", "REMOVE", "RENAME"}
	}
	if len(config.Patterns) == 0 {
		config.Patterns = []string{"*.json", "*.yaml", "*.yml"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, path := range config.Paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("path does not exist: %s", path)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{config: config, watcher: watcher, logger: logger}

	for _, path := range config.Paths {
		if err := w.addPath(path); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("watching %s: %w", path, err)
		}
	}
	return w, nil
}

// Run calls onChange for every relevant event until ctx is done. Events
// are delivered one at a time from the calling goroutine.
func (w *Watcher) Run(ctx context.Context, onChange func(FileEvent)) error {
	defer w.watcher.Close()
	w.logger.Info("watching schema files", zap.Strings("paths", w.config.Paths))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Op&fsnotify.Create != 0 && w.config.Recursive {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addPath(event.Name); err != nil {
						w.logger.Warn("failed to watch new directory", zap.String("path", event.Name), zap.Error(err))
					}
					continue
				}
			}
			if !w.shouldProcessEvent(event) {
				continue
			}
			onChange(FileEvent{Path: event.Name, Operation: operationName(event.Op)})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) addPath(path string) error {
	if !w.config.Recursive {
		return w.watcher.Add(path)
	}
	return filepath.Walk(path, func(walkPath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.watcher.Add(walkPath)
		}
		return nil
	})
}

func (w *Watcher) shouldProcessEvent(event fsnotify.Event) bool {
	operation := operationName(event.Op)
	enabled := false
	for _, op := range w.config.Events {
		if strings.EqualFold(op, operation) {
			enabled = true
			break
		}
	}
	return enabled && matchesAny(w.config.Patterns, event.Name)
}

func operationName(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create != 0:
		return "CREATE"
	case op&fsnotify.Write != 0:
		return "WRITE"
	case op&fsnotify.Remove != 0:
		return "REMOVE"
	case op&fsnotify.Rename != 0:
		return "RENAME"
	case op&fsnotify.Chmod != 0:
		return "CHMOD"
	default:
		return "UNKNOWN"
	}
}
