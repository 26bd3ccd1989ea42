package templates

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// templateFile is the YAML shape of an external template overlay.
type templateFile struct {
	Templates []*Template `yaml:"templates"`
}

// LoadFile overlays template definitions from a YAML file onto the registry.
// Entries replace built-ins with the same name; new names are added to the
// allowlist. A missing file is not an error so deployments without an
// overlay run on the built-ins alone.
func LoadFile(registry *Registry, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read template file: %w", err)
	}

	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse template file %s: %w", path, err)
	}

	for _, t := range file.Templates {
		if t.Name == "" {
			return fmt.Errorf("template file %s: template with empty name", path)
		}
		if t.Query == "" {
			return fmt.Errorf("template file %s: template %q has no query", path, t.Name)
		}
		for _, p := range t.Params {
			switch p.Type {
			case ParamString, ParamStringList, ParamInt:
			default:
				return fmt.Errorf("template file %s: template %q param %q has unknown type %q",
					path, t.Name, p.Name, p.Type)
			}
		}
	}

	registry.merge(file.Templates)
	return nil
}

// Watcher reloads a template overlay file when it changes on disk.
type Watcher struct {
	registry *Registry
	path     string
	fsw      *fsnotify.Watcher
	logger   *slog.Logger
	done     chan struct{}
}

// NewWatcher starts watching the overlay file's directory. Watching the
// directory instead of the file survives editors that replace the file by
// rename.
func NewWatcher(registry *Registry, path string, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{
		registry: registry,
		path:     path,
		fsw:      fsw,
		logger:   logger.With("component", "templates"),
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := LoadFile(w.registry, w.path); err != nil {
				w.logger.Warn("template reload failed, keeping previous definitions",
					"path", w.path, "error", err)
				continue
			}
			w.logger.Info("reloaded template definitions", "path", w.path)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("template watcher error", "error", err)
		}
	}
}
