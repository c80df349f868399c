package policy

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/zeebo/blake3"
)

// layerFiles maps layer names to their file within the layers directory.
var layerFiles = map[string]string{
	LayerBrain:  "brain.md",
	LayerAgent:  "agent.md",
	LayerHooks:  "hooks.md",
	LayerTask:   "task.md",
	LayerSkills: "skills.md",
}

// Layer is the loaded content of one policy layer.
type Layer struct {
	Name    string
	Content string
	Digest  string
}

// Store holds policy layer content read from a directory.
// A missing directory or file is an empty layer, not an error.
type Store struct {
	dir    string
	logger *slog.Logger

	mu     sync.RWMutex
	layers map[string]Layer
}

// NewStore loads every known layer from dir.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{dir: dir, logger: logger, layers: map[string]Layer{}}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the layers directory.
func (s *Store) Dir() string {
	return s.dir
}

// Reload re-reads all layer files.
func (s *Store) Reload() error {
	layers := make(map[string]Layer, len(layerFiles))
	for name, file := range layerFiles {
		if s.dir == "" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, file))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("read layer %s: %w", name, err)
		}
		content := strings.TrimSpace(string(data))
		if content == "" {
			continue
		}
		layers[name] = Layer{Name: name, Content: content, Digest: digest(content)}
	}

	s.mu.Lock()
	s.layers = layers
	s.mu.Unlock()
	return nil
}

// Layer returns the named layer. ok is false when it has no content.
func (s *Store) Layer(name string) (Layer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.layers[name]
	return l, ok
}

// Watch reloads the store whenever a file in the layers directory changes.
// It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	if s.dir == "" {
		<-ctx.Done()
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(s.dir); err != nil {
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}
	s.logger.Info("watching policy layers", "dir", s.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isLayerFile(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := s.Reload(); err != nil {
				s.logger.Warn("policy layer reload failed", "error", err)
				continue
			}
			s.logger.Debug("policy layers reloaded", "trigger", filepath.Base(event.Name))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("policy watcher error", "error", err)
		}
	}
}

func isLayerFile(path string) bool {
	base := filepath.Base(path)
	for _, file := range layerFiles {
		if base == file {
			return true
		}
	}
	return false
}

func digest(content string) string {
	sum := blake3.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
