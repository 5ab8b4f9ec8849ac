package store

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/nikbrunner/bmtree/internal/model"
)

const jsonFileVersion = 1

// fileData is the on-disk layout of a JSONFile store.
type fileData struct {
	Version int          `json:"version"`
	Roots   []model.Node `json:"roots"`
}

// JSONFile is a Memory store persisted to a JSON file after every mutation.
type JSONFile struct {
	*Memory
	path string
	log  logrus.FieldLogger

	mu       sync.Mutex
	lastHash [sha256.Size]byte
}

// JSONOption configures a JSONFile store.
type JSONOption func(*JSONFile)

// WithJSONLogger sets the logger used by Watch.
func WithJSONLogger(log logrus.FieldLogger) JSONOption {
	return func(s *JSONFile) { s.log = log }
}

// OpenJSONFile loads the store from path.
// A missing file yields a store with only the fixed roots.
func OpenJSONFile(path string, opts ...JSONOption) (*JSONFile, error) {
	s := &JSONFile{path: path, log: discardLogger()}
	for _, opt := range opts {
		opt(s)
	}

	roots, err := s.read()
	if err != nil {
		return nil, err
	}

	mem, err := NewMemoryFrom(roots)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	mem.commit = s.save
	s.Memory = mem
	return s, nil
}

// Path returns the storage file path.
func (s *JSONFile) Path() string {
	return s.path
}

func (s *JSONFile) read() ([]model.Node, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultRoots(), nil
		}
		return nil, err
	}

	s.mu.Lock()
	s.lastHash = sha256.Sum256(data)
	s.mu.Unlock()

	var file fileData
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if len(file.Roots) == 0 {
		return DefaultRoots(), nil
	}
	return file.Roots, nil
}

// save writes the forest to the JSON file.
// Creates the directory if it doesn't exist.
func (s *JSONFile) save(roots []model.Node) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(fileData{Version: jsonFileVersion, Roots: roots}, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Write via rename so a watcher in another process never sees half a file.
	tmp, err := os.CreateTemp(dir, ".bookmarks-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	s.lastHash = sha256.Sum256(data)
	return nil
}

// Watch reloads the store whenever another process rewrites the file and
// publishes an EventChanged without a parent, asking subscribers for a full
// reload. It blocks until ctx is done.
func (s *JSONFile) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors and our own save replace the file.
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	name := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := s.reload(); err != nil {
				s.log.WithError(err).WithField("path", s.path).Warn("reload bookmarks file")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.WithError(err).Warn("file watcher")
		}
	}
}

// reload re-reads the file if its content differs from what was last read
// or written by this process.
func (s *JSONFile) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	hash := sha256.Sum256(data)
	s.mu.Lock()
	unchanged := hash == s.lastHash
	s.mu.Unlock()
	if unchanged {
		return nil
	}

	roots, err := s.read()
	if err != nil {
		return err
	}
	if err := s.Memory.replaceAll(roots); err != nil {
		return err
	}

	s.log.WithField("path", s.path).Debug("bookmarks file changed on disk")
	s.Memory.events.publish(model.ChangeEvent{Kind: model.EventChanged})
	return nil
}

func discardLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
