package persist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mikey-austin/loop_utopia/internal/metrics"
)

// File stores a single key as a file under a root directory.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile creates a file-backed port for key under root.
func NewFile(root string, key string) (*File, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage path required")
	}
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("storage key required")
	}
	return &File{path: filepath.Join(root, safeFilename(key)+".json")}, nil
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// Load implements playlist.Port.
func (f *File) Load() (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	start := time.Now()
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		observe("file", "load", start, nil)
		return "", false, nil
	}
	observe("file", "load", start, err)
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

// Save implements playlist.Port. Writes go to a temp file renamed into place.
func (f *File) Save(data string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	start := time.Now()
	err := f.write(data)
	observe("file", "save", start, err)
	return err
}

func (f *File) write(data string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.tmp.%d", f.path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, []byte(data), 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func safeFilename(id string) string {
	replacer := strings.NewReplacer(":", "_", "/", "_", "\\", "_", " ", "_")
	return replacer.Replace(id)
}

func observe(backend string, op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.PersistenceOps.WithLabelValues(backend, op, status).Inc()
	metrics.PersistenceDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}
