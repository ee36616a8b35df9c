// Package artifacts persists finished build outputs and serves them over
// HTTP with range support for playback.
package artifacts

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
)

type Store struct {
	dir    string
	logger *slog.Logger
}

func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create artifacts dir: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Save writes a finished artifact under the build's ID and returns its path.
// An existing artifact for the same build is overwritten.
func (s *Store) Save(buildID string, data []byte) (string, error) {
	path := filepath.Join(s.dir, buildID+".mp4")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("cannot write artifact: %w", err)
	}
	return path, nil
}

// Remove deletes a build's stored artifact. Absence is not an error.
func (s *Store) Remove(buildID string) error {
	err := os.Remove(filepath.Join(s.dir, buildID+".mp4"))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ServeFile streams an artifact with Range request support. Artifacts are
// regular files, so http.ServeContent handles range parsing and headers.
func (s *Store) ServeFile(w http.ResponseWriter, r *http.Request, path, mediaType string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "artifact not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat artifact: %w", err)
	}

	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mediaType)

	http.ServeContent(w, r, filepath.Base(path), stat.ModTime(), file)
	return nil
}
