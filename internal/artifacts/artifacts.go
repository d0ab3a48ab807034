// Package artifacts stores binary payloads captured from devices,
// such as screenshots, under a per-run directory.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/openskills/skillbridge/internal/logging"
)

// Store writes artifacts into a single directory.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir. The directory is created on
// first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the artifact directory.
func (s *Store) Dir() string {
	return s.dir
}

// SavePNG writes PNG data under a unique name and returns its path.
// The name carries a timestamp for sortability and a UUID suffix so
// concurrent captures never collide.
func (s *Store) SavePNG(prefix string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", fmt.Errorf("create artifacts dir: %w", err)
	}

	name := fmt.Sprintf("%s-%s-%s.png",
		prefix,
		time.Now().UTC().Format("20060102-150405"),
		uuid.NewString()[:8])
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	logging.Debug("artifact saved", logging.Path(path), logging.Count(len(data)))
	return path, nil
}
