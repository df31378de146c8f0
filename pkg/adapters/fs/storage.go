package fs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// TempFilePrefix marks in-progress writes. The watcher ignores these files.
const TempFilePrefix = "notely-tmp-"

// writeFileAtomic writes data next to filename and renames it into place,
// so readers see either the old file or the new one, never a partial write.
func writeFileAtomic(filename string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, TempFilePrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, filename); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", filename, err)
	}
	return nil
}

// sequence hands out monotonically increasing IDs per entity kind and
// persists the high-water marks in {systemDir}/sequence.json.
type sequence struct {
	path string

	mu       sync.Mutex
	counters map[string]int64
}

func newSequence(vaultPath, systemDir string) *sequence {
	return &sequence{
		path:     filepath.Join(vaultPath, systemDir, "sequence.json"),
		counters: make(map[string]int64),
	}
}

func (s *sequence) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read sequence: %w", err)
	}
	if err := json.Unmarshal(data, &s.counters); err != nil {
		return fmt.Errorf("corrupt sequence file %s: %w", s.path, err)
	}
	return nil
}

// observe raises the counter for kind to at least id. Used when records
// exist on disk that the sequence file does not know about.
func (s *sequence) observe(kind string, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id > s.counters[kind] {
		s.counters[kind] = id
	}
}

// next reserves and persists the next ID for kind.
func (s *sequence) next(kind string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[kind]++
	id := s.counters[kind]

	data, err := json.MarshalIndent(s.counters, "", "  ")
	if err != nil {
		return 0, err
	}
	if err := writeFileAtomic(s.path, data, 0644); err != nil {
		s.counters[kind]--
		return 0, err
	}
	return id, nil
}
