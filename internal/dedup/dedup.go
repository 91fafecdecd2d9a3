package dedup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// Store persists the set of candidate ids that were already notified.
// The file is a JSON array of strings, rewritten whole on every Save.
// There is no locking here; callers serialize runs.
type Store struct {
	filePath string
}

func NewStore(filePath string) *Store {
	return &Store{filePath: filePath}
}

func (s *Store) Path() string { return s.filePath }

// NewSet returns an empty seen-set.
func NewSet(ids ...string) mapset.Set[string] {
	return mapset.NewThreadUnsafeSet(ids...)
}

// Load reads the seen-set. A missing file yields an empty set.
func (s *Store) Load() (mapset.Set[string], error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewSet(), nil
		}
		return nil, fmt.Errorf("read %s: %w", s.filePath, err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.filePath, err)
	}
	return NewSet(ids...), nil
}

// Save overwrites the file with the full set, sorted. The file is replaced by rename.
func (s *Store) Save(seen mapset.Set[string]) error {
	ids := seen.ToSlice()
	sort.Strings(ids)

	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal seen ids: %w", err)
	}

	if dir := filepath.Dir(s.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.filePath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", s.filePath, err)
	}
	return nil
}
