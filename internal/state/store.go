package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bmad-assist/bmad-assist-go/internal/paths"
)

// Store manages .bmad-assist/state.yaml: atomic temp-file+rename writes,
// a single in-process mutex serializing concurrent access, and a
// monotonically increasing UpdatedAt on every save.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore returns a Store bound to the state file under paths.
func NewStore(p *paths.Paths) *Store {
	return &Store{path: p.StateFile()}
}

// NewStoreAt returns a Store bound to an explicit file path, bypassing
// Paths. Used by tests.
func NewStoreAt(path string) *Store {
	return &Store{path: path}
}

// Load reads the state file. A missing file returns (nil, nil): the caller
// is expected to call New and Save to initialize it.
func (s *Store) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (*State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading state file %q: %w", s.path, err)
	}

	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parsing state file %q: %w", s.path, err)
	}
	return &st, nil
}

// Save writes st atomically: a temp file in the same directory, fsync,
// close, then rename over the destination. On any failure the temp file is
// removed and the previous state is left untouched.
//
// Save stamps UpdatedAt to now and enforces the monotonic-non-decreasing
// invariant: if st.UpdatedAt (from a stale caller) is already later than
// now, the later value is kept rather than rewound.
func (s *Store) Save(st *State, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now = now.UTC()
	if st.UpdatedAt.After(now) {
		now = st.UpdatedAt
	}
	st.UpdatedAt = now

	return s.writeAtomic(st)
}

func (s *Store) writeAtomic(st *State) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state directory %q: %w", dir, err)
	}

	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating temp state file %q: %w", tmp, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing temp state file %q: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("fsyncing temp state file %q: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing temp state file %q: %w", tmp, err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming temp state file to %q: %w", s.path, err)
	}
	return nil
}

// Clear removes the state file, if present. A missing file is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing state file %q: %w", s.path, err)
	}
	return nil
}

// Exists reports whether the state file is present on disk.
func (s *Store) Exists() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := os.Stat(s.path)
	return err == nil
}
