package settings

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/fieldwatch/internal/fsutil"
)

// FileName is the settings file name inside the system directory.
const FileName = "settings.yaml"

// Store loads and saves Settings from a YAML file.
type Store struct {
	Path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewStore creates a store for the file at path.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{Path: path, logger: logger}
}

// DefaultPath returns the settings location for a vault.
func DefaultPath(vaultPath, systemDir string) string {
	return filepath.Join(vaultPath, systemDir, FileName)
}

// Load reads the settings. A missing file yields empty settings.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (Settings, error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return Settings{Version: Version}, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}

	var st Settings
	if err := yaml.Unmarshal(data, &st); err != nil {
		return Settings{}, fmt.Errorf("invalid settings file %s: %w", s.Path, err)
	}
	if st.Version == 0 {
		st.Version = Version
	}
	if st.Version > Version {
		return Settings{}, fmt.Errorf("settings version %d is newer than supported version %d", st.Version, Version)
	}
	return st, nil
}

// Save validates and persists the settings atomically.
func (s *Store) Save(ctx context.Context, st Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(st)
}

func (s *Store) save(st Settings) error {
	if err := st.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	st.Version = Version

	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(s.Path, data, 0644); err != nil {
		return err
	}

	s.logger.Debug("settings saved", "path", s.Path, "header_rules", len(st.HeaderRules), "action_rules", len(st.ActionRules))
	return nil
}

// Update loads the settings, applies fn and saves the result.
// Nothing is written when fn returns an error.
func (s *Store) Update(ctx context.Context, fn func(*Settings) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(&st); err != nil {
		return err
	}
	return s.save(st)
}
