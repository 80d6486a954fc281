package credstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	log "github.com/sirupsen/logrus"
)

// Store performs typed CRUD over a directory of per-provider TOML files.
type Store struct {
	dir string
}

// New returns a Store rooted at dir. The directory is created lazily by Save.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the root directory this store persists into.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".toml")
}

// Save writes cfg to <dir>/<name>.toml, creating the directory if needed.
// The data is written to a temporary file first and renamed into place.
func (s *Store) Save(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("credstore: create dir %q: %w", s.dir, err)
	}

	file := tomlFile{Type: cfg.Type, OAuth: cfg.OAuth, API: cfg.API}
	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("credstore: marshal %q: %w", cfg.Name, err)
	}

	tmp := s.path(cfg.Name) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("credstore: write %q: %w", cfg.Name, err)
	}
	if err := os.Rename(tmp, s.path(cfg.Name)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("credstore: rename %q: %w", cfg.Name, err)
	}
	log.Infof("provider %s saved to %s", cfg.Name, s.path(cfg.Name))
	return nil
}

// Load reads a single provider config by name.
func (s *Store) Load(name string) (*Config, error) {
	return s.loadPath(s.path(name), name)
}

func (s *Store) loadPath(path, name string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("credstore: read %q: %w", path, err)
	}

	var file tomlFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("credstore: parse %q: %w", path, err)
	}

	cfg := &Config{Name: name, Type: file.Type, OAuth: file.OAuth, API: file.API}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadAll enumerates every *.toml file in the store directory and loads it.
// A single malformed file is logged and skipped rather than failing the
// whole call, so one bad provider never denies service for the rest.
func (s *Store) LoadAll() ([]*Config, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("credstore: create dir %q: %w", s.dir, err)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("credstore: read dir %q: %w", s.dir, err)
	}

	var configs []*Config
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".toml")
		cfg, err := s.loadPath(filepath.Join(s.dir, entry.Name()), name)
		if err != nil {
			log.Warnf("credstore: skipping %s: %v", entry.Name(), err)
			continue
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// UpdateOAuth loads the named provider, replaces its OAuth credentials, and
// saves the result back to disk.
func (s *Store) UpdateOAuth(name string, creds *OAuthCreds) error {
	cfg, err := s.Load(name)
	if err != nil {
		return err
	}
	cfg.OAuth = creds
	cfg.API = nil
	return s.Save(cfg)
}
