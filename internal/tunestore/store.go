// Package tunestore persists tuner caches between runs. Files are keyed by a
// checksum of the kernel set and the device, so winners measured on other
// hardware or with other kernels are never replayed.
package tunestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/fxnlabs/autotune/internal/compute"
	"github.com/fxnlabs/autotune/internal/tune"
)

// Checksum fingerprints a kernel set running on a device.
func Checksum(kernels []string, info compute.DeviceInfo) string {
	sorted := append([]string(nil), kernels...)
	sort.Strings(sorted)
	return crypto.Keccak256Hash(
		[]byte(strings.Join(sorted, ",")),
		[]byte(info.Backend),
		[]byte(info.Name),
		[]byte(info.ComputeCapability),
		[]byte(info.DriverVersion),
	).Hex()
}

// File is the on-disk representation of a cache.
type File struct {
	Checksum string         `yaml:"checksum"`
	Device   string         `yaml:"device,omitempty"`
	Entries  map[string]int `yaml:"entries"`
}

type Store struct {
	path     string
	checksum string
	device   string
	log      *zap.Logger
}

func New(path, checksum, device string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{path: path, checksum: checksum, device: device, log: log.Named("tunestore")}
}

func (s *Store) Path() string {
	return s.path
}

// Read returns the stored file, or nil if none exists.
func (s *Store) Read() (*File, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse cache file %s: %w", s.path, err)
	}
	return &f, nil
}

// Load restores the stored winners into cache and returns how many were
// restored. A missing file or a file written for another checksum restores
// nothing.
func (s *Store) Load(cache *tune.Cache) (int, error) {
	f, err := s.Read()
	if err != nil {
		return 0, err
	}
	if f == nil {
		s.log.Debug("no persisted cache", zap.String("path", s.path))
		return 0, nil
	}
	if f.Checksum != s.checksum {
		s.log.Warn("ignoring persisted cache for different kernels or device",
			zap.String("path", s.path),
			zap.String("stored", f.Checksum),
			zap.String("current", s.checksum))
		return 0, nil
	}

	entries := make(map[tune.Key]int, len(f.Entries))
	for k, v := range f.Entries {
		if v < 0 {
			return 0, fmt.Errorf("cache file %s: negative index %d for key %s", s.path, v, k)
		}
		entries[tune.Key(k)] = v
	}
	cache.Restore(entries)
	s.log.Info("restored autotune cache", zap.String("path", s.path), zap.Int("entries", len(entries)))
	return len(entries), nil
}

// Save writes every cache entry, replacing the file atomically.
func (s *Store) Save(cache *tune.Cache) error {
	entries := cache.Entries()
	f := File{
		Checksum: s.checksum,
		Device:   s.device,
		Entries:  make(map[string]int, len(entries)),
	}
	for k, v := range entries {
		f.Entries[string(k)] = v
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	s.log.Info("persisted autotune cache", zap.String("path", s.path), zap.Int("entries", len(entries)))
	return nil
}

// Remove deletes the stored file. Removing a missing file is not an error.
func (s *Store) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove cache file: %w", err)
	}
	return nil
}
