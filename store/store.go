package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrCorrupt indicates the on-disk token store exists but cannot be parsed.
// Callers recover by running logout, which removes the file.
var ErrCorrupt = errors.New("token store file is corrupted")

// Record holds one provider-issued token together with its absolute expiry.
// ExpiresAt is authoritative: an expired record must be renewed, never served.
type Record struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scope        Scope     `json:"scope,omitempty"`
}

// Valid reports whether the record is still usable at the given instant,
// keeping the supplied safety margin before the real expiry.
func (r *Record) Valid(now time.Time, margin time.Duration) bool {
	if r == nil || r.AccessToken == "" && r.RefreshToken == "" {
		return false
	}
	return now.Add(margin).Before(r.ExpiresAt)
}

// File is the on-disk token store: the shared refresh token obtained by the
// device flow, the per-scope access tokens derived from it, and the tenant the
// tokens were issued against. A tenant change invalidates the whole cache.
type File struct {
	Tenant  string           `json:"tenant"`
	Refresh *Record          `json:"refresh_token,omitempty"`
	Scopes  map[Scope]Record `json:"scopes"`
}

// NewFile returns an empty store file for the given tenant.
func NewFile(tenant string) *File {
	return &File{Tenant: tenant, Scopes: make(map[Scope]Record)}
}

// Get returns the cached record for a scope, if any.
func (f *File) Get(scope Scope) (Record, bool) {
	rec, ok := f.Scopes[scope]
	return rec, ok
}

// Put replaces the record for a single scope, leaving every other scope's
// entry untouched.
func (f *File) Put(scope Scope, rec Record) {
	if f.Scopes == nil {
		f.Scopes = make(map[Scope]Record)
	}
	rec.Scope = scope
	f.Scopes[scope] = rec
}

// FileStore persists a File as JSON at a fixed path. Writes go through a
// temporary file followed by an atomic rename, so a crash mid-write can never
// leave a half-written file that Load would accept.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the given file path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath returns the per-user location of the token store file.
func DefaultPath() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "squads", "tokens.json")
	}
	return filepath.Join(os.Getenv("HOME"), ".squads", "tokens.json")
}

// Path returns the file path this store reads and writes.
func (s *FileStore) Path() string { return s.path }

// Load reads and parses the token store file. A missing file yields an empty
// store; an unparseable one yields ErrCorrupt so that cached credentials are
// never silently discarded. Read failures (permissions, I/O) are plain
// errors: the file may be intact, so removing it is not the remedy.
func (s *FileStore) Load() (*File, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{Scopes: make(map[Scope]Record)}, nil
		}
		return nil, fmt.Errorf("failed to read token store %s: %w", s.path, err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		log.Error().Err(err).Str("path", s.path).Msg("Token store file is not valid JSON")
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	if f.Scopes == nil {
		f.Scopes = make(map[Scope]Record)
	}
	return &f, nil
}

// Save serializes the store file and atomically replaces the on-disk copy.
// The file is restricted to the owning user; a failure to tighten permissions
// is logged as a warning but does not fail the save.
func (s *FileStore) Save(f *File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize token store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token store directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary token store file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write token store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temporary token store file: %w", err)
	}

	if err := os.Chmod(tmpPath, 0o600); err != nil {
		log.Warn().Err(err).Str("path", tmpPath).Msg("Could not restrict token store permissions to owner only")
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace token store %s: %w", s.path, err)
	}
	log.Debug().Str("path", s.path).Int("scopes", len(f.Scopes)).Msg("Token store saved")
	return nil
}

// Clear removes the token store file. Clearing an absent store is not an error.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token store %s: %w", s.path, err)
	}
	return nil
}
