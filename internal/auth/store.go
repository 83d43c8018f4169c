package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"

	"github.com/yolodolo42/walletdash/internal/okx"
)

const (
	authFileName = "auth.json"
	filePerms    = 0600 // Owner read/write only
)

// AuthData is the structure of auth.json
type AuthData struct {
	Version int             `json:"version"`
	OKX     okx.Credentials `json:"okx"`
}

// Store manages credential storage
type Store struct {
	mu       sync.RWMutex
	filePath string
	data     *AuthData
}

// NewStore creates a new credential store
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store := &Store{
		filePath: filepath.Join(dataDir, authFileName),
		data:     &AuthData{Version: 1},
	}

	if err := store.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load auth data: %w", err)
	}

	return store, nil
}

// Path returns the location of auth.json.
func (s *Store) Path() string {
	return s.filePath
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var authData AuthData
	if err := json.Unmarshal(data, &authData); err != nil {
		return fmt.Errorf("failed to parse auth file: %w", err)
	}
	if authData.Version == 0 {
		authData.Version = 1
	}

	s.data = &authData
	return nil
}

// save writes the auth file to disk with secure permissions
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal auth data: %w", err)
	}

	// Write to temp file first, then rename (atomic)
	tmpPath := s.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, filePerms); err != nil {
		return fmt.Errorf("failed to write auth file: %w", err)
	}

	if err := os.Rename(tmpPath, s.filePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save auth file: %w", err)
	}

	return nil
}

// Credentials returns the stored OKX credentials.
func (s *Store) Credentials() okx.Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.OKX
}

// SetField stores one credential field.
func (s *Store) SetField(field Field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	field.set(&s.data.OKX, value)
	return s.save()
}

// SetCredentials replaces every stored field.
func (s *Store) SetCredentials(creds okx.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.OKX = creds
	return s.save()
}

// Clear removes the stored credentials.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.OKX = okx.Credentials{}
	return s.save()
}
