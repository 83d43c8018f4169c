package auth

import (
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/yolodolo42/walletdash/internal/okx"
)

// Source says where a resolved field came from.
type Source string

const (
	SourceNone   Source = ""
	SourceEnv    Source = "env"
	SourceConfig Source = "config"
	SourceStored Source = "stored"
)

// Manager resolves OKX credentials.
type Manager struct {
	store *Store
}

// NewManager creates a new auth manager
func NewManager(dataDir string) (*Manager, error) {
	store, err := NewStore(dataDir)
	if err != nil {
		return nil, err
	}

	return &Manager{
		store: store,
	}, nil
}

// Store returns the backing credential store.
func (m *Manager) Store() *Store {
	return m.store
}

// Credentials resolves every field independently, in priority order:
// 1. Environment variable
// 2. Config file (with env substitution)
// 3. Stored auth.json
//
// Missing fields are left empty; okx.Client reports them per request.
func (m *Manager) Credentials() okx.Credentials {
	creds, _ := m.Resolve()
	return creds
}

// Resolve is Credentials plus the source of each field.
func (m *Manager) Resolve() (okx.Credentials, map[Field]Source) {
	var creds okx.Credentials
	sources := make(map[Field]Source)
	stored := m.store.Credentials()

	for _, info := range AllFields() {
		value, source := m.lookup(info, stored)
		info.Field.set(&creds, value)
		sources[info.Field] = source
	}
	return creds, sources
}

func (m *Manager) lookup(info FieldInfo, stored okx.Credentials) (string, Source) {
	if v := os.Getenv(info.EnvVar); v != "" {
		return v, SourceEnv
	}
	if v := viper.GetString(info.Field.ConfigKey()); v != "" {
		if resolved := resolveEnvSubstitution(v); resolved != "" {
			return resolved, SourceConfig
		}
	}
	if v := info.Field.get(stored); v != "" {
		return v, SourceStored
	}
	return "", SourceNone
}

// SetField stores a credential field in auth.json
func (m *Manager) SetField(field Field, value string) error {
	return m.store.SetField(field, value)
}

// Clear removes stored credentials. Env and config values are untouched.
func (m *Manager) Clear() error {
	return m.store.Clear()
}

// Configured reports whether every field resolves to a value.
func (m *Manager) Configured() bool {
	return m.Credentials().Validate() == nil
}

var envRef = regexp.MustCompile(`\{env:([^}]+)\}`)

// resolveEnvSubstitution replaces {env:VAR_NAME} with environment variable values
func resolveEnvSubstitution(value string) string {
	if !strings.Contains(value, "{env:") {
		return value
	}
	return envRef.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[5 : len(match)-1])
	})
}
