package auth

import (
	"fmt"

	"github.com/yolodolo42/walletdash/internal/okx"
)

// Field is one part of the OKX credential set.
type Field string

const (
	FieldProjectID  Field = "project_id"
	FieldAPIKey     Field = "api_key"
	FieldSecretKey  Field = "secret_key"
	FieldPassphrase Field = "passphrase"
)

// FieldInfo describes where a field can come from and how to ask for it.
type FieldInfo struct {
	Field       Field
	Label       string
	EnvVar      string
	Secret      bool
	Description string
}

// AllFields returns the credential fields in prompt order.
func AllFields() []FieldInfo {
	return []FieldInfo{
		{FieldProjectID, "Project ID", "OKX_PROJECT_ID", false, "Web3 project id from the OKX developer portal"},
		{FieldAPIKey, "API Key", "OKX_API_KEY", false, "API key created for the project"},
		{FieldSecretKey, "Secret Key", "OKX_SECRET_KEY", true, "Secret shown once when the key was created"},
		{FieldPassphrase, "Passphrase", "OKX_API_PASSPHRASE", true, "Passphrase chosen when the key was created"},
	}
}

// ParseField resolves a field name.
func ParseField(name string) (Field, error) {
	for _, info := range AllFields() {
		if string(info.Field) == name {
			return info.Field, nil
		}
	}
	return "", fmt.Errorf("unknown credential field: %s", name)
}

// ConfigKey is the viper key holding the field.
func (f Field) ConfigKey() string {
	return "okx." + string(f)
}

func (f Field) get(c okx.Credentials) string {
	switch f {
	case FieldProjectID:
		return c.ProjectID
	case FieldAPIKey:
		return c.APIKey
	case FieldSecretKey:
		return c.SecretKey
	case FieldPassphrase:
		return c.Passphrase
	}
	return ""
}

func (f Field) set(c *okx.Credentials, value string) {
	switch f {
	case FieldProjectID:
		c.ProjectID = value
	case FieldAPIKey:
		c.APIKey = value
	case FieldSecretKey:
		c.SecretKey = value
	case FieldPassphrase:
		c.Passphrase = value
	}
}
