package okx

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/yolodolo42/walletdash/internal/signing"
)

// Header names of the OKX authentication scheme.
const (
	HeaderAccessKey        = "OK-ACCESS-KEY"
	HeaderAccessSign       = "OK-ACCESS-SIGN"
	HeaderAccessTimestamp  = "OK-ACCESS-TIMESTAMP"
	HeaderAccessPassphrase = "OK-ACCESS-PASSPHRASE"
	HeaderAccessProject    = "OK-ACCESS-PROJECT"
)

// Credentials are the process-wide OKX API credentials. They are resolved
// once at startup and never mutated afterwards.
type Credentials struct {
	ProjectID  string `json:"project_id,omitempty"`
	APIKey     string `json:"api_key,omitempty"`
	SecretKey  string `json:"secret_key,omitempty"`
	Passphrase string `json:"passphrase,omitempty"`
}

// Missing returns the names of the unset fields.
func (c Credentials) Missing() []string {
	var missing []string
	if c.ProjectID == "" {
		missing = append(missing, "project_id")
	}
	if c.APIKey == "" {
		missing = append(missing, "api_key")
	}
	if c.SecretKey == "" {
		missing = append(missing, "secret_key")
	}
	if c.Passphrase == "" {
		missing = append(missing, "passphrase")
	}
	return missing
}

// Validate fails with a KindConfiguration error when any field is unset.
func (c Credentials) Validate() error {
	if missing := c.Missing(); len(missing) > 0 {
		return newError(KindConfiguration, ErrCredentialsNotConfigured.Detail,
			fmt.Errorf("missing %s", strings.Join(missing, ", ")))
	}
	return nil
}

// String never prints the secret or passphrase.
func (c Credentials) String() string {
	return fmt.Sprintf("okx.Credentials{ProjectID:%q, APIKey:%q, SecretKey:<redacted>, Passphrase:<redacted>}",
		c.ProjectID, mask(c.APIKey))
}

// SignedRequest is everything the signature covers.
type SignedRequest struct {
	Method    string
	Path      string // path plus encoded query, exactly as sent
	Body      string
	Timestamp string
}

// SignedHeaders builds the six headers of an authenticated request.
func SignedHeaders(creds Credentials, req SignedRequest) http.Header {
	h := make(http.Header, 6)
	h.Set(HeaderAccessKey, creds.APIKey)
	h.Set(HeaderAccessSign, signing.Sign(creds.SecretKey, req.Timestamp, req.Method, req.Path, req.Body))
	h.Set(HeaderAccessTimestamp, req.Timestamp)
	h.Set(HeaderAccessPassphrase, creds.Passphrase)
	h.Set(HeaderAccessProject, creds.ProjectID)
	h.Set("Content-Type", "application/json")
	return h
}

func mask(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-4)
}
