package setup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yolodolo42/walletdash/internal/okx"
)

// Verifier checks credentials against the API.
type Verifier func(ctx context.Context, creds okx.Credentials) error

// OKXVerifier returns a Verifier that performs a signed security-status call.
func OKXVerifier(opts okx.Options) Verifier {
	return func(ctx context.Context, creds okx.Credentials) error {
		client := okx.NewClient(creds, opts)
		_, err := client.Call(ctx, okx.EndpointSecurityStatus, nil)
		return err
	}
}

// saveCredentials writes the entered fields to auth.json
func (m WizardModel) saveCredentials() error {
	for i, info := range m.fields {
		value := m.inputs[i].Value()
		if value == "" {
			continue
		}
		if err := m.manager.SetField(info.Field, value); err != nil {
			return fmt.Errorf("failed to save %s: %w", info.Label, err)
		}
	}
	return nil
}

// verifyCredentials resolves the full credential set and tests it
func (m WizardModel) verifyCredentials() tea.Cmd {
	creds := m.manager.Credentials()
	verify := m.verify

	return func() tea.Msg {
		if err := creds.Validate(); err != nil {
			return verifiedMsg{err: err}
		}
		if verify == nil {
			return verifiedMsg{}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return verifiedMsg{err: verify(ctx, creds)}
	}
}

// formatVerifyError returns a user-friendly error message
func formatVerifyError(err error) string {
	switch okx.KindOf(err) {
	case okx.KindConfiguration:
		return "Some credential fields are still missing."
	case okx.KindTimeout:
		return "OKX did not answer in time. Check your connection."
	case okx.KindUpstreamFailure:
		var apiErr *okx.Error
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
			return "OKX rejected the credentials. Check the key, secret and passphrase."
		}
		return "OKX request failed. Try again later."
	}

	errStr := err.Error()
	if len(errStr) > 60 {
		return errStr[:57] + "..."
	}
	return errStr
}
