package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrUserRejected is returned by MemoryProvider when access is denied.
var ErrUserRejected = errors.New("user rejected the request")

// MemoryProvider is an in-process Provider whose accounts, chain and
// approval behaviour are scripted by the caller.
type MemoryProvider struct {
	Emitter

	mu         sync.Mutex
	accounts   []string
	chainID    string
	authorized bool
	denied     bool
	okx        bool
	pending    chan struct{}
	calls      map[string]int
}

// NewMemoryProvider returns a provider on hex chain chainID holding accounts.
func NewMemoryProvider(chainID string, accounts ...string) *MemoryProvider {
	return &MemoryProvider{
		accounts: accounts,
		chainID:  chainID,
		calls:    make(map[string]int),
	}
}

// Request implements Provider.
func (m *MemoryProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	m.mu.Lock()
	m.calls[method]++
	gate := m.pending
	m.mu.Unlock()

	switch method {
	case MethodRequestAccounts:
		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.denied {
			return nil, ErrUserRejected
		}
		m.authorized = true
		return json.Marshal(m.accountsLocked())
	case MethodAccounts:
		m.mu.Lock()
		defer m.mu.Unlock()
		if !m.authorized {
			return json.RawMessage("[]"), nil
		}
		return json.Marshal(m.accountsLocked())
	case MethodChainID:
		m.mu.Lock()
		defer m.mu.Unlock()
		return json.Marshal(m.chainID)
	default:
		return nil, fmt.Errorf("unsupported method %s", method)
	}
}

func (m *MemoryProvider) accountsLocked() []string {
	if m.accounts == nil {
		return []string{}
	}
	return slices.Clone(m.accounts)
}

// IsOKXWallet implements OKXIdentifier.
func (m *MemoryProvider) IsOKXWallet() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.okx
}

// SetOKXWallet sets the isOKXWallet flag.
func (m *MemoryProvider) SetOKXWallet(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.okx = v
}

// SetDenied makes subsequent access requests fail with ErrUserRejected.
func (m *MemoryProvider) SetDenied(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denied = v
}

// SetAuthorized marks the site as previously approved, so eth_accounts
// answers without a prompt.
func (m *MemoryProvider) SetAuthorized(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authorized = v
}

// SetChain changes the chain without emitting.
func (m *MemoryProvider) SetChain(hexID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chainID = hexID
}

// Hold makes access requests block until Approve is called.
func (m *MemoryProvider) Hold() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		m.pending = make(chan struct{})
	}
}

// Approve releases requests blocked by Hold.
func (m *MemoryProvider) Approve() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != nil {
		close(m.pending)
		m.pending = nil
	}
}

// ChangeAccounts replaces the account list and emits accountsChanged.
// Calling it with no accounts simulates a revoke.
func (m *MemoryProvider) ChangeAccounts(accounts ...string) {
	m.mu.Lock()
	m.accounts = accounts
	if len(accounts) == 0 {
		m.authorized = false
	}
	payload, _ := json.Marshal(m.accountsLocked())
	m.mu.Unlock()

	m.Emit(EventAccountsChanged, payload)
}

// SwitchChain changes the chain and emits chainChanged.
func (m *MemoryProvider) SwitchChain(hexID string) {
	m.SetChain(hexID)
	payload, _ := json.Marshal(hexID)
	m.Emit(EventChainChanged, payload)
}

// Calls returns how many times method was requested.
func (m *MemoryProvider) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}
