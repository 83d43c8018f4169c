package wallet

import (
	"context"
	"encoding/json"
	"strings"
)

// ProviderID identifies one of the injected wallet providers walletdash knows about.
type ProviderID string

const (
	ProviderOKX         ProviderID = "okxwallet"
	ProviderMetaMask    ProviderID = "metamask"
	ProviderCoinbase    ProviderID = "coinbase"
	ProviderTrustWallet ProviderID = "trustwallet"
)

// AllProviderIDs returns all known providers in detection priority order.
func AllProviderIDs() []ProviderID {
	return []ProviderID{
		ProviderOKX,
		ProviderMetaMask,
		ProviderCoinbase,
		ProviderTrustWallet,
	}
}

// DisplayName returns the human-readable name for a provider
func (id ProviderID) DisplayName() string {
	switch id {
	case ProviderOKX:
		return "OKX Wallet"
	case ProviderMetaMask:
		return "MetaMask"
	case ProviderCoinbase:
		return "Coinbase Wallet"
	case ProviderTrustWallet:
		return "Trust Wallet"
	default:
		return string(id)
	}
}

// Global returns the name of the host global the provider injects itself as.
func (id ProviderID) Global() string {
	switch id {
	case ProviderOKX:
		return "okxwallet"
	case ProviderMetaMask:
		return "ethereum"
	case ProviderCoinbase:
		return "coinbaseWalletExtension"
	case ProviderTrustWallet:
		return "trustwallet"
	default:
		return ""
	}
}

// ParseProviderID resolves a provider name. It accepts the canonical id or
// the injected global name, in any case.
func ParseProviderID(name string) (ProviderID, bool) {
	for _, id := range AllProviderIDs() {
		if strings.EqualFold(name, string(id)) || strings.EqualFold(name, id.Global()) {
			return id, true
		}
	}
	return "", false
}

// Provider request methods.
const (
	MethodRequestAccounts = "eth_requestAccounts"
	MethodAccounts        = "eth_accounts"
	MethodChainID         = "eth_chainId"
)

// Provider events.
const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
)

// ListenerID is the handle returned by On, used to remove that exact listener.
type ListenerID uint64

// Listener receives the raw payload of a provider event. For accountsChanged
// the payload is a JSON array of addresses, for chainChanged a JSON string
// holding the hex chain id.
type Listener func(payload json.RawMessage)

// Provider is the EIP-1193 surface walletdash needs from an injected wallet.
type Provider interface {
	// Request issues a JSON-RPC style request and returns the raw result.
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)

	// On registers a listener for an event.
	On(event string, fn Listener) ListenerID

	// RemoveListener unregisters a listener. Unknown ids are ignored.
	RemoveListener(event string, id ListenerID)
}

// OKXIdentifier is implemented by providers that can report whether they
// are OKX Wallet answering under a shared global such as "ethereum".
type OKXIdentifier interface {
	IsOKXWallet() bool
}
