package wallet

import "slices"

// Status is the connection lifecycle stage.
type Status int

const (
	StatusDisconnected Status = iota
	StatusSelectingProvider
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusSelectingProvider:
		return "selecting_provider"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// UnknownChainName is shown when the provider reported a chain id that
// could not be read.
const UnknownChainName = "Unknown chain"

// State is a snapshot of a Connector.
type State struct {
	Status     Status       `json:"status"`
	ProviderID ProviderID   `json:"provider_id,omitempty"`
	Address    string       `json:"address,omitempty"`
	ChainID    string       `json:"chain_id,omitempty"`
	ChainName  string       `json:"chain_name,omitempty"`
	Choices    []Descriptor `json:"choices,omitempty"`
}

func (s State) clone() State {
	s.Choices = slices.Clone(s.Choices)
	return s
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
