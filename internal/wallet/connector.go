package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/yolodolo42/walletdash/internal/chain"
)

var (
	ErrNoWallet           = errors.New("no wallet provider installed")
	ErrConnectionRejected = errors.New("wallet connection rejected")
	ErrConnectInFlight    = errors.New("connection request already pending")
	ErrAttemptSuperseded  = errors.New("connection attempt superseded")
)

// Connector owns the connection to at most one wallet provider and keeps
// its State in sync with user actions and provider events.
type Connector struct {
	registry *Registry
	logger   zerolog.Logger

	mu        sync.Mutex
	state     State
	attempt   uint64 // bumped whenever a pending result must be discarded
	sub       *subscription
	observers []func(State)
}

type subscription struct {
	provider Provider
	accounts ListenerID
	chain    ListenerID
}

// NewConnector creates a disconnected Connector over registry.
func NewConnector(registry *Registry, logger zerolog.Logger) *Connector {
	return &Connector{
		registry: registry,
		logger:   logger,
	}
}

// State returns the current snapshot.
func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// OnChange registers fn to receive the new state after every transition.
func (c *Connector) OnChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Connect starts a connection. With an empty id it moves to
// SelectingProvider so the caller can present the available choices;
// otherwise it asks provider id for account access and blocks until the
// user answers or ctx ends.
func (c *Connector) Connect(ctx context.Context, id ProviderID) (State, error) {
	if id == "" {
		return c.beginSelection()
	}

	p, err := c.registry.Provider(id)
	if err != nil {
		return c.State(), err
	}

	c.mu.Lock()
	if c.state.Status == StatusConnecting && c.state.ProviderID == id {
		st := c.state.clone()
		c.mu.Unlock()
		return st, ErrConnectInFlight
	}
	c.teardownLocked()
	attempt := c.attempt
	c.state = State{Status: StatusConnecting, ProviderID: id}
	c.subscribeLocked(p, attempt)
	notify := c.publishLocked()
	c.mu.Unlock()
	notify()

	c.logger.Info().Str("provider", string(id)).Msg("requesting wallet access")

	accounts, err := requestAccounts(ctx, p, MethodRequestAccounts)
	if err == nil && len(accounts) == 0 {
		err = errors.New("no accounts returned")
	}
	var address string
	if err == nil {
		var ok bool
		if address, ok = normalizeAddress(accounts[0]); !ok {
			err = fmt.Errorf("invalid account %q", accounts[0])
		}
	}
	if err != nil {
		return c.reject(attempt, id, err)
	}

	chainID, chainName := c.readChain(ctx, p, id)

	c.mu.Lock()
	if c.attempt != attempt {
		st := c.state.clone()
		c.mu.Unlock()
		return st, ErrAttemptSuperseded
	}
	c.state = State{
		Status:     StatusConnected,
		ProviderID: id,
		Address:    address,
		ChainID:    chainID,
		ChainName:  chainName,
	}
	st := c.state.clone()
	notify = c.publishLocked()
	c.mu.Unlock()
	notify()

	c.logger.Info().Str("provider", string(id)).Str("address", address).Str("chain_id", chainID).Msg("wallet connected")
	return st, nil
}

func (c *Connector) beginSelection() (State, error) {
	choices := c.registry.Available()

	c.mu.Lock()
	if len(choices) == 0 {
		st := c.state.clone()
		c.mu.Unlock()
		return st, ErrNoWallet
	}
	c.teardownLocked()
	c.state = State{Status: StatusSelectingProvider, Choices: choices}
	st := c.state.clone()
	notify := c.publishLocked()
	c.mu.Unlock()
	notify()
	return st, nil
}

func (c *Connector) reject(attempt uint64, id ProviderID, cause error) (State, error) {
	c.mu.Lock()
	if c.attempt != attempt {
		st := c.state.clone()
		c.mu.Unlock()
		return st, ErrAttemptSuperseded
	}
	c.teardownLocked()
	c.state = State{Status: StatusDisconnected}
	st := c.state.clone()
	notify := c.publishLocked()
	c.mu.Unlock()
	notify()

	c.logger.Warn().Err(cause).Str("provider", string(id)).Msg("wallet connection rejected")
	return st, fmt.Errorf("%w: %w", ErrConnectionRejected, cause)
}

// Disconnect drops the connection and invalidates any pending attempt.
// It is safe to call from any state.
func (c *Connector) Disconnect() State {
	c.mu.Lock()
	c.teardownLocked()
	changed := c.state.Status != StatusDisconnected
	c.state = State{Status: StatusDisconnected}
	notify := c.publishLocked()
	c.mu.Unlock()

	if changed {
		notify()
		c.logger.Info().Msg("wallet disconnected")
	}
	return State{Status: StatusDisconnected}
}

// CancelSelection closes the provider selection without connecting.
func (c *Connector) CancelSelection() State {
	c.mu.Lock()
	if c.state.Status != StatusSelectingProvider {
		st := c.state.clone()
		c.mu.Unlock()
		return st
	}
	c.state = State{Status: StatusDisconnected}
	notify := c.publishLocked()
	c.mu.Unlock()
	notify()
	return State{Status: StatusDisconnected}
}

// Restore silently reconnects to the first available provider, in priority
// order, that already authorizes an account. It never prompts the user and
// does nothing unless the connector is disconnected.
func (c *Connector) Restore(ctx context.Context) (State, error) {
	c.mu.Lock()
	if c.state.Status != StatusDisconnected {
		st := c.state.clone()
		c.mu.Unlock()
		return st, nil
	}
	c.attempt++
	attempt := c.attempt
	c.mu.Unlock()

	for _, d := range c.registry.Available() {
		if err := ctx.Err(); err != nil {
			return c.State(), err
		}
		if c.superseded(attempt) {
			return c.State(), ErrAttemptSuperseded
		}

		p, err := c.registry.Provider(d.ID)
		if err != nil {
			continue
		}
		accounts, err := requestAccounts(ctx, p, MethodAccounts)
		if err != nil {
			c.logger.Debug().Err(err).Str("provider", string(d.ID)).Msg("restore probe failed")
			continue
		}
		if len(accounts) == 0 {
			continue
		}
		address, ok := normalizeAddress(accounts[0])
		if !ok {
			c.logger.Debug().Str("provider", string(d.ID)).Str("account", accounts[0]).Msg("restore probe returned invalid account")
			continue
		}

		chainID, chainName := c.readChain(ctx, p, d.ID)

		c.mu.Lock()
		if c.attempt != attempt || c.state.Status != StatusDisconnected {
			st := c.state.clone()
			c.mu.Unlock()
			return st, ErrAttemptSuperseded
		}
		c.state = State{
			Status:     StatusConnected,
			ProviderID: d.ID,
			Address:    address,
			ChainID:    chainID,
			ChainName:  chainName,
		}
		c.subscribeLocked(p, attempt)
		st := c.state.clone()
		notify := c.publishLocked()
		c.mu.Unlock()
		notify()

		c.logger.Info().Str("provider", string(d.ID)).Str("address", address).Msg("wallet connection restored")
		return st, nil
	}
	return c.State(), nil
}

// Refresh re-runs provider detection. A connection whose provider is no
// longer detected is dropped, and an open selection gets the new choices.
func (c *Connector) Refresh() []Descriptor {
	descriptors := c.registry.Refresh()
	choices := c.registry.Available()

	c.mu.Lock()
	changed := false
	switch c.state.Status {
	case StatusConnecting, StatusConnected:
		if !c.registry.IsAvailable(c.state.ProviderID) {
			c.logger.Warn().Str("provider", string(c.state.ProviderID)).Msg("active wallet provider disappeared")
			c.teardownLocked()
			c.state = State{Status: StatusDisconnected}
			changed = true
		}
	case StatusSelectingProvider:
		if len(choices) == 0 {
			c.state = State{Status: StatusDisconnected}
		} else {
			c.state.Choices = choices
		}
		changed = true
	}
	notify := c.publishLocked()
	c.mu.Unlock()

	if changed {
		notify()
	}
	return descriptors
}

func (c *Connector) superseded(attempt uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt != attempt
}

// subscribeLocked attaches event listeners for attempt. Callers hold c.mu.
func (c *Connector) subscribeLocked(p Provider, attempt uint64) {
	c.sub = &subscription{
		provider: p,
		accounts: p.On(EventAccountsChanged, func(payload json.RawMessage) {
			c.handleAccountsChanged(attempt, payload)
		}),
		chain: p.On(EventChainChanged, func(payload json.RawMessage) {
			c.handleChainChanged(attempt, payload)
		}),
	}
}

// teardownLocked releases listeners and invalidates in-flight results.
// Callers hold c.mu.
func (c *Connector) teardownLocked() {
	c.attempt++
	if c.sub == nil {
		return
	}
	c.sub.provider.RemoveListener(EventAccountsChanged, c.sub.accounts)
	c.sub.provider.RemoveListener(EventChainChanged, c.sub.chain)
	c.sub = nil
}

// publishLocked captures the current state for observers. The returned
// func must be called after c.mu is released.
func (c *Connector) publishLocked() func() {
	st := c.state.clone()
	observers := slices.Clone(c.observers)
	return func() {
		for _, fn := range observers {
			fn(st.clone())
		}
	}
}

func (c *Connector) handleAccountsChanged(attempt uint64, payload json.RawMessage) {
	var accounts []string
	if err := json.Unmarshal(payload, &accounts); err != nil {
		c.logger.Warn().Err(err).Msg("ignoring malformed accountsChanged payload")
		return
	}

	c.mu.Lock()
	if c.attempt != attempt || c.state.Status != StatusConnected {
		c.mu.Unlock()
		return
	}

	if len(accounts) == 0 {
		provider := c.state.ProviderID
		c.teardownLocked()
		c.state = State{Status: StatusDisconnected}
		notify := c.publishLocked()
		c.mu.Unlock()
		notify()
		c.logger.Info().Str("provider", string(provider)).Msg("wallet access revoked")
		return
	}

	address, ok := normalizeAddress(accounts[0])
	if !ok {
		c.mu.Unlock()
		c.logger.Warn().Str("account", accounts[0]).Msg("ignoring invalid account from accountsChanged")
		return
	}
	if address == c.state.Address {
		c.mu.Unlock()
		return
	}
	c.state.Address = address
	notify := c.publishLocked()
	c.mu.Unlock()
	notify()
}

func (c *Connector) handleChainChanged(attempt uint64, payload json.RawMessage) {
	var hexID string
	if err := json.Unmarshal(payload, &hexID); err != nil {
		c.logger.Warn().Err(err).Msg("ignoring malformed chainChanged payload")
		return
	}
	chainID, err := chain.ParseHexChainID(hexID)
	if err != nil {
		c.logger.Warn().Err(err).Msg("keeping previous chain")
		return
	}

	c.mu.Lock()
	if c.attempt != attempt || c.state.Status != StatusConnected {
		c.mu.Unlock()
		return
	}
	c.state.ChainID = chainID
	c.state.ChainName = chain.ChainName(chainID)
	notify := c.publishLocked()
	c.mu.Unlock()
	notify()
}

// readChain asks p for its chain. Failures leave the chain unknown rather
// than failing the connection.
func (c *Connector) readChain(ctx context.Context, p Provider, id ProviderID) (string, string) {
	raw, err := p.Request(ctx, MethodChainID)
	if err != nil {
		c.logger.Warn().Err(err).Str("provider", string(id)).Msg("reading chain id failed")
		return "", UnknownChainName
	}
	var hexID string
	if err := json.Unmarshal(raw, &hexID); err != nil {
		c.logger.Warn().Err(err).Str("provider", string(id)).Msg("malformed eth_chainId result")
		return "", UnknownChainName
	}
	chainID, err := chain.ParseHexChainID(hexID)
	if err != nil {
		c.logger.Warn().Err(err).Str("provider", string(id)).Msg("malformed eth_chainId result")
		return "", UnknownChainName
	}
	return chainID, chain.ChainName(chainID)
}

func requestAccounts(ctx context.Context, p Provider, method string) ([]string, error) {
	raw, err := p.Request(ctx, method)
	if err != nil {
		return nil, err
	}
	var accounts []string
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("decoding %s result: %w", method, err)
	}
	return accounts, nil
}

// normalizeAddress returns the EIP-55 form of a hex address.
func normalizeAddress(s string) (string, bool) {
	if !common.IsHexAddress(s) {
		return "", false
	}
	return common.HexToAddress(s).Hex(), true
}
