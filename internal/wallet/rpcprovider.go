package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
)

// codeMethodNotFound is the JSON-RPC error code for an unknown method.
const codeMethodNotFound = -32601

// RPCProvider adapts a JSON-RPC node (a local signer, a wallet bridge, or a
// dev node) to the Provider contract. Events are synthesized by Watch.
type RPCProvider struct {
	Emitter

	client      *rpc.Client
	okx         bool
	logger      zerolog.Logger
	onReachable func(bool)

	mu       sync.Mutex
	accounts []string
	chainID  string
	seeded   bool
}

// RPCOptions configures an RPCProvider.
type RPCOptions struct {
	// OKXFlag makes the provider identify as OKX Wallet.
	OKXFlag bool
	Logger  *zerolog.Logger
	// OnReachable is called from Watch when polling starts failing (false)
	// or recovers (true).
	OnReachable func(reachable bool)
}

// NewRPCProvider wraps an existing rpc client.
func NewRPCProvider(client *rpc.Client, opts RPCOptions) *RPCProvider {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &RPCProvider{client: client, okx: opts.OKXFlag, logger: logger, onReachable: opts.OnReachable}
}

// DialRPCProvider connects to rawURL (http, ws or ipc).
func DialRPCProvider(ctx context.Context, rawURL string, opts RPCOptions) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", rawURL, err)
	}
	return NewRPCProvider(client, opts), nil
}

// Request implements Provider. Nodes without eth_requestAccounts are asked
// for eth_accounts instead.
func (p *RPCProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	var result json.RawMessage
	err := p.client.CallContext(ctx, &result, method, params...)
	if err != nil && method == MethodRequestAccounts && isMethodNotFound(err) {
		return p.Request(ctx, MethodAccounts, params...)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// IsOKXWallet implements OKXIdentifier.
func (p *RPCProvider) IsOKXWallet() bool {
	return p.okx
}

// Watch polls the node every interval and emits accountsChanged and
// chainChanged when the answers change. The node counts as reachable when
// Watch starts; OnReachable hears about every change after that. It returns
// when ctx is done.
func (p *RPCProvider) Watch(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	reachable := true
	for {
		err := p.Poll(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			p.logger.Debug().Err(err).Msg("wallet poll failed")
		}
		if ok := err == nil; ok != reachable {
			reachable = ok
			if p.onReachable != nil {
				p.onReachable(ok)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll reads accounts and chain once and emits events for whatever changed
// since the previous poll. The first poll only records the baseline.
func (p *RPCProvider) Poll(ctx context.Context) error {
	accounts, err := requestAccounts(ctx, p, MethodAccounts)
	if err != nil {
		return err
	}
	raw, err := p.Request(ctx, MethodChainID)
	if err != nil {
		return err
	}
	var chainID string
	if err := json.Unmarshal(raw, &chainID); err != nil {
		return fmt.Errorf("decoding %s result: %w", MethodChainID, err)
	}

	p.mu.Lock()
	seeded := p.seeded
	accountsChanged := seeded && !slices.Equal(accounts, p.accounts)
	chainChanged := seeded && chainID != p.chainID
	p.accounts = accounts
	p.chainID = chainID
	p.seeded = true
	p.mu.Unlock()

	if accountsChanged {
		if accounts == nil {
			accounts = []string{}
		}
		payload, _ := json.Marshal(accounts)
		p.Emit(EventAccountsChanged, payload)
	}
	if chainChanged {
		payload, _ := json.Marshal(chainID)
		p.Emit(EventChainChanged, payload)
	}
	return nil
}

// Close closes the underlying rpc client.
func (p *RPCProvider) Close() {
	p.client.Close()
}

func isMethodNotFound(err error) bool {
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeMethodNotFound
}
