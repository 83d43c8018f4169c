package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client reads on-chain state from the chains in DefaultChains, keyed by
// base-10 chain id.
type Client struct {
	chains  map[string]*ChainConfig
	clients map[string]*ethclient.Client
	mu      sync.Mutex
}

// NewClient creates a new multi-chain client
func NewClient() *Client {
	return &Client{
		chains:  DefaultChains(),
		clients: make(map[string]*ethclient.Client),
	}
}

// SetRPCURLs overrides the RPC endpoints of a known chain.
func (c *Client) SetRPCURLs(chainID string, urls []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	config, ok := c.chains[chainID]
	if !ok {
		return fmt.Errorf("unknown chain: %s", chainID)
	}
	updated := *config
	updated.RPCURLs = urls
	c.chains[chainID] = &updated
	if client, ok := c.clients[chainID]; ok {
		client.Close()
		delete(c.clients, chainID)
	}
	return nil
}

// GetChainConfig returns the configuration for a chain
func (c *Client) GetChainConfig(chainID string) (*ChainConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	config, ok := c.chains[chainID]
	if !ok {
		return nil, fmt.Errorf("unknown chain: %s", chainID)
	}
	return config, nil
}

// getClient returns an ethclient for the given chain, dialing the configured
// RPC URLs in order and keeping the first one whose chain id matches.
func (c *Client) getClient(chainID string) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	config, ok := c.chains[chainID]
	if !ok {
		return nil, fmt.Errorf("unknown chain: %s", chainID)
	}
	if client, exists := c.clients[chainID]; exists {
		return client, nil
	}

	var lastErr error
	for _, rpcURL := range config.RPCURLs {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, err := ethclient.DialContext(ctx, rpcURL)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}

		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		remoteID, err := client.ChainID(ctx)
		cancel()
		if err != nil {
			client.Close()
			lastErr = err
			continue
		}
		if remoteID.Cmp(config.ChainID) != 0 {
			client.Close()
			lastErr = fmt.Errorf("chain ID mismatch: expected %s, got %s", config.ChainID, remoteID)
			continue
		}

		c.clients[chainID] = client
		return client, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no RPC URLs configured")
	}
	return nil, fmt.Errorf("failed to connect to %s: %w", config.Name, lastErr)
}

// GetBalance returns the native token balance for an address on a chain
func (c *Client) GetBalance(ctx context.Context, chainID string, address common.Address) (*big.Int, error) {
	client, err := c.getClient(chainID)
	if err != nil {
		return nil, err
	}
	return client.BalanceAt(ctx, address, nil)
}

// Close closes all client connections
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, client := range c.clients {
		client.Close()
	}
	c.clients = make(map[string]*ethclient.Client)
}
