package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrMalformedChainID is returned when a provider reports a chain id that is
// not a hex quantity.
var ErrMalformedChainID = errors.New("malformed chain id")

// ChainConfig holds display and RPC settings for an EVM chain.
type ChainConfig struct {
	Name           string
	ChainID        *big.Int
	RPCURLs        []string
	ExplorerURL    string
	NativeCurrency string
}

// Key returns the base-10 chain id used to index DefaultChains.
func (c *ChainConfig) Key() string {
	return c.ChainID.String()
}

func newChain(name string, id int64, currency, explorer string, rpcs ...string) *ChainConfig {
	return &ChainConfig{
		Name:           name,
		ChainID:        big.NewInt(id),
		RPCURLs:        rpcs,
		ExplorerURL:    explorer,
		NativeCurrency: currency,
	}
}

// DefaultChains returns the known chains keyed by base-10 chain id.
func DefaultChains() map[string]*ChainConfig {
	chains := []*ChainConfig{
		newChain("Ethereum Mainnet", 1, "ETH", "https://etherscan.io",
			"https://eth.llamarpc.com", "https://rpc.ankr.com/eth"),
		newChain("BSC Mainnet", 56, "BNB", "https://bscscan.com",
			"https://bsc-dataseed.binance.org", "https://rpc.ankr.com/bsc"),
		newChain("Polygon Mainnet", 137, "POL", "https://polygonscan.com",
			"https://polygon-rpc.com", "https://polygon.llamarpc.com"),
		newChain("Avalanche Mainnet", 43114, "AVAX", "https://snowtrace.io",
			"https://api.avax.network/ext/bc/C/rpc"),
		newChain("Fantom Mainnet", 250, "FTM", "https://ftmscan.com",
			"https://rpc.ftm.tools"),
		newChain("Arbitrum One", 42161, "ETH", "https://arbiscan.io",
			"https://arb1.arbitrum.io/rpc", "https://arbitrum.llamarpc.com"),
		newChain("Optimism Mainnet", 10, "ETH", "https://optimistic.etherscan.io",
			"https://mainnet.optimism.io", "https://optimism.llamarpc.com"),
	}

	m := make(map[string]*ChainConfig, len(chains))
	for _, c := range chains {
		m[c.Key()] = c
	}
	return m
}

var names = func() map[string]string {
	m := make(map[string]string)
	for id, c := range DefaultChains() {
		m[id] = c.Name
	}
	return m
}()

// TxURL links a transaction on the chain's block explorer. It returns ""
// for chains without a known explorer.
func TxURL(id, hash string) string {
	c, ok := DefaultChains()[id]
	if !ok || c.ExplorerURL == "" || hash == "" {
		return ""
	}
	return c.ExplorerURL + "/tx/" + hash
}

// ChainName returns the display name for a base-10 chain id, or
// "Chain {id}" for ids not in the table.
func ChainName(id string) string {
	if name, ok := names[id]; ok {
		return name
	}
	return fmt.Sprintf("Chain %s", id)
}

// ParseHexChainID converts a provider-reported hex chain id ("0x89") to its
// base-10 form ("137"). The 0x prefix and leading zeros are optional.
func ParseHexChainID(hex string) (string, error) {
	digits := strings.TrimSpace(hex)
	if len(digits) >= 2 && (digits[:2] == "0x" || digits[:2] == "0X") {
		digits = digits[2:]
	}
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		if strings.TrimSpace(hex) == "" || strings.EqualFold(strings.TrimSpace(hex), "0x") {
			return "", fmt.Errorf("%w: %q", ErrMalformedChainID, hex)
		}
		digits = "0"
	}

	id, err := hexutil.DecodeBig("0x" + digits)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrMalformedChainID, hex, err)
	}
	return id.String(), nil
}
