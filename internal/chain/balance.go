package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// NativeBalance is the native-currency balance of an address on one chain.
type NativeBalance struct {
	ChainID  string   `json:"chain_id"`
	Chain    string   `json:"chain"`
	Symbol   string   `json:"symbol"`
	Balance  *big.Int `json:"balance"`
	Decimals uint8    `json:"decimals"`
}

// GetNativeBalance returns the native token balance for an address
func (c *Client) GetNativeBalance(ctx context.Context, chainID string, address common.Address) (*NativeBalance, error) {
	config, err := c.GetChainConfig(chainID)
	if err != nil {
		return nil, err
	}

	balance, err := c.GetBalance(ctx, chainID, address)
	if err != nil {
		return nil, err
	}

	return &NativeBalance{
		ChainID:  chainID,
		Chain:    config.Name,
		Symbol:   config.NativeCurrency,
		Balance:  balance,
		Decimals: 18,
	}, nil
}

// FormatBalance formats a balance with decimals as a human-readable string,
// capped at six fractional digits.
func FormatBalance(balance *big.Int, decimals uint8) string {
	if balance == nil {
		return "0"
	}

	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	result := new(big.Float).Quo(new(big.Float).SetInt(balance), divisor)

	if decimals > 6 {
		return result.Text('f', 6)
	}
	return result.Text('f', int(decimals))
}
