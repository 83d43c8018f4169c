package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

const (
	DefaultHistoryLimit = 20

	codeOK = "0"
)

// Transaction is one entry of an address's transaction history.
type Transaction struct {
	TxID        string
	ChainID     string
	From        string
	To          string
	TokenAmount decimal.Decimal
	TokenSymbol string
	Status      string
	BlockTime   string
	GasUsed     decimal.Decimal
}

// Balance is one token holding of an address.
type Balance struct {
	ChainID      string
	TokenAddress string
	Symbol       string
	Balance      decimal.Decimal
	BalanceRaw   string
	PriceUSD     decimal.Decimal
	ValueUSD     decimal.Decimal
}

type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type rawTransaction struct {
	TxID        string `json:"txId"`
	ChainID     string `json:"chainId"`
	From        string `json:"from"`
	To          string `json:"to"`
	TokenAmount string `json:"tokenAmount"`
	TokenSymbol string `json:"tokenSymbol"`
	Status      string `json:"status"`
	BlockTime   string `json:"blockTime"`
	GasUsed     string `json:"gasUsed"`
}

type rawBalance struct {
	ChainID      string `json:"chainId"`
	TokenAddress string `json:"tokenAddress"`
	Symbol       string `json:"symbol"`
	Balance      string `json:"balance"`
	BalanceRaw   string `json:"balanceRaw"`
	PriceUSD     string `json:"priceUsd"`
	ValueUSD     string `json:"valueUsd"`
}

// HistoryQuery builds the query for EndpointTxHistory. A limit of zero
// selects DefaultHistoryLimit.
func HistoryQuery(address, chainID string, limit int) (url.Values, error) {
	address = strings.TrimSpace(address)
	chainID = strings.TrimSpace(chainID)
	if address == "" || chainID == "" {
		return nil, invalidInput("address and chainId are required")
	}
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	if limit < 0 {
		return nil, invalidInput("limit must be a positive integer")
	}
	return url.Values{
		"address": {address},
		"chainId": {chainID},
		"limit":   {strconv.Itoa(limit)},
	}, nil
}

// BalancesQuery builds the query for EndpointTokenBalances.
func BalancesQuery(address, chainID string) (url.Values, error) {
	address = strings.TrimSpace(address)
	chainID = strings.TrimSpace(chainID)
	if address == "" || chainID == "" {
		return nil, invalidInput("address and chainId are required")
	}
	return url.Values{
		"address": {address},
		"chains":  {chainID},
	}, nil
}

// RawTransactions returns the upstream transaction history JSON verbatim.
func (c *Client) RawTransactions(ctx context.Context, address, chainID string, limit int) (json.RawMessage, error) {
	query, err := HistoryQuery(address, chainID, limit)
	if err != nil {
		return nil, err
	}
	return c.Call(ctx, EndpointTxHistory, query)
}

// RawBalances returns the upstream token balance JSON verbatim.
func (c *Client) RawBalances(ctx context.Context, address, chainID string) (json.RawMessage, error) {
	query, err := BalancesQuery(address, chainID)
	if err != nil {
		return nil, err
	}
	return c.Call(ctx, EndpointTokenBalances, query)
}

// TransactionHistory fetches and decodes an address's recent transactions.
func (c *Client) TransactionHistory(ctx context.Context, address, chainID string, limit int) ([]Transaction, error) {
	raw, err := c.RawTransactions(ctx, address, chainID, limit)
	if err != nil {
		return nil, err
	}
	return DecodeTransactions(raw)
}

// TokenBalances fetches and decodes an address's token holdings.
func (c *Client) TokenBalances(ctx context.Context, address, chainID string) ([]Balance, error) {
	raw, err := c.RawBalances(ctx, address, chainID)
	if err != nil {
		return nil, err
	}
	return DecodeBalances(raw)
}

// DecodeTransactions decodes an OKX envelope carrying transactions.
func DecodeTransactions(raw []byte) ([]Transaction, error) {
	var items []rawTransaction
	if err := decodeEnvelope(raw, &items); err != nil {
		return nil, err
	}

	txs := make([]Transaction, 0, len(items))
	for _, item := range items {
		amount, err := parseAmount(item.TokenAmount)
		if err != nil {
			return nil, malformed("tokenAmount", item.TxID, err)
		}
		gas, err := parseAmount(item.GasUsed)
		if err != nil {
			return nil, malformed("gasUsed", item.TxID, err)
		}
		txs = append(txs, Transaction{
			TxID:        item.TxID,
			ChainID:     item.ChainID,
			From:        item.From,
			To:          item.To,
			TokenAmount: amount,
			TokenSymbol: item.TokenSymbol,
			Status:      item.Status,
			BlockTime:   item.BlockTime,
			GasUsed:     gas,
		})
	}
	return txs, nil
}

// DecodeBalances decodes an OKX envelope carrying token balances. Missing
// prices and values read as zero.
func DecodeBalances(raw []byte) ([]Balance, error) {
	var items []rawBalance
	if err := decodeEnvelope(raw, &items); err != nil {
		return nil, err
	}

	balances := make([]Balance, 0, len(items))
	for _, item := range items {
		bal, err := parseAmount(item.Balance)
		if err != nil {
			return nil, malformed("balance", item.Symbol, err)
		}
		price, err := parseAmount(item.PriceUSD)
		if err != nil {
			return nil, malformed("priceUsd", item.Symbol, err)
		}
		value, err := parseAmount(item.ValueUSD)
		if err != nil {
			return nil, malformed("valueUsd", item.Symbol, err)
		}
		balances = append(balances, Balance{
			ChainID:      item.ChainID,
			TokenAddress: item.TokenAddress,
			Symbol:       item.Symbol,
			Balance:      bal,
			BalanceRaw:   item.BalanceRaw,
			PriceUSD:     price,
			ValueUSD:     value,
		})
	}
	return balances, nil
}

func decodeEnvelope(raw []byte, out any) error {
	var env envelope
	if err := gojson.Unmarshal(raw, &env); err != nil {
		return newError(KindUpstreamFailure, "failed to parse upstream response", err)
	}
	if env.Code != codeOK {
		detail := fmt.Sprintf("upstream code %s", env.Code)
		if env.Msg != "" {
			detail += ": " + env.Msg
		}
		return newError(KindUpstreamFailure, detail, nil)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := gojson.Unmarshal(env.Data, out); err != nil {
		return newError(KindUpstreamFailure, "failed to parse upstream data", err)
	}
	return nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func malformed(field, id string, err error) *Error {
	return newError(KindUpstreamFailure, fmt.Sprintf("malformed %s for %s", field, id), err)
}
