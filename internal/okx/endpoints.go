package okx

import "fmt"

// Endpoint is one of the fixed upstream operations the client may call.
// Callers never supply raw paths.
type Endpoint string

const (
	EndpointWalletInfo     Endpoint = "wallet-info"
	EndpointTransactions   Endpoint = "transactions"
	EndpointSecurityStatus Endpoint = "security-status"
	EndpointTxHistory      Endpoint = "tx-history"
	EndpointTokenBalances  Endpoint = "token-balances"
)

var endpointPaths = map[Endpoint]string{
	EndpointWalletInfo:     "/api/v5/wallet/balance",
	EndpointTransactions:   "/api/v5/trade/orders-history",
	EndpointSecurityStatus: "/api/v5/account/config",
	EndpointTxHistory:      "/api/v5/dex/aggregator/account/tx-history",
	EndpointTokenBalances:  "/api/v5/wallet/asset/all-token-balances-by-address",
}

// ParseEndpoint validates an externally supplied endpoint name.
func ParseEndpoint(name string) (Endpoint, error) {
	ep := Endpoint(name)
	if _, ok := endpointPaths[ep]; !ok {
		return "", newError(KindUnknownEndpoint, fmt.Sprintf("invalid endpoint %q", name), nil)
	}
	return ep, nil
}

// Path returns the upstream path template for the endpoint.
func (e Endpoint) Path() string {
	return endpointPaths[e]
}

// AllEndpoints returns every known endpoint in a stable order.
func AllEndpoints() []Endpoint {
	return []Endpoint{
		EndpointWalletInfo,
		EndpointTransactions,
		EndpointSecurityStatus,
		EndpointTxHistory,
		EndpointTokenBalances,
	}
}
