package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/yolodolo42/walletdash/internal/chain"
	"github.com/yolodolo42/walletdash/internal/okx"
)

var endpointCmd = &cobra.Command{
	Use:   "endpoint <name>",
	Short: "Make one signed call to a named OKX endpoint",
	Long: `Make one signed GET request to a named OKX endpoint and print the
upstream JSON.

Endpoints:
  security-status  - account configuration
  tx-history       - transactions by address (needs address, chainId)
  token-balances   - token balances by address (needs address, chains)`,
	Args: cobra.ExactArgs(1),
	RunE: runEndpoint,
}

var transactionsCmd = &cobra.Command{
	Use:   "transactions",
	Short: "Show recent transactions of an address",
	RunE:  runTransactions,
}

var balancesCmd = &cobra.Command{
	Use:   "balances",
	Short: "Show token balances of an address",
	RunE:  runBalances,
}

func init() {
	rootCmd.AddCommand(endpointCmd)
	rootCmd.AddCommand(transactionsCmd)
	rootCmd.AddCommand(balancesCmd)

	endpointCmd.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return endpointNames(), cobra.ShellCompDirectiveNoFileComp
	}
	endpointCmd.Flags().StringArrayP("param", "p", nil, "query parameter as key=value (repeatable)")

	for _, c := range []*cobra.Command{transactionsCmd, balancesCmd} {
		c.Flags().String("address", "", "address to query")
		c.Flags().String("chain", "1", "chain id, decimal or 0x-prefixed hex")
		c.Flags().Bool("json", false, "print the upstream JSON verbatim")
		_ = c.MarkFlagRequired("address")
	}
	transactionsCmd.Flags().Int("limit", okx.DefaultHistoryLimit, "number of transactions")
}

func runEndpoint(cmd *cobra.Command, args []string) error {
	params, _ := cmd.Flags().GetStringArray("param")
	query, err := parseParams(params)
	if err != nil {
		return err
	}

	raw, err := current.okxClient().CallEndpoint(cmd.Context(), args[0], query)
	if errors.Is(err, okx.ErrUnknownEndpoint) {
		return fmt.Errorf("%w (known: %s)", err, strings.Join(endpointNames(), ", "))
	}
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), raw)
}

func runTransactions(cmd *cobra.Command, args []string) error {
	address, chainID, err := addressAndChain(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")
	client := current.okxClient()

	if asJSON {
		raw, err := client.RawTransactions(cmd.Context(), address, chainID, limit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), raw)
	}

	txs, err := client.TransactionHistory(cmd.Context(), address, chainID, limit)
	if err != nil {
		return err
	}
	renderTransactions(cmd.OutOrStdout(), address, txs)
	return nil
}

func runBalances(cmd *cobra.Command, args []string) error {
	address, chainID, err := addressAndChain(cmd)
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	client := current.okxClient()

	if asJSON {
		raw, err := client.RawBalances(cmd.Context(), address, chainID)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), raw)
	}

	balances, err := client.TokenBalances(cmd.Context(), address, chainID)
	if err != nil {
		return err
	}
	renderBalances(cmd.OutOrStdout(), balances)
	return nil
}

func endpointNames() []string {
	var names []string
	for _, ep := range okx.AllEndpoints() {
		names = append(names, string(ep))
	}
	return names
}

func addressAndChain(cmd *cobra.Command) (string, string, error) {
	address, _ := cmd.Flags().GetString("address")
	chainFlag, _ := cmd.Flags().GetString("chain")
	chainID, err := parseChainFlag(chainFlag)
	if err != nil {
		return "", "", err
	}
	return strings.TrimSpace(address), chainID, nil
}

// parseChainFlag accepts "137" or "0x89" and returns the base-10 id.
func parseChainFlag(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("chain is required")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return chain.ParseHexChainID(s)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q", chain.ErrMalformedChainID, s)
		}
	}
	return s, nil
}

func parseParams(params []string) (url.Values, error) {
	query := url.Values{}
	for _, p := range params {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q: expected key=value", p)
		}
		query.Add(key, value)
	}
	return query, nil
}

func printJSON(w io.Writer, raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		// Not JSON; print as received.
		_, err = fmt.Fprintln(w, string(raw))
		return err
	}
	_, err := fmt.Fprintln(w, buf.String())
	return err
}

func renderTransactions(w io.Writer, address string, txs []okx.Transaction) {
	if len(txs) == 0 {
		fmt.Fprintln(w, "No transactions found.")
		return
	}

	fmt.Fprintln(w, "─────────────────────────────────────────────────────────────────────")
	for _, tx := range txs {
		direction := "↔"
		switch {
		case strings.EqualFold(tx.From, address):
			direction = "→"
		case strings.EqualFold(tx.To, address):
			direction = "←"
		}
		fmt.Fprintf(w, "%s %-12s %18s %-8s %-8s %s\n",
			direction,
			shortHash(tx.TxID),
			tx.TokenAmount.String(),
			tx.TokenSymbol,
			tx.Status,
			tx.BlockTime,
		)
		if link := chain.TxURL(tx.ChainID, tx.TxID); link != "" {
			fmt.Fprintf(w, "  %s\n", link)
		}
	}
	fmt.Fprintln(w, "─────────────────────────────────────────────────────────────────────")
}

func renderBalances(w io.Writer, balances []okx.Balance) {
	if len(balances) == 0 {
		fmt.Fprintln(w, "No token balances found.")
		return
	}

	fmt.Fprintln(w, "─────────────────────────────────────────────────────────")
	for _, b := range balances {
		indicator := "○"
		if b.Balance.IsPositive() {
			indicator = "●"
		}
		fmt.Fprintf(w, "%s %-10s %24s  $%s\n", indicator, b.Symbol, b.Balance.String(), b.ValueUSD.StringFixed(2))
	}
	fmt.Fprintln(w, "─────────────────────────────────────────────────────────")
}

func shortHash(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:6] + "…" + h[len(h)-4:]
}
