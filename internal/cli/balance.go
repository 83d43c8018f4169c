package cli

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/yolodolo42/walletdash/internal/chain"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show native balances read directly from chain RPC",
	Long: `Display the native token balance of an address on each selected chain,
read from the chain's RPC endpoints (chains.<id>.rpc_urls overrides the
built-in list).`,
	RunE: runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)

	balanceCmd.Flags().String("address", "", "address to check")
	balanceCmd.Flags().StringSlice("chains", []string{"1", "56", "137", "42161", "10"}, "chain ids to query")
	_ = balanceCmd.MarkFlagRequired("address")
}

func runBalance(cmd *cobra.Command, args []string) error {
	addressFlag, _ := cmd.Flags().GetString("address")
	chains, _ := cmd.Flags().GetStringSlice("chains")
	out := cmd.OutOrStdout()

	if !common.IsHexAddress(addressFlag) {
		return fmt.Errorf("invalid address: %s", addressFlag)
	}
	address := common.HexToAddress(addressFlag)

	client := chain.NewClient()
	defer client.Close()

	for id, cc := range current.cfg.Chains {
		if len(cc.RPCURLs) == 0 {
			continue
		}
		if err := client.SetRPCURLs(id, cc.RPCURLs); err != nil {
			current.logger.Warn().Err(err).Str("chain", id).Msg("ignoring rpc_urls override")
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	fmt.Fprintf(out, "Native balances for %s\n", address.Hex())
	fmt.Fprintln(out, "─────────────────────────────────────────────────────────")

	for _, flag := range chains {
		id, err := parseChainFlag(flag)
		if err != nil {
			fmt.Fprintf(out, "%-20s  ⚠ Error: %v\n", flag, err)
			continue
		}

		balance, err := client.GetNativeBalance(ctx, id, address)
		if err != nil {
			fmt.Fprintf(out, "%-20s  ⚠ Error: %v\n", chain.ChainName(id), err)
			continue
		}

		indicator := "○"
		if balance.Balance.Cmp(big.NewInt(0)) > 0 {
			indicator = "●"
		}
		fmt.Fprintf(out, "%s %-20s  %s %s\n", indicator, balance.Chain, chain.FormatBalance(balance.Balance, balance.Decimals), balance.Symbol)
	}

	fmt.Fprintln(out, "─────────────────────────────────────────────────────────")
	return nil
}
