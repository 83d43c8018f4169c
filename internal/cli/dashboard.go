package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/yolodolo42/walletdash/internal/chain"
	"github.com/yolodolo42/walletdash/internal/okx"
	"github.com/yolodolo42/walletdash/internal/ui"
	"github.com/yolodolo42/walletdash/internal/wallet"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show balances and recent transactions of the connected wallet",
	Long: `Restore or connect a wallet, then load its token balances and recent
transactions on the wallet's current chain.

--address skips the wallet and shows any address; --chain overrides the
wallet's chain.`,
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)

	dashboardCmd.Flags().String("address", "", "address to show instead of the connected wallet")
	dashboardCmd.Flags().String("chain", "", "chain id, decimal or 0x-prefixed hex (default is the wallet's chain)")
	dashboardCmd.Flags().String("provider", "", "provider to connect when no wallet is authorized")
	dashboardCmd.Flags().Bool("demo", false, "use in-process demo providers")
	dashboardCmd.Flags().Int("limit", okx.DefaultHistoryLimit, "number of transactions")
}

// dashboardData is what one dashboard render needs. Either half may fail
// independently.
type dashboardData struct {
	balances    []okx.Balance
	balancesErr error
	txs         []okx.Transaction
	txsErr      error
}

// dashboardSource is the part of okx.Client the dashboard reads from.
type dashboardSource interface {
	TokenBalances(ctx context.Context, address, chainID string) ([]okx.Balance, error)
	TransactionHistory(ctx context.Context, address, chainID string, limit int) ([]okx.Transaction, error)
}

// loadDashboard fetches balances and history concurrently.
func loadDashboard(ctx context.Context, src dashboardSource, address, chainID string, limit int) dashboardData {
	var (
		wg   sync.WaitGroup
		data dashboardData
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		data.balances, data.balancesErr = src.TokenBalances(ctx, address, chainID)
	}()
	go func() {
		defer wg.Done()
		data.txs, data.txsErr = src.TransactionHistory(ctx, address, chainID, limit)
	}()
	wg.Wait()
	return data
}

func runDashboard(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	addressFlag, _ := cmd.Flags().GetString("address")
	chainFlag, _ := cmd.Flags().GetString("chain")
	provider, _ := cmd.Flags().GetString("provider")
	demo, _ := cmd.Flags().GetBool("demo")
	limit, _ := cmd.Flags().GetInt("limit")

	var st wallet.State
	if addressFlag != "" {
		if !common.IsHexAddress(addressFlag) {
			return fmt.Errorf("invalid address: %s", addressFlag)
		}
		st = wallet.State{
			Status:  wallet.StatusConnected,
			Address: common.HexToAddress(addressFlag).Hex(),
		}
	} else {
		s := openSession(ctx, current, demo)
		defer s.Close()

		var err error
		if st, err = s.connector.Restore(ctx); err != nil {
			return err
		}
		if st.Status != wallet.StatusConnected {
			st, err = s.connect(ctx, provider)
			if errors.Is(err, ui.ErrCancelled) {
				return nil
			}
			if err != nil {
				return err
			}
		}
	}

	if chainFlag != "" {
		id, err := parseChainFlag(chainFlag)
		if err != nil {
			return err
		}
		st.ChainID = id
		st.ChainName = chain.ChainName(id)
	}
	if st.ChainID == "" {
		return fmt.Errorf("the wallet's chain is unknown; pass --chain")
	}

	client := current.okxClient()
	if !client.Configured() {
		return fmt.Errorf("%w; run 'walletdash setup'", okx.ErrCredentialsNotConfigured)
	}

	data := loadDashboard(ctx, client, st.Address, st.ChainID, limit)
	renderDashboard(out, st, data)

	if data.balancesErr != nil && data.txsErr != nil {
		return errors.Join(data.balancesErr, data.txsErr)
	}
	return nil
}

func renderDashboard(w io.Writer, st wallet.State, data dashboardData) {
	fmt.Fprint(w, ui.RenderState(st))

	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.TitleStyle.Render("Balances"))
	if data.balancesErr != nil {
		fmt.Fprintln(w, ui.ErrorStyle.Render(ui.SymbolCross+" "+data.balancesErr.Error()))
	} else {
		renderBalances(w, data.balances)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.TitleStyle.Render("Recent transactions"))
	if data.txsErr != nil {
		fmt.Fprintln(w, ui.ErrorStyle.Render(ui.SymbolCross+" "+data.txsErr.Error()))
	} else {
		renderTransactions(w, st.Address, data.txs)
	}
}
