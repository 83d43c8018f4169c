package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/yolodolo42/walletdash/internal/config"
	"github.com/yolodolo42/walletdash/internal/ui"
	"github.com/yolodolo42/walletdash/internal/wallet"
)

// Demo accounts served by --demo providers.
const (
	demoAccountOKX      = "0x8ba1f109551bD432803012645Ac136ddd64DBA72"
	demoAccountMetaMask = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Discover and connect wallet providers",
	Long: `Discover wallet providers and run the connection flow.

Providers are configured as JSON-RPC endpoints under wallets.<provider>.rpc_url,
for example a local signer or a wallet bridge. --demo serves two in-process
providers instead.`,
}

var walletDetectCmd = &cobra.Command{
	Use:   "detect",
	Short: "List wallet providers and whether they are available",
	RunE:  runWalletDetect,
}

var walletConnectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect a wallet provider",
	RunE:  runWalletConnect,
}

var walletRestoreCmd = &cobra.Command{
	Use:     "restore",
	Aliases: []string{"status"},
	Short:   "Restore a previously authorized connection without prompting",
	RunE:    runWalletRestore,
}

func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(walletDetectCmd)
	walletCmd.AddCommand(walletConnectCmd)
	walletCmd.AddCommand(walletRestoreCmd)

	walletCmd.PersistentFlags().Bool("demo", false, "use in-process demo providers")
	walletConnectCmd.Flags().String("provider", "", "provider to connect (okxwallet, metamask, coinbase, trustwallet)")
	walletConnectCmd.Flags().Bool("watch", false, "stay connected and print account and chain changes")
}

// session owns the providers and connector built for one command.
type session struct {
	env       *wallet.LiveGlobals
	registry  *wallet.Registry
	connector *wallet.Connector
	logger    zerolog.Logger

	cancel  context.CancelFunc
	closers []func()
}

// openSession builds the provider environment. Configured RPC providers are
// dialed and watched until Close; a provider that cannot be dialed is logged
// and left out, and one whose polling starts failing is withdrawn until it
// answers again.
func openSession(ctx context.Context, a *app, demo bool) *session {
	ctx, cancel := context.WithCancel(ctx)
	s := &session{env: wallet.NewLiveGlobals(), logger: a.logger, cancel: cancel}
	logger := a.logger

	type watched struct {
		id       wallet.ProviderID
		provider *wallet.RPCProvider
		interval time.Duration
	}
	var watch []watched

	if demo {
		okxProvider := wallet.NewMemoryProvider("0x1", demoAccountOKX)
		okxProvider.SetOKXWallet(true)
		s.env.Set(wallet.ProviderOKX.Global(), okxProvider)
		s.env.Set(wallet.ProviderMetaMask.Global(), wallet.NewMemoryProvider("0x89", demoAccountMetaMask))
	} else {
		for _, id := range wallet.AllProviderIDs() {
			wc, ok := a.cfg.Wallets[id]
			if !ok {
				continue
			}
			var (
				p   *wallet.RPCProvider
				err error
			)
			p, err = wallet.DialRPCProvider(ctx, wc.RPCURL, wallet.RPCOptions{
				OKXFlag: wc.OKXFlag,
				Logger:  &logger,
				OnReachable: func(reachable bool) {
					s.setReachable(id, p, reachable)
				},
			})
			if err != nil {
				logger.Warn().Err(err).Str("provider", string(id)).Msg("provider unavailable")
				continue
			}
			s.env.Set(id.Global(), p)
			s.closers = append(s.closers, p.Close)
			watch = append(watch, watched{id, p, wc.PollInterval})
		}
	}

	s.registry = wallet.NewRegistry(s.env, logger)
	s.connector = wallet.NewConnector(s.registry, logger)

	for _, w := range watch {
		go func() {
			if err := w.provider.Watch(ctx, w.interval); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn().Err(err).Str("provider", string(w.id)).Msg("provider watch stopped")
			}
		}()
	}
	return s
}

// setReachable withdraws or restores a provider's global and re-runs
// detection, which drops a connection to a provider that went away.
func (s *session) setReachable(id wallet.ProviderID, p wallet.Provider, reachable bool) {
	if reachable {
		s.env.Set(id.Global(), p)
		s.logger.Info().Str("provider", string(id)).Msg("wallet provider reachable again")
	} else {
		s.env.Delete(id.Global())
		s.logger.Warn().Str("provider", string(id)).Msg("wallet provider unreachable")
	}
	s.connector.Refresh()
}

// refreshEvery re-runs detection on every tick until ctx is done.
func (s *session) refreshEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.connector.Refresh()
		}
	}
}

// Close disconnects and releases the providers.
func (s *session) Close() {
	s.connector.Disconnect()
	s.cancel()
	for _, c := range s.closers {
		c()
	}
}

// connect runs the selection flow in a terminal, or connects the named
// provider directly otherwise.
func (s *session) connect(ctx context.Context, provider string) (wallet.State, error) {
	var preferred wallet.ProviderID
	if provider != "" {
		id, ok := wallet.ParseProviderID(provider)
		if !ok {
			return s.connector.State(), fmt.Errorf("unknown provider: %s", provider)
		}
		preferred = id
	}

	if isInteractive() {
		return ui.RunConnect(ctx, s.connector, s.registry.Descriptors(), preferred)
	}
	if preferred == "" {
		return s.connector.State(), fmt.Errorf("--provider is required when not running in a terminal")
	}
	return s.connector.Connect(ctx, preferred)
}

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func runWalletDetect(cmd *cobra.Command, args []string) error {
	demo, _ := cmd.Flags().GetBool("demo")
	s := openSession(cmd.Context(), current, demo)
	defer s.Close()

	renderDescriptors(cmd.OutOrStdout(), s.registry.Descriptors())
	return nil
}

func renderDescriptors(w io.Writer, descriptors []wallet.Descriptor) {
	fmt.Fprintln(w, "Wallet providers:")
	for _, d := range descriptors {
		status := ui.SelectorDim.Render("not detected")
		if d.Available {
			status = ui.SuccessStyle.Render(ui.SymbolCheck + " available")
		}
		fmt.Fprintf(w, "  %-16s %-24s %s\n", d.DisplayName, d.Global, status)
	}
}

func runWalletConnect(cmd *cobra.Command, args []string) error {
	demo, _ := cmd.Flags().GetBool("demo")
	provider, _ := cmd.Flags().GetString("provider")
	watch, _ := cmd.Flags().GetBool("watch")
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	s := openSession(ctx, current, demo)
	defer s.Close()

	st, err := s.connect(ctx, provider)
	if errors.Is(err, ui.ErrCancelled) {
		fmt.Fprintln(out, "Cancelled.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprint(out, ui.RenderState(st))

	if !watch || st.Status != wallet.StatusConnected {
		return nil
	}

	fmt.Fprintln(out, ui.HelpStyle.Render("Watching for account and chain changes. Ctrl+C to stop."))
	s.connector.OnChange(func(st wallet.State) {
		fmt.Fprintln(out)
		fmt.Fprint(out, ui.RenderState(st))
	})
	s.refreshEvery(ctx, config.DefaultPollInterval)
	return nil
}

func runWalletRestore(cmd *cobra.Command, args []string) error {
	demo, _ := cmd.Flags().GetBool("demo")
	out := cmd.OutOrStdout()

	s := openSession(cmd.Context(), current, demo)
	defer s.Close()

	st, err := s.connector.Restore(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprint(out, ui.RenderState(st))
	if st.Status != wallet.StatusConnected {
		fmt.Fprintln(out, ui.HelpStyle.Render("No authorized wallet. Run 'walletdash wallet connect'."))
	}
	return nil
}
