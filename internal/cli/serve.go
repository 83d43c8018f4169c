package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yolodolo42/walletdash/internal/config"
	"github.com/yolodolo42/walletdash/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signed OKX proxy over HTTP",
	Long: `Serve /api/endpoint, /api/transactions and /api/balances, signing every
upstream request with the configured OKX credentials. Prometheus metrics
are exposed on /metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", config.DefaultServerAddr, "listen address")
	_ = viper.BindPFlag(config.KeyServerAddr, serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	a := current
	client := a.okxClient()
	if !client.Configured() {
		a.logger.Warn().Msg("OKX credentials are not configured; API routes will answer 500")
	}

	srv := server.New(client, server.Options{Logger: &a.logger})
	return srv.ListenAndServe(cmd.Context(), a.cfg.Server.Addr)
}
