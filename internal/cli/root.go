package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yolodolo42/walletdash/internal/auth"
	"github.com/yolodolo42/walletdash/internal/config"
	"github.com/yolodolo42/walletdash/internal/logging"
	"github.com/yolodolo42/walletdash/internal/okx"
)

const envPrefix = "WALLETDASH"

var (
	cfgFile string
	dataDir string

	rootCmd = &cobra.Command{
		Use:   "walletdash",
		Short: "Wallet connection and OKX Web3 API dashboard",
		Long: `walletdash discovers injected wallet providers, runs the connection flow
against the one you pick, and reads balances and transaction history for
the connected address through signed OKX Web3 API calls.

The same signed calls are exposed over HTTP by 'walletdash serve'.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadApp,
	}
)

// app holds what every command needs once flags and config are resolved.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	auth   *auth.Manager
}

var current *app

// Execute runs the root command. SIGINT and SIGTERM cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.walletdash/config.yaml)")
	flags.StringVar(&dataDir, "data-dir", "", "directory holding auth.json (default is $HOME/.walletdash)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", logging.FormatAuto, "log format (auto, console, json)")
	flags.String("okx-base-url", okx.DefaultBaseURL, "OKX API base URL")

	_ = viper.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	_ = viper.BindPFlag(config.KeyLogFormat, flags.Lookup("log-format"))
	_ = viper.BindPFlag(config.KeyOKXBaseURL, flags.Lookup("okx-base-url"))
}

func initConfig() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := config.DataDir()
		cobra.CheckErr(err)

		if err := os.MkdirAll(dir, 0700); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config directory: %v\n", err)
		}

		viper.AddConfigPath(dir)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Silently ignore missing config file - it's optional
	_ = viper.ReadInConfig()
}

func loadApp(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	log.Logger = logger

	dir := dataDir
	if dir == "" {
		if dir, err = config.DataDir(); err != nil {
			return err
		}
	}
	manager, err := auth.NewManager(filepath.Clean(dir))
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	if f := viper.ConfigFileUsed(); f != "" {
		logger.Debug().Str("file", f).Msg("loaded config")
	}

	current = &app{cfg: cfg, logger: logger, auth: manager}
	return nil
}

func (a *app) okxOptions() okx.Options {
	return okx.Options{
		BaseURL:   a.cfg.OKX.BaseURL,
		Timeout:   a.cfg.OKX.Timeout,
		RateLimit: a.cfg.OKX.RateLimit,
		Logger:    &a.logger,
	}
}

func (a *app) okxClient() *okx.Client {
	return okx.NewClient(a.auth.Credentials(), a.okxOptions())
}
