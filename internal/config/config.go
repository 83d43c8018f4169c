package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/yolodolo42/walletdash/internal/okx"
	"github.com/yolodolo42/walletdash/internal/wallet"
)

// Config keys.
const (
	KeyOKXBaseURL   = "okx.base_url"
	KeyOKXTimeout   = "okx.timeout"
	KeyOKXRateLimit = "okx.rate_limit"
	KeyServerAddr   = "server.addr"
	KeyLogLevel     = "log.level"
	KeyLogFormat    = "log.format"
	KeyWallets      = "wallets"
	KeyChains       = "chains"
)

const (
	DefaultServerAddr   = "127.0.0.1:8080"
	DefaultPollInterval = 4 * time.Second
	dataDirName         = ".walletdash"
)

// Config is the resolved process configuration. OKX credentials are not
// part of it; see auth.Manager.
type Config struct {
	OKX     OKXConfig
	Server  ServerConfig
	Log     LogConfig
	Wallets map[wallet.ProviderID]WalletConfig
	Chains  map[string]ChainConfig
}

type OKXConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// WalletConfig points a provider at a JSON-RPC endpoint that stands in for
// the injected wallet.
type WalletConfig struct {
	RPCURL       string        `mapstructure:"rpc_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	OKXFlag      bool          `mapstructure:"okx_flag"`
}

// ChainConfig overrides the RPC endpoints used to read balances.
type ChainConfig struct {
	RPCURLs []string `mapstructure:"rpc_urls"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyOKXBaseURL, okx.DefaultBaseURL)
	v.SetDefault(KeyOKXTimeout, okx.DefaultTimeout)
	v.SetDefault(KeyOKXRateLimit, okx.DefaultRateLimit)
	v.SetDefault(KeyServerAddr, DefaultServerAddr)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "auto")
}

// Load decodes v into a Config.
func Load(v *viper.Viper) (*Config, error) {
	var raw struct {
		OKX     OKXConfig               `mapstructure:"okx"`
		Server  ServerConfig            `mapstructure:"server"`
		Log     LogConfig               `mapstructure:"log"`
		Wallets map[string]WalletConfig `mapstructure:"wallets"`
		Chains  map[string]ChainConfig  `mapstructure:"chains"`
	}
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg := &Config{
		OKX:     raw.OKX,
		Server:  raw.Server,
		Log:     raw.Log,
		Wallets: make(map[wallet.ProviderID]WalletConfig),
		Chains:  raw.Chains,
	}
	if cfg.Chains == nil {
		cfg.Chains = make(map[string]ChainConfig)
	}

	if cfg.OKX.Timeout < 0 {
		return nil, fmt.Errorf("%s must not be negative", KeyOKXTimeout)
	}
	if cfg.OKX.BaseURL == "" {
		cfg.OKX.BaseURL = okx.DefaultBaseURL
	}

	for name, wc := range raw.Wallets {
		id, ok := wallet.ParseProviderID(name)
		if !ok {
			return nil, fmt.Errorf("%s: unknown wallet provider %q", KeyWallets, name)
		}
		if strings.TrimSpace(wc.RPCURL) == "" {
			return nil, fmt.Errorf("%s.%s.rpc_url is required", KeyWallets, name)
		}
		if wc.PollInterval <= 0 {
			wc.PollInterval = DefaultPollInterval
		}
		cfg.Wallets[id] = wc
	}

	return cfg, nil
}

// DataDir returns $HOME/.walletdash.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, dataDirName), nil
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}
