package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolodolo42/walletdash/internal/auth"
	"github.com/yolodolo42/walletdash/internal/chain"
	"github.com/yolodolo42/walletdash/internal/config"
	"github.com/yolodolo42/walletdash/internal/okx"
	"github.com/yolodolo42/walletdash/internal/testutil"
	"github.com/yolodolo42/walletdash/internal/wallet"
)

const testAddress = "0x8ba1f109551bD432803012645Ac136ddd64DBA72"

const txHistoryBody = `{"code":"0","msg":"","data":[
	{"txId":"0xabc0000000000000000000000000000000000000000000000000000000000def","chainId":"1",
	 "from":"0x8ba1f109551bd432803012645ac136ddd64dba72","to":"0x0000000000000000000000000000000000000001",
	 "tokenAmount":"12.5","tokenSymbol":"USDT","status":"success","blockTime":"1700000000000","gasUsed":"21000"}]}`

const balancesBody = `{"code":"0","msg":"","data":[
	{"chainId":"1","tokenAddress":"","symbol":"ETH","balance":"1.25","balanceRaw":"1250000000000000000","priceUsd":"2000","valueUsd":"2500"}]}`

func newFakeUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(okx.HeaderAccessSign) == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case okx.EndpointTxHistory.Path():
			_, _ = io.WriteString(w, txHistoryBody)
		case okx.EndpointTokenBalances.Path():
			_, _ = io.WriteString(w, balancesBody)
		default:
			_, _ = io.WriteString(w, `{"code":"0","data":[{"uid":"42"}]}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// commandEnv isolates HOME and the credential variables. It returns the
// --data-dir to pass.
func commandEnv(t *testing.T, withCreds bool) string {
	t.Helper()
	testutil.SetEnv(t, "HOME", testutil.TempDir(t))
	for _, info := range auth.AllFields() {
		if withCreds {
			testutil.SetEnv(t, info.EnvVar, "test-"+string(info.Field))
		} else {
			testutil.UnsetEnv(t, info.EnvVar)
		}
	}
	return testutil.TempDir(t)
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// cobra only fills in a subcommand context that is still nil, so a
	// context from an earlier run would otherwise stick.
	setContextTree(rootCmd, ctx)
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

func setContextTree(cmd *cobra.Command, ctx context.Context) {
	cmd.SetContext(ctx)
	for _, c := range cmd.Commands() {
		setContextTree(c, ctx)
	}
}

func TestEndpointCommand(t *testing.T) {
	upstream := newFakeUpstream(t)
	dir := commandEnv(t, true)

	t.Run("prints indented upstream JSON", func(t *testing.T) {
		out, err := runCommand(t, "endpoint", "security-status", "--data-dir", dir, "--okx-base-url", upstream.URL)
		require.NoError(t, err)
		assert.Contains(t, out, `"code": "0"`)
		assert.Contains(t, out, `"uid": "42"`)
	})

	t.Run("unknown endpoint", func(t *testing.T) {
		_, err := runCommand(t, "endpoint", "not-an-endpoint", "--data-dir", dir, "--okx-base-url", upstream.URL)
		require.Error(t, err)
		assert.True(t, errors.Is(err, okx.ErrUnknownEndpoint))
		assert.Contains(t, err.Error(), "security-status")
		assert.Contains(t, err.Error(), "tx-history")
	})

	t.Run("same subcommand runs again after its context ended", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			out, err := runCommand(t, "endpoint", "security-status", "--data-dir", dir, "--okx-base-url", upstream.URL)
			require.NoError(t, err, "run %d", i)
			assert.Contains(t, out, `"uid": "42"`)
		}
	})
}

func TestEndpointCommand_Unconfigured(t *testing.T) {
	upstream := newFakeUpstream(t)
	dir := commandEnv(t, false)

	_, err := runCommand(t, "endpoint", "security-status", "--data-dir", dir, "--okx-base-url", upstream.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, okx.ErrCredentialsNotConfigured))
}

func TestTransactionsAndBalancesCommands(t *testing.T) {
	upstream := newFakeUpstream(t)
	dir := commandEnv(t, true)

	t.Run("transactions table", func(t *testing.T) {
		out, err := runCommand(t, "transactions", "--address", testAddress, "--chain", "0x1", "--json=false",
			"--data-dir", dir, "--okx-base-url", upstream.URL)
		require.NoError(t, err)
		assert.Contains(t, out, "→")
		assert.Contains(t, out, "12.5")
		assert.Contains(t, out, "USDT")
		assert.Contains(t, out, "https://etherscan.io/tx/0xabc0000000000000000000000000000000000000000000000000000000000def")
	})

	t.Run("transactions raw", func(t *testing.T) {
		out, err := runCommand(t, "transactions", "--address", testAddress, "--chain", "1", "--json",
			"--data-dir", dir, "--okx-base-url", upstream.URL)
		require.NoError(t, err)
		assert.Contains(t, out, `"tokenSymbol": "USDT"`)
	})

	t.Run("balances table", func(t *testing.T) {
		out, err := runCommand(t, "balances", "--address", testAddress, "--chain", "1", "--json=false",
			"--data-dir", dir, "--okx-base-url", upstream.URL)
		require.NoError(t, err)
		assert.Contains(t, out, "● ETH")
		assert.Contains(t, out, "$2500.00")
	})

	t.Run("malformed chain", func(t *testing.T) {
		_, err := runCommand(t, "balances", "--address", testAddress, "--chain", "mainnet",
			"--data-dir", dir, "--okx-base-url", upstream.URL)
		require.Error(t, err)
		assert.True(t, errors.Is(err, chain.ErrMalformedChainID))
	})
}

func TestDashboardCommand_Address(t *testing.T) {
	upstream := newFakeUpstream(t)
	dir := commandEnv(t, true)

	out, err := runCommand(t, "dashboard", "--address", testAddress, "--chain", "0x1",
		"--data-dir", dir, "--okx-base-url", upstream.URL)
	require.NoError(t, err)
	assert.Contains(t, out, testAddress)
	assert.Contains(t, out, "Ethereum Mainnet (1)")
	assert.Contains(t, out, "Balances")
	assert.Contains(t, out, "ETH")
	assert.Contains(t, out, "Recent transactions")
	assert.Contains(t, out, "USDT")
}

func TestAuthCommands(t *testing.T) {
	dir := commandEnv(t, false)

	out, err := runCommand(t, "auth", "set", "project_id", "proj-12345678", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Stored project_id")

	_, err = runCommand(t, "auth", "set", "secret_key", "hunter2-secret", "--data-dir", dir)
	require.NoError(t, err)

	out, err = runCommand(t, "auth", "show", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "proj...5678")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "OKX_API_KEY")

	_, err = runCommand(t, "auth", "set", "nope", "x", "--data-dir", dir)
	assert.Error(t, err)

	_, err = runCommand(t, "auth", "clear", "--data-dir", dir)
	require.NoError(t, err)
	out, err = runCommand(t, "auth", "show", "--data-dir", dir)
	require.NoError(t, err)
	assert.NotContains(t, out, "proj...5678")
}

func TestWalletDetectCommand_Demo(t *testing.T) {
	dir := commandEnv(t, false)

	out, err := runCommand(t, "wallet", "detect", "--demo", "--data-dir", dir)
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 5)
	assert.Contains(t, lines[1], "OKX Wallet")
	assert.Contains(t, lines[1], "available")
	assert.Contains(t, lines[2], "MetaMask")
	assert.Contains(t, lines[2], "available")
	assert.Contains(t, lines[3], "not detected")
}

func TestOpenSession_Demo(t *testing.T) {
	a := &app{cfg: &config.Config{}, logger: zerolog.Nop()}
	s := openSession(context.Background(), a, true)
	defer s.Close()

	var ids []wallet.ProviderID
	for _, d := range s.registry.Available() {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []wallet.ProviderID{wallet.ProviderOKX, wallet.ProviderMetaMask}, ids)

	st, err := s.connector.Connect(context.Background(), wallet.ProviderMetaMask)
	require.NoError(t, err)
	assert.Equal(t, wallet.StatusConnected, st.Status)
	assert.Equal(t, demoAccountMetaMask, st.Address)
	assert.Equal(t, "137", st.ChainID)

	_, err = s.connect(context.Background(), "phantom")
	assert.ErrorContains(t, err, "unknown provider")
}

// devNode answers eth_accounts and eth_chainId and can be taken offline.
type devNode struct {
	down atomic.Bool
}

func (n *devNode) Accounts() ([]string, error) {
	if n.down.Load() {
		return nil, errors.New("node offline")
	}
	return []string{testAddress}, nil
}

func (n *devNode) ChainId() (string, error) {
	if n.down.Load() {
		return "", errors.New("node offline")
	}
	return "0x38", nil
}

func TestOpenSession_UnreachableProviderIsWithdrawn(t *testing.T) {
	node := &devNode{}
	rpcServer := rpc.NewServer()
	require.NoError(t, rpcServer.RegisterName("eth", node))
	srv := httptest.NewServer(rpcServer)
	t.Cleanup(srv.Close)
	t.Cleanup(rpcServer.Stop)

	a := &app{
		cfg: &config.Config{Wallets: map[wallet.ProviderID]config.WalletConfig{
			wallet.ProviderMetaMask: {RPCURL: srv.URL, PollInterval: 5 * time.Millisecond},
		}},
		logger: zerolog.Nop(),
	}
	s := openSession(context.Background(), a, false)
	defer s.Close()

	st, err := s.connector.Connect(context.Background(), wallet.ProviderMetaMask)
	require.NoError(t, err)
	assert.Equal(t, "56", st.ChainID)

	node.down.Store(true)
	assert.Eventually(t, func() bool {
		return s.connector.State().Status == wallet.StatusDisconnected &&
			!s.registry.IsAvailable(wallet.ProviderMetaMask)
	}, 2*time.Second, 5*time.Millisecond)

	node.down.Store(false)
	assert.Eventually(t, func() bool {
		return s.registry.IsAvailable(wallet.ProviderMetaMask)
	}, 2*time.Second, 5*time.Millisecond)
}

func TestParseChainFlag(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1", "1", false},
		{"0x89", "137", false},
		{"0X38", "56", false},
		{" 42161 ", "42161", false},
		{"", "", true},
		{"polygon", "", true},
		{"0xzz", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseChainFlag(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseParams(t *testing.T) {
	q, err := parseParams([]string{"address=0xabc", "chains=1", "chains=56", "empty="})
	require.NoError(t, err)
	assert.Equal(t, "0xabc", q.Get("address"))
	assert.Equal(t, []string{"1", "56"}, q["chains"])
	assert.True(t, q.Has("empty"))

	_, err = parseParams([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseParams([]string{"=x"})
	assert.Error(t, err)
}

func TestMaskValue(t *testing.T) {
	assert.Equal(t, "********", maskValue("anything", true))
	assert.Equal(t, "***", maskValue("abc", false))
	assert.Equal(t, "abcd...wxyz", maskValue("abcdefghijklmnopqrstuvwxyz", false))
}

type fakeDashboardSource struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	balErr   error
	txErr    error
}

func (f *fakeDashboardSource) enter() func() {
	n := f.inFlight.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeDashboardSource) TokenBalances(ctx context.Context, address, chainID string) ([]okx.Balance, error) {
	defer f.enter()()
	if f.balErr != nil {
		return nil, f.balErr
	}
	return []okx.Balance{{ChainID: chainID, Symbol: "ETH", Balance: decimal.RequireFromString("2")}}, nil
}

func (f *fakeDashboardSource) TransactionHistory(ctx context.Context, address, chainID string, limit int) ([]okx.Transaction, error) {
	defer f.enter()()
	if f.txErr != nil {
		return nil, f.txErr
	}
	return []okx.Transaction{{TxID: "0x1", From: address, TokenSymbol: "USDC"}}, nil
}

func TestLoadDashboard(t *testing.T) {
	t.Run("loads both halves concurrently", func(t *testing.T) {
		src := &fakeDashboardSource{}
		data := loadDashboard(context.Background(), src, testAddress, "1", 5)
		require.NoError(t, data.balancesErr)
		require.NoError(t, data.txsErr)
		assert.Len(t, data.balances, 1)
		assert.Len(t, data.txs, 1)
		assert.Equal(t, int32(2), src.peak.Load())
	})

	t.Run("one failing half keeps the other", func(t *testing.T) {
		src := &fakeDashboardSource{txErr: okx.ErrTimeout}
		data := loadDashboard(context.Background(), src, testAddress, "1", 5)
		require.NoError(t, data.balancesErr)
		assert.True(t, errors.Is(data.txsErr, okx.ErrTimeout))

		var out bytes.Buffer
		renderDashboard(&out, wallet.State{Status: wallet.StatusConnected, Address: testAddress, ChainID: "1", ChainName: "Ethereum Mainnet"}, data)
		assert.Contains(t, out.String(), "ETH")
		assert.Contains(t, out.String(), "timed out")
	})
}
