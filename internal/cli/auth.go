package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/yolodolo42/walletdash/internal/auth"
	"github.com/yolodolo42/walletdash/internal/okx"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage OKX API credentials",
	Long: `Show, store and clear the OKX API credentials used to sign requests.

Each field resolves from its environment variable first, then the config
file (okx.<field>, {env:VAR} allowed), then auth.json.`,
}

var authShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show where each credential field resolves from",
	RunE:  runAuthShow,
}

var authSetCmd = &cobra.Command{
	Use:   "set <field> [value]",
	Short: "Store a credential field in auth.json",
	Long: `Store a credential field in auth.json.

Fields: project_id, api_key, secret_key, passphrase.
Secret fields are read without echo when no value is given.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runAuthSet,
}

var authClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove stored credentials",
	RunE:  runAuthClear,
}

var authTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Verify the credentials with a signed call",
	RunE:  runAuthTest,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authShowCmd)
	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(authClearCmd)
	authCmd.AddCommand(authTestCmd)
}

func runAuthShow(cmd *cobra.Command, args []string) error {
	creds, sources := current.auth.Resolve()
	renderCredentialSources(cmd.OutOrStdout(), creds, sources)
	return nil
}

func renderCredentialSources(w io.Writer, creds okx.Credentials, sources map[auth.Field]auth.Source) {
	values := map[auth.Field]string{
		auth.FieldProjectID:  creds.ProjectID,
		auth.FieldAPIKey:     creds.APIKey,
		auth.FieldSecretKey:  creds.SecretKey,
		auth.FieldPassphrase: creds.Passphrase,
	}

	fmt.Fprintln(w, "OKX credentials:")
	missing := 0
	for _, info := range auth.AllFields() {
		source := sources[info.Field]
		if source == auth.SourceNone {
			missing++
			fmt.Fprintf(w, "  %-12s %-8s (set %s)\n", info.Label, "missing", info.EnvVar)
			continue
		}
		fmt.Fprintf(w, "  %-12s %-8s %s\n", info.Label, source, maskValue(values[info.Field], info.Secret))
	}

	if missing > 0 {
		fmt.Fprintln(w, "\nRun 'walletdash setup' or 'walletdash auth set <field>' to fill in missing fields.")
	}
}

// maskValue never prints secrets and shows only the ends of other values.
func maskValue(v string, secret bool) string {
	if secret {
		return "********"
	}
	if len(v) <= 8 {
		return strings.Repeat("*", len(v))
	}
	return v[:4] + "..." + v[len(v)-4:]
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	field, err := auth.ParseField(args[0])
	if err != nil {
		return err
	}

	var value string
	if len(args) == 2 {
		value = args[1]
	} else {
		info := fieldInfo(field)
		fmt.Printf("Tip: You can also set %s environment variable\n\n", info.EnvVar)
		if value, err = readValue(fmt.Sprintf("Enter %s: ", info.Label), info.Secret); err != nil {
			return fmt.Errorf("failed to read %s: %w", info.Label, err)
		}
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	if err := current.auth.SetField(field, value); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Stored %s in %s\n", field, current.auth.Store().Path())
	return nil
}

func fieldInfo(field auth.Field) auth.FieldInfo {
	for _, info := range auth.AllFields() {
		if info.Field == field {
			return info
		}
	}
	return auth.FieldInfo{Field: field, Label: string(field)}
}

func readValue(prompt string, secret bool) (string, error) {
	fmt.Print(prompt)
	if secret && term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println() // newline after password input
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	var v string
	_, err := fmt.Scanln(&v)
	return v, err
}

func runAuthClear(cmd *cobra.Command, args []string) error {
	if err := current.auth.Clear(); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Stored credentials removed.")
	return nil
}

func runAuthTest(cmd *cobra.Command, args []string) error {
	creds := current.auth.Credentials()
	if err := creds.Validate(); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Testing credentials with OKX...")
	if _, err := current.okxClient().Call(cmd.Context(), okx.EndpointSecurityStatus, nil); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ OKX accepted the credentials")
	return nil
}
