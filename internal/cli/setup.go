package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yolodolo42/walletdash/internal/setup"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Run the credential setup wizard",
	Long: `Run the interactive setup wizard to configure walletdash.

The wizard asks for the OKX API fields that do not already resolve from
the environment or config file, stores them in auth.json and checks them
with a signed call.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !setup.IsInteractive() {
			setup.PrintEnvInstructions()
			return fmt.Errorf("setup requires an interactive terminal")
		}

		all, _ := cmd.Flags().GetBool("all")
		result, err := setup.RunWizard(current.auth, setup.OKXVerifier(current.okxOptions()), all)
		if err != nil {
			return fmt.Errorf("setup failed: %w", err)
		}

		if result == nil || result.Cancelled {
			return nil
		}

		if result.Verified {
			fmt.Println("\nSetup complete! Run 'walletdash dashboard' to start.")
		} else {
			fmt.Println("\nCredentials saved but not verified. Run 'walletdash auth test' to retry.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)

	setupCmd.Flags().Bool("all", false, "ask for every field, including ones already set")
}
