package cli

import (
	"fmt"

	"github.com/harun/erigo/internal/config"
	"github.com/spf13/cobra"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Run interactive configuration wizard",
	Long: `Run an interactive configuration wizard to set up erigo.
The wizard asks for the API URL, the Telegram bot token, admin users and the
credentials backend. Existing values are offered as defaults.`,
	RunE: runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)

	current, err := loader.Load()
	if err != nil {
		current = config.DefaultConfig()
	}

	wizard := config.NewWizardWithIO(cmd.InOrStdin(), cmd.OutOrStdout())
	cfg, err := wizard.Run(current)
	if err != nil {
		return fmt.Errorf("configuration failed: %w", err)
	}

	if errs := config.NewValidator().ValidateConfig(cfg); len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errs[0])
	}

	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nConfiguration saved to: %s\n", loader.GetConfigPath())
	fmt.Fprintln(out, "\nYou can now start erigo with: erigo start")

	return nil
}
