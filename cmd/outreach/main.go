package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	dataDir    string
	outputJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "outreach",
	Short: "Warm outreach reminder engine",
	Long: `Collects relationship-strength ratings for target leads from internal stakeholders.

Once a week every stakeholder with pending leads receives one email with a personal
form link. Submitted ratings are merged back into the shared lead workbook.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the form API and the weekly scheduler",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Run one notification pass now",
	Long: `Run one notification pass immediately. The day's marker is honored unless
--force is given, so running this twice on the same day sends nothing the second time.`,
	Args: cobra.NoArgs,
	RunE: runNotify,
}

var pendingCmd = &cobra.Command{
	Use:   "pending [email]",
	Short: "Show pending leads per stakeholder, or for one stakeholder",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPending,
}

var outcomesCmd = &cobra.Command{
	Use:   "outcomes",
	Short: "Show dispatch outcomes of the latest (or a given) pass, or the pass log",
	Args:  cobra.NoArgs,
	RunE:  runOutcomes,
}

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Manage credentials in the OS keychain",
}

var setSMTPCmd = &cobra.Command{
	Use:   "set-smtp",
	Short: "Store the SMTP password for the configured username and host",
	Args:  cobra.NoArgs,
	RunE:  runSetSMTP,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the user config and print errors and warnings",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Lead workbook utilities",
}

var storeInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an empty lead workbook with the configured columns",
	Args:  cobra.NoArgs,
	RunE:  runStoreInit,
}

var (
	notifyForce    bool
	notifyDryRun   bool
	outcomesPass   string
	outcomesEvents bool
	outcomesDay    string
	smtpPassword   string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <data-dir>/config.yml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default $OUTREACH_DATA_DIR or .)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")

	notifyCmd.Flags().BoolVar(&notifyForce, "force", false, "send even if today was already processed")
	notifyCmd.Flags().BoolVar(&notifyDryRun, "dry-run", false, "list who would be emailed without sending or marking the day")
	outcomesCmd.Flags().StringVar(&outcomesPass, "pass", "", "pass id (default latest)")
	outcomesCmd.Flags().BoolVar(&outcomesEvents, "events", false, "show the pass audit trail instead of outcomes")
	outcomesCmd.Flags().StringVar(&outcomesDay, "day", "", "with --events, limit to one day (YYYY-MM-DD)")
	setSMTPCmd.Flags().StringVar(&smtpPassword, "password", "", "password (read from stdin when empty)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(notifyCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(outcomesCmd)
	rootCmd.AddCommand(secretsCmd)
	secretsCmd.AddCommand(setSMTPCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeInitCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
