// Sigmalink is a command-line client for Sigma alarm panels.
//
// It speaks the panel's browser-only web interface directly: the token-keyed
// login handshake, status scraping, and the arm/stay/disarm endpoints with
// post-command verification. Panels are registered in a config file or
// addressed ad hoc with --host.
//
// Usage:
//
//	sigmalink [command] [flags]
//
// See 'sigmalink --help' for available commands.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mkefalas/sigmalink/internal/logging"
	"github.com/mkefalas/sigmalink/internal/panel"
	"github.com/mkefalas/sigmalink/internal/urls"
	"github.com/mkefalas/sigmalink/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var pe *panel.PanelError
		if errors.As(err, &pe) {
			fmt.Fprintf(os.Stderr, "\n%s\n", panel.TroubleshootingHint(err))
			fmt.Fprintf(os.Stderr, "\nMore help: %s\n", urls.Troubleshooting)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sigmalink",
	Short: "Sigma Alarm Panel Client",
	Long: `A command-line client for Sigma alarm panels.

The panel only offers a web interface meant for human browsers; sigmalink
reproduces its login handshake and page flow to read status, watch state
live, and arm or disarm with verification. Register panels with
'sigmalink add', or pass --host for one-off use.

Documentation: ` + urls.GettingStarted,
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.InitializeFromEnv()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sigmalink %s (commit: %s)\n", version.Version, version.Commit)
	},
}
