package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	errs "xscraper/pkg/errors"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "xscraper",
	Short: "Collect recent posts from an X account within a time window",
	Long: `xscraper collects posts from an X (Twitter) account over a bounded
time window and produces a JSON engagement report.

Features:
  - Secure credential storage using system keychain
  - Session cookie reuse across runs
  - Rate-limit aware collection with exponential backoff
  - Headless browser fallback when the primary source is throttled
  - Cross-run SQLite archive and Prometheus metrics

For more information and examples, run: xscraper collect --help`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	// Execute prints the error itself along with the typed exit code
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Typed collection errors map to distinct exit codes; this runs only after
// every deferred cleanup inside the command has completed.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(errs.ExitCode(errs.TypeOf(err)))
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.xscraper.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	// Version template
	rootCmd.SetVersionTemplate(`xscraper {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
