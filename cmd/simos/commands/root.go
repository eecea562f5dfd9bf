// Package commands implements the simos command line.
package commands

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"

	// Global flags.
	cfgFile string
)

// rootCmd opens an interactive terminal when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "simos",
	Short: "simos - a simulated multi-user operating system",
	Long: `simos boots a simulated multi-user machine with a permission-checked
filesystem and opens an interactive terminal on it.

Use "simos [command] --help" for more information about a command.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runShell,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); defaults apply when empty")

	rootCmd.Flags().StringVarP(&shellUser, "user", "u", "", "log in as this user instead of prompting")

	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(mountCmd)
}

// exitError carries the status of a failed command line.
type exitError struct {
	status int
	line   string
}

func (e *exitError) Error() string {
	return "command failed: " + e.line
}

// ExitCode returns the process exit status for err.
func ExitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) && ee.status > 0 {
		return ee.status
	}
	return 1
}
