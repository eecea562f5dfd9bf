package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajaxzhan/simos/internal/shell"
)

var (
	runUser     string
	runPassword string
)

var runCmd = &cobra.Command{
	Use:   "run [flags] LINE...",
	Short: "Run command lines and exit",
	Long: `Boot the system, run each argument as a command line in one terminal and
print the output. Answers to prompts (passwords, text) are read from stdin.
The exit status is the status of the first failing line.

Examples:
  # List the root directory as guest
  simos run "ls -l /"

  # Create a file as alice and show it
  simos run -u alice -p wonderland "echo hi > note.txt" "cat note.txt"

  # Password from the environment
  SIMOS_PASSWORD=toor simos run -u root "useradd bob"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLines,
}

func init() {
	runCmd.Flags().StringVarP(&runUser, "user", "u", "", "log in as this user (default: guest)")
	runCmd.Flags().StringVarP(&runPassword, "password", "p", "", "password for --user (default: $SIMOS_PASSWORD)")
}

func runLines(cmd *cobra.Command, args []string) error {
	con := newConsole(cmd.InOrStdin(), cmd.OutOrStdout())
	m, err := boot(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		m.shutdown(ctx)
	}()

	if runUser != "" {
		password := runPassword
		if password == "" {
			password = os.Getenv("SIMOS_PASSWORD")
		}
		if _, err := m.sys.Login(runUser, password); err != nil {
			return err
		}
		defer m.sys.Logout()
	}

	t := shell.NewTerminal(m.sys, m.terminalOptions(printLauncher(con.out)))
	var firstFailure error
	for _, line := range args {
		out := t.Execute(line)
		for out.State == shell.StateNeedsInput {
			answer, err := con.readLine()
			if err != nil {
				t.Cancel()
				break
			}
			out = t.Resume(out.Token, answer)
		}
		for _, l := range out.Output {
			fmt.Fprintln(con.out, l)
		}
		if out.Entry.Failed && firstFailure == nil {
			firstFailure = &exitError{status: statusOf(t), line: line}
		}
	}
	return firstFailure
}

func statusOf(t *shell.Terminal) int {
	status, err := strconv.Atoi(t.Getenv("?"))
	if err != nil || status == 0 {
		return 1
	}
	return status
}
