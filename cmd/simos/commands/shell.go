package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ajaxzhan/simos/internal/logging"
	"github.com/ajaxzhan/simos/internal/shell"
	"github.com/ajaxzhan/simos/internal/system"
)

const maxLoginAttempts = 3

var shellUser string

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Open an interactive terminal",
	Long: `Open an interactive terminal on the simulated system.

Without --user a login prompt is shown; an empty login name continues as
the guest user. Typing exit in the login session ends the program.

Examples:
  # Log in interactively
  simos shell

  # Log in as alice, prompting for the password
  simos shell --user alice`,
	RunE: runShell,
}

func init() {
	shellCmd.Flags().StringVarP(&shellUser, "user", "u", "", "log in as this user instead of prompting")
}

func runShell(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()

	con := newConsole(cmd.InOrStdin(), cmd.OutOrStdout())
	m, err := boot(ctx, con.out)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		m.shutdown(shutdownCtx)
	}()

	if err := login(con, m.sys, shellUser); err != nil {
		return err
	}
	defer m.sys.Logout()

	t := shell.NewTerminal(m.sys, m.terminalOptions(printLauncher(con.out)))

	// Ctrl-C abandons a pending prompt instead of killing the machine.
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer func() {
		signal.Stop(interrupts)
		close(interrupts)
	}()
	go func() {
		for range interrupts {
			t.Cancel()
		}
	}()

	return repl(ctx, con, t)
}

// printLauncher reports app launches on w; the command line has no
// application host.
func printLauncher(w io.Writer) shell.AppLauncher {
	return func(appID string, args []string) error {
		fmt.Fprintf(w, "[%s] launched %s\n", appID, strings.Join(args, " "))
		return nil
	}
}

// console reads lines and secrets from the user.
type console struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
}

func newConsole(in io.Reader, out io.Writer) *console {
	fd := -1
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd = int(f.Fd())
	}
	return &console{in: bufio.NewReader(in), out: out, fd: fd}
}

func (c *console) readLine() (string, error) {
	line, err := c.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readSecret reads a line without echo when the input is a terminal.
func (c *console) readSecret() (string, error) {
	if c.fd < 0 {
		return c.readLine()
	}
	b, err := term.ReadPassword(c.fd)
	fmt.Fprintln(c.out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// login authenticates the session user. An empty name continues as guest.
func login(con *console, sys *system.System, name string) error {
	fmt.Fprintf(con.out, "%s\n", motd(sys))
	for attempt := 0; attempt < maxLoginAttempts; attempt++ {
		if name == "" || attempt > 0 && shellUser == "" {
			fmt.Fprintf(con.out, "%s login: ", sys.Hostname())
			line, err := con.readLine()
			if err != nil {
				return err
			}
			name = strings.TrimSpace(line)
			if name == "" {
				return nil
			}
		}
		fmt.Fprint(con.out, "Password: ")
		password, err := con.readSecret()
		if err != nil {
			return err
		}
		if _, err := sys.Login(name, password); err == nil {
			return nil
		}
		fmt.Fprintln(con.out, "Login incorrect")
	}
	return errors.New("too many failed login attempts")
}

func motd(sys *system.System) string {
	if n := sys.GetNodeAtPath("/etc/motd"); n != nil && !n.IsDir() {
		return strings.TrimRight(n.Content, "\n")
	}
	return "Welcome to " + sys.Hostname() + "."
}

// repl feeds console lines to t until end of input or until the login
// session is left.
func repl(ctx context.Context, con *console, t *shell.Terminal) error {
	var (
		cur   *shell.Entry
		shown int
	)
	for ctx.Err() == nil {
		prompt, _, waiting := t.Pending()
		var (
			line string
			err  error
		)
		if waiting {
			fmt.Fprint(con.out, prompt.Message)
			if prompt.Masked {
				line, err = con.readSecret()
			} else {
				line, err = con.readLine()
			}
		} else {
			fmt.Fprint(con.out, t.PromptString())
			line, err = con.readLine()
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(con.out)
			return nil
		}
		if err != nil {
			return err
		}

		if !waiting && t.Depth() == 1 && isLeave(line) {
			logging.Info("Login session ended", logging.String("user", t.User().Username))
			return nil
		}

		out := t.HandleLine(line)
		if out.Entry != cur {
			cur, shown = out.Entry, 0
		} else if waiting {
			// The prompt and the answer are already on screen.
			shown++
		}
		if out.Clear {
			fmt.Fprint(con.out, "\033[H\033[2J")
			shown = len(out.Output)
		}
		for ; shown < len(out.Output); shown++ {
			fmt.Fprintln(con.out, out.Output[shown])
		}
	}
	return ctx.Err()
}

func isLeave(line string) bool {
	switch strings.TrimSpace(line) {
	case "exit", "logout":
		return true
	}
	return false
}
