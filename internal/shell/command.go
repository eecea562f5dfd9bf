package shell

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ajaxzhan/simos/internal/system"
	"github.com/ajaxzhan/simos/pkg/types"
)

// Exit statuses reported through $?.
const (
	StatusOK       = 0
	StatusError    = 1
	StatusDenied   = 126
	StatusNotFound = 127
)

// Result is the completed output of one command.
type Result struct {
	Output []string
	Status int
	// Cwd is set when the command changed the working directory.
	Cwd string
	// Push is set when the command opens a session for another user.
	Push *Frame
	// Exit asks the caller to leave the current session or script.
	Exit bool
	// Clear asks the host to clear the display.
	Clear bool
}

// Failed reports whether the command did not succeed.
func (r Result) Failed() bool {
	return r.Status != StatusOK
}

// Prompt describes input a command is waiting for.
type Prompt struct {
	Message string
	Masked  bool
}

// Step is either a finished Result or a Prompt together with the
// continuation that consumes the answer.
type Step struct {
	Result Result
	Prompt *Prompt
	Resume func(input string) Step
}

// Pending reports whether the step waits for input.
func (s Step) Pending() bool {
	return s.Prompt != nil
}

func done(r Result) Step {
	return Step{Result: r}
}

func ok(lines ...string) Step {
	return Step{Result: Result{Output: lines}}
}

func fail(lines ...string) Step {
	return Step{Result: Result{Output: lines, Status: StatusError}}
}

func ask(message string, masked bool, resume func(string) Step) Step {
	return Step{Prompt: &Prompt{Message: message, Masked: masked}, Resume: resume}
}

// failErr renders err as a single error line prefixed with the command name.
func failErr(name string, err error) Step {
	r := Result{Output: []string{name + ": " + describe(err)}, Status: StatusError}
	switch {
	case errors.Is(err, types.ErrCommandNotFound):
		r.Status = StatusNotFound
	case types.IsPermission(err):
		r.Status = StatusDenied
	}
	return done(r)
}

// describe formats err for terminal output.
func describe(err error) string {
	var pe *types.PathError
	if errors.As(err, &pe) {
		var perm *types.PermissionError
		if errors.As(pe.Err, &perm) {
			return describe(perm)
		}
		return fmt.Sprintf("%s: %v", pe.Path, pe.Err)
	}
	var perm *types.PermissionError
	if errors.As(err, &perm) {
		if perm.Sticky {
			return fmt.Sprintf("%s: %v (sticky bit)", perm.Path, types.ErrPermissionDenied)
		}
		return fmt.Sprintf("%s: %v", perm.Path, types.ErrPermissionDenied)
	}
	var ce *types.CommandError
	if errors.As(err, &ce) {
		return fmt.Sprintf("%s: %v", ce.Name, ce.Err)
	}
	return err.Error()
}

// Context is what a command sees while it runs.
type Context struct {
	Sys  *system.System
	User *types.User
	Cwd  string
	// Name is the name the command was invoked as.
	Name string
	Args []string

	term  *Terminal
	scope *scope
}

// Resolve canonicalizes p against the working directory.
func (c *Context) Resolve(p string) string {
	return c.Sys.ResolvePath(p, c.Cwd, c.User)
}

// Getenv returns the value of a variable.
func (c *Context) Getenv(name string) string {
	return c.scope.lookup(name)
}

// Setenv sets a variable in the command's scope.
func (c *Context) Setenv(name, value string) {
	c.scope.vars[name] = value
}

// Interactive reports whether the command runs at the prompt rather than
// from a script.
func (c *Context) Interactive() bool {
	return c.scope.script == ""
}

// run invokes args as a new command in the same scope with user.
func (c *Context) run(user *types.User, args []string) Step {
	sc := *c.scope
	sc.user = user
	return c.term.invoke(args, &sc)
}

func (c *Context) fail(err error) Step {
	return failErr(c.Name, err)
}

// Command is an entry of the registered command table.
type Command struct {
	Name  string
	Usage string
	Brief string
	Run   func(c *Context) Step
}

var registry = make(map[string]*Command)

func register(cmds ...*Command) {
	for _, c := range cmds {
		registry[c.Name] = c
	}
}

// Lookup returns the registered command called name.
func Lookup(name string) (*Command, bool) {
	c, ok := registry[name]
	return c, ok
}

// Names returns the registered command names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func usage(c *Context) Step {
	cmd, _ := Lookup(c.Name)
	if cmd == nil {
		return fail(c.Name + ": invalid usage")
	}
	return fail("usage: " + cmd.Usage)
}

// splitLines turns file content into display lines.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}
