// Package shell implements the terminal of the simulated system: command
// line parsing, command resolution, the registered command table, the
// script engine and the per-terminal session stack.
package shell

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ajaxzhan/simos/internal/fs"
	"github.com/ajaxzhan/simos/internal/logging"
	"github.com/ajaxzhan/simos/internal/metrics"
	"github.com/ajaxzhan/simos/internal/system"
	"github.com/ajaxzhan/simos/pkg/types"
)

var now = time.Now

// DefaultPath is searched for command names when PATH is unset.
var DefaultPath = []string{"/bin", "/usr/bin"}

const defaultHistoryLimit = 500

// AppLauncher starts a host application for an app-launch executable.
type AppLauncher func(appID string, args []string) error

// Options configures a Terminal.
type Options struct {
	Path         []string
	Term         string
	Launcher     AppLauncher
	Metrics      *metrics.Metrics
	HistoryLimit int
}

// Frame is one identity on the session stack.
type Frame struct {
	User string
	Cwd  string
}

// Entry is the display record of one command.
type Entry struct {
	Command string
	Output  []string
	Cwd     string
	User    string
	Failed  bool
	Time    time.Time
}

// State tells whether an Outcome is final.
type State int

const (
	// StateComplete means the command finished.
	StateComplete State = iota
	// StateNeedsInput means the command waits for the next input line,
	// which must be passed to Resume with the outcome's token.
	StateNeedsInput
)

// Outcome is the result of feeding one line to a Terminal.
type Outcome struct {
	State State
	// Entry is the live display record. A later Resume or Cancel may
	// still append to it; Output is a copy safe to read without the
	// terminal.
	Entry  *Entry
	Output []string
	Prompt Prompt
	Token  string
	Clear  bool
}

func (o Outcome) withOutput() Outcome {
	o.Output = append([]string(nil), o.Entry.Output...)
	return o
}

type pending struct {
	token  string
	prompt Prompt
	entry  *Entry
	resume func(string) Step
	redir  *Redirect
	scope  *scope
}

// scope carries the identity, directory and variables a command line
// runs with. Interactive lines share the terminal's variables; scripts get
// a private copy.
type scope struct {
	user   *types.User
	cwd    string
	vars   map[string]string
	script string
	depth  int
}

func (s *scope) lookup(name string) string {
	switch name {
	case "USER", "LOGNAME":
		return s.user.Username
	case "HOME":
		return homeOf(s.user)
	case "PWD":
		return s.cwd
	}
	return s.vars[name]
}

func (s *scope) path() []string {
	p, ok := s.vars["PATH"]
	if !ok {
		return DefaultPath
	}
	var dirs []string
	for _, d := range strings.Split(p, ":") {
		if d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

func homeOf(u *types.User) string {
	if u == nil || u.HomeDir == "" {
		return "/"
	}
	return u.HomeDir
}

// Terminal is one interactive shell. Each terminal keeps its own session
// stack, working directory, variables and history.
type Terminal struct {
	mu      sync.Mutex
	sys     *system.System
	opts    Options
	stack   []Frame
	vars    map[string]string
	entries []*Entry
	history []string
	pending *pending
}

// NewTerminal opens a terminal for the user currently logged in to sys.
func NewTerminal(sys *system.System, opts Options) *Terminal {
	if len(opts.Path) == 0 {
		opts.Path = DefaultPath
	}
	if opts.Term == "" {
		opts.Term = "xterm-256color"
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	t := &Terminal{
		sys:  sys,
		opts: opts,
		vars: map[string]string{
			"PATH":  strings.Join(opts.Path, ":"),
			"TERM":  opts.Term,
			"SHELL": "/bin/sh",
			"?":     "0",
		},
	}
	u := sys.CurrentUser()
	t.stack = []Frame{{User: u.Username, Cwd: t.startDir(u)}}
	return t
}

func (t *Terminal) startDir(u *types.User) string {
	home := homeOf(u)
	if n, err := t.sys.Stat(home, u); err == nil && n.IsDir() {
		return home
	}
	return "/"
}

// User returns the active identity: the top of the session stack, or the
// logged-in user when the stack is empty.
func (t *Terminal) User() *types.User {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.userLocked()
}

func (t *Terminal) userLocked() *types.User {
	if len(t.stack) == 0 {
		return t.sys.CurrentUser()
	}
	name := t.stack[len(t.stack)-1].User
	if name == types.GuestUsername {
		return system.Guest()
	}
	u, err := t.sys.User(name)
	if err != nil {
		return system.Guest()
	}
	return u
}

// Cwd returns the working directory of the active session.
func (t *Terminal) Cwd() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cwdLocked()
}

func (t *Terminal) cwdLocked() string {
	if len(t.stack) == 0 {
		return "/"
	}
	return t.stack[len(t.stack)-1].Cwd
}

// Depth returns the number of frames on the session stack.
func (t *Terminal) Depth() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.stack)
}

// PromptString renders the shell prompt, e.g. "alice@simos:~$ ".
func (t *Terminal) PromptString() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	u := t.userLocked()
	cwd := t.cwdLocked()
	home := homeOf(u)
	if home != "/" && fs.IsWithin(cwd, home) {
		cwd = "~" + strings.TrimPrefix(cwd, home)
	}
	sigil := "$"
	if u.IsRoot() {
		sigil = "#"
	}
	return fmt.Sprintf("%s@%s:%s%s ", u.Username, t.sys.Hostname(), cwd, sigil)
}

// Entries returns the display records since the last clear.
func (t *Terminal) Entries() []*Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Entry(nil), t.entries...)
}

// History returns the command lines entered so far.
func (t *Terminal) History() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.history...)
}

// Getenv returns a variable as seen by the active session.
func (t *Terminal) Getenv(name string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scopeLocked().lookup(name)
}

// Pending returns the prompt the terminal is waiting on, if any.
func (t *Terminal) Pending() (Prompt, string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == nil {
		return Prompt{}, "", false
	}
	return t.pending.prompt, t.pending.token, true
}

func (t *Terminal) scopeLocked() *scope {
	return &scope{user: t.userLocked(), cwd: t.cwdLocked(), vars: t.vars}
}

// HandleLine feeds one line of input to the terminal: the answer to a
// pending prompt when there is one, otherwise a new command line.
func (t *Terminal) HandleLine(line string) Outcome {
	t.mu.Lock()
	p := t.pending
	t.mu.Unlock()
	if p != nil {
		return t.Resume(p.token, line)
	}
	return t.Execute(line)
}

// Execute runs a command line. A pending prompt is cancelled first.
func (t *Terminal) Execute(line string) Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelLocked()
	sc := t.scopeLocked()
	entry := &Entry{Command: line, Cwd: sc.cwd, User: sc.user.Username, Time: now()}
	if strings.TrimSpace(line) == "" {
		return Outcome{State: StateComplete, Entry: entry}.withOutput()
	}
	t.history = append(t.history, line)
	if over := len(t.history) - t.opts.HistoryLimit; over > 0 {
		t.history = t.history[over:]
	}
	t.entries = append(t.entries, entry)

	step, redir := t.runLine(line, sc)
	return t.settle(step, entry, redir, sc)
}

// Resume answers the prompt identified by token with input.
func (t *Terminal) Resume(token, input string) Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.pending
	if p == nil || p.token != token {
		entry := &Entry{Output: []string{"no command is waiting for input"}, Failed: true, Time: now()}
		return Outcome{State: StateComplete, Entry: entry}.withOutput()
	}
	t.pending = nil

	echo := input
	if p.prompt.Masked {
		echo = strings.Repeat("*", len([]rune(input)))
	}
	p.entry.Output = append(p.entry.Output, p.prompt.Message+echo)

	return t.settle(p.resume(input), p.entry, p.redir, p.scope)
}

// Cancel abandons a pending prompt.
func (t *Terminal) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
}

func (t *Terminal) cancelLocked() {
	if t.pending == nil {
		return
	}
	t.pending.entry.Output = append(t.pending.entry.Output, t.pending.prompt.Message+"^C")
	t.pending.entry.Failed = true
	t.pending = nil
	t.opts.Metrics.RecordCommand("cancelled")
}

// settle turns a step into an Outcome, parking it when it needs input.
func (t *Terminal) settle(step Step, entry *Entry, redir *Redirect, sc *scope) Outcome {
	if step.Pending() {
		t.pending = &pending{
			token:  uuid.NewString(),
			prompt: *step.Prompt,
			entry:  entry,
			resume: step.Resume,
			redir:  redir,
			scope:  sc,
		}
		return Outcome{State: StateNeedsInput, Entry: entry, Prompt: *step.Prompt, Token: t.pending.token}.withOutput()
	}

	res := t.redirect(step.Result, redir, sc)
	entry.Output = append(entry.Output, res.Output...)
	entry.Failed = res.Failed()
	t.vars["?"] = strconv.Itoa(res.Status)
	t.opts.Metrics.RecordCommand(statusLabel(res.Status))

	if res.Cwd != "" && len(t.stack) > 0 {
		t.stack[len(t.stack)-1].Cwd = res.Cwd
	}
	if res.Push != nil {
		t.stack = append(t.stack, *res.Push)
		logging.Info("Session opened", logging.String("user", res.Push.User), logging.Int("depth", len(t.stack)))
	}
	if res.Exit {
		if len(t.stack) <= 1 {
			entry.Output = append(entry.Output, "exit: cannot leave the login session")
			entry.Failed = true
		} else {
			closed := t.stack[len(t.stack)-1]
			t.stack = t.stack[:len(t.stack)-1]
			logging.Info("Session closed", logging.String("user", closed.User), logging.Int("depth", len(t.stack)))
		}
	}
	if res.Clear {
		t.entries = nil
	}
	return Outcome{State: StateComplete, Entry: entry, Clear: res.Clear}.withOutput()
}

func statusLabel(status int) string {
	switch status {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not_found"
	case StatusDenied:
		return "denied"
	}
	return "error"
}

// runLine expands, tokenizes and runs one command line in sc.
func (t *Terminal) runLine(line string, sc *scope) (Step, *Redirect) {
	expanded := Expand(line, sc.lookup)
	words, redir, err := tokenize(expanded)
	if err != nil {
		return fail("sh: " + err.Error()), nil
	}
	if len(words) == 0 {
		return ok(), redir
	}

	args := []string{words[0].text}
	var names []string
	listed := false
	for _, w := range words[1:] {
		if w.quoted || !isGlob(w.text) {
			args = append(args, w.text)
			continue
		}
		if !listed {
			names = t.listNames(sc)
			listed = true
		}
		args = append(args, Glob(w.text, names)...)
	}
	return t.invoke(args, sc), redir
}

func (t *Terminal) listNames(sc *scope) []string {
	entries, err := t.sys.Tree().ListDirectory(sc.cwd, sc.user)
	if err != nil {
		return nil
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// invoke resolves args[0] and runs it.
func (t *Terminal) invoke(args []string, sc *scope) Step {
	name := args[0]
	exe, err := t.resolve(name, sc)
	if err != nil {
		return failErr("sh", err)
	}

	switch exe.Kind {
	case ExecBuiltin, ExecRegistered:
		cmd, _ := Lookup(exe.Command)
		return cmd.Run(&Context{
			Sys:   t.sys,
			User:  sc.user,
			Cwd:   sc.cwd,
			Name:  exe.Command,
			Args:  args[1:],
			term:  t,
			scope: sc,
		})
	case ExecApp:
		if t.opts.Launcher == nil {
			return fail(fmt.Sprintf("%s: no application host to launch %s", name, exe.AppID))
		}
		if err := t.opts.Launcher(exe.AppID, args[1:]); err != nil {
			return fail(fmt.Sprintf("%s: %v", name, err))
		}
		logging.Debug("Application launched", logging.String("app", exe.AppID), logging.String("user", sc.user.Username))
		return ok()
	default:
		if err := fs.CheckRead(exe.Path, t.sys.GetNodeAtPath(exe.Path), sc.user); err != nil {
			t.sys.ReportDenied("exec", err)
			return failErr("sh", err)
		}
		return done(t.runScript(exe.Path, exe.Script, args[1:], sc))
	}
}

// redirect writes the output of a command to its redirect target instead
// of displaying it. A failed command has no standard output: its error lines
// stay on screen, and the target is still created, or truncated for ">".
func (t *Terminal) redirect(res Result, redir *Redirect, sc *scope) Result {
	if redir == nil {
		return res
	}
	target := t.sys.ResolvePath(redir.Target, sc.cwd, sc.user)
	content := ""
	if !res.Failed() && len(res.Output) > 0 {
		content = strings.Join(res.Output, "\n") + "\n"
	}
	existing := t.sys.GetNodeAtPath(target)
	if redir.Append && existing != nil && !existing.IsDir() {
		if content == "" {
			return res
		}
		prev, err := t.sys.ReadFile(target, sc.user)
		if err != nil {
			return Result{Output: []string{"sh: " + describe(err)}, Status: StatusError}
		}
		content = prev + content
	}
	if err := t.sys.WriteFile(target, content, sc.user); err != nil {
		failure := Result{Output: []string{"sh: " + describe(err)}, Status: StatusError, Cwd: res.Cwd}
		if res.Failed() {
			failure.Output = append(res.Output, failure.Output...)
			failure.Status = res.Status
		}
		return failure
	}
	if !res.Failed() {
		res.Output = nil
	}
	return res
}

// sortedVars returns the NAME=value lines of the visible variables.
func sortedVars(sc *scope) []string {
	names := map[string]bool{"USER": true, "HOME": true, "PWD": true}
	for k := range sc.vars {
		if isVarName(k) {
			names[k] = true
		}
	}
	lines := make([]string, 0, len(names))
	for k := range names {
		lines = append(lines, k+"="+sc.lookup(k))
	}
	sort.Strings(lines)
	return lines
}

func isVarName(s string) bool {
	if s == "" || !nameChar(s[0], true) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !nameChar(s[i], false) {
			return false
		}
	}
	return true
}
