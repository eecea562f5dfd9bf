package shell

import (
	"fmt"
	"strings"
)

func init() {
	register(
		&Command{Name: "env", Usage: "env", Brief: "print variables", Run: runEnv},
		&Command{Name: "export", Usage: "export [NAME=value...]", Brief: "set variables", Run: runExport},
		&Command{Name: "clear", Usage: "clear", Brief: "clear the screen", Run: runClear},
		&Command{Name: "history", Usage: "history", Brief: "list previous commands", Run: runHistory},
		&Command{Name: "help", Usage: "help [command]", Brief: "describe commands", Run: runHelp},
		&Command{Name: "dev-unlock", Usage: "dev-unlock", Brief: "leave safe mode (root only)", Run: runDevUnlock},
	)
}

func runEnv(c *Context) Step {
	return ok(sortedVars(c.scope)...)
}

func runExport(c *Context) Step {
	if len(c.Args) == 0 {
		lines := sortedVars(c.scope)
		for i, l := range lines {
			lines[i] = "declare -x " + l
		}
		return ok(lines...)
	}
	for _, arg := range c.Args {
		name, value, found := strings.Cut(arg, "=")
		if !isVarName(name) {
			return fail(fmt.Sprintf("export: `%s': not a valid identifier", arg))
		}
		if !found {
			value = c.Getenv(name)
		}
		c.Setenv(name, value)
	}
	return ok()
}

func runClear(c *Context) Step {
	return done(Result{Clear: true})
}

func runHistory(c *Context) Step {
	lines := make([]string, len(c.term.history))
	for i, h := range c.term.history {
		lines[i] = fmt.Sprintf("%5d  %s", i+1, h)
	}
	return ok(lines...)
}

func runHelp(c *Context) Step {
	if len(c.Args) > 0 {
		cmd, found := Lookup(c.Args[0])
		if !found {
			return fail(fmt.Sprintf("help: no help topics match '%s'", c.Args[0]))
		}
		return ok("usage: "+cmd.Usage, "  "+cmd.Brief)
	}
	names := Names()
	width := 0
	for _, n := range names {
		width = max(width, len(n))
	}
	lines := make([]string, 0, len(names)+1)
	lines = append(lines, "Available commands:")
	for _, n := range names {
		cmd, _ := Lookup(n)
		lines = append(lines, fmt.Sprintf("  %-*s  %s", width, n, cmd.Brief))
	}
	return ok(lines...)
}

func runDevUnlock(c *Context) Step {
	if !c.Sys.ReadOnly() {
		return ok("dev-unlock: the system is not in safe mode")
	}
	if err := c.Sys.Unlock(c.User); err != nil {
		return c.fail(err)
	}
	return ok("dev-unlock: safe mode disabled, the filesystem is writable again")
}
