package shell

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ajaxzhan/simos/internal/logging"
	"github.com/ajaxzhan/simos/pkg/types"
)

func init() {
	register(
		&Command{Name: "whoami", Usage: "whoami", Brief: "print the active user", Run: runWhoami},
		&Command{Name: "id", Usage: "id [user]", Brief: "print user and group ids", Run: runID},
		&Command{Name: "groups", Usage: "groups [user]", Brief: "print group memberships", Run: runGroups},
		&Command{Name: "su", Usage: "su [-] [user]", Brief: "open a session as another user", Run: runSu},
		&Command{Name: "sudo", Usage: "sudo [-s|-i] | sudo command [args...]", Brief: "run a command as root", Run: runSudo},
		&Command{Name: "exit", Usage: "exit", Brief: "close the current session", Run: runExit},
		&Command{Name: "logout", Usage: "logout", Brief: "close the current session", Run: runExit},
		&Command{Name: "passwd", Usage: "passwd [user]", Brief: "change a password", Run: runPasswd},
		&Command{Name: "useradd", Usage: "useradd [-c name] [-d home] [-s shell] [-G groups] [-p password] user", Brief: "create a user", Run: runUseradd},
		&Command{Name: "userdel", Usage: "userdel [-r] user", Brief: "delete a user", Run: runUserdel},
		&Command{Name: "groupadd", Usage: "groupadd [-g gid] group", Brief: "create a group", Run: runGroupadd},
		&Command{Name: "usermod", Usage: "usermod -aG groups user", Brief: "add a user to groups", Run: runUsermod},
	)
}

// targetUser returns the user named by the first argument, or the active
// user when there is none.
func targetUser(c *Context) (*types.User, error) {
	if len(c.Args) == 0 || c.Args[0] == c.User.Username {
		return c.User, nil
	}
	return c.Sys.User(c.Args[0])
}

// memberships returns the groups u belongs to, primary group first.
func memberships(c *Context, u *types.User) []*types.Group {
	var out []*types.Group
	for _, g := range c.Sys.Groups() {
		if g.GID == u.GID || g.HasMember(u.Username) || u.InGroup(g.GroupName) {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if (out[a].GID == u.GID) != (out[b].GID == u.GID) {
			return out[a].GID == u.GID
		}
		return out[a].GID < out[b].GID
	})
	return out
}

func runWhoami(c *Context) Step {
	return ok(c.User.Username)
}

func runID(c *Context) Step {
	u, err := targetUser(c)
	if err != nil {
		return fail(fmt.Sprintf("id: '%s': no such user", c.Args[0]))
	}
	groups := memberships(c, u)
	parts := make([]string, len(groups))
	for i, g := range groups {
		parts[i] = fmt.Sprintf("%d(%s)", g.GID, g.GroupName)
	}
	line := fmt.Sprintf("uid=%d(%s) gid=%d(%s)", u.UID, u.Username, u.GID, c.Sys.GroupName(strconv.Itoa(u.GID)))
	if len(parts) > 0 {
		line += " groups=" + strings.Join(parts, ",")
	}
	return ok(line)
}

func runGroups(c *Context) Step {
	u, err := targetUser(c)
	if err != nil {
		return fail(fmt.Sprintf("groups: '%s': no such user", c.Args[0]))
	}
	groups := memberships(c, u)
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = g.GroupName
	}
	return ok(strings.Join(names, " "))
}

func runSu(c *Context) Step {
	login := false
	target := types.RootUsername
	for _, a := range c.Args {
		switch a {
		case "-", "-l", "--login":
			login = true
		default:
			target = a
		}
	}
	u, err := c.Sys.User(target)
	if err != nil {
		return fail(fmt.Sprintf("su: user %s does not exist", target))
	}
	open := func() Step {
		cwd := c.Cwd
		if login {
			cwd = c.term.startDir(u)
		}
		return done(Result{Push: &Frame{User: u.Username, Cwd: cwd}})
	}
	if c.User.IsRoot() {
		return open()
	}
	return ask("Password: ", true, func(input string) Step {
		if !c.Sys.VerifyPassword(u.Username, input) {
			logging.Info("su authentication failed", logging.String("by", c.User.Username), logging.String("target", u.Username))
			return fail("su: Authentication failure")
		}
		return open()
	})
}

func runSudo(c *Context) Step {
	if len(c.Args) == 0 {
		return usage(c)
	}
	if !c.Sys.IsAdmin(c.User) {
		logging.Warn("sudo refused", logging.String("user", c.User.Username))
		return fail(fmt.Sprintf("%s is not in the sudoers file. This incident will be reported.", c.User.Username))
	}
	root, err := c.Sys.User(types.RootUsername)
	if err != nil {
		return c.fail(err)
	}

	proceed := func() Step {
		switch c.Args[0] {
		case "-s":
			return done(Result{Push: &Frame{User: root.Username, Cwd: c.Cwd}})
		case "-i":
			return done(Result{Push: &Frame{User: root.Username, Cwd: c.term.startDir(root)}})
		}
		return c.run(root, c.Args)
	}
	if c.User.IsRoot() {
		return proceed()
	}
	return ask(fmt.Sprintf("[sudo] password for %s: ", c.User.Username), true, func(input string) Step {
		if !c.Sys.VerifyPassword(c.User.Username, input) {
			return fail("sudo: 1 incorrect password attempt")
		}
		return proceed()
	})
}

func runExit(c *Context) Step {
	return done(Result{Exit: true})
}

func runPasswd(c *Context) Step {
	target := c.User.Username
	if len(c.Args) > 0 {
		target = c.Args[0]
	}
	if _, err := c.Sys.User(target); err != nil {
		return fail(fmt.Sprintf("passwd: user '%s' does not exist", target))
	}
	if target != c.User.Username && !c.User.IsRoot() {
		return fail(fmt.Sprintf("passwd: You may not view or modify password information for %s.", target))
	}

	change := func() Step {
		return ask("New password: ", true, func(first string) Step {
			if first == "" {
				return fail("passwd: no password supplied")
			}
			return ask("Retype new password: ", true, func(second string) Step {
				if first != second {
					return fail("passwd: Sorry, passwords do not match.")
				}
				if err := c.Sys.SetPassword(c.User, target, first, ""); err != nil {
					return c.fail(err)
				}
				return ok("passwd: password updated successfully")
			})
		})
	}
	if c.User.IsRoot() {
		return change()
	}
	return ask("Current password: ", true, func(current string) Step {
		if !c.Sys.VerifyPassword(target, current) {
			return fail("passwd: Authentication token manipulation error")
		}
		return change()
	})
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func runUseradd(c *Context) Step {
	f := newFlags(c)
	fullName := f.StringP("comment", "c", "", "full name")
	home := f.StringP("home-dir", "d", "", "home directory")
	shell := f.StringP("shell", "s", "", "login shell")
	groups := f.StringP("groups", "G", "", "supplementary groups")
	password := f.StringP("password", "p", "", "password")
	f.BoolP("create-home", "m", true, "create the home directory")
	args, err := parseFlags(c, f)
	if err != nil || len(args) != 1 {
		return usage(c)
	}

	u, err := c.Sys.AddUser(c.User, &types.User{
		Username: args[0],
		Password: *password,
		FullName: *fullName,
		HomeDir:  *home,
		Shell:    *shell,
		Groups:   splitList(*groups),
	})
	if err != nil {
		return c.fail(err)
	}
	return ok(fmt.Sprintf("useradd: created user %s (uid %d) with home %s", u.Username, u.UID, u.HomeDir))
}

func runUserdel(c *Context) Step {
	f := newFlags(c)
	removeHome := f.BoolP("remove", "r", false, "remove the home directory")
	args, err := parseFlags(c, f)
	if err != nil || len(args) != 1 {
		return usage(c)
	}
	if args[0] == c.User.Username {
		return fail(fmt.Sprintf("userdel: user %s is currently in use", args[0]))
	}
	if err := c.Sys.RemoveUser(c.User, args[0], *removeHome); err != nil {
		return c.fail(err)
	}
	return ok()
}

func runGroupadd(c *Context) Step {
	f := newFlags(c)
	gid := f.IntP("gid", "g", 0, "group id")
	args, err := parseFlags(c, f)
	if err != nil || len(args) != 1 {
		return usage(c)
	}
	if _, err := c.Sys.AddGroup(c.User, args[0], *gid); err != nil {
		return c.fail(err)
	}
	return ok()
}

func runUsermod(c *Context) Step {
	f := newFlags(c)
	f.BoolP("append", "a", false, "append to the supplementary groups")
	groups := f.StringP("groups", "G", "", "groups to add")
	args, err := parseFlags(c, f)
	if err != nil || len(args) != 1 || *groups == "" {
		return usage(c)
	}
	for _, g := range splitList(*groups) {
		if err := c.Sys.AddMember(c.User, g, args[0]); err != nil {
			return c.fail(err)
		}
	}
	return ok()
}
