package shell

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/pflag"

	"github.com/ajaxzhan/simos/internal/fs"
	"github.com/ajaxzhan/simos/pkg/types"
)

func init() {
	register(
		&Command{Name: "cd", Usage: "cd [dir]", Brief: "change the working directory", Run: runCd},
		&Command{Name: "pwd", Usage: "pwd", Brief: "print the working directory", Run: runPwd},
		&Command{Name: "ls", Usage: "ls [-la] [path...]", Brief: "list directory contents", Run: runLs},
		&Command{Name: "cat", Usage: "cat file...", Brief: "print file contents", Run: runCat},
		&Command{Name: "echo", Usage: "echo [text...]", Brief: "print arguments", Run: runEcho},
		&Command{Name: "mkdir", Usage: "mkdir [-p] dir...", Brief: "create directories", Run: runMkdir},
		&Command{Name: "touch", Usage: "touch file...", Brief: "create empty files or update timestamps", Run: runTouch},
		&Command{Name: "rm", Usage: "rm [-rf] path...", Brief: "remove files or directories", Run: runRm},
		&Command{Name: "rmdir", Usage: "rmdir dir...", Brief: "remove empty directories", Run: runRmdir},
		&Command{Name: "mv", Usage: "mv source... dest", Brief: "move or rename", Run: runMv},
		&Command{Name: "cp", Usage: "cp [-r] source... dest", Brief: "copy files or directories", Run: runCp},
		&Command{Name: "chmod", Usage: "chmod mode path...", Brief: "change permissions (octal, symbolic or full string)", Run: runChmod},
		&Command{Name: "chown", Usage: "chown owner[:group] path...", Brief: "change owner and group", Run: runChown},
		&Command{Name: "trash", Usage: "trash path...", Brief: "move to ~/.Trash", Run: runTrash},
		&Command{Name: "empty-trash", Usage: "empty-trash", Brief: "permanently delete everything in ~/.Trash", Run: runEmptyTrash},
		&Command{Name: "find", Usage: "find [path...] [-name pattern] [-path pattern] [-type f|d] [-maxdepth n]", Brief: "search for files", Run: runFind},
		&Command{Name: "file", Usage: "file path...", Brief: "determine file type", Run: runFile},
		&Command{Name: "write", Usage: "write file [text...]", Brief: "replace a file's content", Run: runWrite},
	)
}

func newFlags(c *Context) *pflag.FlagSet {
	f := pflag.NewFlagSet(c.Name, pflag.ContinueOnError)
	f.SetOutput(io.Discard)
	return f
}

func parseFlags(c *Context, f *pflag.FlagSet) ([]string, error) {
	if err := f.Parse(c.Args); err != nil {
		return nil, err
	}
	return f.Args(), nil
}

func runCd(c *Context) Step {
	target := homeOf(c.User)
	if len(c.Args) > 0 {
		if c.Args[0] == "-" {
			target = c.Getenv("OLDPWD")
			if target == "" {
				return fail("cd: OLDPWD not set")
			}
		} else {
			target = c.Resolve(c.Args[0])
		}
	}
	n, err := c.Sys.Stat(target, c.User)
	if err != nil {
		return c.fail(err)
	}
	if !n.IsDir() {
		return c.fail(&types.PathError{Op: "cd", Path: target, Err: types.ErrNotADirectory})
	}
	if err := fs.CheckExecute(target, n, c.User); err != nil {
		c.Sys.ReportDenied("cd", err)
		return c.fail(err)
	}
	c.Setenv("OLDPWD", c.Cwd)
	return done(Result{Cwd: target})
}

func runPwd(c *Context) Step {
	return ok(c.Cwd)
}

func runLs(c *Context) Step {
	f := newFlags(c)
	long := f.BoolP("long", "l", false, "long listing")
	all := f.BoolP("all", "a", false, "show hidden entries")
	args, err := parseFlags(c, f)
	if err != nil {
		return fail("ls: " + err.Error())
	}
	if len(args) == 0 {
		args = []string{"."}
	}

	var (
		out    []string
		failed bool
	)
	for i, arg := range args {
		p := c.Resolve(arg)
		n, err := c.Sys.Stat(p, c.User)
		if err != nil {
			out = append(out, "ls: "+describe(err))
			failed = true
			continue
		}
		if !n.IsDir() {
			out = append(out, lsEntry(c, n, *long))
			continue
		}
		entries, err := c.Sys.ListDirectory(p, c.User)
		if err != nil {
			out = append(out, "ls: "+describe(err))
			failed = true
			continue
		}
		if len(args) > 1 {
			if i > 0 {
				out = append(out, "")
			}
			out = append(out, arg+":")
		}
		sort.Slice(entries, func(a, b int) bool { return entries[a].Name < entries[b].Name })
		var names []string
		for _, e := range entries {
			if !*all && strings.HasPrefix(e.Name, ".") {
				continue
			}
			if *long {
				out = append(out, lsEntry(c, e, true))
			} else {
				names = append(names, e.Name)
			}
		}
		if len(names) > 0 {
			out = append(out, strings.Join(names, "  "))
		}
	}
	if failed {
		return fail(out...)
	}
	return ok(out...)
}

func lsEntry(c *Context, n *types.Node, long bool) string {
	if !long {
		return n.Name
	}
	size := n.Size
	if n.IsDir() {
		size = int64(len(n.Children))
	}
	return fmt.Sprintf("%s %-8s %-8s %6d %s %s",
		n.Mode(), n.Owner, c.Sys.GroupName(n.Group), size, n.Modified.Format("Jan _2 15:04"), n.Name)
}

func runCat(c *Context) Step {
	if len(c.Args) == 0 {
		return usage(c)
	}
	var out []string
	for _, arg := range c.Args {
		content, err := c.Sys.ReadFile(c.Resolve(arg), c.User)
		if err != nil {
			return c.fail(err)
		}
		out = append(out, splitLines(content)...)
	}
	return ok(out...)
}

func runEcho(c *Context) Step {
	return ok(strings.Join(c.Args, " "))
}

func runMkdir(c *Context) Step {
	f := newFlags(c)
	parents := f.BoolP("parents", "p", false, "create missing parents")
	args, err := parseFlags(c, f)
	if err != nil || len(args) == 0 {
		return usage(c)
	}
	for _, arg := range args {
		p := c.Resolve(arg)
		if *parents {
			if err := mkdirAll(c, p); err != nil {
				return c.fail(err)
			}
			continue
		}
		dir, name := fs.Split(p)
		if _, err := c.Sys.CreateDirectory(dir, name, c.User); err != nil {
			return c.fail(err)
		}
	}
	return ok()
}

func mkdirAll(c *Context, p string) error {
	cur := "/"
	for _, seg := range fs.Segments(p) {
		next := fs.Join(cur, seg)
		if n := c.Sys.GetNodeAtPath(next); n != nil {
			if !n.IsDir() {
				return &types.PathError{Op: "mkdir", Path: next, Err: types.ErrNotADirectory}
			}
			cur = next
			continue
		}
		if _, err := c.Sys.CreateDirectory(cur, seg, c.User); err != nil {
			return err
		}
		cur = next
	}
	return nil
}

func runTouch(c *Context) Step {
	if len(c.Args) == 0 {
		return usage(c)
	}
	for _, arg := range c.Args {
		p := c.Resolve(arg)
		if n := c.Sys.GetNodeAtPath(p); n != nil {
			if n.IsDir() {
				continue
			}
			if err := c.Sys.WriteFile(p, n.Content, c.User); err != nil {
				return c.fail(err)
			}
			continue
		}
		dir, name := fs.Split(p)
		if _, err := c.Sys.CreateFile(dir, name, "", c.User, ""); err != nil {
			return c.fail(err)
		}
	}
	return ok()
}

func runRm(c *Context) Step {
	f := newFlags(c)
	recursive := f.BoolP("recursive", "r", false, "remove directories and their contents")
	force := f.BoolP("force", "f", false, "ignore missing files")
	f.BoolP("Recursive", "R", false, "same as -r")
	args, err := parseFlags(c, f)
	if err != nil {
		return fail("rm: " + err.Error())
	}
	if r, _ := f.GetBool("Recursive"); r {
		*recursive = true
	}
	if len(args) == 0 {
		if *force {
			return ok()
		}
		return usage(c)
	}
	for _, arg := range args {
		p := c.Resolve(arg)
		n, err := c.Sys.Stat(p, c.User)
		if err != nil {
			if *force && errors.Is(err, types.ErrNotFound) {
				continue
			}
			return c.fail(err)
		}
		if n.IsDir() && !*recursive {
			return fail(fmt.Sprintf("rm: cannot remove '%s': Is a directory", arg))
		}
		if err := c.Sys.DeleteNode(p, c.User); err != nil {
			return c.fail(err)
		}
	}
	return ok()
}

func runRmdir(c *Context) Step {
	if len(c.Args) == 0 {
		return usage(c)
	}
	for _, arg := range c.Args {
		p := c.Resolve(arg)
		n, err := c.Sys.Stat(p, c.User)
		if err != nil {
			return c.fail(err)
		}
		if !n.IsDir() {
			return c.fail(&types.PathError{Op: "rmdir", Path: p, Err: types.ErrNotADirectory})
		}
		if len(n.Children) > 0 {
			return c.fail(&types.PathError{Op: "rmdir", Path: p, Err: types.ErrNotEmpty})
		}
		if err := c.Sys.DeleteNode(p, c.User); err != nil {
			return c.fail(err)
		}
	}
	return ok()
}

// destination returns where src lands when moved or copied to dst: inside
// dst when it is an existing directory, dst itself otherwise.
func destination(c *Context, src, dst string) string {
	if n := c.Sys.GetNodeAtPath(dst); n != nil && n.IsDir() {
		_, name := fs.Split(src)
		return fs.Join(dst, name)
	}
	return dst
}

func sourcesAndTarget(c *Context, args []string) ([]string, string, error) {
	if len(args) < 2 {
		return nil, "", types.ErrInvalidArgument
	}
	dst := c.Resolve(args[len(args)-1])
	if len(args) > 2 {
		if n := c.Sys.GetNodeAtPath(dst); n == nil || !n.IsDir() {
			return nil, "", &types.PathError{Op: c.Name, Path: dst, Err: types.ErrNotADirectory}
		}
	}
	srcs := make([]string, 0, len(args)-1)
	for _, a := range args[:len(args)-1] {
		srcs = append(srcs, c.Resolve(a))
	}
	return srcs, dst, nil
}

func runMv(c *Context) Step {
	srcs, dst, err := sourcesAndTarget(c, c.Args)
	if errors.Is(err, types.ErrInvalidArgument) {
		return usage(c)
	}
	if err != nil {
		return c.fail(err)
	}
	for _, src := range srcs {
		if err := c.Sys.MoveNode(src, destination(c, src, dst), c.User); err != nil {
			return c.fail(err)
		}
	}
	return ok()
}

func runCp(c *Context) Step {
	f := newFlags(c)
	recursive := f.BoolP("recursive", "r", false, "copy directories recursively")
	f.BoolP("Recursive", "R", false, "same as -r")
	args, err := parseFlags(c, f)
	if err != nil {
		return fail("cp: " + err.Error())
	}
	if r, _ := f.GetBool("Recursive"); r {
		*recursive = true
	}
	srcs, dst, err := sourcesAndTarget(c, args)
	if errors.Is(err, types.ErrInvalidArgument) {
		return usage(c)
	}
	if err != nil {
		return c.fail(err)
	}
	for _, src := range srcs {
		n, err := c.Sys.Stat(src, c.User)
		if err != nil {
			return c.fail(err)
		}
		if n.IsDir() && !*recursive {
			return fail(fmt.Sprintf("cp: -r not specified; omitting directory '%s'", src))
		}
		if err := c.Sys.CopyNode(src, destination(c, src, dst), c.User); err != nil {
			return c.fail(err)
		}
	}
	return ok()
}

func runChmod(c *Context) Step {
	if len(c.Args) < 2 {
		return usage(c)
	}
	mode := c.Args[0]
	for _, arg := range c.Args[1:] {
		if err := c.Sys.Chmod(c.Resolve(arg), mode, c.User); err != nil {
			if errors.Is(err, types.ErrInvalidMode) {
				return fail(fmt.Sprintf("chmod: invalid mode: '%s'", mode))
			}
			return c.fail(err)
		}
	}
	return ok()
}

func runChown(c *Context) Step {
	if len(c.Args) < 2 {
		return usage(c)
	}
	owner, group, _ := strings.Cut(c.Args[0], ":")
	for _, arg := range c.Args[1:] {
		if err := c.Sys.Chown(c.Resolve(arg), owner, group, c.User); err != nil {
			return c.fail(err)
		}
	}
	return ok()
}

func runTrash(c *Context) Step {
	if len(c.Args) == 0 {
		return usage(c)
	}
	var out []string
	for _, arg := range c.Args {
		dest, err := c.Sys.MoveToTrash(c.Resolve(arg), c.User)
		if err != nil {
			return c.fail(err)
		}
		if dest == "" {
			out = append(out, fmt.Sprintf("trash: removed '%s' permanently", arg))
		}
	}
	return ok(out...)
}

func runEmptyTrash(c *Context) Step {
	if err := c.Sys.EmptyTrash(c.User); err != nil {
		return c.fail(err)
	}
	return ok()
}

type findQuery struct {
	name     string
	path     string
	kind     string
	maxDepth int
}

func (q findQuery) match(display string, n *types.Node) bool {
	if q.kind == "f" && n.IsDir() || q.kind == "d" && !n.IsDir() {
		return false
	}
	if q.name != "" {
		if ok, _ := doublestar.Match(q.name, n.Name); !ok {
			return false
		}
	}
	if q.path != "" {
		if ok, _ := doublestar.Match(q.path, display); !ok {
			return false
		}
	}
	return true
}

func parseFind(args []string) ([]string, findQuery, error) {
	q := findQuery{maxDepth: -1}
	var (
		starts   []string
		seenExpr bool
	)
	for i := 0; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "-") {
			if seenExpr {
				return nil, q, fmt.Errorf("paths must precede expression: '%s'", a)
			}
			starts = append(starts, a)
			continue
		}
		seenExpr = true
		if i+1 >= len(args) {
			return nil, q, fmt.Errorf("missing argument to '%s'", a)
		}
		v := args[i+1]
		i++
		switch a {
		case "-name":
			q.name = v
		case "-path":
			q.path = v
		case "-type":
			if v != "f" && v != "d" {
				return nil, q, fmt.Errorf("unknown argument to -type: %s", v)
			}
			q.kind = v
		case "-maxdepth":
			d, err := strconv.Atoi(v)
			if err != nil || d < 0 {
				return nil, q, fmt.Errorf("invalid argument '%s' to -maxdepth", v)
			}
			q.maxDepth = d
		default:
			return nil, q, fmt.Errorf("unknown predicate '%s'", a)
		}
	}
	for _, p := range []string{q.name, q.path} {
		if p != "" && !doublestar.ValidatePattern(p) {
			return nil, q, fmt.Errorf("invalid pattern '%s'", p)
		}
	}
	if len(starts) == 0 {
		starts = []string{"."}
	}
	return starts, q, nil
}

func runFind(c *Context) Step {
	starts, q, err := parseFind(c.Args)
	if err != nil {
		return fail("find: " + err.Error())
	}

	var (
		out    []string
		failed bool
	)
	for _, arg := range starts {
		start := c.Resolve(arg)
		root, err := c.Sys.Stat(start, c.User)
		if err != nil {
			out = append(out, "find: "+describe(err))
			failed = true
			continue
		}
		display := func(p string) string {
			if p == start {
				return arg
			}
			rel := strings.TrimPrefix(strings.TrimPrefix(p, start), "/")
			return strings.TrimSuffix(arg, "/") + "/" + rel
		}

		var walk func(p string, n *types.Node, depth int)
		walk = func(p string, n *types.Node, depth int) {
			if q.match(display(p), n) {
				out = append(out, display(p))
			}
			if !n.IsDir() || (q.maxDepth >= 0 && depth >= q.maxDepth) {
				return
			}
			if !fs.Allowed(n, c.User, types.OpRead) || !fs.Allowed(n, c.User, types.OpExecute) {
				out = append(out, fmt.Sprintf("find: '%s': Permission denied", display(p)))
				failed = true
				return
			}
			children := append([]*types.Node(nil), n.Children...)
			sort.Slice(children, func(a, b int) bool { return children[a].Name < children[b].Name })
			for _, child := range children {
				walk(fs.Join(p, child.Name), child, depth+1)
			}
		}
		walk(start, root, 0)
	}
	if failed {
		return fail(out...)
	}
	return ok(out...)
}

func runFile(c *Context) Step {
	if len(c.Args) == 0 {
		return usage(c)
	}
	var out []string
	for _, arg := range c.Args {
		p := c.Resolve(arg)
		n, err := c.Sys.Stat(p, c.User)
		if err != nil {
			return c.fail(err)
		}
		if n.IsDir() {
			out = append(out, arg+": directory")
			continue
		}
		content, err := c.Sys.ReadFile(p, c.User)
		if err != nil {
			return c.fail(err)
		}
		out = append(out, arg+": "+describeContent(p, content))
	}
	return ok(out...)
}

func describeContent(p, content string) string {
	if content == "" {
		return "empty"
	}
	exe, err := classify(p, &types.Node{Content: content})
	switch {
	case err != nil:
		return "broken command link"
	case exe.Kind == ExecApp:
		return "application launcher (" + exe.AppID + ")"
	case exe.Kind == ExecRegistered:
		return "command link to " + exe.Command
	}
	return mimetype.Detect([]byte(content)).String()
}

func runWrite(c *Context) Step {
	if len(c.Args) == 0 {
		return usage(c)
	}
	p := c.Resolve(c.Args[0])
	write := func(text string) Step {
		if err := c.Sys.WriteFile(p, text+"\n", c.User); err != nil {
			return c.fail(err)
		}
		return ok()
	}
	if len(c.Args) > 1 {
		return write(strings.Join(c.Args[1:], " "))
	}
	return ask("Text: ", false, write)
}
