package shell

import (
	"strings"

	"github.com/ajaxzhan/simos/internal/fs"
	"github.com/ajaxzhan/simos/pkg/types"
)

// ExecKind tags the variants of Executable.
type ExecKind int

const (
	// ExecBuiltin is a command from the registered table called by name.
	ExecBuiltin ExecKind = iota
	// ExecScript is a file interpreted by the script engine.
	ExecScript
	// ExecApp is a file that launches a host application.
	ExecApp
	// ExecRegistered is a file that maps to a registered command.
	ExecRegistered
)

func (k ExecKind) String() string {
	switch k {
	case ExecBuiltin:
		return "builtin"
	case ExecScript:
		return "script"
	case ExecApp:
		return "app"
	case ExecRegistered:
		return "registered"
	}
	return "unknown"
}

// Executable is a resolved command name.
type Executable struct {
	Kind ExecKind
	// Command is the registered command for ExecBuiltin and ExecRegistered.
	Command string
	// Path is the file backing every kind except ExecBuiltin.
	Path string
	// AppID is the application launched by ExecApp.
	AppID string
	// Script is the body run by ExecScript.
	Script string
}

// classify interprets the content of an executable file at path.
func classify(path string, n *types.Node) (Executable, error) {
	content := n.Content
	if strings.HasPrefix(content, fs.AppMarkerPrefix) {
		id := strings.TrimPrefix(firstLine(content), fs.AppMarkerPrefix)
		return Executable{Kind: ExecApp, Path: path, AppID: strings.TrimSpace(id)}, nil
	}
	if i := strings.Index(content, fs.CommandMarker); i >= 0 {
		rest := firstLine(content[i+len(fs.CommandMarker):])
		name := strings.TrimSpace(rest)
		if fields := strings.Fields(name); len(fields) > 0 {
			name = fields[0]
		}
		if _, ok := Lookup(name); !ok {
			return Executable{}, &types.CommandError{Name: path, Err: types.ErrBrokenBinary}
		}
		return Executable{Kind: ExecRegistered, Path: path, Command: name}, nil
	}
	return Executable{Kind: ExecScript, Path: path, Script: content}, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// resolve maps a command name to an Executable: registered commands first,
// then an explicit path, then the PATH directories in order. A PATH match
// that is not executable is skipped; an explicit path that is not
// executable fails.
func (t *Terminal) resolve(name string, sc *scope) (Executable, error) {
	if _, ok := Lookup(name); ok {
		return Executable{Kind: ExecBuiltin, Command: name}, nil
	}

	tree := t.sys.Tree()
	if strings.Contains(name, "/") {
		p := t.sys.ResolvePath(name, sc.cwd, sc.user)
		n, err := tree.Stat(p, sc.user)
		if err != nil {
			t.sys.ReportDenied("exec", err)
			return Executable{}, err
		}
		if n.IsDir() {
			return Executable{}, &types.PathError{Op: "exec", Path: p, Err: types.ErrNotAFile}
		}
		if err := fs.CheckExecute(p, n, sc.user); err != nil {
			t.sys.ReportDenied("exec", err)
			return Executable{}, err
		}
		return classify(p, n)
	}

	for _, dir := range sc.path() {
		p := fs.Join(dir, name)
		n, err := tree.Stat(p, sc.user)
		if err != nil || n.IsDir() || !fs.Allowed(n, sc.user, types.OpExecute) {
			continue
		}
		return classify(p, n)
	}
	return Executable{}, &types.CommandError{Name: name, Err: types.ErrCommandNotFound}
}
