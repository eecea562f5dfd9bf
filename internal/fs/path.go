package fs

import (
	"strings"
)

// DefaultAliases are the top-level folders that address the actor's home
// when written as "/<Alias>".
var DefaultAliases = []string{"Desktop", "Documents", "Downloads", "Pictures", "Music", "Videos"}

// PathResolver turns raw user input into canonical absolute paths.
type PathResolver struct {
	aliases map[string]bool
}

// NewPathResolver creates a resolver that rewrites the given alias folders.
func NewPathResolver(aliases []string) *PathResolver {
	r := &PathResolver{aliases: make(map[string]bool, len(aliases))}
	for _, a := range aliases {
		r.aliases[a] = true
	}
	return r
}

var defaultResolver = NewPathResolver(DefaultAliases)

// Resolve resolves raw with the default alias set.
func Resolve(raw, cwd, home string) string {
	return defaultResolver.Resolve(raw, cwd, home)
}

// Resolve expands a leading "~", rewrites "/<Alias>" into the home tree,
// makes relative paths absolute against cwd and normalizes the result.
func (r *PathResolver) Resolve(raw, cwd, home string) string {
	p := raw
	if home == "" {
		home = "/"
	}

	if p == "~" || strings.HasPrefix(p, "~/") {
		p = home + p[1:]
	}

	if strings.HasPrefix(p, "/") {
		rest := p[1:]
		seg, tail, _ := strings.Cut(rest, "/")
		if r.aliases[seg] {
			p = Join(home, seg)
			if tail != "" {
				p += "/" + tail
			}
		}
	}

	if !strings.HasPrefix(p, "/") {
		if cwd == "" {
			cwd = "/"
		}
		p = cwd + "/" + p
	}

	return Clean(p)
}

// Segments splits an absolute path into its normalized components.
func Segments(p string) []string {
	var stack []string
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, seg)
		}
	}
	return stack
}

// Clean normalizes p to an absolute path without "." or ".." segments.
// ".." at the root stays at the root.
func Clean(p string) string {
	return "/" + strings.Join(Segments(p), "/")
}

// Join builds the path of a child entry.
func Join(dir, name string) string {
	if dir == "/" || dir == "" {
		return "/" + name
	}
	return strings.TrimSuffix(dir, "/") + "/" + name
}

// Split returns the parent directory and final element of a clean path.
func Split(p string) (dir, name string) {
	p = Clean(p)
	if p == "/" {
		return "/", ""
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/", p[1:]
	}
	return p[:i], p[i+1:]
}

// IsWithin reports whether p equals ancestor or lies below it.
func IsWithin(p, ancestor string) bool {
	p, ancestor = Clean(p), Clean(ancestor)
	if ancestor == "/" || p == ancestor {
		return true
	}
	return strings.HasPrefix(p, ancestor+"/")
}

// ValidateName reports whether name can be used as a directory entry.
func ValidateName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.Contains(name, "/")
}
