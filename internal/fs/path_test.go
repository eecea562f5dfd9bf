package fs

import (
	"testing"
)

func TestResolve(t *testing.T) {
	const home = "/home/alice"

	tests := []struct {
		raw      string
		cwd      string
		expected string
	}{
		{"~", "/", home},
		{"~/Desktop", "/tmp", "/home/alice/Desktop"},
		{"/Desktop", "/", "/home/alice/Desktop"},
		{"/Documents/notes.txt", "/", "/home/alice/Documents/notes.txt"},
		{"/DesktopFiles", "/", "/DesktopFiles"},
		{"/etc/passwd", "/home/alice", "/etc/passwd"},
		{"/usr/bin", "/", "/usr/bin"},
		{"docs", "/home/alice", "/home/alice/docs"},
		{"./a/./b", "/tmp", "/tmp/a/b"},
		{"..", "/home/alice", "/home"},
		{"../../../..", "/home/alice", "/"},
		{"/a//b/", "/", "/a/b"},
		{"", "/var/log", "/var/log"},
		{"Desktop", "/", "/Desktop"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := Resolve(tt.raw, tt.cwd, home); got != tt.expected {
				t.Errorf("Resolve(%q, %q) = %q, want %q", tt.raw, tt.cwd, got, tt.expected)
			}
		})
	}
}

func TestResolve_Idempotent(t *testing.T) {
	const home = "/home/alice"
	inputs := []string{"/", "/etc", "/home/alice/Desktop", "~/Music", "/Videos/clip", "a/../b", "/x/y/.."}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			once := Resolve(in, "/tmp", home)
			twice := Resolve(once, "/tmp", home)
			if once != twice {
				t.Errorf("Resolve not idempotent: %q -> %q -> %q", in, once, twice)
			}
		})
	}
}

func TestPathResolver_CustomAliases(t *testing.T) {
	r := NewPathResolver([]string{"Projects"})
	if got := r.Resolve("/Projects/x", "/", "/home/bob"); got != "/home/bob/Projects/x" {
		t.Errorf("Resolve() = %q", got)
	}
	if got := r.Resolve("/Desktop", "/", "/home/bob"); got != "/Desktop" {
		t.Errorf("Resolve() = %q, Desktop should not be an alias", got)
	}
}

func TestSplitJoin(t *testing.T) {
	tests := []struct {
		path, dir, name string
	}{
		{"/", "/", ""},
		{"/etc", "/", "etc"},
		{"/home/alice/.Trash", "/home/alice", ".Trash"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			dir, name := Split(tt.path)
			if dir != tt.dir || name != tt.name {
				t.Errorf("Split(%q) = (%q, %q), want (%q, %q)", tt.path, dir, name, tt.dir, tt.name)
			}
			if name != "" && Join(dir, name) != tt.path {
				t.Errorf("Join(%q, %q) = %q", dir, name, Join(dir, name))
			}
		})
	}
}

func TestIsWithin(t *testing.T) {
	tests := []struct {
		p, ancestor string
		expected    bool
	}{
		{"/a/b", "/a", true},
		{"/a", "/a", true},
		{"/ab", "/a", false},
		{"/anything", "/", true},
		{"/a", "/a/b", false},
	}

	for _, tt := range tests {
		if got := IsWithin(tt.p, tt.ancestor); got != tt.expected {
			t.Errorf("IsWithin(%q, %q) = %v, want %v", tt.p, tt.ancestor, got, tt.expected)
		}
	}
}
