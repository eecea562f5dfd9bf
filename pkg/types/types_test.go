package types

import (
	"errors"
	"testing"
)

func TestNode_Mode(t *testing.T) {
	tests := []struct {
		name     string
		node     Node
		expected string
	}{
		{"explicit", Node{Kind: KindFile, Permissions: "-rwx------"}, "-rwx------"},
		{"file default", Node{Kind: KindFile}, DefaultFilePermissions},
		{"dir default", Node{Kind: KindDirectory}, DefaultDirPermissions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.node.Mode(); got != tt.expected {
				t.Errorf("Mode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestNode_CloneSharesChildren(t *testing.T) {
	child := &Node{ID: "c", Name: "c", Kind: KindFile}
	dir := &Node{ID: "d", Name: "d", Kind: KindDirectory, Children: []*Node{child}}

	clone := dir.Clone()
	clone.Children = append(clone.Children, &Node{ID: "e", Name: "e", Kind: KindFile})

	if len(dir.Children) != 1 {
		t.Errorf("original children changed: %d", len(dir.Children))
	}
	if clone.Children[0] != child {
		t.Error("clone should share untouched children")
	}
}

func TestUser_InGroup(t *testing.T) {
	u := &User{Username: "alice", UID: 1000, GID: 1000, Groups: []string{"staff"}}

	if !u.InGroup("1000") {
		t.Error("primary gid should match")
	}
	if !u.InGroup("staff") {
		t.Error("supplementary group should match")
	}
	if u.InGroup("wheel") || u.InGroup("") {
		t.Error("unrelated group should not match")
	}
}

func TestUser_IsRoot(t *testing.T) {
	if !(&User{Username: "root", UID: 0}).IsRoot() {
		t.Error("root should be root")
	}
	if !(&User{Username: "toor", UID: 0}).IsRoot() {
		t.Error("uid 0 should be root")
	}
	if (&User{Username: "alice", UID: 1000}).IsRoot() {
		t.Error("alice should not be root")
	}
}

func TestPermissionError_Unwrap(t *testing.T) {
	err := &PermissionError{Op: "delete", Path: "/tmp/x", Username: "bob", Sticky: true}
	if !errors.Is(err, ErrPermissionDenied) {
		t.Error("PermissionError should unwrap to ErrPermissionDenied")
	}
	wrapped := &PathError{Op: "rm", Path: "/tmp/x", Err: err}
	if !IsPermission(wrapped) {
		t.Error("wrapped PermissionError should be a permission error")
	}
}
