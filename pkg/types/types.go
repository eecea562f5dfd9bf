// Package types defines the core domain types for the simulated operating system.
package types

import (
	"strconv"
	"time"
)

// NodeKind distinguishes files from directories.
type NodeKind string

const (
	KindFile      NodeKind = "file"
	KindDirectory NodeKind = "directory"
)

// Default permission strings applied when a node carries none.
const (
	DefaultDirPermissions  = "drwxr-xr-x"
	DefaultFilePermissions = "-rw-r--r--"
)

// RootUsername is the superuser account name.
const RootUsername = "root"

// GuestUsername is the identity used when nobody is logged in.
const GuestUsername = "guest"

// Node is one entry of the virtual filesystem tree.
//
// Nodes reachable from a published tree are never modified. Every mutation
// copies the nodes it touches, so a *Node obtained earlier keeps describing
// the tree it was read from.
type Node struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Kind        NodeKind  `json:"type"`
	Content     string    `json:"content,omitempty"`
	Children    []*Node   `json:"children"`
	Permissions string    `json:"permissions,omitempty"`
	Owner       string    `json:"owner,omitempty"`
	Group       string    `json:"group,omitempty"`
	Size        int64     `json:"size,omitempty"`
	Modified    time.Time `json:"modified"`
}

// IsDir reports whether the node is a directory.
func (n *Node) IsDir() bool {
	return n != nil && n.Kind == KindDirectory
}

// Mode returns the permission string, falling back to the kind's default.
func (n *Node) Mode() string {
	if n.Permissions != "" {
		return n.Permissions
	}
	if n.IsDir() {
		return DefaultDirPermissions
	}
	return DefaultFilePermissions
}

// Child returns the direct child with the given name, or nil.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Clone returns a shallow copy of the node. The children slice is copied,
// the children themselves are shared.
func (n *Node) Clone() *Node {
	c := *n
	if n.Children != nil {
		c.Children = make([]*Node, len(n.Children))
		copy(c.Children, n.Children)
	}
	return &c
}

// User is an account of the simulated system.
type User struct {
	Username     string   `json:"username" validate:"required"`
	Password     string   `json:"password,omitempty"`
	PasswordHint string   `json:"password_hint,omitempty"`
	UID          int      `json:"uid" validate:"gte=0"`
	GID          int      `json:"gid" validate:"gte=0"`
	FullName     string   `json:"full_name,omitempty"`
	HomeDir      string   `json:"home_dir" validate:"required"`
	Shell        string   `json:"shell,omitempty"`
	Groups       []string `json:"groups,omitempty"`
}

// IsRoot reports whether the user bypasses permission checks.
func (u *User) IsRoot() bool {
	return u != nil && (u.UID == 0 || u.Username == RootUsername)
}

// InGroup reports whether the user belongs to group, given either as a
// group name or as a stringified gid.
func (u *User) InGroup(group string) bool {
	if u == nil || group == "" {
		return false
	}
	if group == strconv.Itoa(u.GID) {
		return true
	}
	for _, g := range u.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// Group is a named set of users.
type Group struct {
	GroupName string   `json:"group_name" validate:"required"`
	Password  string   `json:"password,omitempty"`
	GID       int      `json:"gid" validate:"gte=0"`
	Members   []string `json:"members,omitempty"`
}

// HasMember reports whether username is listed in the group.
func (g *Group) HasMember(username string) bool {
	for _, m := range g.Members {
		if m == username {
			return true
		}
	}
	return false
}

// Operation is an access mode checked by the permission evaluator.
type Operation string

const (
	OpRead    Operation = "read"
	OpWrite   Operation = "write"
	OpExecute Operation = "execute"
)

// Notification is a user-visible message raised by the core, distinct from
// inline terminal output.
type Notification struct {
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Path    string    `json:"path,omitempty"`
	Time    time.Time `json:"time"`
}
