// Package fs implements the virtual filesystem: permission evaluation, path
// resolution, and a persistent tree whose mutations never disturb earlier
// snapshots.
package fs

import (
	"github.com/ajaxzhan/simos/pkg/types"
)

// Offsets of the owner, group and other triplets in a permission string.
const (
	ownerTriplet = 1
	groupTriplet = 4
	otherTriplet = 7
)

func opOffset(op types.Operation) int {
	switch op {
	case types.OpRead:
		return 0
	case types.OpWrite:
		return 1
	default:
		return 2
	}
}

// effectiveMode returns the node's permission string, or the kind default
// when the stored one is missing or malformed.
func effectiveMode(node *types.Node) string {
	mode := node.Mode()
	if len(mode) != 10 {
		if node.IsDir() {
			return types.DefaultDirPermissions
		}
		return types.DefaultFilePermissions
	}
	return mode
}

// Allowed reports whether actor may perform op on node.
//
// Root always passes. Otherwise exactly one triplet is consulted: owner if
// the actor owns the node, group if the actor is a member of the node's
// group, other in every remaining case. A '-' in the selected slot denies.
// In the other-execute slot the sticky overlay decides: 't' is executable,
// 'T' is not.
func Allowed(node *types.Node, actor *types.User, op types.Operation) bool {
	if node == nil {
		return false
	}
	if actor.IsRoot() {
		return true
	}
	mode := effectiveMode(node)

	base := otherTriplet
	switch {
	case actor != nil && node.Owner != "" && node.Owner == actor.Username:
		base = ownerTriplet
	case actor.InGroup(node.Group):
		base = groupTriplet
	}

	c := mode[base+opOffset(op)]
	if base == otherTriplet && op == types.OpExecute {
		switch c {
		case 't':
			return true
		case 'T':
			return false
		}
	}
	return c != '-'
}

// Check is Allowed returning a *types.PermissionError on denial.
func Check(path string, node *types.Node, actor *types.User, op types.Operation) error {
	if Allowed(node, actor, op) {
		return nil
	}
	return &types.PermissionError{
		Op:          string(op),
		Path:        path,
		Username:    usernameOf(actor),
		Permissions: effectiveMode(node),
	}
}

// CheckRead checks if the node can be read.
func CheckRead(path string, node *types.Node, actor *types.User) error {
	return Check(path, node, actor, types.OpRead)
}

// CheckWrite checks if the node can be written.
func CheckWrite(path string, node *types.Node, actor *types.User) error {
	return Check(path, node, actor, types.OpWrite)
}

// CheckExecute checks if the node can be executed or searched.
func CheckExecute(path string, node *types.Node, actor *types.User) error {
	return Check(path, node, actor, types.OpExecute)
}

// IsSticky reports whether a permission string carries the sticky overlay.
func IsSticky(mode string) bool {
	return len(mode) == 10 && (mode[9] == 't' || mode[9] == 'T')
}

// CheckSticky enforces the sticky-bit restriction for removing or renaming
// target out of dir: only root, the owner of the directory, or the owner of
// the entry may do so.
func CheckSticky(path string, dir, target *types.Node, actor *types.User) error {
	if !IsSticky(effectiveMode(dir)) {
		return nil
	}
	if actor.IsRoot() {
		return nil
	}
	name := usernameOf(actor)
	if name != "" && (dir.Owner == name || target.Owner == name) {
		return nil
	}
	return &types.PermissionError{
		Op:          "delete",
		Path:        path,
		Username:    name,
		Permissions: effectiveMode(dir),
		Sticky:      true,
	}
}

func usernameOf(actor *types.User) string {
	if actor == nil {
		return types.GuestUsername
	}
	return actor.Username
}
