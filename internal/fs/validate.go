package fs

import (
	"errors"
	"fmt"

	"github.com/ajaxzhan/simos/pkg/types"
)

// ErrCorruptTree is returned by Validate when the structure is unusable.
var ErrCorruptTree = errors.New("corrupt filesystem tree")

// Validate checks the structural invariants of a tree rooted at root:
// non-empty unique ids, unique sibling names, directories carrying a
// children sequence, files carrying none, and well-formed permission
// strings.
func Validate(root *types.Node) error {
	if root == nil {
		return fmt.Errorf("%w: missing root", ErrCorruptTree)
	}
	if !root.IsDir() {
		return fmt.Errorf("%w: root is not a directory", ErrCorruptTree)
	}
	seen := make(map[string]string)
	return validateNode("/", root, seen)
}

func validateNode(p string, n *types.Node, seen map[string]string) error {
	if n == nil {
		return fmt.Errorf("%w: nil node at %s", ErrCorruptTree, p)
	}
	if n.ID == "" {
		return fmt.Errorf("%w: empty id at %s", ErrCorruptTree, p)
	}
	if other, ok := seen[n.ID]; ok {
		return fmt.Errorf("%w: id %s shared by %s and %s", ErrCorruptTree, n.ID, other, p)
	}
	seen[n.ID] = p

	if n.Permissions != "" && !fullModeRe.MatchString(n.Permissions) {
		return fmt.Errorf("%w: bad permissions %q at %s", ErrCorruptTree, n.Permissions, p)
	}

	switch n.Kind {
	case types.KindFile:
		if n.Children != nil {
			return fmt.Errorf("%w: file with children at %s", ErrCorruptTree, p)
		}
		return nil
	case types.KindDirectory:
		if n.Children == nil {
			return fmt.Errorf("%w: directory without children at %s", ErrCorruptTree, p)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q at %s", ErrCorruptTree, n.Kind, p)
	}

	names := make(map[string]bool, len(n.Children))
	for _, c := range n.Children {
		if c == nil {
			return fmt.Errorf("%w: nil child in %s", ErrCorruptTree, p)
		}
		if names[c.Name] {
			return fmt.Errorf("%w: duplicate name %q in %s", ErrCorruptTree, c.Name, p)
		}
		names[c.Name] = true
		if err := validateNode(Join(p, c.Name), c, seen); err != nil {
			return err
		}
	}
	return nil
}
