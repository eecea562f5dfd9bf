package fs

import (
	"fmt"
	"strconv"

	"github.com/ajaxzhan/simos/pkg/types"
)

func pathErr(op, path string, err error) error {
	return &types.PathError{Op: op, Path: path, Err: err}
}

func groupOf(actor *types.User) string {
	if actor == nil {
		return ""
	}
	return strconv.Itoa(actor.GID)
}

// lookupDir walks to dirPath, requiring search permission on every
// directory on the way, including dirPath itself.
func (t *Tree) lookupDir(op, dirPath string, actor *types.User) (*types.Node, error) {
	n := t.root
	cur := "/"
	if err := CheckExecute(cur, n, actor); err != nil {
		return nil, err
	}
	for _, seg := range Segments(dirPath) {
		n = n.Child(seg)
		cur = Join(cur, seg)
		if n == nil {
			return nil, pathErr(op, cur, types.ErrNotFound)
		}
		if !n.IsDir() {
			return nil, pathErr(op, cur, types.ErrNotADirectory)
		}
		if err := CheckExecute(cur, n, actor); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// lookupEntry returns the parent directory and the node at path.
func (t *Tree) lookupEntry(op, path string, actor *types.User) (parent, node *types.Node, err error) {
	dir, name := Split(path)
	parent, err = t.lookupDir(op, dir, actor)
	if err != nil {
		return nil, nil, err
	}
	if name == "" {
		return nil, t.root, nil
	}
	node = parent.Child(name)
	if node == nil {
		return parent, nil, pathErr(op, Clean(path), types.ErrNotFound)
	}
	return parent, node, nil
}

// Stat returns the node at path, requiring search permission on its
// ancestors.
func (t *Tree) Stat(path string, actor *types.User) (*types.Node, error) {
	_, n, err := t.lookupEntry("stat", path, actor)
	return n, err
}

// ReadFile returns the content of the file at path.
func (t *Tree) ReadFile(path string, actor *types.User) (string, error) {
	path = Clean(path)
	_, n, err := t.lookupEntry("read", path, actor)
	if err != nil {
		return "", err
	}
	if n.IsDir() {
		return "", pathErr("read", path, types.ErrNotAFile)
	}
	if err := CheckRead(path, n, actor); err != nil {
		return "", err
	}
	return n.Content, nil
}

// ListDirectory returns the entries of the directory at path in insertion
// order.
func (t *Tree) ListDirectory(path string, actor *types.User) ([]*types.Node, error) {
	path = Clean(path)
	_, n, err := t.lookupEntry("list", path, actor)
	if err != nil {
		return nil, err
	}
	if !n.IsDir() {
		return nil, pathErr("list", path, types.ErrNotADirectory)
	}
	if err := CheckRead(path, n, actor); err != nil {
		return nil, err
	}
	out := make([]*types.Node, len(n.Children))
	copy(out, n.Children)
	return out, nil
}

func (t *Tree) create(op, dirPath string, child *types.Node, actor *types.User) (*Tree, error) {
	dirPath = Clean(dirPath)
	if !ValidateName(child.Name) {
		return nil, pathErr(op, Join(dirPath, child.Name), types.ErrInvalidArgument)
	}
	dir, err := t.lookupDir(op, dirPath, actor)
	if err != nil {
		return nil, err
	}
	if err := CheckWrite(dirPath, dir, actor); err != nil {
		return nil, err
	}
	if dir.Child(child.Name) != nil {
		return nil, pathErr(op, Join(dirPath, child.Name), types.ErrNameCollision)
	}
	return t.edit(dirPath, func(n *types.Node) (*types.Node, error) {
		return withChild(n, child), nil
	})
}

// CreateFile adds a file named name to dirPath, owned by actor. An empty
// perms selects the default file permissions.
func (t *Tree) CreateFile(dirPath, name, content string, actor *types.User, perms string) (*Tree, *types.Node, error) {
	if perms != "" && !fullModeRe.MatchString(perms) {
		return nil, nil, pathErr("create", Join(Clean(dirPath), name), types.ErrInvalidMode)
	}
	node := NewFile(name, content, usernameOf(actor), groupOf(actor), perms)
	next, err := t.create("create", dirPath, node, actor)
	if err != nil {
		return nil, nil, err
	}
	return next, node, nil
}

// CreateDirectory adds an empty directory named name to dirPath.
func (t *Tree) CreateDirectory(dirPath, name string, actor *types.User) (*Tree, *types.Node, error) {
	node := NewDirectory(name, usernameOf(actor), groupOf(actor), "")
	next, err := t.create("mkdir", dirPath, node, actor)
	if err != nil {
		return nil, nil, err
	}
	return next, node, nil
}

// WriteFile replaces the content of the file at path, creating it when it
// does not exist.
func (t *Tree) WriteFile(path, content string, actor *types.User) (*Tree, error) {
	path = Clean(path)
	dir, name := Split(path)
	if name == "" {
		return nil, pathErr("write", path, types.ErrNotAFile)
	}
	parent, err := t.lookupDir("write", dir, actor)
	if err != nil {
		return nil, err
	}
	existing := parent.Child(name)
	if existing == nil {
		next, _, err := t.CreateFile(dir, name, content, actor, "")
		return next, err
	}
	if existing.IsDir() {
		return nil, pathErr("write", path, types.ErrNotAFile)
	}
	if err := CheckWrite(path, existing, actor); err != nil {
		return nil, err
	}
	return t.edit(path, func(n *types.Node) (*types.Node, error) {
		c := n.Clone()
		c.Content = content
		c.Size = int64(len(content))
		c.Modified = now()
		return c, nil
	})
}

// DeleteNode removes the node at path and everything below it.
func (t *Tree) DeleteNode(path string, actor *types.User) (*Tree, error) {
	path = Clean(path)
	if path == "/" {
		return nil, pathErr("delete", path, fmt.Errorf("%w: cannot remove root", types.ErrInvalidArgument))
	}
	parent, node, err := t.lookupEntry("delete", path, actor)
	if err != nil {
		return nil, err
	}
	dir, name := Split(path)
	if err := CheckWrite(dir, parent, actor); err != nil {
		return nil, err
	}
	if err := CheckSticky(path, parent, node, actor); err != nil {
		return nil, err
	}
	return t.edit(dir, func(n *types.Node) (*types.Node, error) {
		return withoutChild(n, name), nil
	})
}

// MoveNode renames the node at from to the full destination path to.
//
// Removal and insertion are computed against the same snapshot and only the
// final tree is returned, so a failed move leaves the receiver untouched.
func (t *Tree) MoveNode(from, to string, actor *types.User) (*Tree, error) {
	from, to = Clean(from), Clean(to)
	if from == "/" || to == "/" {
		return nil, pathErr("move", from, fmt.Errorf("%w: cannot move root", types.ErrInvalidArgument))
	}
	if from == to {
		if t.Lookup(from) == nil {
			return nil, pathErr("move", from, types.ErrNotFound)
		}
		return t, nil
	}
	if IsWithin(to, from) {
		return nil, pathErr("move", to, types.ErrCyclicMove)
	}

	srcParent, src, err := t.lookupEntry("move", from, actor)
	if err != nil {
		return nil, err
	}
	srcDir, srcName := Split(from)
	dstDir, dstName := Split(to)
	if !ValidateName(dstName) {
		return nil, pathErr("move", to, types.ErrInvalidArgument)
	}
	dstParent, err := t.lookupDir("move", dstDir, actor)
	if err != nil {
		return nil, err
	}
	if err := CheckWrite(srcDir, srcParent, actor); err != nil {
		return nil, err
	}
	if err := CheckWrite(dstDir, dstParent, actor); err != nil {
		return nil, err
	}
	if err := CheckSticky(from, srcParent, src, actor); err != nil {
		return nil, err
	}
	if dstParent.Child(dstName) != nil {
		return nil, pathErr("move", to, types.ErrNameCollision)
	}

	removed, err := t.edit(srcDir, func(n *types.Node) (*types.Node, error) {
		return withoutChild(n, srcName), nil
	})
	if err != nil {
		return nil, err
	}
	moved := src.Clone()
	moved.Name = dstName
	moved.Modified = now()
	return removed.edit(dstDir, func(n *types.Node) (*types.Node, error) {
		if n.Child(dstName) != nil {
			return nil, pathErr("move", to, types.ErrNameCollision)
		}
		return withChild(n, moved), nil
	})
}

// MoveNodeByID moves the node with the given id into destParent, keeping
// its name.
func (t *Tree) MoveNodeByID(id, destParent string, actor *types.User) (*Tree, error) {
	node, from := t.FindByID(id)
	if node == nil {
		return nil, pathErr("move", id, types.ErrNotFound)
	}
	if from == "/" {
		return nil, pathErr("move", from, fmt.Errorf("%w: cannot move root", types.ErrInvalidArgument))
	}
	destParent = Clean(destParent)
	if IsWithin(destParent, from) {
		return nil, pathErr("move", destParent, types.ErrCyclicMove)
	}
	dst := t.Lookup(destParent)
	if dst == nil {
		return nil, pathErr("move", destParent, types.ErrNotFound)
	}
	if !dst.IsDir() {
		return nil, pathErr("move", destParent, types.ErrNotADirectory)
	}
	to := Join(destParent, node.Name)
	if dir, _ := Split(from); dir == destParent {
		return t, nil
	}
	if dst.Child(node.Name) != nil {
		return nil, pathErr("move", to, types.ErrNameCollision)
	}
	return t.MoveNode(from, to, actor)
}

// CopyNode duplicates the node at from, with all descendants, to the full
// destination path to. Copies get fresh ids and belong to actor.
func (t *Tree) CopyNode(from, to string, actor *types.User) (*Tree, error) {
	from, to = Clean(from), Clean(to)
	_, src, err := t.lookupEntry("copy", from, actor)
	if err != nil {
		return nil, err
	}
	if src.IsDir() && IsWithin(to, from) {
		return nil, pathErr("copy", to, types.ErrCyclicMove)
	}
	if err := t.checkReadable(from, src, actor); err != nil {
		return nil, err
	}
	if existing := t.Lookup(to); existing != nil && !src.IsDir() && !existing.IsDir() {
		// Like cp(1), an existing file is overwritten in place and keeps
		// its owner and mode.
		return t.WriteFile(to, src.Content, actor)
	}
	dstDir, dstName := Split(to)
	copied := deepCopy(src, usernameOf(actor), groupOf(actor))
	copied.Name = dstName
	return t.create("copy", dstDir, copied, actor)
}

func (t *Tree) checkReadable(path string, n *types.Node, actor *types.User) error {
	if err := CheckRead(path, n, actor); err != nil {
		return err
	}
	if n.IsDir() {
		if err := CheckExecute(path, n, actor); err != nil {
			return err
		}
		for _, c := range n.Children {
			if err := t.checkReadable(Join(path, c.Name), c, actor); err != nil {
				return err
			}
		}
	}
	return nil
}

// Chmod changes the permission string of the node at path. Only root and
// the owner may do so.
func (t *Tree) Chmod(path, mode string, actor *types.User) (*Tree, error) {
	path = Clean(path)
	_, node, err := t.lookupEntry("chmod", path, actor)
	if err != nil {
		return nil, err
	}
	if !actor.IsRoot() && node.Owner != usernameOf(actor) {
		return nil, &types.PermissionError{
			Op:          "chmod",
			Path:        path,
			Username:    usernameOf(actor),
			Permissions: effectiveMode(node),
		}
	}
	perms, err := ParseMode(mode, effectiveMode(node), node.Kind)
	if err != nil {
		return nil, pathErr("chmod", path, err)
	}
	return t.edit(path, func(n *types.Node) (*types.Node, error) {
		c := n.Clone()
		c.Permissions = perms
		c.Modified = now()
		return c, nil
	})
}

// Chown sets the owner, and the group when group is non-empty, of the node
// at path. Only root may do so.
func (t *Tree) Chown(path, owner, group string, actor *types.User) (*Tree, error) {
	path = Clean(path)
	if !actor.IsRoot() {
		n := t.Lookup(path)
		perms := ""
		if n != nil {
			perms = effectiveMode(n)
		}
		return nil, &types.PermissionError{
			Op:          "chown",
			Path:        path,
			Username:    usernameOf(actor),
			Permissions: perms,
		}
	}
	if owner == "" && group == "" {
		return nil, pathErr("chown", path, types.ErrInvalidArgument)
	}
	if t.Lookup(path) == nil {
		return nil, pathErr("chown", path, types.ErrNotFound)
	}
	return t.edit(path, func(n *types.Node) (*types.Node, error) {
		c := n.Clone()
		if owner != "" {
			c.Owner = owner
		}
		if group != "" {
			c.Group = group
		}
		c.Modified = now()
		return c, nil
	})
}
