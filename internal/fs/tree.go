package fs

import (
	"time"

	"github.com/google/uuid"

	"github.com/ajaxzhan/simos/pkg/types"
)

// now is the clock used to stamp modification times.
var now = time.Now

// Tree is an immutable snapshot of the filesystem.
//
// Mutations return a new Tree that shares every untouched subtree with the
// receiver; only the nodes on the path from the root to the change are
// copied. A Tree and every node reachable from it must be treated as
// read-only by callers.
type Tree struct {
	root *types.Node
}

// NewTree wraps root as a tree snapshot.
func NewTree(root *types.Node) *Tree {
	return &Tree{root: root}
}

// Root returns the root directory node.
func (t *Tree) Root() *types.Node {
	return t.root
}

// Lookup returns the node at path, or nil.
func (t *Tree) Lookup(path string) *types.Node {
	n := t.root
	for _, seg := range Segments(path) {
		if !n.IsDir() {
			return nil
		}
		n = n.Child(seg)
		if n == nil {
			return nil
		}
	}
	return n
}

// FindByID searches the tree for the node with the given id and returns it
// along with its path.
func (t *Tree) FindByID(id string) (*types.Node, string) {
	var (
		found     *types.Node
		foundPath string
	)
	t.Walk(func(p string, n *types.Node) bool {
		if n.ID == id {
			found, foundPath = n, p
			return false
		}
		return true
	})
	return found, foundPath
}

// Walk visits every node depth-first in child order. Returning false from
// fn stops the walk.
func (t *Tree) Walk(fn func(path string, n *types.Node) bool) {
	walk("/", t.root, fn)
}

// WalkFrom visits the subtree rooted at path.
func (t *Tree) WalkFrom(path string, fn func(path string, n *types.Node) bool) {
	n := t.Lookup(path)
	if n == nil {
		return
	}
	walk(Clean(path), n, fn)
}

func walk(p string, n *types.Node, fn func(string, *types.Node) bool) bool {
	if !fn(p, n) {
		return false
	}
	for _, c := range n.Children {
		if !walk(Join(p, c.Name), c, fn) {
			return false
		}
	}
	return true
}

// Count returns the number of nodes in the tree.
func (t *Tree) Count() int {
	count := 0
	t.Walk(func(string, *types.Node) bool {
		count++
		return true
	})
	return count
}

// edit rebuilds the spine from the root to path, replacing the node found
// there with the result of fn. fn must not modify its argument.
func (t *Tree) edit(path string, fn func(n *types.Node) (*types.Node, error)) (*Tree, error) {
	root, err := editAt(t.root, Segments(path), fn)
	if err != nil {
		return nil, err
	}
	return &Tree{root: root}, nil
}

func editAt(n *types.Node, segs []string, fn func(*types.Node) (*types.Node, error)) (*types.Node, error) {
	if len(segs) == 0 {
		return fn(n)
	}
	if !n.IsDir() {
		return nil, types.ErrNotADirectory
	}
	idx := childIndex(n, segs[0])
	if idx < 0 {
		return nil, types.ErrNotFound
	}
	child, err := editAt(n.Children[idx], segs[1:], fn)
	if err != nil {
		return nil, err
	}
	c := n.Clone()
	c.Children[idx] = child
	return c, nil
}

func childIndex(dir *types.Node, name string) int {
	for i, c := range dir.Children {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// withChild returns a copy of dir with child appended.
func withChild(dir, child *types.Node) *types.Node {
	c := dir.Clone()
	c.Children = append(c.Children, child)
	c.Modified = now()
	return c
}

// withoutChild returns a copy of dir without the named child.
func withoutChild(dir *types.Node, name string) *types.Node {
	c := dir.Clone()
	idx := childIndex(c, name)
	if idx >= 0 {
		c.Children = append(c.Children[:idx:idx], c.Children[idx+1:]...)
	}
	c.Modified = now()
	return c
}

// NewDirectory builds a directory node with a fresh id.
func NewDirectory(name, owner, group, perms string) *types.Node {
	if perms == "" {
		perms = types.DefaultDirPermissions
	}
	return &types.Node{
		ID:          uuid.NewString(),
		Name:        name,
		Kind:        types.KindDirectory,
		Children:    []*types.Node{},
		Permissions: perms,
		Owner:       owner,
		Group:       group,
		Modified:    now(),
	}
}

// NewFile builds a file node with a fresh id.
func NewFile(name, content, owner, group, perms string) *types.Node {
	if perms == "" {
		perms = types.DefaultFilePermissions
	}
	return &types.Node{
		ID:          uuid.NewString(),
		Name:        name,
		Kind:        types.KindFile,
		Content:     content,
		Permissions: perms,
		Owner:       owner,
		Group:       group,
		Size:        int64(len(content)),
		Modified:    now(),
	}
}

// deepCopy duplicates a subtree with fresh ids, reassigning ownership.
func deepCopy(n *types.Node, owner, group string) *types.Node {
	c := *n
	c.ID = uuid.NewString()
	c.Owner = owner
	c.Group = group
	c.Modified = now()
	if n.Children != nil {
		c.Children = make([]*types.Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = deepCopy(child, owner, group)
		}
	}
	return &c
}
