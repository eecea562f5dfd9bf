package fs

import (
	"fmt"
	"strings"

	"github.com/ajaxzhan/simos/pkg/types"
)

// TrashDirName is the per-home soft-delete folder.
const TrashDirName = ".Trash"

// TrashPath returns the trash directory of actor.
func TrashPath(actor *types.User) string {
	home := "/"
	if actor != nil && actor.HomeDir != "" {
		home = actor.HomeDir
	}
	return Join(Clean(home), TrashDirName)
}

// freeName returns name, or the first "stem N.ext" variant not present in
// dir.
func freeName(dir *types.Node, name string) string {
	if dir == nil || dir.Child(name) == nil {
		return name
	}
	stem, ext := name, ""
	if i := strings.LastIndex(name, "."); i > 0 {
		stem, ext = name[:i], name[i:]
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s %d%s", stem, n, ext)
		if dir.Child(candidate) == nil {
			return candidate
		}
	}
}

// MoveToTrash moves the node at path into the actor's trash, renaming on
// collision. Entries already inside the trash are deleted instead. The
// returned string is the new location, or "" after a delete.
func (t *Tree) MoveToTrash(path string, actor *types.User) (*Tree, string, error) {
	path = Clean(path)
	trash := TrashPath(actor)
	if path == trash {
		return nil, "", pathErr("trash", path, fmt.Errorf("%w: cannot trash the trash", types.ErrInvalidArgument))
	}
	if IsWithin(path, trash) {
		next, err := t.DeleteNode(path, actor)
		return next, "", err
	}
	if t.Lookup(path) == nil {
		return nil, "", pathErr("trash", path, types.ErrNotFound)
	}

	cur := t
	trashNode := t.Lookup(trash)
	if trashNode == nil {
		home, name := Split(trash)
		next, node, err := t.CreateDirectory(home, name, actor)
		if err != nil {
			return nil, "", err
		}
		cur, trashNode = next, node
	} else if !trashNode.IsDir() {
		return nil, "", pathErr("trash", trash, types.ErrNotADirectory)
	}

	_, name := Split(path)
	dest := Join(trash, freeName(trashNode, name))
	next, err := cur.MoveNode(path, dest, actor)
	if err != nil {
		return nil, "", err
	}
	return next, dest, nil
}

// EmptyTrash removes every entry of the actor's trash. The trash directory
// itself is kept.
func (t *Tree) EmptyTrash(actor *types.User) (*Tree, error) {
	trash := TrashPath(actor)
	dir, err := t.lookupDir("empty-trash", trash, actor)
	if err != nil {
		return nil, err
	}
	if err := CheckWrite(trash, dir, actor); err != nil {
		return nil, err
	}
	return t.edit(trash, func(n *types.Node) (*types.Node, error) {
		c := n.Clone()
		c.Children = []*types.Node{}
		c.Modified = now()
		return c, nil
	})
}
