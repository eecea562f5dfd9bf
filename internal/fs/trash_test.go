package fs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajaxzhan/simos/pkg/types"
)

func TestMoveToTrash_Collision(t *testing.T) {
	tree := newTestTree(t)
	desktop := "/home/alice/Desktop"

	var (
		dest string
		err  error
	)
	tree, _, err = tree.CreateFile(desktop, "file.txt", "1", testAlice, "")
	require.NoError(t, err)
	tree, dest, err = tree.MoveToTrash(desktop+"/file.txt", testAlice)
	require.NoError(t, err)
	assert.Equal(t, "/home/alice/.Trash/file.txt", dest)

	tree, _, err = tree.CreateFile(desktop, "file.txt", "2", testAlice, "")
	require.NoError(t, err)
	tree, dest, err = tree.MoveToTrash(desktop+"/file.txt", testAlice)
	require.NoError(t, err)
	assert.Equal(t, "/home/alice/.Trash/file 1.txt", dest)

	assert.Equal(t, "1", tree.Lookup("/home/alice/.Trash/file.txt").Content)
	assert.Equal(t, "2", tree.Lookup("/home/alice/.Trash/file 1.txt").Content)
}

func TestFreeName(t *testing.T) {
	dir := NewDirectory("t", "root", "0", "")
	dir.Children = append(dir.Children,
		NewFile("a.txt", "", "root", "0", ""),
		NewFile("a 1.txt", "", "root", "0", ""),
		NewFile(".bashrc", "", "root", "0", ""),
		NewFile("noext", "", "root", "0", ""),
	)

	tests := []struct {
		name     string
		expected string
	}{
		{"new.txt", "new.txt"},
		{"a.txt", "a 2.txt"},
		{".bashrc", ".bashrc 1"},
		{"noext", "noext 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, freeName(dir, tt.name))
		})
	}
}

func TestMoveToTrash_InsideTrashDeletes(t *testing.T) {
	tree := newTestTree(t)
	tree, _, err := tree.CreateFile("/home/alice/.Trash", "old", "", testAlice, "")
	require.NoError(t, err)

	next, dest, err := tree.MoveToTrash("/home/alice/.Trash/old", testAlice)
	require.NoError(t, err)
	assert.Empty(t, dest)
	assert.Nil(t, next.Lookup("/home/alice/.Trash/old"))

	_, _, err = tree.MoveToTrash("/home/alice/.Trash", testAlice)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestMoveToTrash_CreatesMissingTrash(t *testing.T) {
	tree := newTestTree(t)
	tree, err := tree.DeleteNode("/home/alice/.Trash", testAlice)
	require.NoError(t, err)

	next, dest, err := tree.MoveToTrash("/home/alice/Music", testAlice)
	require.NoError(t, err)
	assert.Equal(t, "/home/alice/.Trash/Music", dest)
	assert.True(t, next.Lookup("/home/alice/.Trash").IsDir())
}

func TestEmptyTrash(t *testing.T) {
	tree := newTestTree(t)
	tree, _, err := tree.MoveToTrash("/home/alice/Music", testAlice)
	require.NoError(t, err)
	tree, _, err = tree.MoveToTrash("/home/alice/Videos", testAlice)
	require.NoError(t, err)
	trashID := tree.Lookup("/home/alice/.Trash").ID

	next, err := tree.EmptyTrash(testAlice)
	require.NoError(t, err)
	trash := next.Lookup("/home/alice/.Trash")
	require.NotNil(t, trash)
	assert.Equal(t, trashID, trash.ID)
	assert.Empty(t, trash.Children)
	assert.NotNil(t, trash.Children)

	_, err = next.EmptyTrash(&types.User{Username: "ghost", UID: 2000, GID: 2000, HomeDir: "/home/ghost"})
	assert.ErrorIs(t, err, types.ErrNotFound)
}
