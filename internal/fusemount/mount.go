// Package fusemount exports the simulated filesystem to the host as a
// read-only FUSE mount, filtered by the permissions of one user.
package fusemount

import (
	"context"
	"errors"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	simfs "github.com/ajaxzhan/simos/internal/fs"
	"github.com/ajaxzhan/simos/internal/logging"
	"github.com/ajaxzhan/simos/internal/system"
	"github.com/ajaxzhan/simos/pkg/types"
)

// Errors for Export
var (
	ErrInvalidMountPoint = errors.New("invalid mount point")
	ErrNoSystem          = errors.New("no system to export")
)

// Config holds the configuration for creating an Export.
type Config struct {
	MountPoint string // Where to mount the FUSE filesystem
	AsUser     string // Identity whose permissions filter the mount
}

// Export is a read-only FUSE view of a live System. Every lookup reads the
// current snapshot, so changes made through the shell appear immediately.
type Export struct {
	sys     *system.System
	config  Config
	server  *fuse.Server
	mounted atomic.Bool
	mu      sync.Mutex
}

// New creates an Export for sys.
func New(sys *system.System, config Config) (*Export, error) {
	if sys == nil {
		return nil, ErrNoSystem
	}
	if config.MountPoint == "" {
		return nil, ErrInvalidMountPoint
	}
	info, err := os.Stat(config.MountPoint)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, ErrInvalidMountPoint
	}
	if config.AsUser == "" {
		config.AsUser = types.RootUsername
	}
	if _, err := sys.User(config.AsUser); err != nil {
		return nil, err
	}
	return &Export{sys: sys, config: config}, nil
}

// Mount mounts the export. It blocks until the context is cancelled.
func (e *Export) Mount(ctx context.Context) error {
	noCache := time.Duration(0)
	opts := &fs.Options{
		MountOptions: fuse.MountOptions{
			FsName: "simos",
			Name:   "simos",
		},
		EntryTimeout: &noCache,
		AttrTimeout:  &noCache,
	}

	server, err := fs.Mount(e.config.MountPoint, e.root(), opts)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.server = server
	e.mounted.Store(true)
	e.mu.Unlock()
	logging.Info("Filesystem exported",
		logging.String("mount_point", e.config.MountPoint),
		logging.String("as_user", e.config.AsUser))

	<-ctx.Done()

	if err := server.Unmount(); err != nil {
		return err
	}
	e.mounted.Store(false)
	return ctx.Err()
}

// IsMounted returns true if the filesystem is currently mounted.
func (e *Export) IsMounted() bool {
	return e.mounted.Load()
}

func (e *Export) root() *node {
	return &node{export: e, path: "/"}
}

// actor resolves the configured identity on every call so that password,
// group and account changes take effect without remounting.
func (e *Export) actor() *types.User {
	u, err := e.sys.User(e.config.AsUser)
	if err != nil {
		return system.Guest()
	}
	return u
}

// node is a directory or file of the simulated tree, addressed by path.
type node struct {
	fs.Inode
	export *Export
	path   string
}

var _ = (fs.NodeLookuper)((*node)(nil))
var _ = (fs.NodeReaddirer)((*node)(nil))
var _ = (fs.NodeGetattrer)((*node)(nil))
var _ = (fs.NodeOpener)((*node)(nil))

// Getattr implements fs.NodeGetattrer.
func (n *node) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	sn, err := n.export.sys.Stat(n.path, n.export.actor())
	if err != nil {
		return toErrno(err)
	}
	n.export.fillAttr(sn, &out.Attr)
	return fs.OK
}

// Lookup implements fs.NodeLookuper. Entries the user cannot reach appear
// as non-existent or as permission errors, the same way the shell sees them.
func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	childPath := simfs.Join(n.path, name)
	sn, err := n.export.sys.Stat(childPath, n.export.actor())
	if err != nil {
		return nil, toErrno(err)
	}
	n.export.fillAttr(sn, &out.Attr)

	child := &node{export: n.export, path: childPath}
	return n.NewInode(ctx, child, fs.StableAttr{Mode: fileType(sn)}), fs.OK
}

// Readdir implements fs.NodeReaddirer.
func (n *node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries, err := n.export.sys.ListDirectory(n.path, n.export.actor())
	if err != nil {
		return nil, toErrno(err)
	}
	result := make([]fuse.DirEntry, 0, len(entries))
	for _, entry := range entries {
		result = append(result, fuse.DirEntry{
			Name: entry.Name,
			Mode: fileType(entry),
		})
	}
	return fs.NewListDirStream(result), fs.OK
}

// Open implements fs.NodeOpener. The content is captured at open time.
func (n *node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if flags&syscall.O_ACCMODE != syscall.O_RDONLY {
		return nil, 0, syscall.EROFS
	}
	content, err := n.export.sys.ReadFile(n.path, n.export.actor())
	if err != nil {
		return nil, 0, toErrno(err)
	}
	return &fileHandle{data: []byte(content)}, fuse.FOPEN_DIRECT_IO, fs.OK
}

// fileHandle serves reads from a content snapshot.
type fileHandle struct {
	data []byte
}

var _ = (fs.FileReader)((*fileHandle)(nil))

// Read implements fs.FileReader.
func (fh *fileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	if off >= int64(len(fh.data)) {
		return fuse.ReadResultData(nil), fs.OK
	}
	end := min(off+int64(len(dest)), int64(len(fh.data)))
	return fuse.ReadResultData(fh.data[off:end]), fs.OK
}

func fileType(n *types.Node) uint32 {
	if n.IsDir() {
		return fuse.S_IFDIR
	}
	return fuse.S_IFREG
}

// fillAttr translates a simulated node into host attributes.
func (e *Export) fillAttr(n *types.Node, attr *fuse.Attr) {
	attr.Mode = fileType(n) | modeBits(n.Mode())
	if n.IsDir() {
		attr.Size = 4096
		attr.Nlink = uint32(2 + len(n.Children))
	} else {
		attr.Size = uint64(len(n.Content))
		attr.Nlink = 1
	}
	attr.Blocks = (attr.Size + 511) / 512
	if u, err := e.sys.User(n.Owner); err == nil {
		attr.Uid = uint32(u.UID)
	}
	attr.Gid = e.gid(n.Group)
	attr.SetTimes(nil, &n.Modified, &n.Modified)
}

// gid maps a node's group field, a numeric id or a group name, to a gid.
func (e *Export) gid(group string) uint32 {
	if id, err := strconv.Atoi(group); err == nil {
		return uint32(id)
	}
	for _, g := range e.sys.Groups() {
		if g.GroupName == group {
			return uint32(g.GID)
		}
	}
	return 0
}

// modeBits converts a permission string such as "drwxr-xr-t" to the low
// twelve mode bits.
func modeBits(perms string) uint32 {
	if len(perms) != 10 {
		return 0
	}
	var bits uint32
	for i := 1; i < 10; i++ {
		c := perms[i]
		if c != '-' && c != 'T' && c != 'S' {
			bits |= 1 << uint(9-i)
		}
	}
	switch perms[9] {
	case 't', 'T':
		bits |= syscall.S_ISVTX
	}
	return bits
}

// toErrno converts a simulated filesystem error to a syscall.Errno.
func toErrno(err error) syscall.Errno {
	switch {
	case err == nil:
		return fs.OK
	case types.IsPermission(err):
		return syscall.EACCES
	case errors.Is(err, types.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, types.ErrNotADirectory):
		return syscall.ENOTDIR
	case errors.Is(err, types.ErrNotAFile):
		return syscall.EISDIR
	case errors.Is(err, types.ErrReadOnly):
		return syscall.EROFS
	}
	return syscall.EIO
}
