// Package system is the core facade of the simulated operating system. It
// owns the current filesystem snapshot and identity directory, serializes
// every mutation through a single writer, and reports denials and changes
// to its host.
package system

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ajaxzhan/simos/internal/fs"
	"github.com/ajaxzhan/simos/internal/identity"
	"github.com/ajaxzhan/simos/internal/logging"
	"github.com/ajaxzhan/simos/internal/metrics"
	"github.com/ajaxzhan/simos/pkg/types"
)

var now = time.Now

// Identity files kept in sync with the directory.
const (
	PasswdPath = "/etc/passwd"
	GroupPath  = "/etc/group"
)

// GuestUID is the uid of the guest identity.
const GuestUID = 65534

// Guest returns the identity used when nobody is logged in.
func Guest() *types.User {
	return &types.User{
		Username: types.GuestUsername,
		UID:      GuestUID,
		GID:      GuestUID,
		HomeDir:  "/",
		Shell:    identity.DefaultShell,
	}
}

var superuser = &types.User{Username: types.RootUsername, UID: identity.RootUID, GID: identity.RootGID, HomeDir: "/root"}

// Options configures a System.
type Options struct {
	RootPassword string
	Aliases      []string
	Base         fs.BaseOptions
	Notifier     Notifier
	Metrics      *metrics.Metrics
	// OnChange is called with the new state after every committed change.
	// It runs outside the writer lock but must not block.
	OnChange func(Snapshot)
}

// Snapshot is the durable state of a System.
type Snapshot struct {
	Root   *types.Node    `json:"root"`
	Users  []*types.User  `json:"users"`
	Groups []*types.Group `json:"groups"`
}

// System is the simulated machine.
type System struct {
	mu       sync.RWMutex
	tree     *fs.Tree
	dir      *identity.Directory
	resolver *fs.PathResolver
	current  string
	readOnly bool
	opts     Options
}

func newSystem(tree *fs.Tree, dir *identity.Directory, opts Options) *System {
	aliases := opts.Aliases
	if aliases == nil {
		aliases = fs.DefaultAliases
	}
	return &System{
		tree:     tree,
		dir:      dir,
		resolver: fs.NewPathResolver(aliases),
		opts:     opts,
	}
}

// New creates a freshly installed system with only the root account.
func New(opts Options) (*System, error) {
	dir := identity.Default(opts.RootPassword)
	root, err := dir.User(types.RootUsername)
	if err != nil {
		return nil, err
	}
	tree, err := fs.NewTree(fs.BaseSystem(opts.Base)).InstallHome(root)
	if err != nil {
		return nil, fmt.Errorf("install root home: %w", err)
	}
	tree, err = syncIdentityFiles(tree, dir)
	if err != nil {
		return nil, err
	}
	s := newSystem(tree, dir, opts)
	s.opts.Metrics.SetTreeNodes(tree.Count())
	return s, nil
}

// Restore rebuilds a system from a snapshot. When the snapshot fails the
// integrity check, a fresh system is returned in read-only safe mode and a
// notification is raised.
func Restore(snap *Snapshot, opts Options) (*System, error) {
	if snap == nil {
		return New(opts)
	}
	if err := ValidateSnapshot(snap); err != nil {
		logging.Error("Integrity check failed, entering safe mode", logging.Err(err))
		s, nerr := New(opts)
		if nerr != nil {
			return nil, nerr
		}
		s.readOnly = true
		s.notify(types.Notification{
			Title:   "Safe Mode",
			Message: "The saved filesystem is damaged; the system started read-only: " + err.Error(),
			Time:    now(),
		})
		return s, nil
	}
	tree := fs.NewTree(snap.Root)
	s := newSystem(tree, identity.NewDirectory(snap.Users, snap.Groups), opts)
	s.opts.Metrics.SetTreeNodes(tree.Count())
	return s, nil
}

// ValidateSnapshot checks the structural integrity of snap.
func ValidateSnapshot(snap *Snapshot) error {
	if err := fs.Validate(snap.Root); err != nil {
		return err
	}
	seen := make(map[string]bool, len(snap.Users))
	hasRoot := false
	for _, u := range snap.Users {
		if u == nil || u.Username == "" {
			return errors.New("user without a name")
		}
		if seen[u.Username] {
			return fmt.Errorf("duplicate user %s", u.Username)
		}
		seen[u.Username] = true
		hasRoot = hasRoot || u.IsRoot()
	}
	if !hasRoot {
		return errors.New("no root account")
	}
	return nil
}

func syncIdentityFiles(tree *fs.Tree, dir *identity.Directory) (*fs.Tree, error) {
	next, err := tree.WriteFile(PasswdPath, dir.PasswdText(), superuser)
	if err != nil {
		return nil, err
	}
	return next.WriteFile(GroupPath, dir.GroupText(), superuser)
}

// ReadOnly reports whether the system is in safe mode.
func (s *System) ReadOnly() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readOnly
}

// Unlock leaves safe mode. Only root may do so.
func (s *System) Unlock(actor *types.User) error {
	if !actor.IsRoot() {
		err := &types.PermissionError{Op: "unlock", Path: "/", Username: nameOf(actor)}
		s.reportDenied("unlock", err)
		return err
	}
	s.mu.Lock()
	was := s.readOnly
	s.readOnly = false
	s.mu.Unlock()
	if was {
		logging.Warn("Safe mode lifted", logging.String("user", nameOf(actor)))
	}
	return nil
}

// Tree returns the current filesystem snapshot.
func (s *System) Tree() *fs.Tree {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree
}

// Snapshot returns the current durable state.
func (s *System) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *System) snapshotLocked() Snapshot {
	return Snapshot{Root: s.tree.Root(), Users: s.dir.Users(), Groups: s.dir.Groups()}
}

// Hostname returns the content of /etc/hostname.
func (s *System) Hostname() string {
	n := s.Tree().Lookup("/etc/hostname")
	if n == nil {
		return "localhost"
	}
	return strings.TrimSpace(n.Content)
}

func (s *System) notify(n types.Notification) {
	if s.opts.Notifier != nil {
		s.opts.Notifier.Notify(n)
	}
}

func (s *System) reportDenied(op string, err error) {
	n, ok := denialNotification(err)
	if !ok {
		return
	}
	logging.Debug("Operation denied", logging.String("op", op), logging.Err(err))
	s.notify(n)
}

// commit publishes next under the held writer lock and returns the
// snapshot to hand to OnChange after unlocking.
func (s *System) commitLocked(next *fs.Tree) Snapshot {
	s.tree = next
	return s.snapshotLocked()
}

func (s *System) changed(snap Snapshot) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.SetTreeNodes(fs.NewTree(snap.Root).Count())
	}
	if s.opts.OnChange != nil {
		s.opts.OnChange(snap)
	}
}

func (s *System) finish(op string, err error) {
	s.opts.Metrics.RecordMutation(op, err)
	if err != nil {
		s.reportDenied(op, err)
	}
}

// mutate runs a filesystem edit as the single writer. Whatever the edit
// does to the identity files is applied to the directory in the same step.
func (s *System) mutate(op string, fn func(t *fs.Tree) (*fs.Tree, error)) error {
	return s.commit(op, func(t *fs.Tree) (*fs.Tree, error) {
		next, err := fn(t)
		if err != nil {
			return nil, err
		}
		return s.reconcileIdentity(op, t, next)
	})
}

// commit runs fn against the current tree under the writer lock and
// publishes the result.
func (s *System) commit(op string, fn func(t *fs.Tree) (*fs.Tree, error)) error {
	s.mu.Lock()
	if s.readOnly {
		s.mu.Unlock()
		err := fmt.Errorf("%s: %w", op, types.ErrReadOnly)
		s.finish(op, err)
		return err
	}
	next, err := fn(s.tree)
	if err != nil {
		s.mu.Unlock()
		s.finish(op, err)
		return err
	}
	snap := s.commitLocked(next)
	s.mu.Unlock()

	s.finish(op, nil)
	s.changed(snap)
	return nil
}

// reconcileIdentity keeps the directory and the identity files in step
// across an edit from prev to next. The files cannot be removed, and new
// content must parse. Called with the writer lock held.
func (s *System) reconcileIdentity(op string, prev, next *fs.Tree) (*fs.Tree, error) {
	var trial *identity.Directory
	for _, path := range []string{PasswdPath, GroupPath} {
		before, after := prev.Lookup(path), next.Lookup(path)
		if after == before {
			continue
		}
		if after == nil || after.IsDir() {
			return nil, &types.PathError{Op: op, Path: path, Err: fmt.Errorf("%w: identity file is required", types.ErrInvalidArgument)}
		}
		if before != nil && !before.IsDir() && after.Content == before.Content {
			continue
		}
		if trial == nil {
			trial = s.dir.Clone()
		}
		apply := trial.ApplyPasswd
		if path == GroupPath {
			apply = trial.ApplyGroup
		}
		if _, err := apply(after.Content); err != nil {
			return nil, &types.PathError{Op: op, Path: path, Err: fmt.Errorf("%w: %v", types.ErrInvalidArgument, err)}
		}
		logging.Info("Identity directory updated from file", logging.String("path", path), logging.String("op", op))
	}
	if trial != nil {
		s.dir = trial
	}
	return next, nil
}

// ReportDenied raises the notification and metrics for a denial detected
// outside the system, e.g. a failed execute check in the shell.
func (s *System) ReportDenied(op string, err error) {
	s.read(op, err)
}

// read runs a read-side operation, reporting denials.
func (s *System) read(op string, err error) error {
	if err != nil && types.IsPermission(err) {
		s.opts.Metrics.RecordDenial(op)
		s.reportDenied(op, err)
	}
	return err
}

// ResolvePath canonicalizes raw for actor relative to cwd.
func (s *System) ResolvePath(raw, cwd string, actor *types.User) string {
	home := "/"
	if actor != nil && actor.HomeDir != "" {
		home = actor.HomeDir
	}
	return s.resolver.Resolve(raw, cwd, home)
}

// GetNodeAtPath returns the node at an absolute path without permission
// checks, or nil.
func (s *System) GetNodeAtPath(path string) *types.Node {
	return s.Tree().Lookup(path)
}

// Stat returns the node at path if actor can reach it.
func (s *System) Stat(path string, actor *types.User) (*types.Node, error) {
	n, err := s.Tree().Stat(path, actor)
	return n, s.read("stat", err)
}

// ListDirectory lists the directory at path.
func (s *System) ListDirectory(path string, actor *types.User) ([]*types.Node, error) {
	entries, err := s.Tree().ListDirectory(path, actor)
	return entries, s.read("list", err)
}

// ReadFile returns the content of the file at path.
func (s *System) ReadFile(path string, actor *types.User) (string, error) {
	content, err := s.Tree().ReadFile(path, actor)
	return content, s.read("read", err)
}

// CreateFile creates a file in dirPath.
func (s *System) CreateFile(dirPath, name, content string, actor *types.User, perms string) (*types.Node, error) {
	var created *types.Node
	err := s.mutate("create", func(t *fs.Tree) (*fs.Tree, error) {
		next, n, err := t.CreateFile(dirPath, name, content, actor, perms)
		created = n
		return next, err
	})
	return created, err
}

// CreateDirectory creates a directory in dirPath.
func (s *System) CreateDirectory(dirPath, name string, actor *types.User) (*types.Node, error) {
	var created *types.Node
	err := s.mutate("mkdir", func(t *fs.Tree) (*fs.Tree, error) {
		next, n, err := t.CreateDirectory(dirPath, name, actor)
		created = n
		return next, err
	})
	return created, err
}

// WriteFile creates or replaces the file at path. Writes to /etc/passwd and
// /etc/group are parsed first and, when they change the structured state,
// replace it.
func (s *System) WriteFile(path, content string, actor *types.User) error {
	return s.mutate("write", func(t *fs.Tree) (*fs.Tree, error) {
		return t.WriteFile(path, content, actor)
	})
}

// DeleteNode removes the node at path.
func (s *System) DeleteNode(path string, actor *types.User) error {
	return s.mutate("delete", func(t *fs.Tree) (*fs.Tree, error) {
		return t.DeleteNode(path, actor)
	})
}

// MoveNode renames from to the full destination path to.
func (s *System) MoveNode(from, to string, actor *types.User) error {
	return s.mutate("move", func(t *fs.Tree) (*fs.Tree, error) {
		return t.MoveNode(from, to, actor)
	})
}

// MoveNodeByID moves the node with id into destParent.
func (s *System) MoveNodeByID(id, destParent string, actor *types.User) error {
	return s.mutate("move", func(t *fs.Tree) (*fs.Tree, error) {
		return t.MoveNodeByID(id, destParent, actor)
	})
}

// CopyNode copies from to the full destination path to.
func (s *System) CopyNode(from, to string, actor *types.User) error {
	return s.mutate("copy", func(t *fs.Tree) (*fs.Tree, error) {
		return t.CopyNode(from, to, actor)
	})
}

// MoveToTrash moves path into the actor's trash and returns the new
// location, or "" when the entry was already in the trash and got deleted.
func (s *System) MoveToTrash(path string, actor *types.User) (string, error) {
	var dest string
	err := s.mutate("trash", func(t *fs.Tree) (*fs.Tree, error) {
		next, d, err := t.MoveToTrash(path, actor)
		dest = d
		return next, err
	})
	return dest, err
}

// EmptyTrash clears the actor's trash.
func (s *System) EmptyTrash(actor *types.User) error {
	return s.mutate("empty-trash", func(t *fs.Tree) (*fs.Tree, error) {
		return t.EmptyTrash(actor)
	})
}

// Chmod changes the mode of path.
func (s *System) Chmod(path, mode string, actor *types.User) error {
	return s.mutate("chmod", func(t *fs.Tree) (*fs.Tree, error) {
		return t.Chmod(path, mode, actor)
	})
}

// Chown changes the owner and optionally the group of path. group may be
// a group name or a gid.
func (s *System) Chown(path, owner, group string, actor *types.User) error {
	s.mu.RLock()
	if owner != "" {
		if _, err := s.dir.User(owner); err != nil {
			s.mu.RUnlock()
			return &types.PathError{Op: "chown", Path: path, Err: err}
		}
	}
	s.mu.RUnlock()
	return s.mutate("chown", func(t *fs.Tree) (*fs.Tree, error) {
		return t.Chown(path, owner, group, actor)
	})
}
