package system

import (
	"fmt"

	"github.com/ajaxzhan/simos/internal/fs"
	"github.com/ajaxzhan/simos/internal/identity"
	"github.com/ajaxzhan/simos/internal/logging"
	"github.com/ajaxzhan/simos/pkg/types"
)

// User returns the named account.
func (s *System) User(name string) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dir.User(name)
}

// Users returns all accounts.
func (s *System) Users() []*types.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dir.Users()
}

// Groups returns all groups.
func (s *System) Groups() []*types.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dir.Groups()
}

// GroupName maps a node's group field to a display name.
func (s *System) GroupName(group string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dir.GroupName(group)
}

// IsAdmin reports whether u may use sudo.
func (s *System) IsAdmin(u *types.User) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dir.IsAdmin(u)
}

// VerifyPassword checks attempt against the account's password.
func (s *System) VerifyPassword(username, attempt string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	passwd := ""
	if n := s.tree.Lookup(PasswdPath); n != nil {
		passwd = n.Content
	}
	return s.dir.VerifyPassword(username, attempt, passwd)
}

// Login authenticates username and makes it the logged-in user.
func (s *System) Login(username, password string) (*types.User, error) {
	if !s.VerifyPassword(username, password) {
		logging.Info("Login failed", logging.String("user", username))
		return nil, fmt.Errorf("%w: %s", types.ErrAuthFailed, username)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.dir.User(username)
	if err != nil {
		return nil, err
	}
	s.current = u.Username
	logging.Info("User logged in", logging.String("user", u.Username))
	return u, nil
}

// Logout clears the logged-in user.
func (s *System) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != "" {
		logging.Info("User logged out", logging.String("user", s.current))
	}
	s.current = ""
}

// CurrentUser returns the logged-in user, or the guest identity.
func (s *System) CurrentUser() *types.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == "" {
		return Guest()
	}
	u, err := s.dir.User(s.current)
	if err != nil {
		return Guest()
	}
	return u
}

// admin runs a structured identity edit as the single writer. fn edits a
// private copy of the directory and may return an updated tree; the
// identity files are then re-rendered and everything is published at once.
func (s *System) admin(op string, actor *types.User, rootOnly bool, fn func(d *identity.Directory, t *fs.Tree) (*fs.Tree, error)) error {
	if rootOnly && !actor.IsRoot() {
		err := &types.PermissionError{Op: op, Path: PasswdPath, Username: nameOf(actor), Permissions: "-rw-r--r--"}
		s.finish(op, err)
		return err
	}
	err := s.commit(op, func(t *fs.Tree) (*fs.Tree, error) {
		trial := s.dir.Clone()
		next, err := fn(trial, t)
		if err != nil {
			return nil, err
		}
		next, err = syncIdentityFiles(next, trial)
		if err != nil {
			return nil, err
		}
		s.dir = trial
		return next, nil
	})
	if err == nil {
		logging.Info("Identity changed", logging.String("op", op), logging.String("by", nameOf(actor)))
	}
	return err
}

// AddUser creates an account and its home directory. Only root may do so.
func (s *System) AddUser(actor, u *types.User) (*types.User, error) {
	var created *types.User
	err := s.admin("useradd", actor, true, func(d *identity.Directory, t *fs.Tree) (*fs.Tree, error) {
		nu, err := d.AddUser(u)
		if err != nil {
			return nil, err
		}
		created = nu
		if t.Lookup(nu.HomeDir) != nil {
			return t, nil
		}
		return t.InstallHome(nu)
	})
	return created, err
}

// RemoveUser deletes an account, and its home directory when removeHome is
// set. Only root may do so.
func (s *System) RemoveUser(actor *types.User, name string, removeHome bool) error {
	return s.admin("userdel", actor, true, func(d *identity.Directory, t *fs.Tree) (*fs.Tree, error) {
		u, err := d.User(name)
		if err != nil {
			return nil, err
		}
		if err := d.RemoveUser(name); err != nil {
			return nil, err
		}
		if removeHome && t.Lookup(u.HomeDir) != nil {
			return t.DeleteNode(u.HomeDir, superuser)
		}
		return t, nil
	})
}

// AddGroup creates a group. Only root may do so.
func (s *System) AddGroup(actor *types.User, name string, gid int) (*types.Group, error) {
	var created *types.Group
	err := s.admin("groupadd", actor, true, func(d *identity.Directory, t *fs.Tree) (*fs.Tree, error) {
		g, err := d.AddGroup(name, gid)
		created = g
		return t, err
	})
	return created, err
}

// AddMember adds username to group. Only root may do so.
func (s *System) AddMember(actor *types.User, group, username string) error {
	return s.admin("usermod", actor, true, func(d *identity.Directory, t *fs.Tree) (*fs.Tree, error) {
		return t, d.AddMember(group, username)
	})
}

// SetPassword changes the password of username. Users may change their own
// password; root may change anyone's.
func (s *System) SetPassword(actor *types.User, username, password, hint string) error {
	rootOnly := actor == nil || actor.Username != username
	return s.admin("passwd", actor, rootOnly, func(d *identity.Directory, t *fs.Tree) (*fs.Tree, error) {
		return t, d.SetPassword(username, password, hint)
	})
}

func nameOf(u *types.User) string {
	if u == nil {
		return types.GuestUsername
	}
	return u.Username
}
