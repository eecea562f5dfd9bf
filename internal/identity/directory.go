package identity

import (
	"crypto/subtle"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ajaxzhan/simos/pkg/types"
)

// Well-known ids.
const (
	RootUID      = 0
	RootGID      = 0
	UsersGID     = 100
	FirstUserID  = 1000
	DefaultShell = "/bin/sh"
)

// AdminGroups grant the right to use sudo.
var AdminGroups = []string{"sudo", "wheel", "admin"}

var validate = validator.New()

// Directory is the structured user and group state.
//
// Directory is not safe for concurrent use; the owner serializes access.
type Directory struct {
	users  []*types.User
	groups []*types.Group
}

// NewDirectory creates a directory holding copies of users and groups.
func NewDirectory(users []*types.User, groups []*types.Group) *Directory {
	d := &Directory{users: cloneUsers(users), groups: cloneGroups(groups)}
	d.syncMembership()
	return d
}

// Default returns the initial directory: root, plus the root, sudo and
// users groups.
func Default(rootPassword string) *Directory {
	return NewDirectory(
		[]*types.User{{
			Username: types.RootUsername,
			Password: rootPassword,
			UID:      RootUID,
			GID:      RootGID,
			FullName: "System Administrator",
			HomeDir:  "/root",
			Shell:    DefaultShell,
		}},
		[]*types.Group{
			{GroupName: "root", GID: RootGID, Members: []string{types.RootUsername}},
			{GroupName: "sudo", GID: 27},
			{GroupName: "users", GID: UsersGID},
		},
	)
}

func cloneUser(u *types.User) *types.User {
	c := *u
	c.Groups = append([]string(nil), u.Groups...)
	return &c
}

func cloneUsers(users []*types.User) []*types.User {
	out := make([]*types.User, 0, len(users))
	for _, u := range users {
		out = append(out, cloneUser(u))
	}
	return out
}

func cloneGroups(groups []*types.Group) []*types.Group {
	out := make([]*types.Group, 0, len(groups))
	for _, g := range groups {
		c := *g
		c.Members = append([]string(nil), g.Members...)
		out = append(out, &c)
	}
	return out
}

// syncMembership derives every user's supplementary groups from the group
// member lists.
func (d *Directory) syncMembership() {
	for _, u := range d.users {
		var names []string
		for _, g := range d.groups {
			if g.HasMember(u.Username) {
				names = append(names, g.GroupName)
			}
		}
		u.Groups = names
	}
}

// Clone returns an independent copy of the directory.
func (d *Directory) Clone() *Directory {
	return &Directory{users: cloneUsers(d.users), groups: cloneGroups(d.groups)}
}

// Users returns copies of all users.
func (d *Directory) Users() []*types.User {
	return cloneUsers(d.users)
}

// Groups returns copies of all groups.
func (d *Directory) Groups() []*types.Group {
	return cloneGroups(d.groups)
}

func (d *Directory) findUser(name string) *types.User {
	for _, u := range d.users {
		if u.Username == name {
			return u
		}
	}
	return nil
}

func (d *Directory) findGroup(name string) *types.Group {
	for _, g := range d.groups {
		if g.GroupName == name {
			return g
		}
	}
	return nil
}

// User returns a copy of the named user.
func (d *Directory) User(name string) (*types.User, error) {
	u := d.findUser(name)
	if u == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrUserNotFound, name)
	}
	return cloneUser(u), nil
}

// Group returns a copy of the named group.
func (d *Directory) Group(name string) (*types.Group, error) {
	g := d.findGroup(name)
	if g == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrGroupNotFound, name)
	}
	return cloneGroups([]*types.Group{g})[0], nil
}

// GroupName returns the name for a gid, or the gid itself when no group
// has it.
func (d *Directory) GroupName(gid string) string {
	for _, g := range d.groups {
		if fmt.Sprint(g.GID) == gid {
			return g.GroupName
		}
	}
	return gid
}

// IsAdmin reports whether the user may elevate with sudo.
func (d *Directory) IsAdmin(u *types.User) bool {
	if u.IsRoot() {
		return true
	}
	for _, name := range AdminGroups {
		if u.InGroup(name) {
			return true
		}
		if g := d.findGroup(name); g != nil && u.InGroup(fmt.Sprint(g.GID)) {
			return true
		}
	}
	return false
}

// PasswdText renders /etc/passwd. Users with a password are shadowed.
func (d *Directory) PasswdText() string {
	shadowed := cloneUsers(d.users)
	for _, u := range shadowed {
		if u.Password != "" {
			u.Password = ShadowPlaceholder
		}
	}
	return FormatPasswd(shadowed)
}

// GroupText renders /etc/group.
func (d *Directory) GroupText() string {
	return FormatGroup(d.groups)
}

// ApplyPasswd replaces the users with the content of an /etc/passwd file.
// A shadow placeholder keeps the known password and hint of that user. It
// reports whether anything changed.
func (d *Directory) ApplyPasswd(text string) (bool, error) {
	parsed, err := ParsePasswd(text)
	if err != nil {
		return false, err
	}
	seen := make(map[string]bool, len(parsed))
	for _, u := range parsed {
		if seen[u.Username] {
			return false, fmt.Errorf("%w: duplicate user %s", types.ErrUserExists, u.Username)
		}
		seen[u.Username] = true
		if prev := d.findUser(u.Username); prev != nil {
			if u.Password == ShadowPlaceholder {
				u.Password = prev.Password
			}
			u.PasswordHint = prev.PasswordHint
			u.Groups = prev.Groups
		} else if u.Password == ShadowPlaceholder {
			u.Password = ""
		}
	}
	if usersEqual(d.users, parsed) {
		return false, nil
	}
	d.users = parsed
	d.syncMembership()
	return true, nil
}

// ApplyGroup replaces the groups with the content of an /etc/group file
// and reports whether anything changed.
func (d *Directory) ApplyGroup(text string) (bool, error) {
	parsed, err := ParseGroup(text)
	if err != nil {
		return false, err
	}
	seen := make(map[string]bool, len(parsed))
	for _, g := range parsed {
		if seen[g.GroupName] {
			return false, fmt.Errorf("%w: duplicate group %s", types.ErrGroupExists, g.GroupName)
		}
		seen[g.GroupName] = true
	}
	if reflect.DeepEqual(normalizeGroups(d.groups), normalizeGroups(parsed)) {
		return false, nil
	}
	d.groups = parsed
	d.syncMembership()
	return true, nil
}

func usersEqual(a, b []*types.User) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := *a[i], *b[i]
		x.Groups, y.Groups = nil, nil
		if !reflect.DeepEqual(x, y) {
			return false
		}
	}
	return true
}

func normalizeGroups(groups []*types.Group) []types.Group {
	out := make([]types.Group, len(groups))
	for i, g := range groups {
		out[i] = *g
		if len(out[i].Members) == 0 {
			out[i].Members = nil
		}
	}
	return out
}

// VerifyPassword checks attempt for username. The password field of
// passwdText wins when set and not the shadow placeholder; otherwise the
// structured password is used. No password on either side only accepts an
// empty attempt.
func (d *Directory) VerifyPassword(username, attempt, passwdText string) bool {
	u := d.findUser(username)
	if u == nil {
		return false
	}
	expected := u.Password
	if entries, err := ParsePasswd(passwdText); err == nil {
		for _, e := range entries {
			if e.Username == username && e.Password != "" && e.Password != ShadowPlaceholder {
				expected = e.Password
				break
			}
		}
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(attempt)) == 1
}

// NextUID returns the first free uid at or above FirstUserID.
func (d *Directory) NextUID() int {
	next := FirstUserID
	for _, u := range d.users {
		if u.UID >= next {
			next = u.UID + 1
		}
	}
	return next
}

// NextGID returns the first free gid at or above FirstUserID.
func (d *Directory) NextGID() int {
	next := FirstUserID
	for _, g := range d.groups {
		if g.GID >= next {
			next = g.GID + 1
		}
	}
	return next
}

func checkName(name string) error {
	if strings.ContainsAny(name, ":/, \t\n") {
		return fmt.Errorf("%w: invalid name %q", types.ErrInvalidArgument, name)
	}
	return nil
}

// AddUser registers u. A zero UID picks the next free one, and a zero GID
// creates a personal group with the user's name. Supplementary groups in
// u.Groups must exist.
func (d *Directory) AddUser(u *types.User) (*types.User, error) {
	nu := cloneUser(u)
	if nu.HomeDir == "" && nu.Username != "" {
		nu.HomeDir = "/home/" + nu.Username
	}
	if nu.Shell == "" {
		nu.Shell = DefaultShell
	}
	if err := validate.Struct(nu); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidArgument, err)
	}
	if err := checkName(nu.Username); err != nil {
		return nil, err
	}
	if d.findUser(nu.Username) != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrUserExists, nu.Username)
	}
	for _, name := range nu.Groups {
		if d.findGroup(name) == nil {
			return nil, fmt.Errorf("%w: %s", types.ErrGroupNotFound, name)
		}
	}
	if nu.UID == 0 {
		nu.UID = d.NextUID()
	}
	if nu.GID == 0 {
		if d.findGroup(nu.Username) != nil {
			return nil, fmt.Errorf("%w: %s", types.ErrGroupExists, nu.Username)
		}
		nu.GID = d.NextGID()
		d.groups = append(d.groups, &types.Group{GroupName: nu.Username, GID: nu.GID})
	}
	for _, name := range nu.Groups {
		g := d.findGroup(name)
		if !g.HasMember(nu.Username) {
			g.Members = append(g.Members, nu.Username)
		}
	}
	d.users = append(d.users, nu)
	d.syncMembership()
	return cloneUser(nu), nil
}

// RemoveUser deletes the user and its group memberships. Root cannot be
// removed.
func (d *Directory) RemoveUser(name string) error {
	if name == types.RootUsername {
		return fmt.Errorf("%w: cannot remove root", types.ErrInvalidArgument)
	}
	idx := -1
	for i, u := range d.users {
		if u.Username == name {
			idx = i
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", types.ErrUserNotFound, name)
	}
	removed := d.users[idx]
	d.users = append(d.users[:idx:idx], d.users[idx+1:]...)
	d.removePersonalGroup(removed)
	for _, g := range d.groups {
		kept := g.Members[:0:0]
		for _, m := range g.Members {
			if m != name {
				kept = append(kept, m)
			}
		}
		g.Members = kept
	}
	return nil
}

// removePersonalGroup drops the group AddUser created for u, unless another
// account still uses it as its primary group.
func (d *Directory) removePersonalGroup(u *types.User) {
	for _, other := range d.users {
		if other.GID == u.GID {
			return
		}
	}
	for i, g := range d.groups {
		if g.GroupName == u.Username && g.GID == u.GID {
			d.groups = append(d.groups[:i:i], d.groups[i+1:]...)
			return
		}
	}
}

// AddGroup registers a new group. A zero gid picks the next free one.
func (d *Directory) AddGroup(name string, gid int) (*types.Group, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	g := &types.Group{GroupName: name, GID: gid}
	if err := validate.Struct(g); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidArgument, err)
	}
	if d.findGroup(name) != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrGroupExists, name)
	}
	if g.GID == 0 {
		g.GID = d.NextGID()
	}
	d.groups = append(d.groups, g)
	return cloneGroups([]*types.Group{g})[0], nil
}

// AddMember puts username into group.
func (d *Directory) AddMember(group, username string) error {
	g := d.findGroup(group)
	if g == nil {
		return fmt.Errorf("%w: %s", types.ErrGroupNotFound, group)
	}
	if d.findUser(username) == nil {
		return fmt.Errorf("%w: %s", types.ErrUserNotFound, username)
	}
	if !g.HasMember(username) {
		g.Members = append(g.Members, username)
		sort.Strings(g.Members)
	}
	d.syncMembership()
	return nil
}

// SetPassword changes the stored password of username.
func (d *Directory) SetPassword(username, password, hint string) error {
	u := d.findUser(username)
	if u == nil {
		return fmt.Errorf("%w: %s", types.ErrUserNotFound, username)
	}
	u.Password = password
	u.PasswordHint = hint
	return nil
}
