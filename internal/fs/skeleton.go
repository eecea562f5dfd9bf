package fs

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/ajaxzhan/simos/pkg/types"
)

// Markers recognised in executable file content.
const (
	// AppMarkerPrefix starts a file that launches a host application. The
	// rest of the first line is the application id.
	AppMarkerPrefix = "#!app:"
	// CommandMarker is followed by the name of a registered command that the
	// file dispatches to.
	CommandMarker = "#!builtin "
)

// Permission strings used by the skeleton builders.
const (
	ExecutablePermissions = "-rwxr-xr-x"
	HomePermissions       = "drwxr-x---"
	PrivatePermissions    = "drwx------"
	TmpPermissions        = "drwxrwxrwt"
)

// BaseOptions describes the system directories to generate.
type BaseOptions struct {
	Hostname string
	// Commands get a /bin entry mapping to the registered command of the
	// same name.
	Commands []string
	// Apps maps /usr/bin entry names to host application ids.
	Apps map[string]string
	// Scripts maps /usr/bin entry names to script bodies.
	Scripts map[string]string
}

// AppLauncher returns executable content that launches appID.
func AppLauncher(appID string) string {
	return AppMarkerPrefix + appID + "\n"
}

// CommandMapping returns executable content that dispatches to command.
func CommandMapping(command string) string {
	return "#!/bin/sh\n" + CommandMarker + command + "\n"
}

// BaseSystem builds the root of a fresh filesystem. Home directories are
// added separately with InstallHome.
func BaseSystem(opts BaseOptions) *types.Node {
	const root, rootGroup = types.RootUsername, "0"

	bin := NewDirectory("bin", root, rootGroup, "")
	for _, name := range opts.Commands {
		bin.Children = append(bin.Children,
			NewFile(name, CommandMapping(name), root, rootGroup, ExecutablePermissions))
	}

	usrBin := NewDirectory("bin", root, rootGroup, "")
	for _, name := range sortedKeys(opts.Apps) {
		usrBin.Children = append(usrBin.Children,
			NewFile(name, AppLauncher(opts.Apps[name]), root, rootGroup, ExecutablePermissions))
	}
	for _, name := range sortedKeys(opts.Scripts) {
		usrBin.Children = append(usrBin.Children,
			NewFile(name, opts.Scripts[name], root, rootGroup, ExecutablePermissions))
	}
	usr := NewDirectory("usr", root, rootGroup, "")
	usr.Children = append(usr.Children, usrBin, NewDirectory("share", root, rootGroup, ""))

	hostname := opts.Hostname
	if hostname == "" {
		hostname = "localhost"
	}
	etc := NewDirectory("etc", root, rootGroup, "")
	etc.Children = append(etc.Children,
		NewFile("hostname", hostname+"\n", root, rootGroup, ""),
		NewFile("motd", fmt.Sprintf("Welcome to %s.\n", hostname), root, rootGroup, ""),
		NewFile("passwd", "", root, rootGroup, ""),
		NewFile("group", "", root, rootGroup, ""),
	)

	varDir := NewDirectory("var", root, rootGroup, "")
	varDir.Children = append(varDir.Children, NewDirectory("log", root, rootGroup, ""))

	top := NewDirectory("", root, rootGroup, "")
	top.Children = append(top.Children,
		bin,
		etc,
		NewDirectory("home", root, rootGroup, ""),
		NewDirectory("tmp", root, rootGroup, TmpPermissions),
		usr,
		varDir,
	)
	return top
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BuildHome returns a home directory subtree owned by user, with the alias
// folders and an empty trash.
func BuildHome(user *types.User) *types.Node {
	owner, group := user.Username, strconv.Itoa(user.GID)
	perms := HomePermissions
	if user.IsRoot() {
		perms = PrivatePermissions
	}
	_, name := Split(user.HomeDir)
	home := NewDirectory(name, owner, group, perms)
	for _, alias := range DefaultAliases {
		home.Children = append(home.Children, NewDirectory(alias, owner, group, ""))
	}
	home.Children = append(home.Children, NewDirectory(TrashDirName, owner, group, PrivatePermissions))
	return home
}

// InstallHome inserts the home skeleton for user. The parent of the home
// directory must exist and the home itself must not.
func (t *Tree) InstallHome(user *types.User) (*Tree, error) {
	if user == nil || user.HomeDir == "" {
		return nil, pathErr("install-home", "", types.ErrInvalidArgument)
	}
	home := Clean(user.HomeDir)
	if home == "/" {
		return nil, pathErr("install-home", home, types.ErrInvalidArgument)
	}
	dir, name := Split(home)
	parent := t.Lookup(dir)
	if parent == nil {
		return nil, pathErr("install-home", dir, types.ErrNotFound)
	}
	if !parent.IsDir() {
		return nil, pathErr("install-home", dir, types.ErrNotADirectory)
	}
	if parent.Child(name) != nil {
		return nil, pathErr("install-home", home, types.ErrNameCollision)
	}
	skeleton := BuildHome(user)
	return t.edit(dir, func(n *types.Node) (*types.Node, error) {
		return withChild(n, skeleton), nil
	})
}
