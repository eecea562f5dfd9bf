// Package identity keeps user and group records and their /etc/passwd and
// /etc/group text forms consistent.
package identity

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ajaxzhan/simos/pkg/types"
)

// ShadowPlaceholder in the password field means the password is held
// elsewhere.
const ShadowPlaceholder = "x"

// ParseError reports a malformed line in a passwd or group file.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

func contentLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

func skipLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed == "" || strings.HasPrefix(trimmed, "#")
}

// ParsePasswd parses /etc/passwd content. Blank lines and lines starting
// with '#' are skipped.
func ParsePasswd(text string) ([]*types.User, error) {
	var users []*types.User
	for i, line := range contentLines(text) {
		if skipLine(line) {
			continue
		}
		fields := strings.Split(line, ":")
		if len(fields) != 7 {
			return nil, &ParseError{File: "passwd", Line: i + 1, Msg: fmt.Sprintf("expected 7 fields, got %d", len(fields))}
		}
		uid, err := strconv.Atoi(fields[2])
		if err != nil || uid < 0 {
			return nil, &ParseError{File: "passwd", Line: i + 1, Msg: "invalid uid " + strconv.Quote(fields[2])}
		}
		gid, err := strconv.Atoi(fields[3])
		if err != nil || gid < 0 {
			return nil, &ParseError{File: "passwd", Line: i + 1, Msg: "invalid gid " + strconv.Quote(fields[3])}
		}
		if fields[0] == "" {
			return nil, &ParseError{File: "passwd", Line: i + 1, Msg: "empty username"}
		}
		users = append(users, &types.User{
			Username: fields[0],
			Password: fields[1],
			UID:      uid,
			GID:      gid,
			FullName: fields[4],
			HomeDir:  fields[5],
			Shell:    fields[6],
		})
	}
	return users, nil
}

// FormatPasswd renders users in /etc/passwd format, one newline-terminated
// line per user. Password fields are written as given.
func FormatPasswd(users []*types.User) string {
	var b strings.Builder
	for _, u := range users {
		fmt.Fprintf(&b, "%s:%s:%d:%d:%s:%s:%s\n",
			u.Username, u.Password, u.UID, u.GID, u.FullName, u.HomeDir, u.Shell)
	}
	return b.String()
}

// ParseGroup parses /etc/group content.
func ParseGroup(text string) ([]*types.Group, error) {
	var groups []*types.Group
	for i, line := range contentLines(text) {
		if skipLine(line) {
			continue
		}
		fields := strings.Split(line, ":")
		if len(fields) != 4 {
			return nil, &ParseError{File: "group", Line: i + 1, Msg: fmt.Sprintf("expected 4 fields, got %d", len(fields))}
		}
		gid, err := strconv.Atoi(fields[2])
		if err != nil || gid < 0 {
			return nil, &ParseError{File: "group", Line: i + 1, Msg: "invalid gid " + strconv.Quote(fields[2])}
		}
		if fields[0] == "" {
			return nil, &ParseError{File: "group", Line: i + 1, Msg: "empty group name"}
		}
		var members []string
		for _, m := range strings.Split(fields[3], ",") {
			if m = strings.TrimSpace(m); m != "" {
				members = append(members, m)
			}
		}
		groups = append(groups, &types.Group{
			GroupName: fields[0],
			Password:  fields[1],
			GID:       gid,
			Members:   members,
		})
	}
	return groups, nil
}

// FormatGroup renders groups in /etc/group format.
func FormatGroup(groups []*types.Group) string {
	var b strings.Builder
	for _, g := range groups {
		fmt.Fprintf(&b, "%s:%s:%d:%s\n", g.GroupName, g.Password, g.GID, strings.Join(g.Members, ","))
	}
	return b.String()
}
