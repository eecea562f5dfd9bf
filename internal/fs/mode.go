package fs

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ajaxzhan/simos/pkg/types"
)

var octalTable = map[byte]string{
	'0': "---",
	'1': "--x",
	'2': "-w-",
	'3': "-wx",
	'4': "r--",
	'5': "r-x",
	'6': "rw-",
	'7': "rwx",
}

var (
	fullModeRe     = regexp.MustCompile(`^[d-][r-][w-][xsS-][r-][w-][xsS-][r-][w-][xtT-]$`)
	symbolicModeRe = regexp.MustCompile(`^([ugoa]*)([-+=])([rwxt]*)$`)
)

func kindPrefix(kind types.NodeKind) byte {
	if kind == types.KindDirectory {
		return 'd'
	}
	return '-'
}

func defaultMode(kind types.NodeKind) string {
	if kind == types.KindDirectory {
		return types.DefaultDirPermissions
	}
	return types.DefaultFilePermissions
}

func isOctal(s string) bool {
	if len(s) != 3 && len(s) != 4 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '7' {
			return false
		}
	}
	return true
}

// OctalToPermissions maps an octal mode such as "755" to a permission string
// for a node of the given kind. A leading fourth digit with the 1 bit set
// adds the sticky overlay. Anything unparseable yields the kind default.
func OctalToPermissions(octal string, kind types.NodeKind) string {
	if !isOctal(octal) {
		return defaultMode(kind)
	}
	sticky := false
	if len(octal) == 4 {
		sticky = (octal[0]-'0')&1 == 1
		octal = octal[1:]
	}

	var b strings.Builder
	b.WriteByte(kindPrefix(kind))
	for i := 0; i < 3; i++ {
		b.WriteString(octalTable[octal[i]])
	}
	mode := []byte(b.String())
	if sticky {
		if mode[9] == 'x' {
			mode[9] = 't'
		} else {
			mode[9] = 'T'
		}
	}
	return string(mode)
}

// triplet is the decoded form of one rwx group. special carries setuid,
// setgid or sticky depending on the position.
type triplet struct {
	r, w, x, special bool
}

func decodeMode(mode string) [3]triplet {
	var ts [3]triplet
	for i := range ts {
		s := mode[1+i*3 : 4+i*3]
		ts[i] = triplet{
			r:       s[0] != '-',
			w:       s[1] != '-',
			x:       s[2] == 'x' || s[2] == 's' || s[2] == 't',
			special: strings.IndexByte("sStT", s[2]) >= 0,
		}
	}
	return ts
}

func encodeMode(prefix byte, ts [3]triplet) string {
	b := make([]byte, 10)
	b[0] = prefix
	for i, t := range ts {
		b[1+i*3] = pick(t.r, 'r')
		b[2+i*3] = pick(t.w, 'w')
		switch {
		case t.special && i == 2:
			b[3+i*3] = pick2(t.x, 't', 'T')
		case t.special:
			b[3+i*3] = pick2(t.x, 's', 'S')
		default:
			b[3+i*3] = pick(t.x, 'x')
		}
	}
	return string(b)
}

func pick(on bool, c byte) byte {
	if on {
		return c
	}
	return '-'
}

func pick2(on bool, yes, no byte) byte {
	if on {
		return yes
	}
	return no
}

// ParseMode computes the permission string that results from applying mode
// to a node of the given kind whose current permissions are current.
//
// Accepted forms are octal ("755", "1777"), a full ten-character string
// ("-rw-r-----"), or one or more comma-separated symbolic clauses
// ("u+w", "go-rx", "a=r", "o+t").
func ParseMode(mode, current string, kind types.NodeKind) (string, error) {
	mode = strings.TrimSpace(mode)
	if mode == "" {
		return "", fmt.Errorf("%w: empty mode", types.ErrInvalidMode)
	}
	if isOctal(mode) {
		return OctalToPermissions(mode, kind), nil
	}
	if len(mode) == 10 && fullModeRe.MatchString(mode) {
		return string(kindPrefix(kind)) + mode[1:], nil
	}

	if len(current) != 10 || !fullModeRe.MatchString(current) {
		current = defaultMode(kind)
	}
	ts := decodeMode(current)
	for _, clause := range strings.Split(mode, ",") {
		m := symbolicModeRe.FindStringSubmatch(clause)
		if m == nil {
			return "", fmt.Errorf("%w: %q", types.ErrInvalidMode, mode)
		}
		applyClause(&ts, m[1], m[2][0], m[3])
	}
	return encodeMode(kindPrefix(kind), ts), nil
}

func applyClause(ts *[3]triplet, who string, op byte, perms string) {
	if who == "" || strings.Contains(who, "a") {
		who = "ugo"
	}
	named := triplet{
		r: strings.Contains(perms, "r"),
		w: strings.Contains(perms, "w"),
		x: strings.Contains(perms, "x"),
	}
	sticky := strings.Contains(perms, "t")

	for i, scope := range "ugo" {
		if !strings.ContainsRune(who, scope) {
			continue
		}
		t := &ts[i]
		switch op {
		case '+':
			t.r = t.r || named.r
			t.w = t.w || named.w
			t.x = t.x || named.x
			if sticky && i == 2 {
				t.special = true
			}
		case '-':
			t.r = t.r && !named.r
			t.w = t.w && !named.w
			t.x = t.x && !named.x
			if sticky && i == 2 {
				t.special = false
			}
		case '=':
			t.r, t.w, t.x = named.r, named.w, named.x
			if i == 2 {
				t.special = sticky
			} else {
				t.special = false
			}
		}
	}
}
