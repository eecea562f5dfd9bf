package shell

import (
	"errors"
	"regexp"
	"sort"
	"strings"
)

// Tokenizer errors.
var (
	ErrUnterminatedQuote = errors.New("unexpected EOF while looking for matching quote")
	ErrMissingTarget     = errors.New("syntax error near unexpected token `newline'")
)

// Redirect is an output redirection parsed from a command line.
type Redirect struct {
	Target string
	Append bool
}

// word is one token. Quoted words never undergo glob expansion.
type word struct {
	text   string
	quoted bool
}

// Tokenize splits line into words on whitespace, stripping single and
// double quotes. A `>` or `>>` outside quotes ends the command words and
// the next word becomes the redirect target.
func Tokenize(line string) ([]string, *Redirect, error) {
	words, redir, err := tokenize(line)
	if err != nil {
		return nil, nil, err
	}
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = w.text
	}
	return out, redir, nil
}

func tokenize(line string) ([]word, *Redirect, error) {
	var (
		words      []word
		cur        strings.Builder
		inToken    bool
		quoted     bool
		quote      rune
		redir      *Redirect
		wantTarget bool
	)

	flush := func() {
		if !inToken {
			return
		}
		w := word{text: cur.String(), quoted: quoted}
		if wantTarget {
			redir.Target = w.text
			wantTarget = false
		} else {
			words = append(words, w)
		}
		cur.Reset()
		inToken, quoted = false, false
	}

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			cur.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			inToken, quoted = true, true
		case r == ' ' || r == '\t':
			flush()
		case r == '>':
			flush()
			if redir != nil {
				return nil, nil, errors.New("syntax error near unexpected token `>'")
			}
			redir = &Redirect{}
			if i+1 < len(runes) && runes[i+1] == '>' {
				redir.Append = true
				i++
			}
			wantTarget = true
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}
	if quote != 0 {
		return nil, nil, ErrUnterminatedQuote
	}
	flush()
	if wantTarget {
		return nil, nil, ErrMissingTarget
	}
	return words, redir, nil
}

func nameChar(r byte, first bool) bool {
	switch {
	case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return !first
	}
	return false
}

// Expand substitutes $NAME and ${NAME} references in line using lookup.
// The special parameters $0 through $9, $# and $? are recognised.
// Nothing inside single quotes is expanded, and unknown names expand to
// the empty string.
func Expand(line string, lookup func(string) string) string {
	var (
		b        strings.Builder
		inSingle bool
		inDouble bool
	)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
			b.WriteByte(c)
		case c == '"' && !inSingle:
			inDouble = !inDouble
			b.WriteByte(c)
		case c == '$' && !inSingle && i+1 < len(line):
			name, n := varName(line[i+1:])
			if n == 0 {
				b.WriteByte(c)
				continue
			}
			b.WriteString(lookup(name))
			i += n
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// varName parses the variable reference following a '$' and returns the
// name and the number of bytes it spans, or 0 when s holds none.
func varName(s string) (string, int) {
	switch {
	case s[0] == '{':
		end := strings.IndexByte(s, '}')
		if end < 2 {
			return "", 0
		}
		return s[1:end], end + 1
	case s[0] == '#' || s[0] == '?' || (s[0] >= '0' && s[0] <= '9'):
		return s[:1], 1
	case nameChar(s[0], true):
		n := 1
		for n < len(s) && nameChar(s[n], false) {
			n++
		}
		return s[:n], n
	}
	return "", 0
}

var assignmentRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)=(.*)$`)

// ParseAssignment reports whether line is a NAME=value assignment. A
// value wrapped in matching quotes is unquoted.
func ParseAssignment(line string) (name, value string, ok bool) {
	m := assignmentRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return "", "", false
	}
	return m[1], unquote(m[2]), true
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// isGlob reports whether pattern should be matched against the current
// directory. Patterns naming a path are left alone.
func isGlob(pattern string) bool {
	return strings.Contains(pattern, "*") && !strings.Contains(pattern, "/")
}

// globRegexp translates pattern into an anchored regular expression where
// only '*' is special.
func globRegexp(pattern string) *regexp.Regexp {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile("^" + strings.Join(parts, ".*") + "$")
}

// Glob returns the names matching pattern in sorted order. Hidden names
// only match patterns that start with a dot. A pattern with no match is
// returned unchanged.
func Glob(pattern string, names []string) []string {
	re := globRegexp(pattern)
	var out []string
	for _, name := range names {
		if strings.HasPrefix(name, ".") && !strings.HasPrefix(pattern, ".") {
			continue
		}
		if re.MatchString(name) {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return []string{pattern}
	}
	sort.Strings(out)
	return out
}
