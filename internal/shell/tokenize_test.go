package shell

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		words []string
		redir *Redirect
	}{
		{"plain", "echo hello world", []string{"echo", "hello", "world"}, nil},
		{"quotes", `echo "hello world" 'a b'`, []string{"echo", "hello world", "a b"}, nil},
		{"adjacent quotes", `echo x"y z"`, []string{"echo", "xy z"}, nil},
		{"empty quoted", `echo ""`, []string{"echo", ""}, nil},
		{"redirect", "echo hi > out.txt", []string{"echo", "hi"}, &Redirect{Target: "out.txt"}},
		{"append", `echo hi >> "my file"`, []string{"echo", "hi"}, &Redirect{Target: "my file", Append: true}},
		{"no spaces", "echo hi>out", []string{"echo", "hi"}, &Redirect{Target: "out"}},
		{"quoted operator", `echo "a>b"`, []string{"echo", "a>b"}, nil},
		{"extra whitespace", "  ls \t -l  ", []string{"ls", "-l"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			words, redir, err := Tokenize(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.words, words)
			assert.Equal(t, tt.redir, redir)
		})
	}
}

func TestTokenize_Errors(t *testing.T) {
	_, _, err := Tokenize(`echo "unterminated`)
	assert.ErrorIs(t, err, ErrUnterminatedQuote)

	_, _, err = Tokenize("echo >")
	assert.ErrorIs(t, err, ErrMissingTarget)

	_, _, err = Tokenize("echo > a > b")
	assert.Error(t, err)
}

func TestExpand(t *testing.T) {
	vars := map[string]string{"USER": "alice", "HOME": "/home/alice", "1": "first", "#": "1"}
	lookup := func(name string) string { return vars[name] }

	tests := []struct {
		in, want string
	}{
		{"echo $USER", "echo alice"},
		{"echo ${HOME}/x", "echo /home/alice/x"},
		{"echo '$USER'", "echo '$USER'"},
		{`echo "$USER"`, `echo "alice"`},
		{`echo "it's $USER"`, `echo "it's alice"`},
		{"echo $NOPE.", "echo ."},
		{"echo $1 $#", "echo first 1"},
		{"echo $", "echo $"},
		{"a $-b", "a $-b"},
		{"cost ${}", "cost ${}"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Expand(tt.in, lookup))
		})
	}
}

func TestParseAssignment(t *testing.T) {
	name, value, ok := ParseAssignment("NAME=value")
	assert.True(t, ok)
	assert.Equal(t, "NAME", name)
	assert.Equal(t, "value", value)

	name, value, ok = ParseAssignment(`GREETING="hello there"`)
	assert.True(t, ok)
	assert.Equal(t, "GREETING", name)
	assert.Equal(t, "hello there", value)

	_, _, ok = ParseAssignment("echo a=b")
	assert.False(t, ok)
	_, _, ok = ParseAssignment("1X=3")
	assert.False(t, ok)
}

func TestGlob(t *testing.T) {
	names := []string{"b.txt", "a.txt", "c.md", ".hidden.txt", "a+b.txt"}

	assert.Equal(t, []string{"a+b.txt", "a.txt", "b.txt"}, Glob("*.txt", names))
	assert.Equal(t, []string{".hidden.txt"}, Glob(".*", names))
	assert.Equal(t, []string{"*.go"}, Glob("*.go", names))
	assert.Equal(t, []string{"a+b.txt"}, Glob("a+b*", names))
	assert.Equal(t, []string{"a.txt"}, Glob("a.*", names))

	assert.True(t, isGlob("*.txt"))
	assert.False(t, isGlob("dir/*.txt"))
	assert.False(t, isGlob("plain"))
}
