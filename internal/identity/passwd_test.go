package identity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswd_RoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"root:x:0:0:System Administrator:/root:/bin/sh\n",
		"root:x:0:0::/root:/bin/sh\nalice:secret:1000:1000:Alice Liddell:/home/alice:/bin/sh\n",
		"bob::1001:1001:Bob:/home/bob:\n",
	}

	for _, in := range inputs {
		users, err := ParsePasswd(in)
		require.NoError(t, err)
		assert.Equal(t, in, FormatPasswd(users))
	}
}

func TestParsePasswd_SkipsCommentsAndBlanks(t *testing.T) {
	text := "# system accounts\n\nroot:x:0:0:root:/root:/bin/sh\n   \nalice:pw:1000:1000:Alice:/home/alice:/bin/sh"
	users, err := ParsePasswd(text)
	require.NoError(t, err)
	require.Len(t, users, 2)

	assert.Equal(t, "alice", users[1].Username)
	assert.Equal(t, "pw", users[1].Password)
	assert.Equal(t, 1000, users[1].UID)
	assert.Equal(t, "/home/alice", users[1].HomeDir)
}

func TestParsePasswd_Malformed(t *testing.T) {
	for _, text := range []string{
		"root:x:0:0:root:/root",
		"root:x:zero:0:root:/root:/bin/sh",
		"root:x:0:-1:root:/root:/bin/sh",
		":x:0:0:root:/root:/bin/sh",
	} {
		_, err := ParsePasswd(text)
		var pe *ParseError
		assert.True(t, errors.As(err, &pe), "ParsePasswd(%q) error = %v", text, err)
	}
}

func TestGroup_RoundTrip(t *testing.T) {
	in := "root:x:0:root\nsudo:x:27:alice,bob\nusers:x:100:\n"
	groups, err := ParseGroup(in)
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, []string{"alice", "bob"}, groups[1].Members)
	assert.Empty(t, groups[2].Members)
	assert.Equal(t, in, FormatGroup(groups))

	_, err = ParseGroup("staff:x:50")
	assert.Error(t, err)
}
