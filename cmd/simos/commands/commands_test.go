package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and stdin, returning stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cfgFile, runUser, runPassword, shellUser = "", "", "", ""
	t.Setenv("SIMOS_LOGGING_LEVEL", "error")
	t.Setenv("SIMOS_SYSTEM_ROOT_PASSWORD", "toor")

	var out bytes.Buffer
	cmd := GetRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func TestRun_Guest(t *testing.T) {
	out, err := execute(t, "", "run", "echo hi", "pwd", "whoami")
	require.NoError(t, err)
	assert.Equal(t, "hi\n/\nguest\n", out)
}

func TestRun_FailureStatus(t *testing.T) {
	out, err := execute(t, "", "run", "nosuch", "echo after")
	require.Error(t, err)
	assert.Equal(t, 127, ExitCode(err))
	assert.Equal(t, "sh: nosuch: command not found\nafter\n", out)
}

func TestRun_PromptsReadFromStdin(t *testing.T) {
	out, err := execute(t, "secret\nsecret\n",
		"run", "-u", "root", "-p", "toor", "useradd alice", "passwd alice", "su alice", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "useradd: created user alice")
	assert.Contains(t, out, "New password: ******\n")
	assert.Contains(t, out, "passwd: password updated successfully\n")
	assert.True(t, strings.HasSuffix(out, "alice\n"), out)
}

func TestRun_WrongPassword(t *testing.T) {
	_, err := execute(t, "", "run", "-u", "root", "-p", "nope", "whoami")
	assert.Error(t, err)
}

func TestRun_PersistsAcrossBoots(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SIMOS_STORAGE_TYPE", "file")
	t.Setenv("SIMOS_STORAGE_PATH", dir)

	_, err := execute(t, "", "run", "-u", "root", "-p", "toor", "echo kept > /tmp/state.txt")
	require.NoError(t, err)

	out, err := execute(t, "", "run", "cat /tmp/state.txt")
	require.NoError(t, err)
	assert.Equal(t, "kept\n", out)
}

func TestShell_GuestSession(t *testing.T) {
	out, err := execute(t, "\nwhoami\ncd /tmp\npwd\nexit\n", "shell")
	require.NoError(t, err)

	assert.Contains(t, out, "Welcome to simos.")
	assert.Contains(t, out, "simos login: ")
	assert.Contains(t, out, "guest@simos:/$ guest\n")
	assert.Contains(t, out, "guest@simos:/tmp$ ")
	assert.Contains(t, out, "/tmp\n")
}

func TestShell_LoginAndPrompt(t *testing.T) {
	stdin := strings.Join([]string{
		"root", "toor",
		"useradd -p pw carol",
		"su carol",
		"whoami",
		"su root", "toor",
		"whoami",
		"exit",
		"exit",
		"exit",
	}, "\n") + "\n"
	out, err := execute(t, stdin, "shell")
	require.NoError(t, err)

	assert.Contains(t, out, "root@simos:~# ")
	assert.Contains(t, out, "carol@simos:/root$ carol\n")
	assert.Contains(t, out, "carol@simos:/root$ Password: root@simos:~# root\n")
	assert.NotContains(t, out, "Login incorrect")
	assert.NotContains(t, out, "****", "masked answers are not echoed back")
}

func TestShell_LoginIncorrect(t *testing.T) {
	out, err := execute(t, "bad\nbad\nbad\n", "shell", "--user", "root")
	require.Error(t, err)
	assert.Equal(t, 3, strings.Count(out, "Login incorrect"))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 1, ExitCode(assert.AnError))
	assert.Equal(t, 126, ExitCode(&exitError{status: 126}))
}
