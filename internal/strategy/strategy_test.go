package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baktainer/baktainer/internal/domain"
)

func TestDefaultRegistryResolvesEveryBuiltinEngine(t *testing.T) {
	r := DefaultRegistry()
	for _, engine := range []string{"mysql", "mariadb", "postgres", "postgresql", "sqlite", "mongodb"} {
		s, err := r.Get(engine)
		require.NoError(t, err, engine)
		require.NotNil(t, s, engine)
	}
}

func TestRegistryGetIsCaseInsensitive(t *testing.T) {
	r := DefaultRegistry()
	_, err := r.Get("MySQL")
	require.NoError(t, err)
}

func TestRegistryGetRejectsUnregisteredEngine(t *testing.T) {
	r := DefaultRegistry()
	_, err := r.Get("custom")
	require.Error(t, err)
	var unsupported *UnsupportedEngine
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "custom", unsupported.Engine)
}

func TestRegisterReplacesExistingEngineEntry(t *testing.T) {
	r := NewRegistry()
	first := &mysqlStrategy{}
	second := &mariadbStrategy{}
	r.Register("x", first)
	r.Register("x", second)

	s, err := r.Get("x")
	require.NoError(t, err)
	assert.Same(t, second, s)
}

func TestFirstNLinesTruncatesAndPassesThroughShortSlices(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, FirstNLines([]string{"a", "b", "c"}, 2))
	assert.Equal(t, []string{"a"}, FirstNLines([]string{"a"}, 5))
}

func TestMySQLStrategyBuildsCommandWithCredentials(t *testing.T) {
	s := mysqlStrategy{}
	cmd, err := s.Command(Options{User: "root", Password: "secret", Database: "appdb"})
	require.NoError(t, err)
	assert.Equal(t, []string{"mysqldump", "-u", "root", "-psecret", "appdb"}, cmd.Cmd)
}

func TestMySQLStrategyRejectsMissingCredentials(t *testing.T) {
	s := mysqlStrategy{}
	_, err := s.Command(Options{Database: "appdb"})
	require.Error(t, err)
}

func TestMySQLStrategySniffsRecognizedOutput(t *testing.T) {
	s := mysqlStrategy{}
	assert.True(t, s.Sniff([]string{"-- MySQL dump 10.13", "CREATE TABLE users"}))
	assert.False(t, s.Sniff([]string{"garbage output"}))
}

func TestMariaDBStrategyDelegatesCommandBuildingToMySQL(t *testing.T) {
	s := mariadbStrategy{}
	cmd, err := s.Command(Options{User: "root", Password: "secret", Database: "appdb"})
	require.NoError(t, err)
	assert.Equal(t, "mysqldump", cmd.Cmd[0])
}

func TestPostgresStrategyBuildsSingleDatabaseCommand(t *testing.T) {
	s := postgresStrategy{}
	cmd, err := s.Command(Options{User: "app", Password: "secret", Database: "appdb"})
	require.NoError(t, err)
	assert.Equal(t, []string{"pg_dump", "-U", "app", "-d", "appdb"}, cmd.Cmd)
	assert.Equal(t, []string{"PGPASSWORD=secret"}, cmd.Env)
}

func TestPostgresStrategyBuildsAllDatabasesCommandWhenRequested(t *testing.T) {
	s := postgresStrategy{}
	cmd, err := s.Command(Options{User: "app", Password: "secret", AllDatabases: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"pg_dumpall", "-U", "app"}, cmd.Cmd)
}

func TestPostgresStrategyRejectsMissingDatabaseWhenNotAllDatabases(t *testing.T) {
	s := postgresStrategy{}
	_, err := s.Command(Options{User: "app", Password: "secret"})
	require.Error(t, err)
}

func TestPostgresStrategySniffsRecognizedOutput(t *testing.T) {
	s := postgresStrategy{}
	assert.True(t, s.Sniff([]string{"-- PostgreSQL database dump"}))
}

func TestSQLiteStrategyBuildsDumpCommand(t *testing.T) {
	s := sqliteStrategy{}
	cmd, err := s.Command(Options{Database: "app.db"})
	require.NoError(t, err)
	assert.Equal(t, []string{"sqlite3", "app.db", ".dump"}, cmd.Cmd)
}

func TestSQLiteStrategyRejectsMissingDatabase(t *testing.T) {
	s := sqliteStrategy{}
	_, err := s.Command(Options{})
	require.Error(t, err)
}

func TestMongoDBStrategyBuildsCommandWithoutCredentialsWhenAbsent(t *testing.T) {
	s := mongodbStrategy{}
	cmd, err := s.Command(Options{Database: "appdb"})
	require.NoError(t, err)
	assert.Equal(t, []string{"mongodump", "--db", "appdb"}, cmd.Cmd)
}

func TestMongoDBStrategyIncludesCredentialsWhenBothPresent(t *testing.T) {
	s := mongodbStrategy{}
	cmd, err := s.Command(Options{Database: "appdb", User: "root", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, []string{"mongodump", "--db", "appdb", "--username", "root", "--password", "secret"}, cmd.Cmd)
}

func TestMongoDBStrategyRejectsMissingDatabase(t *testing.T) {
	s := mongodbStrategy{}
	_, err := s.Command(Options{User: "root", Password: "secret"})
	require.Error(t, err)
}

func TestEngineBasedCommandBuildRejectsUnsafeDatabaseValue(t *testing.T) {
	s := sqliteStrategy{}
	_, err := s.Command(Options{Database: "../../etc/passwd"})
	require.Error(t, err)
	var secErr *domain.SecurityError
	assert.ErrorAs(t, err, &secErr)
}
