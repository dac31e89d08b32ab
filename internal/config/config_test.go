package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baktainer/baktainer/internal/domain"
)

func TestLoadAppliesDefaultsWhenNoEnvSet(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "unix:///var/run/docker.sock", cfg.RuntimeURL)
	assert.Equal(t, "0 0 * * *", cfg.Cron)
	assert.Equal(t, 4, cfg.Threads)
	assert.True(t, cfg.Compress)
	assert.True(t, cfg.RotationEnabled)
	assert.Equal(t, 30, cfg.RetentionDays)
	assert.Equal(t, []string{"log"}, cfg.NotificationChannels)
}

func TestLoadReadsOverridesFromEnv(t *testing.T) {
	t.Setenv("BT_DOCKER_URL", "tcp://docker.internal:2375")
	t.Setenv("BT_THREADS", "10")
	t.Setenv("BT_NOTIFICATION_CHANNELS", "log,slack,webhook")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "tcp://docker.internal:2375", cfg.RuntimeURL)
	assert.Equal(t, 10, cfg.Threads)
	assert.Equal(t, []string{"log", "slack", "webhook"}, cfg.NotificationChannels)
}

func TestLoadRejectsInvalidRuntimeURLScheme(t *testing.T) {
	t.Setenv("BT_DOCKER_URL", "ftp://bogus")
	_, err := Load()
	require.Error(t, err)
	var cfgErr *domain.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoadRejectsMalformedCronExpression(t *testing.T) {
	t.Setenv("BT_CRON", "not a cron")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsThreadsOutOfRange(t *testing.T) {
	t.Setenv("BT_THREADS", "0")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	t.Setenv("BT_LOG_LEVEL", "trace")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsRelativeBackupDir(t *testing.T) {
	t.Setenv("BT_BACKUP_DIR", "relative/path")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsTLSEnabledWithoutMaterial(t *testing.T) {
	t.Setenv("BT_SSL", "true")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsEncryptionEnabledWithNoKeySource(t *testing.T) {
	t.Setenv("BT_ENCRYPTION_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsEncryptionEnabledWithMultipleKeySources(t *testing.T) {
	t.Setenv("BT_ENCRYPTION_ENABLED", "true")
	t.Setenv("BT_ENCRYPTION_KEY", "a-raw-key")
	t.Setenv("BT_ENCRYPTION_PASSPHRASE", "also-set")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadAcceptsEncryptionEnabledWithExactlyOneKeySource(t *testing.T) {
	t.Setenv("BT_ENCRYPTION_ENABLED", "true")
	t.Setenv("BT_ENCRYPTION_PASSPHRASE", "correct horse battery staple")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.EncryptionEnabled)

	raw, isPassphrase, err := cfg.ResolveEncryptionKeyMaterial()
	require.NoError(t, err)
	assert.True(t, isPassphrase)
	assert.Equal(t, "correct horse battery staple", raw)
}

func TestParseBoolLabelAcceptsCommonSpellings(t *testing.T) {
	for _, s := range []string{"true", "1", "yes", "on", "TRUE", " True "} {
		v, err := ParseBoolLabel(s)
		require.NoError(t, err, s)
		assert.True(t, v, s)
	}
	for _, s := range []string{"false", "0", "no", "off"} {
		v, err := ParseBoolLabel(s)
		require.NoError(t, err, s)
		assert.False(t, v, s)
	}
}

func TestParseBoolLabelRejectsUnrecognizedValue(t *testing.T) {
	_, err := ParseBoolLabel("maybe")
	require.Error(t, err)
}

func TestParseIntLabelParsesValidInteger(t *testing.T) {
	v, err := ParseIntLabel("42")
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestParseIntLabelRejectsNonInteger(t *testing.T) {
	_, err := ParseIntLabel("not-a-number")
	require.Error(t, err)
}
