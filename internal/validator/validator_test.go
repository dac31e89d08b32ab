package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baktainer/baktainer/internal/domain"
	"github.com/baktainer/baktainer/internal/labelschema"
)

func runningContainer() *domain.Container {
	return &domain.Container{
		Name:   "app",
		State:  domain.ContainerRunning,
		Labels: map[string]string{domain.LabelBackup: "true"},
		Engine: "mysql",
		User:   "root",
		Password: "secret",
	}
}

func TestValidateRejectsNilContainer(t *testing.T) {
	err := Validate(nil, nil)
	require.Error(t, err)
}

func TestValidateRejectsNonRunningContainer(t *testing.T) {
	c := runningContainer()
	c.State = domain.ContainerStopped
	err := Validate(c, nil)
	require.Error(t, err)
}

func TestValidateRejectsContainerWithNoLabels(t *testing.T) {
	c := runningContainer()
	c.Labels = nil
	err := Validate(c, nil)
	require.Error(t, err)
}

func TestValidateUsesSchemaResultWhenProvided(t *testing.T) {
	c := runningContainer()
	res := &labelschema.Result{Valid: false, Errors: []string{"schema said no"}}
	err := Validate(c, res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema said no")
}

func TestValidatePassesWhenSchemaResultIsValid(t *testing.T) {
	c := runningContainer()
	res := &labelschema.Result{Valid: true}
	err := Validate(c, res)
	assert.NoError(t, err)
}

func TestValidateFallsBackToLegacyChecksWhenNoSchemaResult(t *testing.T) {
	c := runningContainer()
	err := Validate(c, nil)
	assert.NoError(t, err)
}

func TestLegacyValidateRejectsMissingBackupLabel(t *testing.T) {
	c := runningContainer()
	c.Labels[domain.LabelBackup] = "false"
	err := Validate(c, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "baktainer.backup is not enabled")
}

func TestLegacyValidateRejectsUnsupportedEngine(t *testing.T) {
	c := runningContainer()
	c.Engine = "oracle"
	err := Validate(c, nil)
	require.Error(t, err)
}

func TestLegacyValidateRejectsMissingUserAndPasswordForNonSQLite(t *testing.T) {
	c := runningContainer()
	c.User = ""
	c.Password = ""
	err := Validate(c, nil)
	require.Error(t, err)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Reasons, 2)
}

func TestLegacyValidateAllowsSQLiteWithoutUserOrPassword(t *testing.T) {
	c := runningContainer()
	c.Engine = string(domain.EngineSQLite)
	c.User = ""
	c.Password = ""
	err := Validate(c, nil)
	assert.NoError(t, err)
}
