// Package validator gates candidate containers through the label schema
// (or a minimal legacy check) before the orchestrator ever sees them.
package validator

import (
	"github.com/baktainer/baktainer/internal/domain"
	"github.com/baktainer/baktainer/internal/labelschema"
)

// Validate applies the full set of Validator rules from the component
// design: non-null descriptor, running state, non-empty labels, then
// either the LabelSchema verdict (schemaResult non-nil) or the minimal
// legacy checks.
func Validate(c *domain.Container, schemaResult *labelschema.Result) error {
	if c == nil {
		return domain.NewValidationError("", []string{"descriptor is nil"}, nil)
	}
	if c.State != domain.ContainerRunning {
		return domain.NewValidationError(c.Name, []string{"container is not running"}, nil)
	}
	if len(c.Labels) == 0 {
		return domain.NewValidationError(c.Name, []string{"container has no labels"}, nil)
	}

	if schemaResult != nil {
		if !schemaResult.Valid {
			return domain.NewValidationError(c.Name, schemaResult.Errors, nil)
		}
		return nil
	}

	return legacyValidate(c)
}

func legacyValidate(c *domain.Container) error {
	var reasons []string

	if c.Labels[domain.LabelBackup] != "true" {
		reasons = append(reasons, "baktainer.backup is not enabled")
	}
	if c.Engine == "" {
		reasons = append(reasons, "engine is not defined")
	} else if !domain.SupportedEngines[domain.Engine(c.Engine)] {
		reasons = append(reasons, "engine is not supported")
	}
	if c.Engine != string(domain.EngineSQLite) {
		if c.User == "" {
			reasons = append(reasons, "user is required")
		}
		if c.Password == "" {
			reasons = append(reasons, "password is required")
		}
	}

	if len(reasons) > 0 {
		return domain.NewValidationError(c.Name, reasons, nil)
	}
	return nil
}
