// Package labelschema declares and validates the baktainer.* container
// label surface described in the system's data model.
package labelschema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/baktainer/baktainer/internal/config"
	"github.com/baktainer/baktainer/internal/domain"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Result is the outcome of validating one container's labels.
type Result struct {
	Valid      bool
	Errors     []string
	Warnings   []string
	Normalized *domain.Container
}

// Validate applies the declarative schema to labels and returns a
// normalized Container descriptor (id/name/state supplied by the caller,
// since those come from the runtime, not the labels).
func Validate(id, name string, labels map[string]string, state domain.ContainerState) Result {
	res := Result{Valid: true}

	backupEnabled, err := boolLabel(labels, domain.LabelBackup)
	if err != nil {
		res.fail("baktainer.backup: %v", err)
		return res
	}
	if !backupEnabled {
		res.fail("baktainer.backup is not true; container is not backup-eligible")
		return res
	}

	engineRaw := strings.TrimSpace(labels[domain.LabelDBEngine])
	engine := domain.Engine(strings.ToLower(engineRaw))
	if engineRaw == "" {
		res.fail("baktainer.db.engine is required")
	} else if !domain.SupportedEngines[engine] {
		res.fail("baktainer.db.engine %q is not one of mysql, mariadb, postgres, postgresql, sqlite", engineRaw)
	}

	dbName := strings.TrimSpace(labels[domain.LabelDBName])
	if dbName == "" {
		res.fail("baktainer.db.name is required")
	} else if !namePattern.MatchString(dbName) {
		res.fail("baktainer.db.name %q must match [A-Za-z0-9_-]{1,64}", dbName)
	}

	isSQLite := engine == domain.EngineSQLite
	user := strings.TrimSpace(labels[domain.LabelDBUser])
	password := labels[domain.LabelDBPassword]
	if !isSQLite {
		if user == "" {
			res.fail("baktainer.db.user is required for engine %q", engineRaw)
		}
		if password == "" {
			res.fail("baktainer.db.password is required for engine %q", engineRaw)
		}
	}

	backupName := strings.TrimSpace(labels[domain.LabelName])
	if backupName == "" {
		backupName = name
	} else if !namePattern.MatchString(backupName) {
		res.fail("baktainer.name %q must match [A-Za-z0-9_-]{1,64}", backupName)
	}

	allDatabases := false
	if raw, ok := labels[domain.LabelDBAll]; ok {
		v, err := config.ParseBoolLabel(raw)
		if err != nil {
			res.fail("baktainer.db.all: %v", err)
		} else {
			allDatabases = v
		}
	}

	var compressOverride, encryptOverride *bool
	if raw, ok := labels[domain.LabelCompress]; ok {
		if v, err := config.ParseBoolLabel(raw); err != nil {
			res.fail("baktainer.backup.compress: %v", err)
		} else {
			compressOverride = &v
		}
	}
	if raw, ok := labels[domain.LabelEncrypt]; ok {
		if v, err := config.ParseBoolLabel(raw); err != nil {
			res.fail("baktainer.backup.encrypt: %v", err)
		} else {
			encryptOverride = &v
		}
	}

	retentionDays := 30
	var retentionDaysOverride *int
	if raw, ok := labels[domain.LabelRetentionDays]; ok {
		v, err := config.ParseIntLabel(raw)
		if err != nil {
			res.fail("baktainer.backup.retention.days: %v", err)
		} else if v < 1 || v > 3650 {
			res.fail("baktainer.backup.retention.days must be between 1 and 3650")
		} else {
			retentionDays = v
			retentionDaysOverride = &v
		}
	}
	if retentionDays < 7 {
		res.warn("baktainer.backup.retention.days is less than 7; artifacts will rotate quickly")
	}

	var retentionCountOverride *int
	if raw, ok := labels[domain.LabelRetentionCount]; ok {
		v, err := config.ParseIntLabel(raw)
		if err != nil {
			res.fail("baktainer.backup.retention.count: %v", err)
		} else if v < 0 || v > 1000 {
			res.fail("baktainer.backup.retention.count must be between 0 and 1000")
		} else {
			retentionCountOverride = &v
		}
	}

	priority := domain.PriorityNormal
	if raw, ok := labels[domain.LabelPriority]; ok {
		p := domain.Priority(strings.ToLower(strings.TrimSpace(raw)))
		switch p {
		case domain.PriorityLow, domain.PriorityNormal, domain.PriorityHigh, domain.PriorityCritical:
			priority = p
		default:
			res.fail("baktainer.backup.priority %q is not one of low, normal, high, critical", raw)
		}
	}

	if isSQLite && (user != "" || password != "" || allDatabases) {
		res.warn("sqlite engine does not use db.user, db.password, or db.all")
	}
	if allDatabases && dbName != "*" {
		res.warn("baktainer.db.all is true but baktainer.db.name is not \"*\"")
	}
	for key := range labels {
		if strings.HasPrefix(key, domain.LabelNamespace) && !knownKeys[key] {
			res.warn("unknown label %q under the baktainer.* namespace", key)
		}
	}

	if !res.Valid {
		return res
	}

	res.Normalized = &domain.Container{
		ID:                     id,
		Name:                   name,
		Labels:                 labels,
		State:                  state,
		Engine:                 string(engine),
		Database:               dbName,
		User:                   user,
		Password:               password,
		BackupName:             backupName,
		AllDatabases:           allDatabases,
		CompressOverride:       compressOverride,
		EncryptOverride:        encryptOverride,
		RetentionDaysOverride:  retentionDaysOverride,
		RetentionCountOverride: retentionCountOverride,
		Priority:               priority,
	}
	return res
}

// RequireEncryptionConfigured adds the §4.2 cross-field error when a
// container asks for encryption but the process has no key configured.
func RequireEncryptionConfigured(res *Result, encryptionConfigured bool) {
	if res.Normalized == nil {
		return
	}
	wantsEncrypt := res.Normalized.EncryptOverride != nil && *res.Normalized.EncryptOverride
	if wantsEncrypt && !encryptionConfigured {
		res.Valid = false
		res.Errors = append(res.Errors, "baktainer.backup.encrypt is true but no encryption key is configured")
		res.Normalized = nil
	}
}

var knownKeys = map[string]bool{
	domain.LabelBackup:         true,
	domain.LabelName:           true,
	domain.LabelDBEngine:       true,
	domain.LabelDBName:         true,
	domain.LabelDBUser:         true,
	domain.LabelDBPassword:     true,
	domain.LabelDBAll:          true,
	domain.LabelCompress:       true,
	domain.LabelEncrypt:        true,
	domain.LabelRetentionDays:  true,
	domain.LabelRetentionCount: true,
	domain.LabelPriority:       true,
}

func boolLabel(labels map[string]string, key string) (bool, error) {
	raw, ok := labels[key]
	if !ok {
		return false, nil
	}
	return config.ParseBoolLabel(raw)
}

func (r *Result) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}
