package strategy

import "github.com/baktainer/baktainer/internal/domain"

// sqliteStrategy is the instance-method shape DESIGN.md's Open Question
// decision takes as authoritative.
type sqliteStrategy struct{}

func (sqliteStrategy) Command(opts Options) (*domain.BackupCommand, error) {
	if opts.Database == "" {
		return nil, domain.NewValidationError(opts.Database, []string{"database (path) is required for sqlite"}, nil)
	}
	return domain.NewBackupCommand(nil, []string{"sqlite3", opts.Database, ".dump"})
}

func (sqliteStrategy) Sniff(firstLines []string) bool {
	return sniffAny(firstLines, "sqlite", "pragma", "create", "insert")
}
