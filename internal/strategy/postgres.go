package strategy

import "github.com/baktainer/baktainer/internal/domain"

type postgresStrategy struct{}

func (postgresStrategy) Command(opts Options) (*domain.BackupCommand, error) {
	if opts.User == "" || opts.Password == "" {
		return nil, domain.NewValidationError(opts.Database, []string{"user and password are required for postgres"}, nil)
	}
	env := []string{"PGPASSWORD=" + opts.Password}

	if opts.AllDatabases {
		return domain.NewBackupCommand(env, []string{"pg_dumpall", "-U", opts.User})
	}
	if opts.Database == "" {
		return nil, domain.NewValidationError(opts.Database, []string{"database is required unless all=true"}, nil)
	}
	return domain.NewBackupCommand(env, []string{"pg_dump", "-U", opts.User, "-d", opts.Database})
}

func (postgresStrategy) Sniff(firstLines []string) bool {
	return sniffAny(firstLines, "postgresql database dump", "pg_dump", "create", "copy")
}
