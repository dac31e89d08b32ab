package strategy

import "github.com/baktainer/baktainer/internal/domain"

type mysqlStrategy struct{}

func (mysqlStrategy) Command(opts Options) (*domain.BackupCommand, error) {
	if opts.User == "" || opts.Password == "" || opts.Database == "" {
		return nil, domain.NewValidationError(opts.Database, []string{"user, password, and database are required for mysql"}, nil)
	}
	return domain.NewBackupCommand(nil, []string{
		"mysqldump", "-u", opts.User, "-p" + opts.Password, opts.Database,
	})
}

func (mysqlStrategy) Sniff(firstLines []string) bool {
	return sniffAny(firstLines, "mysql dump", "mysqldump", "create", "insert")
}

type mariadbStrategy struct{}

func (mariadbStrategy) Command(opts Options) (*domain.BackupCommand, error) {
	return mysqlStrategy{}.Command(opts)
}

func (mariadbStrategy) Sniff(firstLines []string) bool {
	return sniffAny(firstLines, "mysql dump", "mysqldump", "mariadb dump", "create", "insert")
}
