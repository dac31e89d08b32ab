package strategy

import "github.com/baktainer/baktainer/internal/domain"

type mongodbStrategy struct{}

func (mongodbStrategy) Command(opts Options) (*domain.BackupCommand, error) {
	if opts.Database == "" {
		return nil, domain.NewValidationError(opts.Database, []string{"database is required for mongodb"}, nil)
	}
	cmd := []string{"mongodump", "--db", opts.Database}
	if opts.User != "" && opts.Password != "" {
		cmd = append(cmd, "--username", opts.User, "--password", opts.Password)
	}
	return domain.NewBackupCommand(nil, cmd)
}

func (mongodbStrategy) Sniff(firstLines []string) bool {
	return sniffAny(firstLines, "mongodump", "bson", "collection")
}
