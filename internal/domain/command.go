package domain

import "strings"

// AllowedExecutables is the whitelist every BackupCommand's argv[0] must
// belong to. Enforced centrally so no strategy can bypass it.
var AllowedExecutables = map[string]bool{
	"mysqldump":  true,
	"pg_dump":    true,
	"pg_dumpall": true,
	"sqlite3":    true,
	"mongodump":  true,
}

const forbiddenChars = ";&|`$(){}[]<>"

// BackupCommand is the argv/env shape a Strategy hands to the runtime exec
// call. Every instance is validated at construction time so no caller can
// smuggle a shell metacharacter or control byte into a dump command.
type BackupCommand struct {
	Env []string
	Cmd []string
}

// NewBackupCommand validates cmd/env against the invariants in the data
// model and returns a SecurityError describing the first violation found.
func NewBackupCommand(env, cmd []string) (*BackupCommand, error) {
	if len(cmd) == 0 {
		return nil, NewSecurityError("backup command is empty", nil)
	}

	executable := cmd[0]
	if !AllowedExecutables[executable] {
		return nil, NewSecurityError("command '"+executable+"' is not allowed", nil)
	}

	for _, arg := range cmd {
		if err := validateArg(arg); err != nil {
			return nil, err
		}
	}
	for _, e := range env {
		if err := validateArg(e); err != nil {
			return nil, err
		}
	}

	return &BackupCommand{Env: append([]string{}, env...), Cmd: append([]string{}, cmd...)}, nil
}

func validateArg(arg string) error {
	if strings.ContainsAny(arg, forbiddenChars) {
		return NewSecurityError("argument contains a forbidden character: "+arg, nil)
	}
	if strings.HasPrefix(arg, "/") {
		return NewSecurityError("argument must not be an absolute path: "+arg, nil)
	}
	if strings.Contains(arg, "..") {
		return NewSecurityError("argument must not contain '..': "+arg, nil)
	}
	for i := 0; i < len(arg); i++ {
		b := arg[i]
		if b <= 0x1F || b == 0x7F {
			return NewSecurityError("argument contains a control character", nil)
		}
	}
	return nil
}
