package cli

import (
	"github.com/roach88/revdel/internal/revdel"
)

// target is the kind, subject and ids every record command takes as
// positional arguments.
type target struct {
	Kind    revdel.Kind
	Subject revdel.Subject
	IDs     []string
}

// parseTarget reads "<kind> <subject> <id>...". Errors are command errors.
func parseTarget(args []string) (target, error) {
	kind, err := revdel.ParseKind(args[0])
	if err != nil {
		return target{}, WrapExitError(ExitCommandError, "invalid kind", err)
	}
	subject, err := revdel.ParseSubject(args[1])
	if err != nil {
		return target{}, WrapExitError(ExitCommandError, "invalid subject", err)
	}
	return target{Kind: kind, Subject: subject, IDs: args[2:]}, nil
}
