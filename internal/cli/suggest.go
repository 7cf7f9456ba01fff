package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/revdel/internal/log"
	"github.com/roach88/revdel/internal/revdel"
)

// SuggestResult is the subject a redaction should be scoped to.
type SuggestResult struct {
	Kind      string         `json:"kind"`
	Subject   revdel.Subject `json:"subject"`
	Target    string         `json:"target"`
	Unchanged bool           `json:"unchanged"`
}

// String renders the suggestion for text output.
func (r *SuggestResult) String() string {
	return r.Target + "\n"
}

// NewSuggestTargetCommand creates the suggest-target command.
func NewSuggestTargetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest-target <kind> <subject> <id>...",
		Short: "Suggest the subject a redaction should target",
		Long: `Suggest the subject to scope a redaction of the given ids to.

Log entries that share one log type move to that type's log listing.
A revision request with an empty subject takes the page of the first id.

Example:
  revdel suggest-target logging Special:Log 7 8
  revdel suggest-target revision "" 10`,
		Args:          cobra.MinimumNArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuggestTarget(cmd.Context(), rootOpts, args, cmd)
		},
	}

	return cmd
}

func runSuggestTarget(ctx context.Context, opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	var (
		tgt target
		err error
	)
	if strings.TrimSpace(args[1]) == "" {
		kind, kerr := revdel.ParseKind(args[0])
		if kerr != nil {
			return WrapExitError(ExitCommandError, "invalid kind", kerr)
		}
		tgt = target{Kind: kind, IDs: args[2:]}
	} else if tgt, err = parseTarget(args); err != nil {
		return err
	}

	e, err := openEnv(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := e.Close(); closeErr != nil {
			log.Warn(ctx, "error closing backends", log.Cause(closeErr))
		}
	}()

	subject, err := revdel.SuggestTarget(ctx, e.store, tgt.Kind, tgt.Subject, tgt.IDs)
	if err != nil {
		_ = formatter.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(exitCodeFor(err), fmt.Sprintf("cannot suggest a target for %s", tgt.Kind), err)
	}

	return formatter.Success(&SuggestResult{
		Kind:      string(tgt.Kind),
		Subject:   subject,
		Target:    subject.String(),
		Unchanged: subject == tgt.Subject,
	})
}
