package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/revdel/internal/log"
	"github.com/roach88/revdel/internal/revdel"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	actorFlags
}

// ListResult is the records an actor asked to see, newest first.
type ListResult struct {
	Kind    string        `json:"kind"`
	Subject string        `json:"subject"`
	Records []revdel.View `json:"records"`
	Missing []string      `json:"missing,omitempty"`
}

// String renders the listing for text output.
func (r *ListResult) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s %s\n", r.Kind, r.Subject)
	for _, v := range r.Records {
		marker := " "
		if v.Current {
			marker = "*"
		}
		fmt.Fprintf(&buf, "%s %-26s %-15s %-20s %-24s %s [%s]\n",
			marker, v.ID, v.Timestamp, v.Author, v.Comment, v.Content, v.Bits)
	}
	for _, id := range r.Missing {
		fmt.Fprintf(&buf, "  %s: not found\n", id)
	}
	return buf.String()
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list <kind> <subject> <id>...",
		Short: "Show records as an actor may see them",
		Long: `List records of one kind under one subject, newest first, with every
field the actor may not see replaced by a placeholder. The subject's current
revision is marked with "*".

Example:
  revdel list revision Page 9 10 11 --actor Reader
  revdel list revision Page 9 10 11 --actor Admin --can-view-deleted`,
		Args:          cobra.MinimumNArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), opts, args, cmd)
		},
	}

	opts.actorFlags.bind(cmd)

	return cmd
}

func runList(ctx context.Context, opts *ListOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	tgt, err := parseTarget(args)
	if err != nil {
		return err
	}

	e, err := openEnv(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := e.Close(); closeErr != nil {
			log.Warn(ctx, "error closing backends", log.Cause(closeErr))
		}
	}()

	rs, err := revdel.NewRecordSet(e.store, tgt.Kind, tgt.Subject, tgt.IDs)
	if err != nil {
		_ = formatter.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(exitCodeFor(err), "invalid listing", err)
	}
	if err := rs.Query(ctx); err != nil {
		_ = formatter.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to read records", err)
	}
	current, err := rs.Current(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read current revision", err)
	}

	actor := opts.actor()
	res := &ListResult{
		Kind:    string(tgt.Kind),
		Subject: tgt.Subject.String(),
		Records: make([]revdel.View, 0, len(tgt.IDs)),
		Missing: rs.Missing(),
	}
	for _, rec := range rs.Records() {
		v := revdel.Render(rec, actor)
		v.Current = current != "" && rec.ID() == current
		res.Records = append(res.Records, v)
	}
	formatter.VerboseLog("Listed %d of %d id(s)", len(res.Records), len(rs.IDs()))

	return formatter.Success(res)
}
