package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/revdel/internal/log"
	"github.com/roach88/revdel/internal/revdel"
	"github.com/roach88/revdel/internal/visibility"
)

// RedactOptions holds flags for the redact command.
type RedactOptions struct {
	*RootOptions
	actorFlags

	Set         string
	Clear       string
	Suppress    bool
	AckCurrent  bool
	Reason      string
	MaxIDs      int
	MetricsFile string

	// OperationIDs allows overriding the operation id generator (for testing).
	// If nil, the coordinator's UUIDv7 generator is used.
	OperationIDs revdel.OperationIDGenerator
}

// NewRedactCommand creates the redact command.
func NewRedactCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RedactOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "redact <kind> <subject> <id>...",
		Short: "Change the visibility of records",
		Long: `Set or clear visibility bits on records of one kind under one subject.

Kinds: revision, archive, oldimage, filearchive, logging.
Bits: content, comment, author, restricted (comma separated).

Exit codes:
  0 - Every id ended up with the requested bits
  1 - The redaction was refused, or some ids or file moves failed
  2 - Command error (bad arguments, config, database not reachable)

Examples:
  revdel redact revision Page 10 11 --set content --actor Admin --reason "copyvio"
  revdel redact revision Page 11 --set content --ack-current --actor Admin
  revdel redact oldimage File:Photo.png 20240102000000!Photo.png --clear content --actor Admin
  revdel redact logging Special:Log/block 7 --suppress --set comment --actor Oversight --can-suppress`,
		Args:          cobra.MinimumNArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRedact(cmd.Context(), opts, args, cmd)
		},
	}

	opts.actorFlags.bind(cmd)
	cmd.Flags().StringVar(&opts.Set, "set", "", "bits to set")
	cmd.Flags().StringVar(&opts.Clear, "clear", "", "bits to clear")
	cmd.Flags().BoolVar(&opts.Suppress, "suppress", false, "also hide the records from administrators")
	cmd.Flags().BoolVar(&opts.AckCurrent, "ack-current", false, "allow hiding the content of the current revision")
	cmd.Flags().StringVar(&opts.Reason, "reason", "", "reason recorded with the change")
	cmd.Flags().IntVar(&opts.MaxIDs, "max-ids", 0, "largest number of ids accepted (0 for the default)")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write run metrics to this file in Prometheus text format")

	return cmd
}

func runRedact(ctx context.Context, opts *RedactOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	tgt, err := parseTarget(args)
	if err != nil {
		return err
	}
	setBits, err := visibility.Parse(opts.Set)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --set", err)
	}
	clearBits, err := visibility.Parse(opts.Clear)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --clear", err)
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

	reg := prometheus.NewRegistry()
	coordOpts := []revdel.CoordinatorOption{
		revdel.WithFileRepo(e.repo),
		revdel.WithPageCache(e.cache),
		revdel.WithNotifier(e.notifier),
		revdel.WithMetrics(revdel.NewMetrics(reg)),
	}
	if opts.OperationIDs != nil {
		coordOpts = append(coordOpts, revdel.WithOperationIDs(opts.OperationIDs))
	}
	if opts.MaxIDs > 0 {
		coordOpts = append(coordOpts, revdel.WithMaxIDs(opts.MaxIDs))
	}
	coord := revdel.NewCoordinator(e.store, coordOpts...)

	formatter.VerboseLog("Redacting %d %s id(s) of %s", len(tgt.IDs), tgt.Kind, tgt.Subject)
	st, runErr := coord.Run(ctx, revdel.Request{
		Kind:       tgt.Kind,
		Subject:    tgt.Subject,
		IDs:        tgt.IDs,
		Set:        setBits,
		Clear:      clearBits,
		Suppress:   opts.Suppress,
		AckCurrent: opts.AckCurrent,
		Actor:      opts.actor(),
		Reason:     opts.Reason,
	})

	if opts.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.MetricsFile, reg); err != nil {
			log.Warn(ctx, "failed to write metrics", log.String("path", opts.MetricsFile), log.Cause(err))
		}
	}

	res := newRedactResult(st)
	if runErr != nil {
		if err := formatter.Error(errorCode(runErr), runErr.Error(), res); err != nil {
			return err
		}
		return WrapExitError(exitCodeFor(runErr), "redaction failed", runErr)
	}

	if err := formatter.Success(res); err != nil {
		return err
	}
	if !st.OK() {
		return NewExitError(ExitFailure,
			fmt.Sprintf("redaction incomplete: %d of %d id(s) failed", len(st.Failed()), len(st.Order)))
	}
	return nil
}
