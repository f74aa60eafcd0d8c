package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fieldassign/app"
	"github.com/kilianp07/fieldassign/config"
	"github.com/kilianp07/fieldassign/core/assignment"
	"github.com/kilianp07/fieldassign/pkg/export"
)

type assignFlags struct {
	snapshot string
	calls    []string
	dryRun   bool
	force    bool
	actor    string
	format   string
	noConfig bool
}

var assignOpts assignFlags

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Run one assignment batch against a snapshot and print the result",
	Example: `  fieldassign assign --snapshot snap.yaml --calls c1,c2 --dry-run
  fieldassign assign --snapshot snap.yaml --force --actor ops`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runAssign(ctx, assignOpts, cmd.OutOrStdout())
	},
}

func init() {
	f := assignCmd.Flags()
	f.StringVar(&assignOpts.snapshot, "snapshot", "", "YAML or JSON snapshot of calls and engineers")
	f.StringSliceVar(&assignOpts.calls, "calls", nil, "call ids to assign (default: every pending call)")
	f.BoolVar(&assignOpts.dryRun, "dry-run", false, "compute the plan without committing it")
	f.BoolVar(&assignOpts.force, "force", false, "also reassign calls that are already assigned")
	f.StringVar(&assignOpts.actor, "actor", "", "actor recorded on committed assignments")
	f.StringVar(&assignOpts.format, "format", export.FormatJSON, "output format: json or csv")
	f.BoolVar(&assignOpts.noConfig, "no-config", false, "ignore the configuration file and use defaults")
	rootCmd.AddCommand(assignCmd)
}

func runAssign(ctx context.Context, opts assignFlags, out io.Writer) error {
	if opts.format != export.FormatJSON && opts.format != export.FormatCSV {
		return fmt.Errorf("unsupported format %q", opts.format)
	}
	path := cfgPath
	if opts.noConfig {
		path = ""
	} else if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.snapshot != "" {
		cfg.Directory.SnapshotPath = opts.snapshot
	}
	// A one-shot batch writes back into the snapshot directory only.
	cfg.Commit.Mode = config.CommitDirectory
	cfg.Telemetry.Enabled = false
	cfg.Scheduler.Enabled = false

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	ids := make([]string, 0, len(opts.calls))
	for _, id := range opts.calls {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		ids = svc.Directory.PendingCallIDs()
	}
	res, err := svc.Engine.AssignCalls(ctx, assignment.Request{
		CallIDs:       ids,
		DryRun:        opts.dryRun,
		ForceReassign: opts.force,
		ActorID:       opts.actor,
	})
	if err != nil {
		return err
	}
	return export.Write(out, opts.format, res)
}
