package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/specforge/specforge/internal/artifact"
	"github.com/specforge/specforge/internal/audit"
	"github.com/specforge/specforge/internal/filter"
	"github.com/specforge/specforge/internal/inspect"
	"github.com/specforge/specforge/internal/printer"
	"github.com/specforge/specforge/internal/resolver"
	"github.com/specforge/specforge/internal/timespec"
)

var (
	inspectFormat   string
	inspectArtifact string
	inspectEvents   bool
	inspectSince    string
	inspectUntil    string
	inspectStage    string
	inspectLevel    string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <out-dir>",
	Short: "Inspect a generated pack's manifest and audit trail",
	Long: `Inspect a generated pack.

By default the manifest's artifacts are listed as a table. With --events
the audit trail is shown instead, filterable by time range, stage glob,
and level. A single artifact can be looked up by name, path, or unique
prefix.

Examples:
  # List the manifest
  specforge inspect ./pack

  # One artifact, by prefix
  specforge inspect ./pack --artifact prd

  # Audit events from the last hour, errors only
  specforge inspect ./pack --events --since 1h --level error

  # Events for the diagram stages, as JSONL for jq
  specforge inspect ./pack --events --stage 'gen_*' --format jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectFormat, "format", "f", "table", "Output format: table or jsonl")
	inspectCmd.Flags().StringVarP(&inspectArtifact, "artifact", "a", "", "Show one artifact by name, path, or unique prefix")
	inspectCmd.Flags().BoolVarP(&inspectEvents, "events", "e", false, "Show the audit trail instead of the manifest")
	inspectCmd.Flags().StringVar(&inspectSince, "since", "", "Only events at or after this time ('1h30m' or RFC3339)")
	inspectCmd.Flags().StringVar(&inspectUntil, "until", "", "Only events at or before this time ('1h30m' or RFC3339)")
	inspectCmd.Flags().StringVar(&inspectStage, "stage", "", "Only events whose stage matches this glob")
	inspectCmd.Flags().StringVar(&inspectLevel, "level", "", "Only events at this level: info or error")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	outputRoot := args[0]

	format := inspect.OutputFormat(inspectFormat)
	if err := format.Validate(); err != nil {
		return err
	}

	if inspectEvents {
		return inspectAuditTrail(outputRoot, format)
	}
	return inspectManifest(outputRoot, format)
}

func inspectManifest(outputRoot string, format inspect.OutputFormat) error {
	idx, err := artifact.Load(outputRoot)
	if err != nil {
		return printer.Error(
			"failed to load manifest",
			err.Error(),
			[]string{"Point inspect at a directory produced by 'specforge generate'"},
		)
	}

	if inspectArtifact != "" {
		ref, err := resolver.ResolveArtifact(idx, inspectArtifact)
		if err != nil {
			return err
		}
		return inspect.FormatSingleArtifact(os.Stdout, ref)
	}

	if format == inspect.OutputFormatJSONL {
		return inspect.FormatArtifactJSONL(os.Stdout, idx)
	}
	inspect.FormatArtifactTable(os.Stdout, idx)
	return nil
}

func inspectAuditTrail(outputRoot string, format inspect.OutputFormat) error {
	events, err := audit.Read(filepath.Join(outputRoot, AuditLogName))
	if err != nil {
		return fmt.Errorf("failed to read audit trail: %w", err)
	}

	since, until, err := timespec.ParseRange(inspectSince, inspectUntil, time.Now())
	if err != nil {
		return err
	}

	criteria := filter.Criteria{
		Since:     since,
		Until:     until,
		StageGlob: inspectStage,
		Level:     inspectLevel,
	}

	filtered := criteria.Apply(events)
	if format == inspect.OutputFormatJSONL {
		return inspect.FormatEventJSONL(os.Stdout, filtered)
	}
	inspect.FormatEventTable(os.Stdout, filtered)
	return nil
}
