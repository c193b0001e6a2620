package inspect

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/specforge/specforge/internal/artifact"
	"github.com/specforge/specforge/internal/audit"
	"github.com/specforge/specforge/pkg/blackboard"
)

// OutputFormat specifies how inspect output is rendered.
type OutputFormat string

const (
	// OutputFormatTable uses a column layout with truncated digests
	OutputFormatTable OutputFormat = "table"

	// OutputFormatJSONL outputs complete records as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// Validate checks if the OutputFormat is a valid enum value.
func (f OutputFormat) Validate() error {
	switch f {
	case OutputFormatTable, OutputFormatJSONL:
		return nil
	default:
		return fmt.Errorf("invalid output format %q (expected table or jsonl)", f)
	}
}

// FormatArtifactTable writes a manifest's artifacts as a formatted table.
// Returns the number of artifacts formatted.
func FormatArtifactTable(w io.Writer, idx *artifact.Index) int {
	if len(idx.Artifacts) == 0 {
		fmt.Fprintf(w, "No artifacts in manifest for run '%s'\n", idx.RunID)
		return 0
	}

	fmt.Fprintf(w, "Run %s, sealed %s (templates %s@%s):\n\n", idx.RunID, idx.GeneratedAt, idx.TemplateSet, idx.TemplateCommit)

	fmt.Fprintf(w, "%-28s %-10s %-12s %s\n", "PATH", "PACK", "SHA256", "PURPOSE")
	fmt.Fprintf(w, "%-28s %-10s %-12s %s\n", strings.Repeat("-", 28), "----------", "------------", strings.Repeat("-", 32))

	for _, ref := range idx.Artifacts {
		fmt.Fprintf(w, "%-28s %-10s %-12s %s\n",
			truncate(ref.Path, 28),
			ref.Pack,
			shortDigest(ref.SHA256),
			truncate(ref.Purpose, 40),
		)
	}

	noun := "artifact"
	if len(idx.Artifacts) != 1 {
		noun = "artifacts"
	}
	fmt.Fprintf(w, "\n%d %s in manifest\n", len(idx.Artifacts), noun)
	return len(idx.Artifacts)
}

// FormatArtifactJSONL writes manifest entries as line-delimited JSON, one
// artifact per line, for processing with tools like jq.
func FormatArtifactJSONL(w io.Writer, idx *artifact.Index) error {
	for _, ref := range idx.Artifacts {
		data, err := json.Marshal(ref)
		if err != nil {
			return fmt.Errorf("failed to serialize artifact %s: %w", ref.Path, err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write artifact: %w", err)
		}
	}
	return nil
}

// FormatSingleArtifact writes one artifact reference as indented JSON.
func FormatSingleArtifact(w io.Writer, ref blackboard.ArtifactRef) error {
	data, err := json.MarshalIndent(ref, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize artifact %s: %w", ref.Path, err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// FormatEventTable writes audit events as a formatted table.
// Returns the number of events formatted.
func FormatEventTable(w io.Writer, events []audit.Event) int {
	if len(events) == 0 {
		fmt.Fprintln(w, "No audit events match")
		return 0
	}

	fmt.Fprintf(w, "%-22s %-6s %-16s %-14s %s\n", "TIME", "LEVEL", "STAGE", "EVENT", "MS")
	fmt.Fprintf(w, "%-22s %-6s %-16s %-14s %s\n", strings.Repeat("-", 22), "------", strings.Repeat("-", 16), strings.Repeat("-", 14), "------")

	for _, ev := range events {
		fmt.Fprintf(w, "%-22s %-6s %-16s %-14s %d\n",
			truncate(ev.TimeISO, 22),
			ev.Level,
			truncate(ev.Stage, 16),
			truncate(ev.Event, 14),
			ev.DurationMS,
		)
	}

	noun := "event"
	if len(events) != 1 {
		noun = "events"
	}
	fmt.Fprintf(w, "\n%d %s\n", len(events), noun)
	return len(events)
}

// FormatEventJSONL writes audit events as line-delimited JSON.
func FormatEventJSONL(w io.Writer, events []audit.Event) error {
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to serialize event: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}
	}
	return nil
}

// shortDigest truncates a sha256 hex digest for table display.
func shortDigest(digest string) string {
	if len(digest) <= 12 {
		return digest
	}
	return digest[:12]
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
