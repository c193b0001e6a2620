package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/specforge/specforge/internal/artifact"
	"github.com/specforge/specforge/internal/determinism"
	"github.com/specforge/specforge/internal/printer"
)

var verifyAgainst string

var verifyCmd = &cobra.Command{
	Use:   "verify <out-dir>",
	Short: "Verify a generated pack against its manifest",
	Long: `Verify that every artifact in a generated pack still matches the
sha256 hash recorded in its artifact_index.json manifest.

Hashes are computed over normalized bytes, so a pack survives transfer
across systems with different newline conventions.

With --against, the pack's manifest is also compared to another pack's
manifest with the run ID and generation timestamp ignored. Two runs over
the same spec must compare equal; anything else means generation was not
deterministic.

Examples:
  specforge verify ./pack
  specforge verify ./pack --against ./pack-rerun`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyAgainst, "against", "", "Second pack directory to compare manifests with")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	outputRoot := args[0]

	idx, err := artifact.Load(outputRoot)
	if err != nil {
		return printer.Error(
			"failed to load manifest",
			err.Error(),
			[]string{"Point verify at a directory produced by 'specforge generate'"},
		)
	}

	if verifyAgainst != "" {
		if err := compareManifests(outputRoot, verifyAgainst); err != nil {
			return err
		}
	}

	mismatches := idx.Verify(outputRoot)
	if len(mismatches) > 0 {
		printer.Warning("%d of %d artifact(s) failed verification\n\n", len(mismatches), len(idx.Artifacts))
		for _, m := range mismatches {
			if m.Err != nil {
				printer.Printf("  %s: %v\n", m.Path, m.Err)
				continue
			}
			printer.Printf("  %s: expected %s, got %s\n", m.Path, m.Expected, m.Actual)
		}
		return fmt.Errorf("pack integrity check failed")
	}

	printer.Success("All %d artifact(s) match the manifest (run %s, sealed %s)\n",
		len(idx.Artifacts), idx.RunID, idx.GeneratedAt)
	return nil
}

// compareManifests checks that two packs' manifests are identical once the
// run ID and generation timestamp are stripped.
func compareManifests(dirA, dirB string) error {
	rawA, err := os.ReadFile(filepath.Join(dirA, artifact.ManifestName))
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}
	rawB, err := os.ReadFile(filepath.Join(dirB, artifact.ManifestName))
	if err != nil {
		return fmt.Errorf("failed to read comparison manifest: %w", err)
	}

	if !bytes.Equal(determinism.StripVolatile(rawA), determinism.StripVolatile(rawB)) {
		return printer.Error(
			"manifests differ beyond run ID and timestamp",
			fmt.Sprintf("%s and %s were not generated from identical inputs, or generation was not deterministic.", dirA, dirB),
			[]string{"Diff the two artifact_index.json files to find the drifting artifact"},
		)
	}
	printer.Success("Manifests are identical apart from run ID and timestamp\n")
	return nil
}
