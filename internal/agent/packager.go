package agent

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/specforge/specforge/internal/spec"
	"github.com/specforge/specforge/pkg/blackboard"
)

// BundleName is the zip the Packager produces when the spec asks for one.
const BundleName = "bundle.zip"

// Packager bundles the run's artifacts into a single zip when the spec's
// export section requests it. Entries are written in sorted path order with
// zeroed timestamps so the bundle bytes are identical across reruns.
type Packager struct{}

func (Packager) Name() string { return "packager" }

func (p Packager) Run(ctx context.Context, rc blackboard.RunContext, s *spec.SourceSpec, board *blackboard.Board) Output {
	if !s.Export.Bundle {
		return ok([]string{"bundling disabled by spec export settings"})
	}

	refs := board.Artifacts()
	sort.Slice(refs, func(i, j int) bool { return refs[i].Path < refs[j].Path })

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, ref := range refs {
		if err := addEntry(zw, rc.OutputRoot, ref.Path); err != nil {
			return fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		return fatal(fmt.Errorf("failed to finalize bundle: %w", err))
	}

	ref, err := writeArtifact(rc, BundleName, "Bundled Output Package", rc.Pack, buf.Bytes())
	if err != nil {
		return fatal(err)
	}
	return ok([]string{fmt.Sprintf("bundled %d artifact(s)", len(refs))}, ref)
}

func addEntry(zw *zip.Writer, root, relPath string) error {
	file, err := os.Open(filepath.Join(root, relPath))
	if err != nil {
		return fmt.Errorf("failed to open %s for bundling: %w", relPath, err)
	}
	defer file.Close()

	// A fixed header keeps the archive byte-identical across machines:
	// no modification times, no OS-specific attributes.
	header := &zip.FileHeader{
		Name:   filepath.ToSlash(relPath),
		Method: zip.Deflate,
	}
	writer, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to add %s to bundle: %w", relPath, err)
	}
	if _, err := io.Copy(writer, file); err != nil {
		return fmt.Errorf("failed to copy %s into bundle: %w", relPath, err)
	}
	return nil
}
