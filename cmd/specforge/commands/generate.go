package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/specforge/specforge/internal/audit"
	"github.com/specforge/specforge/internal/orchestrator"
	"github.com/specforge/specforge/internal/printer"
	"github.com/specforge/specforge/internal/render"
	"github.com/specforge/specforge/internal/research"
	"github.com/specforge/specforge/internal/spec"
	"github.com/specforge/specforge/pkg/blackboard"
)

// AuditLogName is the audit trail file written under the output root.
const AuditLogName = "audit.jsonl"

var (
	generateSpecPath    string
	generateOut         string
	generatePack        string
	generateAudience    string
	generateFlow        string
	generateTestDepth   string
	generateOffline     bool
	generateResearch    bool
	generateStepBudget  int
	generateStepTimeout time.Duration
	generateDryRun      bool
	generateRedisAddr   string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a documentation pack from a source spec",
	Long: `Generate a documentation pack from a source specification.

The pipeline validates the spec, fills gaps, optionally researches the
problem, then renders the PRD, test plan, diagrams, and roadmap. On
success the output directory holds every artifact plus a sealed
artifact_index.json manifest and an audit.jsonl trail.

Runs are offline by default. Research needs both --offline=false and
--research; either gate alone keeps the run local.

Examples:
  # Generate the balanced pack
  specforge generate --spec product.yaml --out ./pack

  # Both packs with research enabled, cached in Redis
  specforge generate --spec product.yaml --out ./pack --pack both \
    --offline=false --research --redis localhost:6379

  # Preview the artifact plan without writing anything
  specforge generate --spec product.yaml --dry-run`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateSpecPath, "spec", "s", "", "Path to the source spec (YAML or JSON, required)")
	generateCmd.Flags().StringVarP(&generateOut, "out", "o", "./out", "Output directory for the pack")
	generateCmd.Flags().StringVarP(&generatePack, "pack", "p", "balanced", "Pack to generate: balanced, deep, or both")
	generateCmd.Flags().StringVar(&generateAudience, "audience", "balanced", "Audience mode: brief, balanced, or deep")
	generateCmd.Flags().StringVar(&generateFlow, "flow", "agile", "Development flow: agile, kanban, dual_track, or waterfall")
	generateCmd.Flags().StringVar(&generateTestDepth, "test-depth", "pyramid", "Test depth: light, pyramid, or full_matrix")
	generateCmd.Flags().BoolVar(&generateOffline, "offline", true, "Run without network access")
	generateCmd.Flags().BoolVar(&generateResearch, "research", false, "Enable the research stage (needs --offline=false)")
	generateCmd.Flags().IntVar(&generateStepBudget, "step-budget", blackboard.DefaultStepBudget, "Maximum agent invocations per run")
	generateCmd.Flags().DurationVar(&generateStepTimeout, "step-timeout", blackboard.DefaultStepTimeout, "Timeout per pipeline stage")
	generateCmd.Flags().BoolVar(&generateDryRun, "dry-run", false, "Print the artifact plan without writing anything")
	generateCmd.Flags().StringVar(&generateRedisAddr, "redis", "", "Redis address for the research cache (optional)")
	generateCmd.MarkFlagRequired("spec")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	s, err := spec.Load(generateSpecPath)
	if err != nil {
		return printer.Error(
			"failed to load spec",
			err.Error(),
			[]string{"Check the path and that the file is valid YAML or JSON:\n  specforge validate " + generateSpecPath},
		)
	}

	rc, err := buildRunContext()
	if err != nil {
		return err
	}

	if generateDryRun {
		printDryRunPlan(rc, s)
		return nil
	}

	if generateResearch && generateOffline {
		printer.Warning("--research has no effect while --offline is set\n")
	}

	if err := os.MkdirAll(rc.OutputRoot, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	validator, err := spec.NewValidator()
	if err != nil {
		return fmt.Errorf("failed to load spec schema: %w", err)
	}

	log, err := audit.Open(filepath.Join(rc.OutputRoot, AuditLogName), rc.RunID)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer log.Close()

	source, closeSource, err := buildResearchSource(rc)
	if err != nil {
		return err
	}
	defer closeSource()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer.Step("Generating %s pack for %q (run %s)\n", rc.Pack, s.Meta.Name, rc.RunID)

	engine := orchestrator.NewEngine(rc, validator, render.NewRenderer(), source, log)
	result, err := engine.Run(ctx, s)
	if err != nil {
		return err
	}

	printer.Success("Pack complete in %s\n", result.Duration.Round(time.Millisecond))
	printer.Detail("Output", rc.OutputRoot)
	printer.Detail("Manifest", result.ManifestPath)
	printer.Detail("Artifacts", fmt.Sprintf("%d", len(result.Index.Artifacts)))
	printer.Detail("Agent invocations", fmt.Sprintf("%d of %d budgeted", result.Invocations, rc.StepBudget))
	return nil
}

// buildRunContext translates generate flags into a validated RunContext.
func buildRunContext() (blackboard.RunContext, error) {
	rc, err := blackboard.NewRunContext(generateOut)
	if err != nil {
		return rc, err
	}
	rc.Offline = generateOffline
	rc.Research = generateResearch
	rc.Pack = blackboard.Pack(generatePack)
	rc.Dials = blackboard.Dials{
		AudienceMode:    blackboard.AudienceMode(generateAudience),
		DevelopmentFlow: blackboard.DevelopmentFlow(generateFlow),
		TestDepth:       blackboard.TestDepth(generateTestDepth),
	}
	rc.StepBudget = generateStepBudget
	rc.StepTimeout = generateStepTimeout

	if err := rc.Validate(); err != nil {
		return rc, printer.Error(
			"invalid run settings",
			err.Error(),
			[]string{"Run 'specforge generate --help' for the accepted values"},
		)
	}
	return rc, nil
}

// buildResearchSource wires the research source, cache-backed when a Redis
// address is given. Offline runs get no source at all.
func buildResearchSource(rc blackboard.RunContext) (research.Source, func(), error) {
	noop := func() {}
	if !rc.ResearchEnabled() {
		return nil, noop, nil
	}

	var source research.Source = research.EmptySource{}
	if generateRedisAddr == "" {
		return source, noop, nil
	}

	cache := research.NewCache(&redis.Options{Addr: generateRedisAddr})
	if err := cache.Ping(context.Background()); err != nil {
		cache.Close()
		return nil, noop, printer.Error(
			"cannot reach Redis for the research cache",
			err.Error(),
			[]string{
				"Start Redis or fix the address:\n  specforge generate --redis localhost:6379 ...",
				"Drop --redis to research without caching",
			},
		)
	}
	return &research.CachedSource{Inner: source, Cache: cache}, func() { cache.Close() }, nil
}

// printDryRunPlan lists what a run with these settings would produce.
func printDryRunPlan(rc blackboard.RunContext, s *spec.SourceSpec) {
	printer.Step("Dry run: no files will be written\n")
	printer.Detail("Spec", s.Meta.Name)
	printer.Detail("Pack", string(rc.Pack))
	printer.Detail("Output", rc.OutputRoot)
	printer.Detail("Research", fmt.Sprintf("%v", rc.ResearchEnabled()))

	plan := []string{"prd.md", "test_plan.md"}
	if rc.Pack == blackboard.PackDeep || rc.Pack == blackboard.PackBoth {
		plan = append(plan, "contracts.json")
	}
	if s.DiagramScope.IncludeLifecycle {
		plan = append(plan, "diagrams/lifecycle.mmd")
	}
	if s.DiagramScope.IncludeSequence {
		plan = append(plan, "diagrams/sequence.mmd")
	}
	plan = append(plan, "roadmap.md")
	if s.Export.Bundle {
		plan = append(plan, "bundle.zip")
	}
	plan = append(plan, "artifact_index.json", AuditLogName)

	printer.Println()
	for _, name := range plan {
		printer.Printf("  %s\n", name)
	}
}
