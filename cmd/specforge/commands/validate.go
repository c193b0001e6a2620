package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/specforge/specforge/internal/orchestrator"
	"github.com/specforge/specforge/internal/printer"
	"github.com/specforge/specforge/internal/spec"
)

var validateCmd = &cobra.Command{
	Use:   "validate <spec-file>",
	Short: "Validate a source spec against the schema",
	Long: `Validate a source specification file without generating anything.

Violations are reported as JSON-pointer locations. The command exits
with code 2 when the spec fails validation, matching the generate
pipeline's validation failures.

Examples:
  specforge validate product.yaml
  specforge validate specs/checkout.json`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	s, err := spec.Load(args[0])
	if err != nil {
		return printer.Error(
			"failed to load spec",
			err.Error(),
			[]string{"Check the path and that the file is valid YAML or JSON"},
		)
	}

	validator, err := spec.NewValidator()
	if err != nil {
		return fmt.Errorf("failed to load spec schema: %w", err)
	}

	result, err := validator.Validate(s)
	if err != nil {
		return fmt.Errorf("validation could not run: %w", err)
	}
	if !result.OK {
		printer.Warning("%s has %d schema violation(s)\n\n", args[0], len(result.Errors))
		for _, fe := range result.Errors {
			printer.Printf("  %s: %s\n", fe.Pointer, fe.Message)
		}
		return &orchestrator.RunError{
			Kind:  orchestrator.KindValidationError,
			Stage: orchestrator.StageValidateSpec,
			Err:   fmt.Errorf("%d schema violation(s)", len(result.Errors)),
		}
	}

	printer.Success("%s is a valid source spec (%q)\n", args[0], s.Meta.Name)
	return nil
}
