package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/edupack/edupack/internal/cache"
	"github.com/edupack/edupack/internal/observability"
	"github.com/edupack/edupack/internal/observability/logging"
	otelobs "github.com/edupack/edupack/internal/observability/otel"
	"github.com/edupack/edupack/internal/resolver"
	"github.com/edupack/edupack/internal/schema"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// validateCmd checks a content file against a component's field schema
var validateCmd = &cobra.Command{
	Use:   "validate <component>",
	Short: "Validate content against a component's schema",
	Long: `Reads the component's declared field schema from the cache and
validates a content JSON file against it. All violations are reported
in one pass; validation never stops at the first error.

Examples:
  edupack validate Course.Quiz --content content.json
  edupack validate Course.Quiz --content content.json --format=json`,
	Args:         cobra.ExactArgs(1),
	RunE:         runValidate,
	SilenceUsage: true,
}

var (
	validateCacheFlag   string
	validateContentFlag string
	validateFormatFlag  string
)

func init() {
	validateCmd.Flags().StringVar(&validateCacheFlag, "cache", defaultCacheDir, "Component cache directory")
	validateCmd.Flags().StringVarP(&validateContentFlag, "content", "c", "content.json", "Path to the content JSON file")
	validateCmd.Flags().StringVar(&validateFormatFlag, "format", "text", "Output format: text or json")
}

// GetValidateCmd export
func GetValidateCmd() *cobra.Command {
	return validateCmd
}

func runValidate(cmd *cobra.Command, args []string) (err error) {
	componentName := args[0]
	ctx := cmd.Context()
	log := logging.From(ctx)
	start := time.Now()

	if h := otelobs.From(ctx); h != nil {
		var span trace.Span
		ctx, span = h.Tracer.Start(ctx, "edupack.validate",
			trace.WithAttributes(
				attribute.String("edupack.op_id", observability.OpID(ctx)),
				attribute.String("edupack.command", "validate"),
				attribute.String("edupack.component", componentName),
			))
		defer func() {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed")
			} else {
				span.SetStatus(codes.Ok, "success")
			}
			span.End()
		}()
	}

	log.Event(ctx, "validate.start", map[string]any{"component": componentName})

	var resultStatus string
	defer func() {
		log.Event(ctx, "validate.complete", map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
			"result":      resultStatus,
		})
	}()
	resultStatus = "fail"

	if validateFormatFlag != "text" && validateFormatFlag != "json" {
		return fmt.Errorf("invalid format: %s (use text or json)", validateFormatFlag)
	}

	content, err := os.ReadFile(validateContentFlag)
	if err != nil {
		return fmt.Errorf("failed to read content file: %w", err)
	}

	var tree map[string]any
	if err := json.Unmarshal(content, &tree); err != nil {
		return fmt.Errorf("content file is not a JSON object: %w", err)
	}

	store := cache.NewStore(validateCacheFlag)
	source := &resolver.CacheSource{Store: store}
	meta, err := source.Metadata(ctx, componentName)
	if err != nil {
		return fmt.Errorf("failed to read component metadata: %w", err)
	}

	if len(meta.Schema) == 0 {
		resultStatus = "success"
		fmt.Printf("%s declares no schema; any content is accepted\n", componentName)
		return nil
	}

	fields, err := schema.Parse(meta.Schema)
	if err != nil {
		return fmt.Errorf("invalid schema declared by %s: %w", componentName, err)
	}

	result := schema.Validate(tree, fields)

	if validateFormatFlag == "json" {
		out, jsonErr := json.MarshalIndent(result, "", "  ")
		if jsonErr != nil {
			return fmt.Errorf("failed to marshal result: %w", jsonErr)
		}
		fmt.Println(string(out))
		if !result.Valid {
			os.Exit(1)
		}
		resultStatus = "success"
		return nil
	}

	if !result.Valid {
		for _, ve := range result.Errors {
			fmt.Printf("%s✗ %s: %s%s\n", colorRed, ve.FieldPath, ve.Message, colorReset)
		}
		return fmt.Errorf("content validation failed with %d error(s)", len(result.Errors))
	}

	resultStatus = "success"
	fmt.Printf("%s✓ Content is valid against %s%s\n", colorGreen, componentName, colorReset)
	return nil
}
