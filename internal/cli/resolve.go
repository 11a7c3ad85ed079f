package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/edupack/edupack/internal/cache"
	"github.com/edupack/edupack/internal/observability"
	"github.com/edupack/edupack/internal/observability/logging"
	otelobs "github.com/edupack/edupack/internal/observability/otel"
	"github.com/edupack/edupack/internal/resolver"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// resolveCmd prints a component's transitive dependency closure
var resolveCmd = &cobra.Command{
	Use:   "resolve <component>",
	Short: "Resolve a component's dependency closure",
	Long: `Walks a component's preloaded dependencies transitively and prints
the deduplicated closure, root included.

Example:
  edupack resolve Course.Quiz --cache ./components`,
	Args:         cobra.ExactArgs(1),
	RunE:         runResolve,
	SilenceUsage: true,
}

var (
	resolveCacheFlag  string
	resolveFormatFlag string
)

func init() {
	resolveCmd.Flags().StringVar(&resolveCacheFlag, "cache", defaultCacheDir, "Component cache directory")
	resolveCmd.Flags().StringVar(&resolveFormatFlag, "format", "text", "Output format: text or json")
}

// GetResolveCmd export
func GetResolveCmd() *cobra.Command {
	return resolveCmd
}

func runResolve(cmd *cobra.Command, args []string) (err error) {
	rootName := args[0]
	ctx := cmd.Context()
	log := logging.From(ctx)
	start := time.Now()

	if h := otelobs.From(ctx); h != nil {
		var span trace.Span
		ctx, span = h.Tracer.Start(ctx, "edupack.resolve",
			trace.WithAttributes(
				attribute.String("edupack.op_id", observability.OpID(ctx)),
				attribute.String("edupack.command", "resolve"),
				attribute.String("edupack.root_component", rootName),
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

	log.Event(ctx, "resolve.start", map[string]any{"root": rootName})

	var resultStatus string
	defer func() {
		log.Event(ctx, "resolve.complete", map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
			"result":      resultStatus,
		})
	}()
	resultStatus = "fail"

	if resolveFormatFlag != "text" && resolveFormatFlag != "json" {
		return fmt.Errorf("invalid format: %s (use text or json)", resolveFormatFlag)
	}

	store := cache.NewStore(resolveCacheFlag)
	closure, err := resolver.New(&resolver.CacheSource{Store: store}).Resolve(ctx, rootName)
	if err != nil {
		return fmt.Errorf("dependency resolution failed: %w", err)
	}

	resultStatus = "success"

	if resolveFormatFlag == "json" {
		out, jsonErr := json.MarshalIndent(closure.Components(), "", "  ")
		if jsonErr != nil {
			return fmt.Errorf("failed to marshal closure: %w", jsonErr)
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("Closure of %s (%d components):\n", rootName, closure.Len())
	for _, c := range closure.Components() {
		fmt.Printf("  %s %d.%d\n", c.MachineName, c.Major, c.Minor)
	}
	return nil
}
