package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/edupack/edupack/internal/assembler"
	"github.com/edupack/edupack/internal/cache"
	"github.com/edupack/edupack/internal/differ"
	"github.com/edupack/edupack/internal/observability"
	"github.com/edupack/edupack/internal/observability/logging"
	otelobs "github.com/edupack/edupack/internal/observability/otel"
	"github.com/edupack/edupack/internal/resolver"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// diffCmd compares a built package against the current cache
var diffCmd = &cobra.Command{
	Use:   "diff <package>",
	Short: "Compare a built package against the current cache",
	Long: `Reads the manifest out of a built package and compares it against
the manifest a fresh resolve of its main component would produce today.

Reports components that were added, removed, or changed version since
the package was built. A major version change is critical: content
authored against the old major may not render.

Example:
  edupack diff quiz.zip --cache ./components`,
	Args:         cobra.ExactArgs(1),
	RunE:         runDiff,
	SilenceUsage: true,
}

var (
	diffCacheFlag  string
	diffFailOnFlag string
)

func init() {
	diffCmd.Flags().StringVar(&diffCacheFlag, "cache", defaultCacheDir, "Component cache directory")
	diffCmd.Flags().StringVar(&diffFailOnFlag, "fail-on", "critical", "Severity threshold for failure: critical, moderate, or info")
}

// GetDiffCmd export
func GetDiffCmd() *cobra.Command {
	return diffCmd
}

func runDiff(cmd *cobra.Command, args []string) (err error) {
	packagePath := args[0]
	ctx := cmd.Context()
	log := logging.From(ctx)
	start := time.Now()

	if h := otelobs.From(ctx); h != nil {
		var span trace.Span
		ctx, span = h.Tracer.Start(ctx, "edupack.diff",
			trace.WithAttributes(
				attribute.String("edupack.op_id", observability.OpID(ctx)),
				attribute.String("edupack.command", "diff"),
				attribute.String("edupack.package", packagePath),
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

	log.Event(ctx, "diff.start", map[string]any{"package": packagePath})

	var resultStatus string
	defer func() {
		log.Event(ctx, "diff.complete", map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
			"result":      resultStatus,
		})
	}()
	resultStatus = "fail"

	failOn, parseErr := ParseFailOnLevel(diffFailOnFlag)
	if parseErr != nil {
		return parseErr
	}

	built, err := assembler.ReadManifest(packagePath)
	if err != nil {
		return fmt.Errorf("failed to read package manifest: %w", err)
	}

	store := cache.NewStore(diffCacheFlag)
	closure, err := resolver.New(&resolver.CacheSource{Store: store}).Resolve(ctx, built.MainComponent)
	if err != nil {
		return fmt.Errorf("failed to resolve %s against the current cache: %w", built.MainComponent, err)
	}

	// Built manifests also carry layout components the resolver never sees,
	// so the comparison baseline must go through the same layout detection
	// the build did or every layout component shows up as removed.
	deps, err := assembler.EffectiveDependencies(store, closure.Components())
	if err != nil {
		return fmt.Errorf("failed to scan cached archives for layout components: %w", err)
	}

	current := assembler.BuildManifest(built.Title, built.Language, built.MainComponent, deps)

	result, err := differ.Compare(built, &current)
	if err != nil {
		return fmt.Errorf("comparison failed: %w", err)
	}

	if !result.HasDrift {
		resultStatus = "success"
		fmt.Printf("%s✓ No drift: the cache still matches %s%s\n", colorGreen, packagePath, colorReset)
		return nil
	}

	fmt.Printf("Drift against %s:\n\n", packagePath)
	for _, d := range result.Drifts {
		printDriftItem(d)
	}

	failed := false
	for _, d := range result.Drifts {
		if failOn.ShouldFail(d.Severity) {
			failed = true
			break
		}
	}
	if failed {
		// Exit directly so the drift listing stays the last thing on screen.
		os.Exit(1)
	}

	resultStatus = "success"
	return nil
}

func printDriftItem(d differ.DriftItem) {
	color := ""
	switch d.Severity {
	case differ.SeverityCritical:
		color = colorRed
	case differ.SeverityModerate:
		color = colorYellow
	}

	fmt.Printf("%s[%s] %s%s\n", color, driftIcon(d.Type), d.Identifier, colorReset)
	fmt.Printf("  %s\n", d.Message)
	if d.OldValue != "" && d.NewValue != "" {
		fmt.Printf("  %s -> %s\n", d.OldValue, d.NewValue)
	}
	fmt.Println()
}

func driftIcon(t differ.DriftType) string {
	switch t {
	case differ.DriftComponentAdded:
		return "+"
	case differ.DriftComponentRemoved:
		return "-"
	case differ.DriftVersionChanged:
		return "~"
	default:
		return "?"
	}
}
