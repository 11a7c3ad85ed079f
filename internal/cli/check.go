package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/edupack/edupack/internal/cache"
	"github.com/edupack/edupack/internal/models"
	"github.com/edupack/edupack/internal/observability"
	"github.com/edupack/edupack/internal/observability/logging"
	otelobs "github.com/edupack/edupack/internal/observability/otel"
	"github.com/edupack/edupack/internal/policy"
	"github.com/edupack/edupack/internal/preflight"
	"github.com/edupack/edupack/internal/resolver"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// checkCmd runs cache preflight for a component's closure
var checkCmd = &cobra.Command{
	Use:   "check <component>...",
	Short: "Check the cache against a component's closure",
	Long: `Resolves each component's dependency closure and checks every member
against the local cache, reporting exact matches, case mismatches,
version mismatches, and missing components without modifying anything.

By default only missing components fail the check. Tighten with
--fail-on, or apply a policy for CI gating.

Examples:
  # Preflight against the default cache
  edupack check Course.Quiz

  # Fail on any mismatch, even case-only ones
  edupack check Course.Quiz --fail-on=info

  # Apply the strict policy preset and emit JSON for CI
  edupack check Course.Quiz --policy=strict --format=json`,
	Args:         cobra.MinimumNArgs(1),
	RunE:         runCheck,
	SilenceUsage: true,
}

var (
	checkCacheFlag  string
	checkFailOnFlag string
	checkFormatFlag string
	checkPolicyFlag string
)

func init() {
	checkCmd.Flags().StringVar(&checkCacheFlag, "cache", defaultCacheDir, "Component cache directory")
	checkCmd.Flags().StringVar(&checkFailOnFlag, "fail-on", "critical", "Severity threshold for failure: critical, moderate, or info")
	checkCmd.Flags().StringVar(&checkFormatFlag, "format", "text", "Output format: text or json")
	checkCmd.Flags().StringVar(&checkPolicyFlag, "policy", "", "Policy to apply: baseline, strict, or path to YAML file")
}

// GetCheckCmd export
func GetCheckCmd() *cobra.Command {
	return checkCmd
}

func runCheck(cmd *cobra.Command, args []string) (err error) {
	rootName := strings.Join(args, ", ")
	ctx := cmd.Context()
	log := logging.From(ctx)
	start := time.Now()

	if h := otelobs.From(ctx); h != nil {
		var span trace.Span
		ctx, span = h.Tracer.Start(ctx, "edupack.check",
			trace.WithAttributes(
				attribute.String("edupack.op_id", observability.OpID(ctx)),
				attribute.String("edupack.command", "check"),
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

	log.Event(ctx, "check.start", map[string]any{"root": rootName})

	var resultStatus string
	defer func() {
		log.Event(ctx, "check.complete", map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
			"result":      resultStatus,
		})
	}()
	resultStatus = "fail"

	failOn, parseErr := ParseFailOnLevel(checkFailOnFlag)
	if parseErr != nil {
		return parseErr
	}

	if checkFormatFlag != "text" && checkFormatFlag != "json" {
		return fmt.Errorf("invalid format: %s (use text or json)", checkFormatFlag)
	}

	store := cache.NewStore(checkCacheFlag)
	r := resolver.New(&resolver.CacheSource{Store: store})
	combined := resolver.NewClosure()
	for _, root := range args {
		closure, resolveErr := r.Resolve(ctx, root)
		if resolveErr != nil {
			return fmt.Errorf("dependency resolution of %s failed: %w", root, resolveErr)
		}
		for _, c := range closure.Components() {
			combined.Add(c)
		}
	}

	report, reportErr := preflight.ValidateClosure(store, combined.Components())
	if reportErr != nil {
		return fmt.Errorf("cache preflight failed: %w", reportErr)
	}

	var policyResults []models.PolicyResult
	if checkPolicyFlag != "" {
		config, loadErr := loadPolicyConfig(checkPolicyFlag)
		if loadErr != nil {
			return fmt.Errorf("failed to load policy: %w", loadErr)
		}

		engine, engErr := policy.NewEngine()
		if engErr != nil {
			return fmt.Errorf("failed to create policy engine: %w", engErr)
		}

		policyResults, err = engine.Evaluate(config, policy.BuildInput(report, combined.Components()))
		if err != nil {
			return fmt.Errorf("policy evaluation failed: %w", err)
		}
	}

	checkResult := BuildCheckResult(rootName, checkCacheFlag, report, policyResults, checkPolicyFlag, failOn)

	if checkFormatFlag == "json" {
		jsonOutput, jsonErr := FormatJSONOutput(checkResult)
		if jsonErr != nil {
			return fmt.Errorf("failed to format JSON output: %w", jsonErr)
		}
		fmt.Println(string(jsonOutput))
	} else {
		fmt.Print(FormatTextOutput(checkResult))
	}

	if checkResult.Outcome == "FAIL" {
		// JSON consumers parse stdout; exit directly so cobra's error
		// prefix cannot corrupt it.
		if checkFormatFlag == "json" {
			os.Exit(1)
		}
		if checkResult.Policy != nil && !checkResult.Policy.Passed {
			return fmt.Errorf("policy check failed")
		}
		return fmt.Errorf("cache check failed: %d problem(s) found", checkResult.Summary.Total-checkResult.Summary.Ok)
	}

	resultStatus = "success"
	return nil
}

// loadPolicyConfig resolves a --policy flag value: a preset name or a path
// to a YAML policy file.
func loadPolicyConfig(flag string) (*models.PolicyConfig, error) {
	if preset := policy.GetPreset(flag); preset != nil {
		return preset, nil
	}
	return policy.LoadConfig(flag)
}
