package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/edupack/edupack/internal/assembler"
	"github.com/edupack/edupack/internal/cache"
	"github.com/edupack/edupack/internal/fetcher"
	"github.com/edupack/edupack/internal/models"
	"github.com/edupack/edupack/internal/netutil"
	"github.com/edupack/edupack/internal/observability"
	"github.com/edupack/edupack/internal/observability/logging"
	otelobs "github.com/edupack/edupack/internal/observability/otel"
	"github.com/edupack/edupack/internal/policy"
	"github.com/edupack/edupack/internal/preflight"
	"github.com/edupack/edupack/internal/resolver"
	"github.com/edupack/edupack/internal/schema"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultCacheDir = "components"
)

// colors
const (
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorReset  = "\033[0m"
)

// buildCmd compiles a package out of the local component cache
var buildCmd = &cobra.Command{
	Use:   "build <root-component>",
	Short: "Compile a content package",
	Long: `Resolves the root component's dependency closure against the local
cache, validates the content against the root component's schema, and
assembles everything into a single package archive.

The build is atomic: any missing component, schema violation, or policy
denial aborts it and no output file is written.

Examples:
  edupack build Course.Quiz --content content.json -o quiz.zip
  edupack build Course.Quiz --content content.json --media-dir ./images -o quiz.zip
  edupack build Course.Quiz --content content.json --catalog https://components.example.com -o quiz.zip`,
	Args:         cobra.ExactArgs(1),
	RunE:         runBuild,
	SilenceUsage: true,
}

var (
	buildCacheFlag    string
	buildContentFlag  string
	buildMediaFlag    string
	buildTitleFlag    string
	buildLanguageFlag string
	buildOutputFlag   string
	buildCatalogFlag  string
	buildPolicyFlag   string
	buildSkipValidate bool
	buildFormatFlag   string
)

func init() {
	buildCmd.Flags().StringVar(&buildCacheFlag, "cache", defaultCacheDir, "Component cache directory")
	buildCmd.Flags().StringVarP(&buildContentFlag, "content", "c", "content.json", "Path to the content JSON file")
	buildCmd.Flags().StringVar(&buildMediaFlag, "media-dir", "", "Directory of media files to bundle")
	buildCmd.Flags().StringVar(&buildTitleFlag, "title", "", "Package title (defaults to the root component name)")
	buildCmd.Flags().StringVar(&buildLanguageFlag, "language", "en", "Package language code")
	buildCmd.Flags().StringVarP(&buildOutputFlag, "output", "o", "package.zip", "Output package path")
	buildCmd.Flags().StringVar(&buildCatalogFlag, "catalog", "", "HTTPS catalog URL for components missing from the cache")
	buildCmd.Flags().StringVar(&buildPolicyFlag, "policy", "", "Build policy: baseline, strict, or path to a YAML file")
	buildCmd.Flags().BoolVar(&buildSkipValidate, "skip-validation", false, "Skip content schema validation")
	buildCmd.Flags().StringVar(&buildFormatFlag, "format", "text", "Output format: text or json")
}

// GetBuildCmd export
func GetBuildCmd() *cobra.Command {
	return buildCmd
}

func runBuild(cmd *cobra.Command, args []string) (err error) {
	rootName := args[0]
	ctx := cmd.Context()
	log := logging.From(ctx)
	start := time.Now()

	if h := otelobs.From(ctx); h != nil {
		var span trace.Span
		ctx, span = h.Tracer.Start(ctx, "edupack.build",
			trace.WithAttributes(
				attribute.String("edupack.op_id", observability.OpID(ctx)),
				attribute.String("edupack.command", "build"),
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

	log.Event(ctx, "build.start", map[string]any{"root": rootName})

	var resultStatus string
	defer func() {
		log.Event(ctx, "build.complete", map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
			"result":      resultStatus,
		})
	}()
	resultStatus = "fail"

	if buildFormatFlag != "text" && buildFormatFlag != "json" {
		return fmt.Errorf("invalid format: %s (use text or json)", buildFormatFlag)
	}

	content, err := os.ReadFile(buildContentFlag)
	if err != nil {
		return fmt.Errorf("failed to read content file: %w", err)
	}

	store := cache.NewStore(buildCacheFlag)
	source := &resolver.CacheSource{Store: store}
	if buildCatalogFlag != "" {
		source.Fallback = &fetcher.Catalog{
			BaseURL: buildCatalogFlag,
			Fetcher: &fetcher.Fetcher{CacheDir: buildCacheFlag, Config: netutil.DefaultConfig()},
		}
	}

	closure, err := resolver.New(source).Resolve(ctx, rootName)
	if err != nil {
		return fmt.Errorf("dependency resolution failed: %w", err)
	}
	log.Event(ctx, "build.resolved", map[string]any{"components": closure.Len()})

	report, err := preflight.ValidateClosure(store, closure.Components())
	if err != nil {
		return fmt.Errorf("cache preflight failed: %w", err)
	}
	for _, entry := range report.Entries {
		switch entry.Status {
		case models.CacheCaseMismatch:
			log.Warn("build", "cache name case mismatch", "requested", entry.RequestedName, "matched", entry.MatchedFileName)
		case models.CacheVersionMismatch:
			log.Warn("build", "cache version mismatch", "requested", entry.RequestedName, "detail", entry.Detail)
		}
	}

	if !buildSkipValidate {
		if err := validateContent(ctx, source, rootName, content); err != nil {
			return err
		}
	}

	if buildPolicyFlag != "" {
		if err := enforcePolicy(buildPolicyFlag, report, closure.Components()); err != nil {
			return err
		}
	}

	media, err := loadMedia(buildMediaFlag)
	if err != nil {
		return fmt.Errorf("failed to load media: %w", err)
	}

	title := buildTitleFlag
	if title == "" {
		title = rootName
	}

	result, err := assembler.New(store).Assemble(ctx, assembler.Options{
		Title:         title,
		Language:      buildLanguageFlag,
		RootComponent: rootName,
		Content:       content,
		Closure:       closure.Components(),
		Media:         media,
		OutputPath:    buildOutputFlag,
	})
	if err != nil {
		return fmt.Errorf("assembly failed: %w", err)
	}

	resultStatus = "success"

	if buildFormatFlag == "json" {
		out, jsonErr := json.MarshalIndent(result, "", "  ")
		if jsonErr != nil {
			return fmt.Errorf("failed to marshal result: %w", jsonErr)
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("%s✓ Package built: %s%s\n", colorGreen, result.OutputPath, colorReset)
	fmt.Printf("  Components: %d\n", len(result.Manifest.Dependencies))
	fmt.Printf("  Files: %d\n", result.BundledFiles)
	fmt.Printf("  SHA256: %s\n", result.SHA256)
	return nil
}

// validateContent checks the content tree against the root component's
// declared field schema. Components that declare no schema accept anything.
func validateContent(ctx context.Context, source resolver.MetadataSource, rootName string, content []byte) error {
	meta, err := source.Metadata(ctx, rootName)
	if err != nil {
		return fmt.Errorf("failed to read root component metadata: %w", err)
	}
	if len(meta.Schema) == 0 {
		return nil
	}

	fields, err := schema.Parse(meta.Schema)
	if err != nil {
		return fmt.Errorf("invalid schema declared by %s: %w", rootName, err)
	}

	var tree map[string]any
	if err := json.Unmarshal(content, &tree); err != nil {
		return fmt.Errorf("content file is not a JSON object: %w", err)
	}

	result := schema.Validate(tree, fields)
	if !result.Valid {
		for _, ve := range result.Errors {
			fmt.Fprintf(os.Stderr, "%s✗ %s: %s%s\n", colorRed, ve.FieldPath, ve.Message, colorReset)
		}
		return fmt.Errorf("content validation failed with %d error(s)", len(result.Errors))
	}
	return nil
}

// enforcePolicy evaluates the build policy against the preflight report.
// Any unsatisfied rule aborts the build before assembly starts.
func enforcePolicy(policyFlag string, report *preflight.Report, components []models.ComponentVersion) error {
	config, err := loadPolicyConfig(policyFlag)
	if err != nil {
		return fmt.Errorf("failed to load policy: %w", err)
	}

	engine, err := policy.NewEngine()
	if err != nil {
		return fmt.Errorf("failed to create policy engine: %w", err)
	}

	results, err := engine.Evaluate(config, policy.BuildInput(report, components))
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}

	var failed []string
	for _, r := range results {
		if r.Passed {
			continue
		}
		if r.Severity == models.PolicySeverityWarn {
			fmt.Fprintf(os.Stderr, "%swarning %s: %s%s\n", colorYellow, r.RuleName, r.FailureMsg, colorReset)
			continue
		}
		failed = append(failed, fmt.Sprintf("%s: %s", r.RuleName, r.FailureMsg))
	}
	if len(failed) > 0 {
		for _, f := range failed {
			fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, f, colorReset)
		}
		return fmt.Errorf("build policy %q denied the build", config.Name)
	}
	return nil
}

// loadMedia reads every regular file under dir, keyed by its path relative
// to dir. An empty dir flag means no media.
func loadMedia(dir string) ([]assembler.MediaFile, error) {
	if dir == "" {
		return nil, nil
	}

	var media []assembler.MediaFile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		media = append(media, assembler.MediaFile{Path: filepath.ToSlash(rel), Data: data})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return media, nil
}
