package cli

import (
	"fmt"
	"time"

	"github.com/edupack/edupack/internal/fetcher"
	"github.com/edupack/edupack/internal/netutil"
	"github.com/edupack/edupack/internal/observability"
	"github.com/edupack/edupack/internal/observability/logging"
	otelobs "github.com/edupack/edupack/internal/observability/otel"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultPullTimeout = 120 * time.Second

// pullCmd installs a remote component archive into the local cache
var pullCmd = &cobra.Command{
	Use:   "pull <ref>",
	Short: "Pull a component archive into the local cache",
	Long: `Downloads a component archive from an HTTPS URL or an OCI registry
and installs it into the local cache under its canonical versioned name.

The archive must carry a component descriptor; anything else is
rejected before it touches the cache.

Examples:
  edupack pull https://components.example.com/Course.Quiz-1.4.cpk
  edupack pull oci://registry.example.com/components/course.quiz:1.4`,
	Args:         cobra.ExactArgs(1),
	RunE:         runPull,
	SilenceUsage: true,
}

var (
	pullCacheFlag        string
	pullTimeoutFlag      time.Duration
	pullAllowPrivateFlag bool
)

func init() {
	pullCmd.Flags().StringVar(&pullCacheFlag, "cache", defaultCacheDir, "Component cache directory")
	pullCmd.Flags().DurationVarP(&pullTimeoutFlag, "timeout", "t", defaultPullTimeout, "Timeout for the download")
	pullCmd.Flags().BoolVar(&pullAllowPrivateFlag, "unsafe-allow-private-hosts", false, "Allow downloads from private or reserved addresses")
}

// GetPullCmd export
func GetPullCmd() *cobra.Command {
	return pullCmd
}

func runPull(cmd *cobra.Command, args []string) (err error) {
	rawRef := args[0]
	ctx := cmd.Context()
	log := logging.From(ctx)
	start := time.Now()

	if h := otelobs.From(ctx); h != nil {
		var span trace.Span
		ctx, span = h.Tracer.Start(ctx, "edupack.pull",
			trace.WithAttributes(
				attribute.String("edupack.op_id", observability.OpID(ctx)),
				attribute.String("edupack.command", "pull"),
				attribute.String("edupack.ref", rawRef),
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

	log.Event(ctx, "pull.start", map[string]any{"ref": rawRef})

	var resultStatus string
	defer func() {
		log.Event(ctx, "pull.complete", map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
			"result":      resultStatus,
		})
	}()
	resultStatus = "fail"

	ref, err := fetcher.ParseRef(rawRef)
	if err != nil {
		return fmt.Errorf("invalid reference: %w", err)
	}

	cfg := netutil.DefaultConfig()
	cfg.AllowPrivateHosts = pullAllowPrivateFlag
	cfg.Timeout = pullTimeoutFlag

	f := &fetcher.Fetcher{CacheDir: pullCacheFlag, Config: cfg}
	result, err := f.Fetch(ctx, ref)
	if err != nil {
		return fmt.Errorf("pull failed: %w", err)
	}

	resultStatus = "success"
	log.Event(ctx, "pull.installed", map[string]any{
		"component": result.Component.Key(),
		"file":      result.FileName,
		"sha256":    result.SHA256,
	})

	fmt.Printf("%s✓ Installed %s%s\n", colorGreen, result.FileName, colorReset)
	fmt.Printf("  Component: %s\n", result.Component.String())
	if result.SHA256 != "" {
		fmt.Printf("  SHA256: %s\n", result.SHA256)
	}
	if result.Digest != "" {
		fmt.Printf("  Digest: %s\n", result.Digest)
	}
	return nil
}
