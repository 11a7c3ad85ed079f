package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/edupack/edupack/internal/observability"
	"github.com/edupack/edupack/internal/observability/logging"
	otelobs "github.com/edupack/edupack/internal/observability/otel"
	"github.com/edupack/edupack/internal/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "edupack",
	Short: "Compiler for interactive educational content packages",
	Long: `edupack: dependency resolution and package assembly for
interactive educational content. Resolves component dependency closures
against a local cache and compiles them into portable packages.`,
	Version:           version.BuildVersion(),
	PersistentPreRunE: setupObservability,
}

var (
	logFormatFlag    string
	logLevelFlag     string
	otelFlag         bool
	otelEndpointFlag string
	otelProtocolFlag string
	otelInsecureFlag bool
)

func Execute() {
	ctx := observability.WithOpID(context.Background())
	err := rootCmd.ExecuteContext(ctx)
	shutdownObservability(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logFormatFlag, "log-format", "", "Log format: jsonl (structured events to stderr)")
	pf.StringVar(&logLevelFlag, "log-level", logging.LevelInfo, "Log level: debug, info, warn, or error")
	pf.BoolVar(&otelFlag, "otel", false, "Enable OpenTelemetry tracing")
	pf.StringVar(&otelEndpointFlag, "otel-endpoint", "", "OTLP endpoint (defaults per protocol)")
	pf.StringVar(&otelProtocolFlag, "otel-protocol", otelobs.ProtocolHTTP, "OTLP protocol: otlphttp or otlpgrpc")
	pf.BoolVar(&otelInsecureFlag, "otel-insecure", false, "Allow insecure OTLP connections")

	rootCmd.AddCommand(GetBuildCmd())
	rootCmd.AddCommand(GetResolveCmd())
	rootCmd.AddCommand(GetCheckCmd())
	rootCmd.AddCommand(GetValidateCmd())
	rootCmd.AddCommand(GetDiffCmd())
	rootCmd.AddCommand(GetPullCmd())
}

var activeLogger logging.Logger
var activeOtel *otelobs.Handle

// setupObservability attaches the logger and, when enabled, the OTel handle
// to the command context before any RunE executes.
func setupObservability(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	logCfg := logging.DefaultConfig()
	logCfg.Format = logFormatFlag
	logCfg.Level = logLevelFlag
	log, err := logging.NewLogger(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	activeLogger = log
	ctx = logging.WithLogger(ctx, log)

	if otelFlag {
		otelCfg := otelobs.DefaultConfig()
		otelCfg.Enabled = true
		otelCfg.Endpoint = otelEndpointFlag
		otelCfg.Protocol = otelProtocolFlag
		otelCfg.Insecure = otelInsecureFlag
		if err := otelCfg.Validate(); err != nil {
			return err
		}
		handle, err := otelobs.Init(ctx, otelCfg)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		activeOtel = handle
		ctx = otelobs.WithHandle(ctx, handle)
	}

	cmd.SetContext(ctx)
	return nil
}

func shutdownObservability(ctx context.Context) {
	if activeOtel != nil && activeOtel.Shutdown != nil {
		_ = activeOtel.Shutdown(ctx)
	}
	if activeLogger != nil {
		_ = activeLogger.Close()
	}
}
