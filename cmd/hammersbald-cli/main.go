package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/hammersbald/pkg/log"
	"github.com/cuemby/hammersbald/pkg/metrics"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hammersbald-cli",
	Short: "hammersbald-cli - inspect and drive a hammersbald key/value store",
	Long: `hammersbald-cli opens a hammersbald database directory and runs a single
operation against it: create the store, put or get a value, force a
batch commit, or print its on-disk statistics.

Every subcommand opens the database, performs its operation, and
closes it again - this tool is for operations and debugging, not for
embedding in a long-running service.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"hammersbald-cli version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().StringP("data-dir", "d", "", "Path to the database directory")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file (path, cachePages, fillTarget, writerQueueDepth, ...)")
	rootCmd.PersistentFlags().String("metrics-addr", "", "If set, serve /metrics, /health, /ready, /live on this address for the duration of the command")
	rootCmd.PersistentFlags().Int("cache-pages", 0, "Table page cache size, in pages (0: use default or config file value)")
	rootCmd.PersistentFlags().Int("fill-target", 0, "Average slot fill target, 1-64 (0: use default or config file value)")
	rootCmd.PersistentFlags().Int("writer-queue-depth", 0, "Async writer request queue depth (0: use default or config file value)")

	cobra.OnInitialize(initLogging, initMetricsServer)

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(putKeyedCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(getKeyedCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(statCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// initMetricsServer starts the Prometheus/health endpoints in the
// background when --metrics-addr is set. The one-shot CLI commands
// below still register their own component health as they run.
func initMetricsServer() {
	addr, _ := rootCmd.PersistentFlags().GetString("metrics-addr")
	if addr == "" {
		return
	}

	metrics.SetVersion(Version)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())

	metricsLog := log.WithComponent("metrics-server")
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			metricsLog.Error().Err(err).Msg("metrics server exited")
		}
	}()
	metricsLog.Info().Str("addr", addr).Msg("metrics server listening")
}

// loadConfig reads --config if given and returns nil otherwise.
func loadConfig(cmd *cobra.Command) (*FileConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return nil, nil
	}
	return loadFileConfig(path)
}

func commonOptions(cmd *cobra.Command) (dataDir string, fc *FileConfig, opts options, err error) {
	fc, err = loadConfig(cmd)
	if err != nil {
		return "", nil, options{}, err
	}

	flagDir, _ := cmd.Flags().GetString("data-dir")
	dataDir, err = resolveDataDir(flagDir, fc)
	if err != nil {
		return "", nil, options{}, err
	}

	cachePages, _ := cmd.Flags().GetInt("cache-pages")
	fillTarget, _ := cmd.Flags().GetInt("fill-target")
	queueDepth, _ := cmd.Flags().GetInt("writer-queue-depth")

	return dataDir, fc, options{cachePages: cachePages, fillTarget: fillTarget, queueDepth: queueDepth}, nil
}

// options collects the three tunables that can come from either flags
// or the config file, before resolveOptions merges them.
type options struct {
	cachePages int
	fillTarget int
	queueDepth int
}
