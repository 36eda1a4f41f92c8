package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/statemon/internal/config"
	"github.com/fakeyudi/statemon/internal/logfields"
	"github.com/fakeyudi/statemon/internal/metrics"
	"github.com/fakeyudi/statemon/internal/monitor"
	"github.com/fakeyudi/statemon/internal/vcs"
)

// cfg holds the effective configuration, populated in PersistentPreRunE.
var cfg config.Config

// projectRoot is the absolute project root, populated in PersistentPreRunE.
var projectRoot string

// Global flag values. Zero means "use the configuration".
var (
	rootFlag       string
	dbFlag         string
	ttlFlag        time.Duration
	logLevelFlag   string
	gitBackendFlag string
)

var rootCmd = &cobra.Command{
	Use:          "statemon",
	Short:        "Report recent observations, plan progress and session changes for a project",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		root := rootFlag
		if root == "" {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("resolving working directory: %w", err)
			}
			root = wd
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("resolving project root: %w", err)
		}
		projectRoot = abs

		loaded, err := config.Load(projectRoot)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded

		// Flags override everything.
		if dbFlag != "" {
			cfg.DBPath = dbFlag
		}
		if ttlFlag != 0 {
			cfg.CacheTTLSeconds = int(ttlFlag.Round(time.Second) / time.Second)
		}
		if logLevelFlag != "" {
			cfg.LogLevel = logLevelFlag
		}
		if gitBackendFlag != "" {
			cfg.GitBackend = gitBackendFlag
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		setupLogging(cmd, cfg.LogLevel)
		return nil
	},
}

// setupLogging installs the default slog logger on the command's stderr.
func setupLogging(cmd *cobra.Command, level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}

// newMonitor builds a StateMonitor from the effective configuration. m may
// be nil.
func newMonitor(m *metrics.Metrics) (*monitor.StateMonitor, error) {
	provider, err := vcs.New(cfg.GitBackend, projectRoot)
	if err != nil {
		return nil, err
	}
	mon, err := monitor.New(monitor.Options{
		ProjectRoot:      projectRoot,
		DBPath:           cfg.DBPath,
		PlansDir:         cfg.PlansDir,
		CacheTTL:         cfg.CacheTTL(),
		MaxDiffChars:     cfg.MaxDiffChars,
		ObservationLimit: cfg.ObservationLimit,
		Provider:         provider,
		Logger:           slog.Default(),
		Metrics:          m,
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("Monitor ready",
		logfields.SessionID(mon.SessionID()),
		logfields.Backend(cfg.GitBackend),
		logfields.Path(projectRoot))
	return mon, nil
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetConfig returns the effective configuration for use by subcommands.
func GetConfig() config.Config {
	return cfg
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlag, "root", "", "project root (default: current directory)")
	pf.StringVar(&dbFlag, "db", "", "observation store path, relative to the project root")
	pf.DurationVar(&ttlFlag, "ttl", 0, "cache lifetime for observations and git results (e.g. 30s)")
	pf.StringVar(&logLevelFlag, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&gitBackendFlag, "git-backend", "", "git backend: cli or gogit")
}
