// Package main provides the lrv CLI entry point.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matsen/litreview/internal/endpoints/builtin"
	"github.com/matsen/litreview/internal/git"
	"github.com/matsen/litreview/internal/logging"
	"github.com/matsen/litreview/internal/review"
	"github.com/matsen/litreview/internal/s2"
	"github.com/matsen/litreview/internal/settings"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

var (
	logMode string
	workers int
	timeout time.Duration
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lrv",
	Short: "Git-backed literature review pipeline",
	Long: `lrv runs a systematic literature review as a sequence of operations
on a git repository: load, prep, dedupe, prescreen, pdf-get, pdf-prep,
screen and data, with manual counterparts where automation stops.

Records live in data/records.bib; every operation commits its changes.
All commands output JSON by default for AI agent integration.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		return settings.LoadDotEnv(cwd)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&logMode, "log", "", "Log level: debug, quiet, or empty for warnings")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "Worker pool size for per-record endpoints (0 = default)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Per-record endpoint timeout (0 = default)")
	rootCmd.Version = Version
}

// reporterOutput keeps stdout free for JSON.
func reporterOutput() io.Writer {
	if humanOutput {
		return os.Stdout
	}
	return os.Stderr
}

// mustGlobalConfig loads the user configuration, exits on error.
func mustGlobalConfig() *settings.GlobalConfig {
	cfg, err := settings.LoadGlobalConfig()
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	return cfg
}

// mustLogger builds the debug logger, exits on error.
func mustLogger() *logging.Logger {
	logger, err := logging.New(logMode)
	if err != nil {
		exitWithError(ExitError, "creating logger: %v", err)
	}
	return logger
}

// identity returns the committer of operation commits.
func identity(cfg *settings.GlobalConfig) git.Identity {
	name, email := cfg.Committer()
	return git.Identity{Name: name, Email: email}
}

// mustFindRepository finds the review repository above the working
// directory, exits on error.
func mustFindRepository() string {
	cwd, err := os.Getwd()
	if err != nil {
		exitWithError(ExitError, "getting current directory: %v", err)
	}
	root, err := settings.FindRepository(cwd)
	if err != nil {
		exitWithError(ExitConfigError, "%v\n\nRun 'lrv init' to create a review repository.", err)
	}
	return root
}

// mustOpenManager opens the review repository with the built-in
// endpoints. The caller is responsible for calling Close().
func mustOpenManager() *review.Manager {
	root := mustFindRepository()
	cfg := mustGlobalConfig()
	logger := mustLogger()

	var clientOpts []s2.ClientOption
	if key := cfg.S2APIKey; key != "" {
		clientOpts = append(clientOpts, s2.WithAPIKey(key))
	}
	m, err := review.Open(root, review.Options{
		Logger:         logger,
		Reporter:       logging.NewReporter(reporterOutput()),
		Registry:       builtin.Registry(),
		Identity:       identity(cfg),
		LocalIndexPath: cfg.LocalIndex(root),
		Papers:         s2.NewClient(clientOpts...),
		Workers:        workers,
		Timeout:        timeout,
	})
	if err != nil {
		logger.Sync()
		exitWithError(exitCodeFor(err), "opening repository: %v", err)
	}
	return m
}

// closeManager releases the repository resources and flushes the log.
func closeManager(m *review.Manager) {
	if err := m.Close(); err != nil {
		m.Logger.Warn("closing repository", "error", err)
	}
	m.Logger.Sync()
}
