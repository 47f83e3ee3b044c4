// Package cmd provides the command-line interface for RebrandCrawl.
// It handles command parsing, configuration loading, and crawler execution.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/masahif/rebrandcrawl/internal/config"
	"github.com/masahif/rebrandcrawl/internal/crawler"
	"github.com/masahif/rebrandcrawl/internal/logging"
	"github.com/masahif/rebrandcrawl/internal/storage"
)

// EnvPrefix is prepended to every environment override, e.g. RC_MAX_WORKERS
const EnvPrefix = "RC"

const defaultUserAgent = "RebrandCrawl/1.0"

var (
	version   string
	buildTime string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = NewRootCmd()

// NewRootCmd builds the rebrandcrawl command with all of its flags
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebrandcrawl [start-url]",
		Short: "Crawl a site and report pages that still carry its old brand",
		Long: `RebrandCrawl crawls every page of a single domain and reports pages
mentioning the old brand next to the new one, and pages linking to
deprecated domains.

Successfully checked URLs go to checked.txt, failures to error.txt and
pages with old-domain links to old_urls.txt inside the output directory.
With --resume, URLs already in checked.txt are skipped.`,
		Args:          cobra.MaximumNArgs(1),
		RunE:          runCrawler,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	def := config.DefaultConfig()

	// Configuration file flag
	cmd.PersistentFlags().String("config", "", "config file (default is ./rebrandcrawl.yml or "+filepath.Join(config.ConfigDir(), "rebrandcrawl.yml")+")")

	// Configuration management flags
	cmd.Flags().Bool("show-config", false, "Display current configuration in YAML format and exit")

	// Basic crawling flags
	cmd.Flags().IntP("workers", "w", def.MaxWorkers, "Number of concurrent workers")
	cmd.Flags().DurationP("timeout", "t", def.RequestTimeout, "Per-request timeout")
	cmd.Flags().Int("retries", def.MaxRetries, "Fetch attempts per URL")
	cmd.Flags().DurationP("delay", "r", def.RequestDelay, "Delay after each successful fetch")
	cmd.Flags().Duration("backoff", def.BackoffDelay, "Base retry backoff (multiplied by the attempt number)")
	cmd.Flags().Bool("resume", def.Resume, "Skip URLs already listed in checked.txt")
	cmd.Flags().StringP("user-agent", "u", def.UserAgent, "HTTP User-Agent header")
	cmd.Flags().Int64("max-body-bytes", def.MaxBodyBytes, "Maximum response body size")
	cmd.Flags().Float64("rate-limit", def.RateLimit, "Requests per second per host (0=unlimited)")

	// HTTP Headers flags
	cmd.Flags().StringSliceP("header", "H", []string{}, "Custom HTTP headers in 'Name: Value' format (use multiple times for multiple headers)")

	// URL filtering flags
	cmd.Flags().StringSlice("exclude-patterns", []string{}, "Extra regex patterns for URLs to ignore")

	// Output flags
	cmd.Flags().StringP("output-dir", "o", def.OutputDir, "Directory for checked.txt, error.txt and old_urls.txt")
	cmd.Flags().StringP("database", "d", def.DatabasePath, "Optional SQLite database mirroring the results")

	// Logging flags
	cmd.Flags().String("log-level", def.Log.Level, "Log level: debug, info, warn, error")
	cmd.Flags().String("log-file", def.Log.File, "Log file path (empty = console only)")

	return cmd
}

// flagBindings maps viper keys to command flags
var flagBindings = []struct {
	viperKey string
	flagName string
}{
	{"max_workers", "workers"},
	{"timeout", "timeout"},
	{"max_retries", "retries"},
	{"delay", "delay"},
	{"backoff_delay", "backoff"},
	{"resume", "resume"},
	{"user_agent", "user-agent"},
	{"max_body_bytes", "max-body-bytes"},
	{"rate_limit", "rate-limit"},
	{"headers", "header"},
	{"exclude_patterns", "exclude-patterns"},
	{"output_dir", "output-dir"},
	{"database_path", "database"},
	{"log.level", "log-level"},
	{"log.file", "log-file"},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the crawl.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	resetBoolFlags(rootCmd, "help", "version")
	return rootCmd.ExecuteContext(ctx)
}

// resetBoolFlags clears flags a previous Execute left set on cmd
func resetBoolFlags(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if f := cmd.Flags().Lookup(name); f != nil {
			_ = f.Value.Set("false")
			f.Changed = false
		}
	}
}

// SetVersionInfo sets version information for the CLI
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

// setDefaults registers every configuration key so that env overrides and
// config files apply to nested keys as well.
func setDefaults(v *viper.Viper) {
	def := config.DefaultConfig()
	v.SetDefault("start_url", def.StartURL)
	v.SetDefault("max_workers", def.MaxWorkers)
	v.SetDefault("timeout", def.RequestTimeout)
	v.SetDefault("max_retries", def.MaxRetries)
	v.SetDefault("delay", def.RequestDelay)
	v.SetDefault("backoff_delay", def.BackoffDelay)
	v.SetDefault("resume", def.Resume)
	v.SetDefault("user_agent", def.UserAgent)
	v.SetDefault("max_body_bytes", def.MaxBodyBytes)
	v.SetDefault("rate_limit", def.RateLimit)
	v.SetDefault("headers", def.Headers)
	v.SetDefault("exclude_patterns", def.ExcludePatterns)
	v.SetDefault("brand.old", def.Brand.Old)
	v.SetDefault("brand.new", def.Brand.New)
	v.SetDefault("brand.stale_domains", def.Brand.StaleDomains)
	v.SetDefault("output_dir", def.OutputDir)
	v.SetDefault("database_path", def.DatabasePath)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("log.max_size_mb", def.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", def.Log.MaxBackups)
}

// initConfig reads in config file and ENV variables if set.
func initConfig(v *viper.Viper, cfgFile string, stderr io.Writer) error {
	if cfgFile != "" {
		// Use config file from the flag.
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(config.ConfigDir())
		v.SetConfigType("yaml")
		v.SetConfigName(config.AppName)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	fmt.Fprintf(stderr, "Using config file: %s\n", v.ConfigFileUsed())
	return nil
}

// loadConfig resolves the effective configuration:
// flags > environment > config file > defaults.
func loadConfig(cmd *cobra.Command, args []string) (*config.CrawlConfig, error) {
	v := viper.New()
	setDefaults(v)

	cfgFile, _ := cmd.Flags().GetString("config")
	if err := initConfig(v, cfgFile, cmd.ErrOrStderr()); err != nil {
		return nil, err
	}

	for _, bind := range flagBindings {
		if err := bindFlag(v, cmd.Flags(), bind.viperKey, bind.flagName); err != nil {
			return nil, err
		}
	}

	cfg := &config.CrawlConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(args) > 0 {
		cfg.StartURL = args[0]
	}

	// Update User-Agent with dynamic version if not explicitly set
	if cfg.UserAgent == defaultUserAgent && !cmd.Flags().Changed("user-agent") {
		cfg.UserAgent = generateUserAgent()
	}

	return cfg, nil
}

func bindFlag(v *viper.Viper, flags *pflag.FlagSet, key, name string) error {
	flag := flags.Lookup(name)
	if flag == nil {
		return fmt.Errorf("unknown flag %q", name)
	}
	if err := v.BindPFlag(key, flag); err != nil {
		return fmt.Errorf("failed to bind flag %s: %w", name, err)
	}
	return nil
}

func generateUserAgent() string {
	if version != "" && version != "dev" {
		return fmt.Sprintf("RebrandCrawl/%s", version)
	}
	return defaultUserAgent
}

func showCurrentConfig(w, stderr io.Writer, cfg *config.CrawlConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	// Validate configuration before showing it
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Warning: Configuration validation failed: %v\n", err)
		fmt.Fprintf(stderr, "Displaying configuration anyway...\n\n")
	}

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}

	fmt.Fprintf(w, "# Current RebrandCrawl Configuration\n")
	fmt.Fprintf(w, "# Generated at: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(w, "# Configuration file search paths: ./%s.yml, %s\n", config.AppName, filepath.Join(config.ConfigDir(), config.AppName+".yml"))
	fmt.Fprintf(w, "# Environment variables prefix: %s_\n\n", EnvPrefix)

	fmt.Fprint(w, string(yamlData))

	fmt.Fprintf(w, "\n# Configuration source priority:\n")
	fmt.Fprintf(w, "# 1. Command-line arguments (highest priority)\n")
	fmt.Fprintf(w, "# 2. Environment variables (%s_ prefix)\n", EnvPrefix)
	fmt.Fprintf(w, "# 3. Configuration file (%s.yml)\n", config.AppName)
	fmt.Fprintf(w, "# 4. Default values (lowest priority)\n")

	return nil
}

func runCrawler(cmd *cobra.Command, args []string) error {
	showConfig, _ := cmd.Flags().GetBool("show-config")

	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	// Handle --show-config: display current configuration and exit
	if showConfig {
		return showCurrentConfig(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logCfg := logging.FromConfig(cfg.Log)
	logCfg.Console = cmd.ErrOrStderr()
	logger, logCloser, err := logging.NewLogger(logCfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer func() { _ = logCloser.Close() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Starting crawler with configuration:\n")
	fmt.Fprintf(out, "  Start URL: %s\n", cfg.StartURL)
	fmt.Fprintf(out, "  Workers: %d\n", cfg.MaxWorkers)
	fmt.Fprintf(out, "  Max Retries: %d\n", cfg.MaxRetries)
	fmt.Fprintf(out, "  Request Delay: %v\n", cfg.RequestDelay)
	fmt.Fprintf(out, "  Output: %s\n", cfg.OutputDir)
	fmt.Fprintf(out, "  Resume: %t\n", cfg.Resume)
	if cfg.DatabasePath != "" {
		fmt.Fprintf(out, "  Database: %s\n", cfg.DatabasePath)
	}

	c, recorder, err := initializeCrawler(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize crawler: %w", err)
	}
	defer func() {
		_ = c.Stop()
		if err := recorder.Close(); err != nil {
			logger.Error("Failed to close recorder", "error", err)
		}
	}()

	summary, err := c.Start(ctx)
	if err != nil {
		return err
	}

	printSummary(out, summary)
	return nil
}

// initializeCrawler opens the recorders and creates the crawler
func initializeCrawler(cfg *config.CrawlConfig, logger *slog.Logger) (*crawler.DefaultCrawler, crawler.Recorder, error) {
	recorder, err := openRecorder(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	c, err := crawler.NewCrawler(cfg, recorder, crawler.WithLogger(logger))
	if err != nil {
		_ = recorder.Close()
		return nil, nil, err
	}
	return c, recorder, nil
}

// openRecorder opens the text log in the output directory and, when a
// database path is configured, the SQLite mirror next to it.
func openRecorder(cfg *config.CrawlConfig, logger *slog.Logger) (crawler.Recorder, error) {
	textLog, err := storage.OpenCrawlLog(cfg.OutputDir, cfg.Resume)
	if err != nil {
		return nil, fmt.Errorf("failed to open crawl log: %w", err)
	}
	if cfg.Resume && !textLog.Resumed() {
		logger.Info("No checked log found, starting a fresh crawl", "output_dir", textLog.Dir())
	}
	logger.Info("Writing crawl log", "files", textLog.Files(), "resumed", textLog.Resumed())

	if cfg.DatabasePath == "" {
		return textLog, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o750); err != nil {
		_ = textLog.Close()
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := storage.NewSQLiteStorage(cfg.DatabasePath, cfg.StartURL)
	if err != nil {
		_ = textLog.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	logger.Info("Mirroring results to database",
		"path", cfg.DatabasePath,
		"run_id", db.RunID(),
		"previous_run_id", db.PreviousRunID())

	return storage.NewMultiRecorder(textLog, db), nil
}

// printSummary writes the end-of-crawl report
func printSummary(w io.Writer, s *crawler.CrawlSummary) {
	fmt.Fprintf(w, "\nCrawl of %s finished in %v\n", s.StartURL, s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Successfully processed %d pages\n", s.Checked)
	fmt.Fprintf(w, "Failed to process %d pages\n", s.Errors)

	if len(s.NameChanges) > 0 {
		fmt.Fprintf(w, "\nFound %d pages with name changes:\n", len(s.NameChanges))
		for _, ev := range s.NameChanges {
			fmt.Fprintf(w, "  %s\n", ev.URL)
		}
	}

	if len(s.StaleReferences) > 0 {
		fmt.Fprintf(w, "\nFound %d pages with old URL references:\n", len(s.StaleReferences))
		for _, f := range s.StaleReferences {
			fmt.Fprintf(w, "  %s\n", f.URL)
			for _, m := range f.Matches {
				fmt.Fprintf(w, "    %s\n", m)
			}
		}
	}
}
