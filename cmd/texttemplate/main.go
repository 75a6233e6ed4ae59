package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/neurodesk/texttemplate/pkg/netcache"
	"github.com/neurodesk/texttemplate/pkg/starlark"
	"github.com/neurodesk/texttemplate/pkg/texttemplate"
	v "github.com/neurodesk/texttemplate/pkg/validator"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "texttemplate.yaml"

type cliConfig struct {
	DefaultFilter string `yaml:"default_filter,omitempty"`
	Strict        bool   `yaml:"strict,omitempty"`
	TrimNewlines  bool   `yaml:"trim_newlines,omitempty"`
	CacheDir      string `yaml:"cache_dir,omitempty"`
	MaxDepth      int    `yaml:"max_depth,omitempty"`
	// Filters maps alias names to filter chains.
	Filters map[string]string `yaml:"filters,omitempty"`
	// FilterScripts are Starlark files whose top-level functions become
	// filters.
	FilterScripts []string `yaml:"filter_scripts,omitempty"`
}

func (c *cliConfig) Validate() error {
	return v.All(
		v.NonNegative(c.MaxDepth, "max_depth"),
		v.MapDict(c.Filters, func(name, chain string) error {
			return v.All(
				v.Identifier(name, "filter alias"),
				v.NotEmpty(chain, fmt.Sprintf("filter alias %q", name)),
			)
		}),
		v.Map(c.FilterScripts, v.NotEmpty, "filter_scripts"),
		v.NoDuplicates(c.FilterScripts, "filter_scripts"),
	)
}

// loadConfig reads the config file. A missing file is only an error when
// the path was given explicitly.
func loadConfig(path string, explicit bool) (*cliConfig, error) {
	cfg := &cliConfig{}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	// Script paths are relative to the config file.
	for i, p := range cfg.FilterScripts {
		if !filepath.IsAbs(p) {
			cfg.FilterScripts[i] = filepath.Join(filepath.Dir(path), p)
		}
	}
	return cfg, nil
}

// applyFlags lets explicitly set flags override config values.
func (c *cliConfig) applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("strict") {
		c.Strict, _ = flags.GetBool("strict")
	}
	if flags.Changed("trim-newlines") {
		c.TrimNewlines, _ = flags.GetBool("trim-newlines")
	}
	if flags.Changed("default-filter") {
		c.DefaultFilter, _ = flags.GetString("default-filter")
	}
	if flags.Changed("max-depth") {
		c.MaxDepth, _ = flags.GetInt("max-depth")
	}
	if flags.Changed("cache-dir") {
		c.CacheDir, _ = flags.GetString("cache-dir")
	}
}

func newEngine(cfg *cliConfig, logger *slog.Logger) (*texttemplate.Engine, error) {
	e := texttemplate.New(
		texttemplate.WithLogger(logger),
		texttemplate.WithTrimNewlines(cfg.TrimNewlines),
		texttemplate.WithMaxDepth(cfg.MaxDepth),
	)
	for _, script := range cfg.FilterScripts {
		src, err := os.ReadFile(script)
		if err != nil {
			return nil, fmt.Errorf("loading filter script: %w", err)
		}
		ev := starlark.NewEvaluator(starlark.WithEngine(e), starlark.WithLogger(logger))
		if err := ev.ExecFile(script, src); err != nil {
			return nil, err
		}
		for name, fn := range ev.ExportFilters() {
			if err := e.RegisterFilter(name, fn); err != nil {
				return nil, fmt.Errorf("%s: %w", script, err)
			}
		}
	}
	// Aliases are registered in sorted order so later ones may use earlier ones.
	if err := v.MapDict(cfg.Filters, e.RegisterAlias); err != nil {
		return nil, err
	}
	if cfg.DefaultFilter != "" {
		if err := e.SetDefaultFilter(cfg.DefaultFilter); err != nil {
			return nil, fmt.Errorf("default filter: %w", err)
		}
	}
	return e, nil
}

func openCache(cfg *cliConfig, logger *slog.Logger) (*netcache.Cache, error) {
	dir := cfg.CacheDir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("locating cache dir: %w", err)
		}
		dir = filepath.Join(base, "texttemplate")
	}
	c := netcache.New(dir)
	c.Logger = logger
	return c, nil
}

// app carries what every command needs after the root pre-run.
type app struct {
	cfg    *cliConfig
	logger *slog.Logger
}

var (
	configPath string
	verbose    bool
	current    app
)

var rootCmd = cobra.Command{
	Use:           "texttemplate",
	Short:         "Render brace-tag text templates against YAML, JSON or Starlark data",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		cfg, err := loadConfig(configPath, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		cfg.applyFlags(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}
		current = app{cfg: cfg, logger: logger}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(&renderCmd)
	rootCmd.AddCommand(&batchCmd)
	rootCmd.AddCommand(&tagCmd)
	rootCmd.AddCommand(&treeCmd)
	rootCmd.AddCommand(&benchCmd)
}

// addEngineFlags registers the flags that override engine config.
func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("strict", false, "Fail on variables missing from the data")
	cmd.Flags().Bool("trim-newlines", false, "Drop the newline after block tags")
	cmd.Flags().String("default-filter", "", "Filter applied to every variable without raw")
	cmd.Flags().Int("max-depth", 0, "Maximum block nesting, 0 for unlimited")
	cmd.Flags().String("cache-dir", "", "Directory for downloaded templates and data")
}

func appMain() error {
	return rootCmd.Execute()
}

func main() {
	if err := appMain(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
