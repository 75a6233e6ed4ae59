package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/neurodesk/texttemplate/pkg/data"
	"github.com/neurodesk/texttemplate/pkg/netcache"
	"github.com/neurodesk/texttemplate/pkg/texttemplate"
	"github.com/spf13/cobra"
)

// readTemplate reads a template from a file, a URL or stdin ("-").
func readTemplate(ctx context.Context, cmd *cobra.Command, name string) (string, error) {
	switch {
	case name == "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading template from stdin: %w", err)
		}
		return string(b), nil
	case netcache.IsURL(name):
		cache, err := openCache(current.cfg, current.logger)
		if err != nil {
			return "", err
		}
		return netcache.Loader{Cache: cache, Context: ctx}.Load(name)
	default:
		return texttemplate.DirLoader{}.Load(name)
	}
}

// buildContext loads --data files in order, then applies --set assignments.
func buildContext(ctx context.Context, cmd *cobra.Command, engine *texttemplate.Engine) (texttemplate.Context, error) {
	files, _ := cmd.Flags().GetStringArray("data")
	sets, _ := cmd.Flags().GetStringArray("set")

	loader := &data.Loader{Engine: engine, Logger: current.logger}
	for _, f := range files {
		if netcache.IsURL(f) {
			cache, err := openCache(current.cfg, current.logger)
			if err != nil {
				return nil, err
			}
			loader.Cache = cache
			break
		}
	}
	tctx, err := loader.LoadFiles(ctx, files...)
	if err != nil {
		return nil, err
	}
	for _, s := range sets {
		path, val, err := data.ParseAssignment(s)
		if err != nil {
			return nil, err
		}
		if err := data.Set(tctx, path, val); err != nil {
			return nil, err
		}
	}
	return tctx, nil
}

func addDataFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("data", "d", nil, "Data file (.yaml, .yml, .json, .star or URL); repeatable, later files win")
	cmd.Flags().StringArray("set", nil, "Set a variable as path=value; repeatable")
}

var renderCmd = cobra.Command{
	Use:   "render [template]",
	Short: "Render a template file, URL or stdin (-)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		engine, err := newEngine(current.cfg, current.logger)
		if err != nil {
			return err
		}
		src, err := readTemplate(ctx, cmd, args[0])
		if err != nil {
			return err
		}
		tctx, err := buildContext(ctx, cmd, engine)
		if err != nil {
			return err
		}
		out, err := engine.Render(src, tctx, !current.cfg.Strict)
		if err != nil {
			return fmt.Errorf("rendering %s: %w", args[0], err)
		}

		output, _ := cmd.Flags().GetString("output")
		if output == "" || output == "-" {
			_, err := io.WriteString(cmd.OutOrStdout(), out)
			return err
		}
		if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(output, []byte(out), 0o644); err != nil {
			return err
		}
		current.logger.Info("rendered", "template", args[0], "output", output, "bytes", len(out))
		return nil
	},
}

func init() {
	addEngineFlags(&renderCmd)
	addDataFlags(&renderCmd)
	renderCmd.Flags().StringP("output", "o", "", "Write output to a file instead of stdout")
}
