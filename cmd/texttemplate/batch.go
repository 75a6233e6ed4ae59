package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/neurodesk/texttemplate/pkg/manifest"
	"github.com/spf13/cobra"
)

var batchCmd = cobra.Command{
	Use:   "batch [manifest]",
	Short: "Render every job of a YAML manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		m, err := manifest.Load(args[0])
		if err != nil {
			return err
		}
		engine, err := newEngine(current.cfg, current.logger)
		if err != nil {
			return err
		}
		cache, err := openCache(current.cfg, current.logger)
		if err != nil {
			return err
		}
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if c, _ := cmd.Flags().GetInt("concurrency"); cmd.Flags().Changed("concurrency") {
			m.Concurrency = c
		}

		r := &manifest.Runner{
			Engine:  engine,
			BaseDir: filepath.Dir(args[0]),
			Cache:   cache,
			Logger:  current.logger,
			DryRun:  dryRun,
		}
		results, err := r.Run(ctx, m)
		if err != nil {
			return err
		}
		for _, res := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d bytes\n", res.Job, res.Output, res.Bytes)
		}
		return nil
	},
}

func init() {
	addEngineFlags(&batchCmd)
	batchCmd.Flags().Bool("dry-run", false, "Render jobs without writing outputs")
	batchCmd.Flags().Int("concurrency", 0, "Override the manifest's job concurrency")
}
