package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var benchCmd = cobra.Command{
	Use:   "bench [template]",
	Short: "Time compiling and rendering a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		iterations, _ := cmd.Flags().GetInt("iterations")
		if iterations <= 0 {
			return fmt.Errorf("iterations must be positive")
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
		softFail := !current.cfg.Strict

		start := time.Now()
		for range iterations {
			if _, err := engine.Render(src, tctx, softFail); err != nil {
				return err
			}
		}
		full := time.Since(start)

		tpl, err := engine.Compile(src)
		if err != nil {
			return err
		}
		start = time.Now()
		for range iterations {
			if _, err := tpl.Execute(tctx, softFail); err != nil {
				return err
			}
		}
		exec := time.Since(start)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "compile+render\t%d\t%s/op\n", iterations, full/time.Duration(iterations))
		fmt.Fprintf(out, "render\t%d\t%s/op\n", iterations, exec/time.Duration(iterations))
		return nil
	},
}

func init() {
	addEngineFlags(&benchCmd)
	addDataFlags(&benchCmd)
	benchCmd.Flags().IntP("iterations", "n", 1000, "Number of renders to time")
}
