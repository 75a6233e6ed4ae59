package main

import (
	"context"
	"fmt"

	"github.com/neurodesk/texttemplate/pkg/texttemplate"
	"github.com/spf13/cobra"
)

var tagCmd = cobra.Command{
	Use:   "tag [template]",
	Short: "Print a template after nesting tagging and else-chain rewriting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := readTemplate(context.Background(), cmd, args[0])
		if err != nil {
			return err
		}
		tagged, err := texttemplate.TagNesting(src)
		if err != nil {
			return err
		}
		if noRewrite, _ := cmd.Flags().GetBool("no-rewrite"); !noRewrite {
			tagged = texttemplate.RewriteElseChains(tagged)
		}
		fmt.Fprint(cmd.OutOrStdout(), tagged)
		return nil
	},
}

var treeCmd = cobra.Command{
	Use:   "tree [template]",
	Short: "Print the parsed block tree of a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := readTemplate(context.Background(), cmd, args[0])
		if err != nil {
			return err
		}
		engine, err := newEngine(current.cfg, current.logger)
		if err != nil {
			return err
		}
		tpl, err := engine.Compile(src)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), texttemplate.Pretty(tpl.Doc))
		return nil
	},
}

func init() {
	tagCmd.Flags().Bool("no-rewrite", false, "Stop after nesting tagging")
	addEngineFlags(&treeCmd)
}
