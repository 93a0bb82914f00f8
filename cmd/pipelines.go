package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/kris-hansen/personaflow/utils/server"
	"github.com/spf13/cobra"
)

var pipelineDescription string

var pipelinesCmd = &cobra.Command{
	Use:   "pipelines",
	Short: "List and define persona pipelines",
}

var listPipelinesCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in and stored pipelines",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeps(func(ctx context.Context, deps *server.Deps) error {
			pipelines, err := deps.Executor.ListPipelines(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPERSONAS")
			for _, p := range pipelines {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Name, strings.Join(p.PersonaIDs, " -> "))
			}
			return tw.Flush()
		})
	},
}

var createPipelineCmd = &cobra.Command{
	Use:   "create [name] [persona ids...]",
	Short: "Store a pipeline of personas run in the given order",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeps(func(ctx context.Context, deps *server.Deps) error {
			p, err := deps.Executor.CreatePipeline(ctx, args[0], pipelineDescription, args[1:], "cli")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created pipeline %s (%s)\n", p.ID, p.Name)
			return nil
		})
	},
}

func init() {
	createPipelineCmd.Flags().StringVar(&pipelineDescription, "description", "", "Pipeline description")
	pipelinesCmd.AddCommand(listPipelinesCmd)
	pipelinesCmd.AddCommand(createPipelineCmd)
	rootCmd.AddCommand(pipelinesCmd)
}
