package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/kris-hansen/personaflow/utils/domain"
	"github.com/kris-hansen/personaflow/utils/retention"
	"github.com/kris-hansen/personaflow/utils/server"
	"github.com/spf13/cobra"
)

var (
	runsUser   string
	pruneAge   time.Duration
	summaryRaw bool
	showFormat string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored analysis runs",
}

var listRunsCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeps(func(ctx context.Context, deps *server.Deps) error {
			var runs []*domain.RunResult
			var err error
			if runsUser != "" {
				runs, err = deps.Store.ListRunsForUser(ctx, runsUser)
			} else {
				runs, err = deps.Store.ListRuns(ctx)
			}
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPIPELINE\tDOCUMENT\tSTEPS\tCREATED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\n", r.ID, r.PipelineID, r.DocumentName,
					r.Metadata.CompletedPersonas, r.Metadata.TotalPersonas, r.CreatedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		})
	},
}

var showRunCmd = &cobra.Command{
	Use:   "show [run id]",
	Short: "Print the results of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeps(func(ctx context.Context, deps *server.Deps) error {
			run, err := deps.Store.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			return writeRun(cmd.OutOrStdout(), run, showFormat)
		})
	},
}

var summaryRunCmd = &cobra.Command{
	Use:   "summary [run id]",
	Short: "Ask the model for a structured summary of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeps(func(ctx context.Context, deps *server.Deps) error {
			res, err := deps.Chat.Summarize(ctx, args[0])
			if err != nil {
				return err
			}
			if summaryRaw {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			return printMarkdown(cmd.OutOrStdout(), renderSummary(res.Summary))
		})
	},
}

var pruneRunsCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete runs older than the retention age, with their chat history",
	RunE: func(cmd *cobra.Command, args []string) error {
		envConfig, _, err := loadEnv()
		if err != nil {
			return err
		}
		age := envConfig.Retention.MaxAge
		if pruneAge > 0 {
			age = pruneAge
		}
		return withDeps(func(ctx context.Context, deps *server.Deps) error {
			sweeper, err := retention.NewSweeper(deps.Store, age, envConfig.Retention.Schedule)
			if err != nil {
				return err
			}
			ids, err := sweeper.Sweep(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d runs older than %s\n", len(ids), age)
			return nil
		})
	},
}

var askCmd = &cobra.Command{
	Use:   "ask [run id] [question]",
	Short: "Ask a follow-up question about a run",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeps(func(ctx context.Context, deps *server.Deps) error {
			turn, err := deps.Chat.Ask(ctx, args[0], args[1], runsUser)
			if err != nil {
				return err
			}
			return printMarkdown(cmd.OutOrStdout(), turn.AssistantResponse+"\n")
		})
	},
}

func renderSummary(s domain.Summary) string {
	md := fmt.Sprintf("# Summary\n\n%s\n\nRisk level: **%s**\n", s.ExecutiveSummary, s.RiskLevel)
	sections := []struct {
		title string
		items []string
	}{
		{"Key insights", s.KeyInsights},
		{"Critical findings", s.CriticalFindings},
		{"Recommendations", s.Recommendations},
		{"Next steps", s.NextSteps},
	}
	for _, sec := range sections {
		if len(sec.items) == 0 {
			continue
		}
		md += fmt.Sprintf("\n## %s\n\n", sec.title)
		for _, item := range sec.items {
			md += "- " + item + "\n"
		}
	}
	return md
}

func init() {
	listRunsCmd.Flags().StringVar(&runsUser, "user", "", "Only runs of this user")
	askCmd.Flags().StringVar(&runsUser, "user", "", "User id recorded with the turn")
	showRunCmd.Flags().StringVarP(&showFormat, "format", "f", "markdown", "Output format: markdown, json or yaml")
	pruneRunsCmd.Flags().DurationVar(&pruneAge, "older-than", 0, "Override the configured retention age")
	summaryRunCmd.Flags().BoolVar(&summaryRaw, "json", false, "Print the summary as JSON")
	runsCmd.AddCommand(listRunsCmd)
	runsCmd.AddCommand(showRunCmd)
	runsCmd.AddCommand(summaryRunCmd)
	runsCmd.AddCommand(pruneRunsCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(askCmd)
}
