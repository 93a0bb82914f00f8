package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/kris-hansen/personaflow/utils/domain"
	"github.com/kris-hansen/personaflow/utils/persona"
	"github.com/kris-hansen/personaflow/utils/server"
	"github.com/spf13/cobra"
)

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "Inspect analysis personas",
}

var listPersonasCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in and custom personas",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeps(func(ctx context.Context, deps *server.Deps) error {
			printPersonas(cmd.OutOrStdout(), deps.Personas.List(ctx))
			return nil
		})
	},
}

var showPersonaCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a persona and its prompt template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeps(func(ctx context.Context, deps *server.Deps) error {
			p, err := deps.Personas.Get(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", p.Name, p.ID)
			if p.Description != "" {
				fmt.Fprintf(out, "%s\n", p.Description)
			}
			fmt.Fprintf(out, "\nFocus: %s\n", strings.Join(p.FocusTags, ", "))
			fmt.Fprintf(out, "Strategy: %s  Independent: %v  Temperature: %.2f\n", p.Strategy, p.Independent, p.Temperature)
			if p.Model != "" {
				fmt.Fprintf(out, "Model: %s\n", p.Model)
			}
			fmt.Fprintf(out, "\n%s\n", p.Template)
			return nil
		})
	},
}

var validatePersonasCmd = &cobra.Command{
	Use:   "validate [file|dir]",
	Short: "Check a persona definition file or directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := persona.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d personas\n", args[0], len(loaded))
		printPersonas(cmd.OutOrStdout(), loaded)
		return nil
	},
}

func printPersonas(w io.Writer, personas []*domain.Persona) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMODE\tSTRATEGY\tFOCUS")
	for _, p := range personas {
		mode := "sequential"
		if p.Independent {
			mode = "independent"
		}
		name := p.Name
		if p.Custom {
			name += " *"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, name, mode, p.Strategy, strings.Join(p.FocusTags, ","))
	}
	tw.Flush()
}

// withDeps opens the configured services for the duration of fn
func withDeps(fn func(ctx context.Context, deps *server.Deps) error) error {
	envConfig, _, err := loadEnv()
	if err != nil {
		return err
	}
	ctx := context.Background()
	deps, err := server.OpenDeps(ctx, envConfig)
	if err != nil {
		return err
	}
	defer deps.Close()
	return fn(ctx, deps)
}

func init() {
	personasCmd.AddCommand(listPersonasCmd)
	personasCmd.AddCommand(showPersonaCmd)
	personasCmd.AddCommand(validatePersonasCmd)
	rootCmd.AddCommand(personasCmd)
}
