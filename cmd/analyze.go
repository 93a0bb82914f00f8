package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/kris-hansen/personaflow/utils/config"
	"github.com/kris-hansen/personaflow/utils/domain"
	"github.com/kris-hansen/personaflow/utils/fileutil"
	"github.com/kris-hansen/personaflow/utils/processor"
	"github.com/kris-hansen/personaflow/utils/scraper"
	"github.com/kris-hansen/personaflow/utils/server"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

var (
	analyzePipeline string
	analyzePersonas []string
	analyzeUser     string
	analyzeVars     map[string]string
	analyzeJSON     bool
	analyzeYAML     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file|url|-]",
	Short: "Run a document through a pipeline of personas",
	Long: `Run a document through a built-in or stored pipeline, or through an ad-hoc
list of personas. The document is a local text file, an http(s) URL whose page
text is extracted, or - for stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if analyzePipeline == "" && len(analyzePersonas) == 0 {
			analyzePipeline = "full_analysis"
		}

		envConfig, _, err := loadEnv()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		deps, err := server.OpenDeps(ctx, envConfig)
		if err != nil {
			return err
		}
		defer deps.Close()

		doc, err := loadDocument(ctx, deps.Scraper, args[0], os.Stdin)
		if err != nil {
			return err
		}
		doc.Variables = analyzeVars

		spinner := processor.NewSpinner(os.Stderr)
		if !term.IsTerminal(int(os.Stderr.Fd())) {
			spinner.Disable()
		}
		defer spinner.Stop()

		var run *domain.RunResult
		if analyzePipeline != "" {
			run, err = deps.Executor.Execute(ctx, analyzePipeline, doc, analyzeUser, processor.WithProgress(spinner))
		} else {
			run, err = deps.Executor.ExecuteSequence(ctx, analyzePersonas, doc, analyzeUser, processor.WithProgress(spinner))
		}
		if err != nil {
			return err
		}

		format := "markdown"
		switch {
		case analyzeJSON:
			format = "json"
		case analyzeYAML:
			format = "yaml"
		}
		return writeRun(cmd.OutOrStdout(), run, format)
	},
}

// writeRun prints run as markdown, json or yaml
func writeRun(w io.Writer, run *domain.RunResult, format string) error {
	switch format {
	case "", "markdown":
		return printMarkdown(w, renderRun(run))
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	case "yaml":
		return writeYAML(w, run)
	}
	return fmt.Errorf("unknown output format %q (markdown, json or yaml)", format)
}

// writeYAML emits v as block-style YAML using its JSON field names and order
func writeYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return err
	}
	blockStyle(&node)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return err
	}
	return enc.Close()
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// loadDocument reads the analysis input named by arg
func loadDocument(ctx context.Context, s *scraper.Scraper, arg string, stdin io.Reader) (processor.Document, error) {
	switch {
	case arg == "-":
		text, err := fileutil.ReadText(stdin)
		if err != nil {
			return processor.Document{}, err
		}
		return processor.Document{Name: "stdin", Content: text}, nil

	case strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://"):
		page, err := s.Fetch(ctx, arg)
		if err != nil {
			return processor.Document{}, err
		}
		return processor.Document{Name: page.Name(), Content: page.Document()}, nil

	default:
		f, err := os.Open(arg)
		if err != nil {
			return processor.Document{}, fmt.Errorf("error opening document: %w", err)
		}
		defer f.Close()
		text, err := fileutil.ReadText(f)
		if err != nil {
			return processor.Document{}, fmt.Errorf("%s: %w", arg, err)
		}
		config.DebugLog("Read %d bytes from %s", len(text), arg)
		return processor.Document{Name: filepath.Base(arg), Content: text}, nil
	}
}

// renderRun formats a run as markdown, one section per persona in execution order
func renderRun(run *domain.RunResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Analysis of %s\n\n", run.DocumentName)
	fmt.Fprintf(&b, "Pipeline `%s`, run `%s`, %d of %d personas completed.\n",
		run.PipelineID, run.ID, run.Metadata.CompletedPersonas, run.Metadata.TotalPersonas)

	for _, out := range run.OrderedOutputs() {
		fmt.Fprintf(&b, "\n## %s\n\n", out.PersonaName)
		switch {
		case out.Failed():
			fmt.Fprintf(&b, "> This step failed: %s\n", out.Error)
		case out.Structured != nil:
			data, err := json.MarshalIndent(out.Structured, "", "  ")
			if err != nil {
				b.WriteString(out.Text)
				b.WriteString("\n")
				continue
			}
			fmt.Fprintf(&b, "```json\n%s\n```\n", data)
		default:
			b.WriteString(strings.TrimSpace(out.Text))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// printMarkdown styles md for the terminal, or writes it unchanged when stdout is not one
func printMarkdown(w io.Writer, md string) error {
	fd := int(os.Stdout.Fd())
	if w != io.Writer(os.Stdout) || !term.IsTerminal(fd) {
		_, err := io.WriteString(w, md)
		return err
	}

	width := 100
	if cols, _, err := term.GetSize(fd); err == nil && cols > 0 && cols < width {
		width = cols
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		config.DebugLog("Error creating markdown renderer: %v", err)
		_, err = io.WriteString(w, md)
		return err
	}
	rendered, err := renderer.Render(md)
	if err != nil {
		_, err = io.WriteString(w, md)
		return err
	}
	_, err = io.WriteString(w, rendered)
	return err
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzePipeline, "pipeline", "p", "", "Pipeline id (default full_analysis)")
	analyzeCmd.Flags().StringSliceVar(&analyzePersonas, "personas", nil, "Comma-separated persona ids to run in order instead of a pipeline")
	analyzeCmd.Flags().StringVar(&analyzeUser, "user", "", "User id recorded with the run")
	analyzeCmd.Flags().StringToStringVar(&analyzeVars, "var", nil, "Template variable as key=value (repeatable)")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the run as JSON")
	analyzeCmd.Flags().BoolVar(&analyzeYAML, "yaml", false, "Print the run as YAML")
	analyzeCmd.MarkFlagsMutuallyExclusive("pipeline", "personas")
	analyzeCmd.MarkFlagsMutuallyExclusive("json", "yaml")
	rootCmd.AddCommand(analyzeCmd)
}
