package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kris-hansen/personaflow/utils/domain"
)

const (
	summarySystem    = "You are an expert analyst. Provide a structured summary in JSON format."
	comparisonSystem = "You are an expert analyst. Provide a structured comparison in JSON format."
)

const summaryShape = `Provide the summary in JSON format with the following structure:
{
    "executive_summary": "Brief overview of key findings",
    "key_insights": ["list of most important insights"],
    "critical_findings": ["list of critical findings that need attention"],
    "recommendations": ["list of actionable recommendations"],
    "risk_level": "overall risk assessment (low/medium/high)",
    "next_steps": ["suggested next steps"]
}`

const comparisonShape = `Provide the comparison in JSON format with the following structure:
{
    "overview": "Brief comparison overview",
    "similarities": ["key similarities between analyses"],
    "differences": ["key differences between analyses"],
    "trends": ["any trends or patterns identified"],
    "insights": ["comparative insights"],
    "recommendations": ["recommendations based on comparison"]
}`

// describeRun renders the pipeline, the personas used and every step output
func (s *Service) describeRun(ctx context.Context, run *domain.RunResult) string {
	var b strings.Builder

	if p, err := s.pipelines.GetPipeline(ctx, run.PipelineID); err == nil {
		fmt.Fprintf(&b, "Workflow: %s\n", p.Name)
		fmt.Fprintf(&b, "Description: %s\n", p.Description)
	} else {
		fmt.Fprintf(&b, "Workflow: %s\n", run.PipelineID)
	}
	if run.DocumentName != "" {
		fmt.Fprintf(&b, "Document: %s\n", run.DocumentName)
	}

	b.WriteString("Personas used:\n")
	for _, out := range run.OrderedOutputs() {
		description := ""
		if p, err := s.personas.Get(ctx, out.PersonaID); err == nil {
			description = p.Description
		}
		fmt.Fprintf(&b, "- %s: %s\n", out.PersonaName, description)
	}

	b.WriteString("\nAnalysis Results:\n")
	for _, out := range run.OrderedOutputs() {
		fmt.Fprintf(&b, "\n%s Analysis:\n", out.PersonaName)
		switch {
		case out.Failed():
			fmt.Fprintf(&b, "(this step failed: %s)\n", out.Error)
		case out.Structured != nil:
			pretty, err := json.MarshalIndent(out.Structured, "", "  ")
			if err != nil {
				b.WriteString(out.Text)
			} else {
				b.Write(pretty)
			}
			b.WriteString("\n")
		default:
			b.WriteString(out.Text)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (s *Service) preamble(ctx context.Context, run *domain.RunResult) string {
	return fmt.Sprintf(`You are an AI assistant helping a user understand and explore their document analysis results.

The user has run a document analysis workflow with the following results:

%s
Your role is to:
1. Help the user understand the analysis results
2. Answer questions about specific findings
3. Provide additional insights based on the analysis
4. Help interpret complex findings
5. Suggest follow-up actions or additional analysis

Be conversational, helpful, and provide detailed explanations when needed. If the user asks about something not covered in the analysis, let them know and suggest how they might get that information.`,
		s.describeRun(ctx, run))
}

func (s *Service) summaryPrompt(ctx context.Context, run *domain.RunResult) string {
	return "Based on the following analysis results, provide a concise summary with key insights:\n\n" +
		s.describeRun(ctx, run) + "\n" + summaryShape
}

func (s *Service) comparisonPrompt(ctx context.Context, runs []*domain.RunResult) (string, error) {
	var b strings.Builder
	b.WriteString("Compare the following analyses and provide insights:\n\n")
	b.WriteString("Comparing the following analyses:\n\n")
	for i, run := range runs {
		workflow := run.PipelineID
		if p, err := s.pipelines.GetPipeline(ctx, run.PipelineID); err == nil {
			workflow = p.Name
		}
		results, err := json.MarshalIndent(run.Outputs, "", "  ")
		if err != nil {
			return "", fmt.Errorf("error encoding run %s: %w", run.ID, err)
		}
		fmt.Fprintf(&b, "Analysis %d:\n", i+1)
		fmt.Fprintf(&b, "Document: %s\n", run.DocumentName)
		fmt.Fprintf(&b, "Workflow: %s\n", workflow)
		fmt.Fprintf(&b, "Results: %s\n\n", results)
	}
	b.WriteString(comparisonShape)
	return b.String(), nil
}
