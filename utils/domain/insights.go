package domain

// Summary is the structured digest of a single run
type Summary struct {
	ExecutiveSummary string   `json:"executive_summary"`
	KeyInsights      []string `json:"key_insights"`
	CriticalFindings []string `json:"critical_findings"`
	Recommendations  []string `json:"recommendations"`
	RiskLevel        string   `json:"risk_level"`
	NextSteps        []string `json:"next_steps"`
}

// FallbackSummary is substituted when the model does not return a usable summary
func FallbackSummary() Summary {
	return Summary{
		ExecutiveSummary: "Analysis completed successfully",
		KeyInsights:      []string{"Analysis results available for review"},
		CriticalFindings: []string{},
		Recommendations:  []string{"Review the detailed analysis results"},
		RiskLevel:        "unknown",
		NextSteps:        []string{"Engage with the analysis through chat"},
	}
}

// Normalize replaces missing lists with empty ones and an absent risk level with "unknown"
func (s *Summary) Normalize() {
	fill(&s.KeyInsights, &s.CriticalFindings, &s.Recommendations, &s.NextSteps)
	if s.RiskLevel == "" {
		s.RiskLevel = "unknown"
	}
}

// Comparison is the structured digest of two or more runs
type Comparison struct {
	Overview        string   `json:"overview"`
	Similarities    []string `json:"similarities"`
	Differences     []string `json:"differences"`
	Trends          []string `json:"trends"`
	Insights        []string `json:"insights"`
	Recommendations []string `json:"recommendations"`
}

// FallbackComparison is substituted when the model does not return a usable comparison
func FallbackComparison() Comparison {
	return Comparison{
		Overview:        "Multiple analyses compared",
		Similarities:    []string{"All analyses completed successfully"},
		Differences:     []string{"Different documents and workflows analyzed"},
		Trends:          []string{"No clear trends identified"},
		Insights:        []string{"Each analysis provides unique insights"},
		Recommendations: []string{"Review each analysis individually"},
	}
}

// Normalize replaces missing lists with empty ones
func (c *Comparison) Normalize() {
	fill(&c.Similarities, &c.Differences, &c.Trends, &c.Insights, &c.Recommendations)
}

func fill(lists ...*[]string) {
	for _, l := range lists {
		if *l == nil {
			*l = []string{}
		}
	}
}
