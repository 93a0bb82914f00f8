package processor

import (
	"encoding/json"
	"strings"

	"github.com/kris-hansen/personaflow/utils/domain"
)

// StripCodeFences removes a surrounding ``` or ```json fence from a model reply
func StripCodeFences(reply string) string {
	s := strings.TrimSpace(reply)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// DecodeJSONObject parses reply as a JSON object into v, tolerating code fences
// and prose around the object.
func DecodeJSONObject(reply string, v any) bool {
	s := StripCodeFences(reply)
	if json.Unmarshal([]byte(s), v) == nil {
		return true
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return false
	}
	return json.Unmarshal([]byte(s[start:end+1]), v) == nil
}

// strategyFunc post-processes a successful reply into the step output
type strategyFunc func(out *domain.StepOutput, reply string)

var strategies = map[domain.Strategy]strategyFunc{
	domain.StrategyPrompt: func(out *domain.StepOutput, reply string) {
		out.Text = reply
	},
	domain.StrategyStructured: func(out *domain.StepOutput, reply string) {
		out.Text = reply
		var obj map[string]any
		if DecodeJSONObject(reply, &obj) && obj != nil {
			out.Structured = obj
		}
	},
}

func applyStrategy(s domain.Strategy, out *domain.StepOutput, reply string) {
	fn, ok := strategies[s]
	if !ok {
		fn = strategies[domain.StrategyPrompt]
	}
	fn(out, reply)
}
