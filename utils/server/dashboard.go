package server

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/kris-hansen/personaflow/utils/config"
	"github.com/kris-hansen/personaflow/utils/domain"
)

//go:embed templates/dashboard.html
var templateFS embed.FS

var dashboardTmpl = template.Must(template.New("dashboard.html").Funcs(template.FuncMap{
	"failed": func(r *domain.RunResult) int {
		n := 0
		for _, o := range r.Outputs {
			if o.Failed() {
				n++
			}
		}
		return n
	},
}).ParseFS(templateFS, "templates/dashboard.html"))

// dashboardRuns is how many recent runs the dashboard shows
const dashboardRuns = 20

type dashboardData struct {
	Personas  []*domain.Persona
	Pipelines []*domain.Pipeline
	Runs      []*domain.RunResult
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	pipelines, err := s.deps.Executor.ListPipelines(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	runs, err := s.deps.Store.ListRuns(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if len(runs) > dashboardRuns {
		runs = runs[:dashboardRuns]
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = dashboardTmpl.Execute(w, dashboardData{
		Personas:  s.deps.Personas.List(r.Context()),
		Pipelines: pipelines,
		Runs:      runs,
	})
	if err != nil {
		config.DebugLog("Error rendering dashboard: %v", err)
	}
}
