package persona

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kris-hansen/personaflow/utils/domain"
	"github.com/kris-hansen/personaflow/utils/fileutil"
	"gopkg.in/yaml.v3"
)

// fileEntry is one persona in a persona definition file
type fileEntry struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Template    string   `yaml:"prompt_template"`
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
	Model       string   `yaml:"model"`
	Independent bool     `yaml:"independent"`
	Strategy    string   `yaml:"strategy"`
	Focus       []string `yaml:"focus"`
}

type personaFile struct {
	Personas map[string]fileEntry `yaml:"personas"`
}

// Load reads persona definitions from a file, or from every .yaml, .yml and
// .json file in a directory. An id defined twice across files is an error.
func Load(path string) ([]*domain.Persona, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error reading persona path: %w", err)
	}
	if !info.IsDir() {
		return LoadFile(path)
	}
	return LoadDir(path)
}

// LoadDir reads every persona file in dir, in file name order
func LoadDir(dir string) ([]*domain.Persona, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error reading persona directory: %w", err)
	}

	var out []*domain.Persona
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		path := filepath.Join(dir, entry.Name())
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		for _, p := range loaded {
			if prev, dup := seen[p.ID]; dup {
				return nil, fmt.Errorf("persona %s is defined in both %s and %s", p.ID, prev, entry.Name())
			}
			seen[p.ID] = entry.Name()
		}
		out = append(out, loaded...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no persona files found in %s", dir)
	}
	return out, nil
}

// LoadFile reads persona definitions from a YAML or JSON file. Entries are
// keyed by id and returned sorted by id.
func LoadFile(path string) ([]*domain.Persona, error) {
	data, err := fileutil.SafeReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes persona definitions. JSON is accepted as a subset of YAML.
func Parse(data []byte) ([]*domain.Persona, error) {
	var f personaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("error parsing persona file: %w", err)
	}

	ids := make([]string, 0, len(f.Personas))
	for id := range f.Personas {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*domain.Persona, 0, len(ids))
	for _, id := range ids {
		e := f.Personas[id]
		if e.Name == "" || e.Template == "" {
			return nil, fmt.Errorf("persona %s: name and prompt_template are required", id)
		}
		if _, err := Placeholders(e.Template); err != nil {
			return nil, fmt.Errorf("persona %s: invalid prompt template: %w", id, err)
		}
		strategy := domain.Strategy(e.Strategy)
		switch strategy {
		case "":
			strategy = domain.StrategyPrompt
		case domain.StrategyPrompt, domain.StrategyStructured:
		default:
			return nil, fmt.Errorf("persona %s: unknown strategy %q", id, e.Strategy)
		}
		temperature := defaultTemperature
		if e.Temperature != nil {
			if *e.Temperature < 0 || *e.Temperature > 2 {
				return nil, fmt.Errorf("persona %s: temperature must be between 0 and 2", id)
			}
			temperature = *e.Temperature
		}
		out = append(out, &domain.Persona{
			ID:          id,
			Name:        e.Name,
			Description: e.Description,
			Template:    e.Template,
			FocusTags:   e.Focus,
			Temperature: temperature,
			MaxTokens:   e.MaxTokens,
			Model:       e.Model,
			Independent: e.Independent,
			Strategy:    strategy,
		})
	}
	return out, nil
}
