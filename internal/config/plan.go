package config

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	yaml "gopkg.in/yaml.v3"

	"gauntlet/internal/orchestrate"
	"gauntlet/internal/trial"
)

//go:embed plan_schema.json
var planSchemaJSON string

var planSchema = jsonschema.MustCompileString("plan_schema.json", planSchemaJSON)

// PlanCase is one planned input against one subject.
type PlanCase struct {
	Subject  string            `yaml:"subject" json:"subject"`
	Prompt   string            `yaml:"prompt" json:"prompt"`
	Mode     string            `yaml:"mode,omitempty" json:"mode,omitempty"`
	Category string            `yaml:"category,omitempty" json:"category,omitempty"`
	Params   map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
	// Repeat expands the case into this many consecutive trials (default 1).
	Repeat int `yaml:"repeat,omitempty" json:"repeat,omitempty"`
	// Expected is the anticipated classification, used only for the
	// post-run summary. Empty means no expectation.
	Expected trial.Classification `yaml:"expected,omitempty" json:"expected,omitempty"`
	// Enabled defaults to true; set false to keep a case in the file
	// without running it.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

func (pc PlanCase) enabled() bool {
	return pc.Enabled == nil || *pc.Enabled
}

// Plan is a declarative trial suite.
type Plan struct {
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Cases       []PlanCase `yaml:"cases" json:"cases"`
}

// LoadPlan reads a plan file (YAML or JSON), validates it against the plan
// schema, and parses it.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	p, err := ParsePlan(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ParsePlan validates and parses plan bytes. YAML input is normalized to
// JSON first so the schema validation and the strict decode see identical
// structure.
func ParsePlan(data []byte, ext string) (*Plan, error) {
	jsonData, err := toJSON(data, ext)
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	if err := planSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("plan does not match schema: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(jsonData))
	dec.DisallowUnknownFields()
	var p Plan
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return &p, nil
}

func toJSON(data []byte, ext string) ([]byte, error) {
	ext = strings.ToLower(ext)
	if ext == ".json" || (ext == "" && strings.HasPrefix(strings.TrimSpace(string(data)), "{")) {
		return data, nil
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse plan yaml: %w", err)
	}
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("normalize plan: %w", err)
	}
	return jsonData, nil
}

// SuiteCases expands the plan into orchestrator cases, honoring Repeat and
// skipping disabled cases.
func (p *Plan) SuiteCases() []orchestrate.Case {
	var cases []orchestrate.Case
	for _, pc := range p.Cases {
		if !pc.enabled() {
			continue
		}
		n := pc.Repeat
		if n < 1 {
			n = 1
		}
		for i := 0; i < n; i++ {
			cases = append(cases, orchestrate.Case{
				SubjectID: pc.Subject,
				Input: trial.InputSpec{
					Prompt:   pc.Prompt,
					Mode:     pc.Mode,
					Category: pc.Category,
					Params:   pc.Params,
				},
			})
		}
	}
	return cases
}

// ExpectedOutcomes returns the expected classification for each expanded
// case, parallel to SuiteCases. Empty entries carry no expectation.
func (p *Plan) ExpectedOutcomes() []trial.Classification {
	var expected []trial.Classification
	for _, pc := range p.Cases {
		if !pc.enabled() {
			continue
		}
		n := pc.Repeat
		if n < 1 {
			n = 1
		}
		for i := 0; i < n; i++ {
			expected = append(expected, pc.Expected)
		}
	}
	return expected
}

// planCSVHeader is the column contract for plan imports.
var planCSVHeader = []string{"subject", "prompt", "mode", "category", "repeat"}

// ImportPlanCSV reads planned cases from CSV, one case per row.
func ImportPlanCSV(r io.Reader, name string) (*Plan, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read plan csv header: %w", err)
	}
	if len(header) != len(planCSVHeader) {
		return nil, fmt.Errorf("plan csv header has %d columns, want %d", len(header), len(planCSVHeader))
	}
	for i, col := range planCSVHeader {
		if header[i] != col {
			return nil, fmt.Errorf("plan csv column %d is %q, want %q", i, header[i], col)
		}
	}

	p := &Plan{Name: name}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read plan csv line %d: %w", line, err)
		}
		pc := PlanCase{Subject: row[0], Prompt: row[1], Mode: row[2], Category: row[3], Repeat: 1}
		if pc.Subject == "" || pc.Prompt == "" {
			return nil, fmt.Errorf("plan csv line %d: subject and prompt are required", line)
		}
		if row[4] != "" {
			if _, err := fmt.Sscanf(row[4], "%d", &pc.Repeat); err != nil || pc.Repeat < 1 {
				return nil, fmt.Errorf("plan csv line %d: bad repeat %q", line, row[4])
			}
		}
		p.Cases = append(p.Cases, pc)
	}
	if len(p.Cases) == 0 {
		return nil, fmt.Errorf("plan csv has no cases")
	}
	return p, nil
}
