package config

import (
	"strings"
	"testing"

	"gauntlet/internal/trial"
)

const validPlanYAML = `
name: moderation-baseline
description: baseline sweep across subjects
cases:
  - subject: subj-scenery
    prompt: a mountain lake at dawn
    category: scenery
  - subject: subj-people
    prompt: a crowd at a street market
    category: people
    repeat: 3
    params:
      duration: "5"
`

func TestParsePlan_YAML(t *testing.T) {
	p, err := ParsePlan([]byte(validPlanYAML), ".yaml")
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}
	if p.Name != "moderation-baseline" || len(p.Cases) != 2 {
		t.Fatalf("plan = %+v", p)
	}
	if p.Cases[1].Repeat != 3 || p.Cases[1].Params["duration"] != "5" {
		t.Errorf("case 1 = %+v", p.Cases[1])
	}
}

func TestParsePlan_SchemaRejections(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"no name", "cases:\n  - subject: s\n    prompt: p\n"},
		{"no cases", "name: x\n"},
		{"empty cases", "name: x\ncases: []\n"},
		{"case without prompt", "name: x\ncases:\n  - subject: s\n"},
		{"case without subject", "name: x\ncases:\n  - prompt: p\n"},
		{"unknown case field", "name: x\ncases:\n  - subject: s\n    prompt: p\n    weight: 2\n"},
		{"unknown top field", "name: x\nschedule: daily\ncases:\n  - subject: s\n    prompt: p\n"},
		{"zero repeat", "name: x\ncases:\n  - subject: s\n    prompt: p\n    repeat: 0\n"},
		{"non-string param", "name: x\ncases:\n  - subject: s\n    prompt: p\n    params:\n      n: 3\n"},
		{"bad expected", "name: x\ncases:\n  - subject: s\n    prompt: p\n    expected: MAYBE\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePlan([]byte(tt.in), ".yaml"); err == nil {
				t.Error("invalid plan parsed without error")
			}
		})
	}
}

func TestSuiteCases_ExpandsRepeat(t *testing.T) {
	p, err := ParsePlan([]byte(validPlanYAML), ".yaml")
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}
	cases := p.SuiteCases()
	if len(cases) != 4 {
		t.Fatalf("expanded to %d cases, want 4 (1 + 3 repeats)", len(cases))
	}
	for i := 1; i < 4; i++ {
		if cases[i].SubjectID != "subj-people" {
			t.Errorf("case %d subject = %s", i, cases[i].SubjectID)
		}
	}
	if cases[1].Input.Params["duration"] != "5" {
		t.Errorf("params lost in expansion: %+v", cases[1].Input)
	}
}

func TestSuiteCases_SkipsDisabled(t *testing.T) {
	in := `
name: x
cases:
  - subject: subj-a
    prompt: first
    expected: FULL_SUCCESS
    repeat: 2
  - subject: subj-b
    prompt: parked
    enabled: false
  - subject: subj-c
    prompt: third
`
	p, err := ParsePlan([]byte(in), ".yaml")
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}
	cases := p.SuiteCases()
	if len(cases) != 3 {
		t.Fatalf("expanded to %d cases, want 3 (disabled case skipped)", len(cases))
	}
	for _, c := range cases {
		if c.SubjectID == "subj-b" {
			t.Fatal("disabled case was expanded")
		}
	}

	expected := p.ExpectedOutcomes()
	if len(expected) != len(cases) {
		t.Fatalf("ExpectedOutcomes len %d, SuiteCases len %d", len(expected), len(cases))
	}
	if expected[0] != trial.FullSuccess || expected[1] != trial.FullSuccess {
		t.Errorf("repeat did not carry expectation: %v", expected)
	}
	if expected[2] != "" {
		t.Errorf("case without expectation got %q", expected[2])
	}
}

func TestImportPlanCSV(t *testing.T) {
	in := "subject,prompt,mode,category,repeat\n" +
		"subj-a,a mountain lake,,scenery,\n" +
		"subj-b,a crowd at a market,video,people,2\n"
	p, err := ImportPlanCSV(strings.NewReader(in), "imported")
	if err != nil {
		t.Fatalf("ImportPlanCSV: %v", err)
	}
	if len(p.Cases) != 2 {
		t.Fatalf("imported %d cases, want 2", len(p.Cases))
	}
	if p.Cases[0].Repeat != 1 {
		t.Errorf("blank repeat = %d, want 1", p.Cases[0].Repeat)
	}
	if p.Cases[1].Mode != "video" || p.Cases[1].Repeat != 2 {
		t.Errorf("case 1 = %+v", p.Cases[1])
	}
	if got := len(p.SuiteCases()); got != 3 {
		t.Errorf("expanded to %d cases, want 3", got)
	}
}

func TestImportPlanCSV_Rejections(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"wrong header", "who,what,mode,category,repeat\n"},
		{"missing prompt", "subject,prompt,mode,category,repeat\nsubj-a,,,,\n"},
		{"bad repeat", "subject,prompt,mode,category,repeat\nsubj-a,p,,,never\n"},
		{"no cases", "subject,prompt,mode,category,repeat\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ImportPlanCSV(strings.NewReader(tt.in), "x"); err == nil {
				t.Error("invalid csv imported without error")
			}
		})
	}
}
