package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Known presurvey sub-state names. Program configs sequence a subset of
// these; anything else is rejected at validation time.
const (
	StateSkipCheck     = "skip_check"
	StateValidation    = "validation"
	StateAssent        = "assent"
	StateIESCheck      = "ies_check"
	StateBlockSwitcher = "block_switcher"
)

// Platform values. Rostered programs verify participants against an
// external roster and always use the program's anonymous links.
const (
	PlatformTriton = "triton"
	PlatformRoster = "roster"
)

const cohortDateLayout = "2006-01-02"

// Config models a program definition (triton program YAML).
type Config struct {
	Program struct {
		Label    string `yaml:"label" json:"label"`
		Name     string `yaml:"name" json:"name"`
		Platform string `yaml:"platform" json:"platform"`
	} `yaml:"program" json:"program"`
	Cohorts         map[string]Cohort `yaml:"cohorts" json:"cohorts"`
	Surveys         []Survey          `yaml:"surveys" json:"surveys"`
	PresurveyStates []string          `yaml:"presurvey_states" json:"presurvey_states"`
	Presurvey       Presurvey         `yaml:"presurvey" json:"presurvey"`
	Checkpoints     []CheckpointTmpl  `yaml:"checkpoints" json:"checkpoints"`
}

// Cohort is one enrollment cycle's date window. Open/close dates are
// calendar dates compared in local time; registration dates are compared
// in UTC.
type Cohort struct {
	OpenDate          string `yaml:"open_date" json:"open_date"`
	CloseDate         string `yaml:"close_date" json:"close_date"`
	RegistrationOpen  string `yaml:"registration_open_date,omitempty" json:"registration_open_date,omitempty"`
	RegistrationClose string `yaml:"registration_close_date,omitempty" json:"registration_close_date,omitempty"`
}

type Survey struct {
	Ordinal       int               `yaml:"ordinal" json:"ordinal"`
	Label         string            `yaml:"label" json:"label"`
	AnonymousLink string            `yaml:"anonymous_link" json:"anonymous_link"`
	Params        map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
}

// Presurvey holds the knobs individual gating sub-states consult.
type Presurvey struct {
	ValidationRequired     bool     `yaml:"validation_required" json:"validation_required"`
	ValidationIntervalDays int      `yaml:"validation_interval_days" json:"validation_interval_days"`
	AssentRequired         bool     `yaml:"assent_required" json:"assent_required"`
	IESEnabled             bool     `yaml:"ies_enabled" json:"ies_enabled"`
	Conditions             []string `yaml:"conditions,omitempty" json:"conditions,omitempty"`
}

// CheckpointTmpl seeds one checkpoint (and its tasks) per project cohort.
type CheckpointTmpl struct {
	ParentKind    string     `yaml:"parent_kind" json:"parent_kind"`
	Label         string     `yaml:"label" json:"label"`
	SurveyOrdinal int        `yaml:"survey_ordinal,omitempty" json:"survey_ordinal,omitempty"`
	Tasks         []TaskTmpl `yaml:"tasks" json:"tasks"`
}

type TaskTmpl struct {
	Label           string `yaml:"label" json:"label"`
	DataType        string `yaml:"data_type" json:"data_type"`
	NonAdminMayEdit bool   `yaml:"non_admin_may_edit" json:"non_admin_may_edit"`
}

// Rostered reports whether participants come from an external roster.
func (c *Config) Rostered() bool {
	return c.Program.Platform == PlatformRoster
}

// SurveyByOrdinal returns the survey definition for a session ordinal.
func (c *Config) SurveyByOrdinal(ordinal int) (Survey, bool) {
	for _, s := range c.Surveys {
		if s.Ordinal == ordinal {
			return s, true
		}
	}
	return Survey{}, false
}

func (c *Config) Cohort(label string) (Cohort, bool) {
	co, ok := c.Cohorts[label]
	return co, ok
}

var knownStates = map[string]bool{
	StateSkipCheck:     true,
	StateValidation:    true,
	StateAssent:        true,
	StateIESCheck:      true,
	StateBlockSwitcher: true,
}

var knownDataTypes = map[string]bool{
	"button": true, "monitor": true, "file": true,
	"input": true, "input:text": true, "input:url": true,
	"input:date": true, "input:number": true, "textarea": true,
	"radio": true, "radio:quiz": true, "radio:conditional": true,
	"survey_params": true,
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Program.Label == "" {
		return fmt.Errorf("config.program.label is required")
	}
	if c.Program.Platform == "" {
		c.Program.Platform = PlatformTriton
	}
	if c.Program.Platform != PlatformTriton && c.Program.Platform != PlatformRoster {
		return fmt.Errorf("unknown platform %q", c.Program.Platform)
	}
	if len(c.Surveys) == 0 {
		return fmt.Errorf("config.surveys is required")
	}
	for i, s := range c.Surveys {
		if s.Ordinal != i+1 {
			return fmt.Errorf("survey ordinals must run 1..%d; index %d has ordinal %d", len(c.Surveys), i, s.Ordinal)
		}
		if s.AnonymousLink == "" {
			return fmt.Errorf("survey %d missing anonymous_link", s.Ordinal)
		}
	}
	for label, co := range c.Cohorts {
		for _, d := range []struct{ name, val string }{
			{"open_date", co.OpenDate},
			{"close_date", co.CloseDate},
			{"registration_open_date", co.RegistrationOpen},
			{"registration_close_date", co.RegistrationClose},
		} {
			if d.val == "" {
				continue
			}
			if _, err := time.Parse(cohortDateLayout, d.val); err != nil {
				return fmt.Errorf("cohort %s %s %q: %w", label, d.name, d.val, err)
			}
		}
	}
	for _, st := range c.PresurveyStates {
		if !knownStates[st] {
			return fmt.Errorf("unknown presurvey state %q", st)
		}
	}
	for _, cp := range c.Checkpoints {
		switch cp.ParentKind {
		case "organization", "project", "survey":
		default:
			return fmt.Errorf("checkpoint %s has unknown parent_kind %q", cp.Label, cp.ParentKind)
		}
		if cp.ParentKind == "survey" {
			if _, ok := c.SurveyByOrdinal(cp.SurveyOrdinal); !ok {
				return fmt.Errorf("checkpoint %s references unknown survey ordinal %d", cp.Label, cp.SurveyOrdinal)
			}
		}
		for _, t := range cp.Tasks {
			if !knownDataTypes[t.DataType] {
				return fmt.Errorf("task %s has unknown data_type %q", t.Label, t.DataType)
			}
		}
	}
	if c.Presurvey.ValidationIntervalDays < 0 {
		return fmt.Errorf("presurvey.validation_interval_days must not be negative")
	}
	return nil
}

// OpenWindow returns the local-time window during which the cohort
// accepts participants: midnight at the start of open_date through
// midnight at the end of close_date, in the supplied location. A
// published close date means "closes at local midnight for everyone".
func (co Cohort) OpenWindow(loc *time.Location) (time.Time, time.Time, error) {
	if co.OpenDate == "" || co.CloseDate == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("cohort dates not set")
	}
	open, err := time.ParseInLocation(cohortDateLayout, co.OpenDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("open_date: %w", err)
	}
	closed, err := time.ParseInLocation(cohortDateLayout, co.CloseDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("close_date: %w", err)
	}
	return open, closed.AddDate(0, 0, 1), nil
}

// RegistrationWindow returns the UTC registration window, if configured.
func (co Cohort) RegistrationWindow() (time.Time, time.Time, error) {
	if co.RegistrationOpen == "" || co.RegistrationClose == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("registration dates not set")
	}
	open, err := time.Parse(cohortDateLayout, co.RegistrationOpen)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("registration_open_date: %w", err)
	}
	closed, err := time.Parse(cohortDateLayout, co.RegistrationClose)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("registration_close_date: %w", err)
	}
	return open, closed.AddDate(0, 0, 1), nil
}

// FromYAML parses and validates a program config.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid program yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads a program config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config for a program label.
func Default(label string) *Config {
	cfg, err := FromYAML([]byte(fmt.Sprintf(defaultTemplate, label, label)))
	if err != nil {
		// the template is a constant; a parse failure is a programming error
		panic(err)
	}
	return cfg
}

const defaultTemplate = `program:
  label: %s
  name: %s
  platform: triton

cohorts:
  "2026":
    open_date: 2026-01-12
    close_date: 2026-06-30
    registration_open_date: 2025-10-01
    registration_close_date: 2026-05-15

surveys:
  - ordinal: 1
    label: session_1
    anonymous_link: https://surveys.tritonplatform.net/s1/anonymous
  - ordinal: 2
    label: session_2
    anonymous_link: https://surveys.tritonplatform.net/s2/anonymous

presurvey_states: [skip_check, validation, assent, ies_check, block_switcher]

presurvey:
  validation_required: false
  validation_interval_days: 90
  assent_required: false
  ies_enabled: false
  conditions: [treatment, control]

checkpoints:
  - parent_kind: organization
    label: organization_setup
    tasks:
      - label: liaison_name
        data_type: input:text
        non_admin_may_edit: true
      - label: terms_of_use
        data_type: button
        non_admin_may_edit: true
      - label: letter_of_agreement
        data_type: file
        non_admin_may_edit: false
  - parent_kind: project
    label: project_setup
    tasks:
      - label: expected_participants
        data_type: input:number
        non_admin_may_edit: true
      - label: program_quiz
        data_type: radio:quiz
        non_admin_may_edit: true
  - parent_kind: survey
    label: session_1_prep
    survey_ordinal: 1
    tasks:
      - label: survey_status
        data_type: monitor
        non_admin_may_edit: false
      - label: survey_params
        data_type: survey_params
        non_admin_may_edit: false
  - parent_kind: survey
    label: session_2_prep
    survey_ordinal: 2
    tasks:
      - label: survey_status
        data_type: monitor
        non_admin_may_edit: false
`
