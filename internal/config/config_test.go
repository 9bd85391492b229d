package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultTemplateIsValid(t *testing.T) {
	cfg := Default("ep")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default template invalid: %v", err)
	}
	if cfg.Program.Label != "ep" {
		t.Fatalf("label %q", cfg.Program.Label)
	}
	if len(cfg.Surveys) == 0 || len(cfg.Checkpoints) == 0 {
		t.Fatal("default template missing surveys or checkpoints")
	}
}

func TestValidateRejects(t *testing.T) {
	base := func() *Config { return Default("ep") }

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing label", func(c *Config) { c.Program.Label = "" }, "label"},
		{"bad platform", func(c *Config) { c.Program.Platform = "moodle" }, "platform"},
		{"no surveys", func(c *Config) { c.Surveys = nil }, "surveys"},
		{"gapped ordinals", func(c *Config) { c.Surveys[0].Ordinal = 3 }, "ordinal"},
		{"missing anonymous link", func(c *Config) { c.Surveys[0].AnonymousLink = "" }, "anonymous_link"},
		{"bad cohort date", func(c *Config) {
			co := c.Cohorts["2026"]
			co.OpenDate = "Jan 12 2026"
			c.Cohorts["2026"] = co
		}, "open_date"},
		{"unknown state", func(c *Config) { c.PresurveyStates = []string{"phrenology_check"} }, "presurvey state"},
		{"unknown parent kind", func(c *Config) { c.Checkpoints[0].ParentKind = "galaxy" }, "parent_kind"},
		{"unknown data type", func(c *Config) {
			for i := range c.Checkpoints {
				if len(c.Checkpoints[i].Tasks) > 0 {
					c.Checkpoints[i].Tasks[0].DataType = "hologram"
					return
				}
			}
		}, "data_type"},
		{"negative interval", func(c *Config) { c.Presurvey.ValidationIntervalDays = -1 }, "interval"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("validate accepted bad config")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestValidateDefaultsPlatform(t *testing.T) {
	cfg := Default("ep")
	cfg.Program.Platform = ""
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Program.Platform != PlatformTriton {
		t.Fatalf("platform defaulted to %q", cfg.Program.Platform)
	}
}

func TestOpenWindow(t *testing.T) {
	co := Cohort{OpenDate: "2026-01-12", CloseDate: "2026-06-30"}
	open, closed, err := co.OpenWindow(time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if got := open.Format(time.RFC3339); got != "2026-01-12T00:00:00Z" {
		t.Fatalf("open = %s", got)
	}
	// the window includes the whole close date
	if got := closed.Format(time.RFC3339); got != "2026-07-01T00:00:00Z" {
		t.Fatalf("closed = %s", got)
	}

	lastDay := time.Date(2026, 6, 30, 23, 59, 0, 0, time.UTC)
	if !lastDay.Before(closed) {
		t.Fatal("close date evening should still be inside the window")
	}

	if _, _, err := (Cohort{}).OpenWindow(time.UTC); err == nil {
		t.Fatal("empty dates accepted")
	}
}

func TestSurveyByOrdinal(t *testing.T) {
	cfg := Default("ep")
	s, ok := cfg.SurveyByOrdinal(1)
	if !ok || s.Ordinal != 1 {
		t.Fatalf("lookup failed: %+v %v", s, ok)
	}
	if _, ok := cfg.SurveyByOrdinal(99); ok {
		t.Fatal("phantom ordinal resolved")
	}
}
