package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertFile struct {
	Groups []alertGroup `yaml:"groups"`
}

func TestProfitboardAlertRules(t *testing.T) {
	path := filepath.Join("..", "..", "deploy", "prometheus", "alerts", "profitboard.yml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read alert file: %v", err)
	}

	var file alertFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		t.Fatalf("failed to unmarshal alert file: %v", err)
	}

	var group *alertGroup
	for i := range file.Groups {
		if file.Groups[i].Name == "profitboard" {
			group = &file.Groups[i]
			break
		}
	}
	if group == nil {
		t.Fatal("profitboard alert group missing")
	}

	expected := map[string]struct {
		severity string
		runbook  string
		metric   string
	}{
		"HighErrorRate":  {severity: "critical", runbook: "docs/runbook.md#high-error-rate", metric: "profitboard_http_requests_total"},
		"SlowDashboard":  {severity: "warning", runbook: "docs/runbook.md#slow-dashboard", metric: "profitboard_http_request_duration_seconds_bucket"},
		"CacheMissSpike": {severity: "warning", runbook: "docs/runbook.md#cache-miss-spike", metric: "profitboard_cache_miss_total"},
	}

	if len(group.Rules) != len(expected) {
		t.Fatalf("expected %d rules, got %d", len(expected), len(group.Rules))
	}

	for _, rule := range group.Rules {
		want, ok := expected[rule.Alert]
		if !ok {
			t.Fatalf("unexpected rule %q", rule.Alert)
		}
		if rule.Labels["severity"] != want.severity {
			t.Fatalf("rule %s severity mismatch: %s", rule.Alert, rule.Labels["severity"])
		}
		if rule.Annotations["runbook"] != want.runbook {
			t.Fatalf("rule %s runbook mismatch: %s", rule.Alert, rule.Annotations["runbook"])
		}
		if rule.Annotations["summary"] == "" || rule.Annotations["description"] == "" {
			t.Fatalf("rule %s must include summary and description annotations", rule.Alert)
		}
		if !strings.Contains(rule.Expr, want.metric) {
			t.Fatalf("rule %s should reference %s, got %q", rule.Alert, want.metric, rule.Expr)
		}
		if rule.For == "" {
			t.Fatalf("rule %s must define a hold duration", rule.Alert)
		}
	}
}

func TestRunbookHasAnchorsForAlerts(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "docs", "runbook.md"))
	if err != nil {
		t.Fatalf("failed to read runbook: %v", err)
	}
	for _, anchor := range []string{"## high-error-rate", "## slow-dashboard", "## cache-miss-spike"} {
		if !strings.Contains(string(data), anchor) {
			t.Fatalf("runbook missing section %q", anchor)
		}
	}
}

func TestRunbookDocumentsOperationalSettings(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "docs", "runbook.md"))
	if err != nil {
		t.Fatalf("failed to read runbook: %v", err)
	}
	text := string(data)
	for section, mentions := range map[string][]string{
		"## cache-backend":     {"CACHE_BACKEND=redis", "cmd/worker"},
		"## integration-tests": {"PROFITBOARD_TEST_DATABASE_URL", "-run Integration"},
	} {
		idx := strings.Index(text, section)
		if idx < 0 {
			t.Fatalf("runbook missing section %q", section)
		}
		body := text[idx:]
		if next := strings.Index(body[len(section):], "\n## "); next >= 0 {
			body = body[:len(section)+next]
		}
		for _, want := range mentions {
			if !strings.Contains(body, want) {
				t.Fatalf("section %q should mention %q", section, want)
			}
		}
	}
}
