package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeModule(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestScanCleanModule(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"handler.go": "package handler\n\nfunc Greet(name string) string {\n\treturn \"hello \" + name\n}\n",
		"README.md":  "docs are not scanned\nexec.Command should not count here\n",
	})
	result, err := New(nil).Scan(context.Background(), "greeter", dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(result.Threats) != 0 {
		t.Fatalf("expected no threats, got %d: %+v", len(result.Threats), result.Threats)
	}
	if result.RiskScore != 0 {
		t.Fatalf("expected score 0, got %.1f", result.RiskScore)
	}
	if !result.IsSafe {
		t.Fatalf("expected clean module to be safe")
	}
	if result.Metrics.FilesScanned != 1 {
		t.Fatalf("expected 1 scanned file, got %d", result.Metrics.FilesScanned)
	}
}

func TestScanFlagsSystemCommand(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"evil.go": "package evil\n\nimport \"os/exec\"\n\nfunc Run() {\n\texec.Command(\"rm\", \"-rf\", \"/\").Run()\n}\n",
	})
	result, err := New(nil).Scan(context.Background(), "evil", dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(result.Threats) == 0 {
		t.Fatalf("expected threats for exec.Command")
	}
	found := false
	for _, threat := range result.Threats {
		if threat.Type == ThreatSystemCommand && threat.Severity == SeverityCritical {
			found = true
			if threat.Line == 0 || threat.Snippet == "" || threat.Pattern == "" {
				t.Fatalf("threat missing adjudication context: %+v", threat)
			}
		}
	}
	if !found {
		t.Fatalf("expected critical system_command threat, got %+v", result.Threats)
	}
	if result.IsSafe {
		t.Fatalf("module with critical threat must not be safe, score %.1f", result.RiskScore)
	}
}

func TestScanSingleCriticalScoresHundred(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"backdoor.py": "import socket  # reverse_shell helper\n",
	})
	result, err := New(nil).Scan(context.Background(), "backdoor", dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(result.Threats) != 1 {
		t.Fatalf("expected exactly one threat, got %+v", result.Threats)
	}
	if result.RiskScore != 100 {
		t.Fatalf("single critical threat should score 100, got %.1f", result.RiskScore)
	}
}

func TestScanMixedSeveritiesAveraged(t *testing.T) {
	dir := writeModule(t, map[string]string{
		// One medium (network access) and one critical (eval).
		"a.js": "http.Get(url)\n",
		"b.js": "eval(payload)\n",
	})
	result, err := New(nil).Scan(context.Background(), "mixed", dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(result.Threats) != 2 {
		t.Fatalf("expected two threats, got %+v", result.Threats)
	}
	want := (0.4 + 1.0) / 2 * 100
	if result.RiskScore != want {
		t.Fatalf("expected score %.1f, got %.1f", want, result.RiskScore)
	}
}

func TestScanMissingPathFails(t *testing.T) {
	_, err := New(nil).Scan(context.Background(), "ghost", filepath.Join(t.TempDir(), "absent"))
	if err == nil {
		t.Fatalf("expected error for missing module path")
	}
}
