package modeling

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"delta-backend/internal/usecase"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func discardLog(string) error { return nil }

func TestRenderConfigMergesTemplate(t *testing.T) {
	dir := t.TempDir()
	template := filepath.Join(dir, "template.yaml")
	if err := os.WriteFile(template, []byte("FORCING_DATASET: ERA5\nDOMAIN_NAME: placeholder\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewExternalRunner("", template, "", testLogger())
	ws, err := NewWorkspace("Bow_at_Banff_lumped")
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()

	cfgPath, err := r.renderConfig(ws, usecase.RunnerRequest{
		JobID:  "42",
		Model:  "SUMMA",
		Domain: "Bow_at_Banff_lumped",
		Log:    discardLog,
	})
	if err != nil {
		t.Fatalf("renderConfig: %v", err)
	}

	raw, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	var cfg map[string]any
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		t.Fatal(err)
	}

	// Template keys survive, run-specific keys win.
	if cfg["FORCING_DATASET"] != "ERA5" {
		t.Fatalf("FORCING_DATASET = %v", cfg["FORCING_DATASET"])
	}
	if cfg["DOMAIN_NAME"] != "Bow_at_Banff_lumped" {
		t.Fatalf("DOMAIN_NAME = %v", cfg["DOMAIN_NAME"])
	}
	if cfg["EXPERIMENT_ID"] != "delta_job_42" {
		t.Fatalf("EXPERIMENT_ID = %v", cfg["EXPERIMENT_ID"])
	}
	if cfg["HYDROLOGICAL_MODEL"] != "SUMMA" {
		t.Fatalf("HYDROLOGICAL_MODEL = %v", cfg["HYDROLOGICAL_MODEL"])
	}
	if cfg["CONFLUENCE_DATA_DIR"] != ws.Root() {
		t.Fatalf("CONFLUENCE_DATA_DIR = %v", cfg["CONFLUENCE_DATA_DIR"])
	}
}

func TestWorkspaceLinksExistingDatasets(t *testing.T) {
	dataDir := t.TempDir()
	domainData := filepath.Join(dataDir, "domain_TestBasin")
	for _, sub := range []string{"attributes", "forcing"} {
		if err := os.MkdirAll(filepath.Join(domainData, sub), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	ws, err := NewWorkspace("TestBasin")
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()

	var lines []string
	logf := func(s string) error { lines = append(lines, s); return nil }
	if err := ws.SetupDomain(dataDir, logf); err != nil {
		t.Fatalf("SetupDomain: %v", err)
	}

	for _, sub := range []string{"attributes", "forcing"} {
		link := filepath.Join(ws.DomainPath(), sub)
		fi, err := os.Lstat(link)
		if err != nil {
			t.Fatalf("missing link %s: %v", sub, err)
		}
		if fi.Mode()&os.ModeSymlink == 0 {
			t.Fatalf("%s is not a symlink", sub)
		}
	}
	// shapefiles did not exist in the source and must not be linked.
	if _, err := os.Lstat(filepath.Join(ws.DomainPath(), "shapefiles")); !os.IsNotExist(err) {
		t.Fatalf("shapefiles link should not exist: %v", err)
	}

	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "Linking example datasets") {
		t.Fatalf("log lines = %q", joined)
	}
}

func TestWorkspaceMissingDataWarns(t *testing.T) {
	ws, err := NewWorkspace("NoData")
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()

	var lines []string
	logf := func(s string) error { lines = append(lines, s); return nil }
	if err := ws.SetupDomain(t.TempDir(), logf); err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 || !strings.Contains(lines[0], "Example data not found") {
		t.Fatalf("log lines = %v", lines)
	}
}

func TestRunWithoutBinaryEstablishesWorkspaceResult(t *testing.T) {
	r := NewExternalRunner("", "", "", testLogger())
	result, err := r.Run(context.Background(), usecase.RunnerRequest{
		JobID:  "7",
		Model:  "GR4J",
		Domain: "TestBasin",
		Log:    discardLog,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result["model"] != "GR4J" || result["domain"] != "TestBasin" {
		t.Fatalf("result = %v", result)
	}
	if result["message"] == "" || result["project_dir"] == "" {
		t.Fatalf("incomplete result = %v", result)
	}
}
