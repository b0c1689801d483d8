package modeling

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"delta-backend/internal/usecase"
)

// Compile-time check
var _ usecase.ModelRunner = (*ExternalRunner)(nil)

// ExternalRunner stages a workspace, renders the tool configuration from a
// template, and invokes the external modeling binary. When no binary is
// configured it stops after establishing the project structure, which is
// enough for downstream exploratory work.
type ExternalRunner struct {
	dataDir      string
	templatePath string
	toolBinary   string
	log          *zerolog.Logger
}

func NewExternalRunner(dataDir, templatePath, toolBinary string, logger *zerolog.Logger) *ExternalRunner {
	l := logger.With().Str("component", "ModelRunner").Logger()
	return &ExternalRunner{
		dataDir:      dataDir,
		templatePath: templatePath,
		toolBinary:   toolBinary,
		log:          &l,
	}
}

func (r *ExternalRunner) Run(ctx context.Context, req usecase.RunnerRequest) (map[string]string, error) {
	ws, err := NewWorkspace(req.Domain)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := ws.Close(); cerr != nil {
			r.log.Warn().Err(cerr).Str("workspace", ws.Root()).Msg("workspace cleanup failed")
		}
	}()

	if err := req.Log(fmt.Sprintf("Workspace created: %s", ws.Root())); err != nil {
		return nil, err
	}
	if err := ws.SetupDomain(r.dataDir, req.Log); err != nil {
		return nil, err
	}

	cfgPath, err := r.renderConfig(ws, req)
	if err != nil {
		return nil, err
	}

	if err := req.Log(fmt.Sprintf("Model toolchain initializing with model: %s", req.Model)); err != nil {
		return nil, err
	}

	if r.toolBinary != "" {
		if err := r.invokeTool(ctx, cfgPath, req.Log); err != nil {
			return nil, err
		}
	}

	if err := req.Log("Project structure ready. Ready for mathematical execution."); err != nil {
		return nil, err
	}

	return map[string]string{
		"project_dir": ws.DomainPath(),
		"model":       req.Model,
		"domain":      req.Domain,
		"message":     "Modeling workspace successfully established.",
	}, nil
}

// renderConfig loads the YAML template and overrides the run-specific keys.
func (r *ExternalRunner) renderConfig(ws *Workspace, req usecase.RunnerRequest) (string, error) {
	cfg := map[string]any{}
	if r.templatePath != "" {
		raw, err := os.ReadFile(r.templatePath)
		if err != nil {
			return "", fmt.Errorf("read config template: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return "", fmt.Errorf("parse config template: %w", err)
		}
	}

	cfg["DOMAIN_NAME"] = req.Domain
	cfg["EXPERIMENT_ID"] = "delta_job_" + req.JobID
	cfg["HYDROLOGICAL_MODEL"] = req.Model
	cfg["CONFLUENCE_DATA_DIR"] = ws.Root()

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("render config: %w", err)
	}
	cfgPath := filepath.Join(ws.Root(), "config.yaml")
	if err := os.WriteFile(cfgPath, out, 0o644); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return cfgPath, nil
}

func (r *ExternalRunner) invokeTool(ctx context.Context, cfgPath string, logf func(string) error) error {
	cmd := exec.CommandContext(ctx, r.toolBinary, "--config", cfgPath)
	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		if lerr := logf(string(out)); lerr != nil {
			return lerr
		}
	}
	if err != nil {
		return fmt.Errorf("modeling tool: %w", err)
	}
	return nil
}
