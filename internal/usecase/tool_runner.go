package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"delta-backend/internal/domain/model"
	"delta-backend/internal/domain/ports/adapter"
	"delta-backend/internal/infra/metrics"
)

// ToolResult is the textual outcome of one function call, re-injected into
// the conversation as feedback.
type ToolResult struct {
	Name   string
	Result string
}

// ToolRunner executes backend-side side effects requested by the model.
// A partial failure here must never crash the conversation, so every path
// produces a result string instead of an error.
type ToolRunner struct {
	jobs JobUseCase // nil when job scheduling is unavailable
	log  *zerolog.Logger
}

func NewToolRunner(jobs JobUseCase, logger *zerolog.Logger) *ToolRunner {
	l := logger.With().Str("component", "ToolRunner").Logger()
	return &ToolRunner{jobs: jobs, log: &l}
}

func (t *ToolRunner) Run(ctx context.Context, calls []adapter.FunctionCall) []ToolResult {
	results := make([]ToolResult, 0, len(calls))
	for _, call := range calls {
		metrics.IncToolCall(call.Name)
		switch call.Name {
		case ToolRunModel:
			results = append(results, t.runModel(ctx, call))
		default:
			name := call.Name
			if name == "" {
				name = "unknown"
			}
			results = append(results, ToolResult{
				Name:   name,
				Result: fmt.Sprintf("Unknown tool: %s", call.Name),
			})
		}
	}
	return results
}

func (t *ToolRunner) runModel(ctx context.Context, call adapter.FunctionCall) ToolResult {
	if t.jobs == nil {
		return ToolResult{
			Name:   call.Name,
			Result: "Modeling jobs are unavailable right now. Please try again when the system is fully online.",
		}
	}

	modelName := stringArg(call.Args, "model", "SUMMA")
	domainName := stringArg(call.Args, "domain", DefaultWatershed)

	job, err := t.jobs.Create(ctx, CreateJobParams{
		Type:  model.JobTypeSimulation,
		Model: modelName,
		Domain: domainName,
	})
	if err != nil {
		t.log.Error().Err(err).Str("model", modelName).Msg("failed to start model run")
		return ToolResult{Name: call.Name, Result: fmt.Sprintf("Failed to start model run: %v", err)}
	}
	return ToolResult{
		Name:   call.Name,
		Result: fmt.Sprintf("Model run initiated successfully. Job ID: %s. You can check status later.", job.ID),
	}
}

func stringArg(args map[string]any, key, fallback string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}
