package usecase

import "delta-backend/internal/domain/ports/adapter"

const ToolRunModel = "run_model"

// DefaultWatershed is staged when the model omits a domain argument.
const DefaultWatershed = "Bow_at_Banff_lumped"

// runModelTool is the schema handed to the provider for the primary persona.
var runModelTool = adapter.ToolDeclaration{
	Name:        ToolRunModel,
	Description: "Run a hydrological model simulation (e.g., SUMMA, FUSE) for a specific domain.",
	Params: []adapter.ToolParam{
		{
			Name:        "model",
			Type:        "string",
			Description: "The hydrological model to use (SUMMA, FUSE, MESH, etc.)",
			Required:    true,
		},
		{
			Name:        "domain",
			Type:        "string",
			Description: "The watershed domain to simulate (e.g., 'Bow_at_Banff_lumped')",
		},
	},
}
