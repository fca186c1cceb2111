package main

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hyperifyio/deepresearch/internal/app"
)

// deepResearchInput mirrors §6's external parameters. Depth and Breadth are
// optional; App.Run clamps both to [1,5], so zero or omitted becomes 1.
type deepResearchInput struct {
	Query             string `json:"query" jsonschema:"the research topic or question"`
	Depth             int    `json:"depth,omitempty" jsonschema:"recursion depth, 1-5, default 1"`
	Breadth           int    `json:"breadth,omitempty" jsonschema:"queries per level, 1-5, default 1"`
	Model             string `json:"model,omitempty" jsonschema:"provider:modelId override, defaults to DEFAULT_MODEL"`
	TokenBudget       int    `json:"tokenBudget,omitempty" jsonschema:"total token budget across the run, 0 disables the cap"`
	SourcePreferences string `json:"sourcePreferences,omitempty" jsonschema:"free-text guidance on which sources to prefer or avoid"`
}

type deepResearchOutput struct {
	Report string `json:"report"`
}

func registerDeepResearch(server *mcp.Server, a *app.App) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "deepResearch",
		Description: "Recursively research a topic across a bounded-fanout search tree and return a long-form markdown report with a reliability-ranked sources section.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input deepResearchInput) (*mcp.CallToolResult, *deepResearchOutput, error) {
		if input.Query == "" {
			return nil, nil, errors.New("query is required")
		}
		report, err := a.Run(ctx, app.DeepResearchRequest{
			Query:             input.Query,
			Depth:             input.Depth,
			Breadth:           input.Breadth,
			Model:             input.Model,
			TokenBudget:       input.TokenBudget,
			SourcePreferences: input.SourcePreferences,
		})
		if err != nil {
			return nil, nil, err
		}
		return nil, &deepResearchOutput{Report: report}, nil
	})
}
