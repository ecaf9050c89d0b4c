package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/minute/internal/storage"
)

// MCPDeps holds dependencies for the MCP server. The MCP surface runs
// locally on behalf of one configured owner identity.
type MCPDeps struct {
	Store *storage.Store
	Owner string
}

// NewMCPServer creates an MCP server exposing the decision journal to
// local assistants over stdio.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"minute",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("minute is a personal decision journal. Log yes/no decisions with their pros and cons, and look up past decisions."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("log_decision",
			mcp.WithDescription("Record a completed yes/no decision with its pros, cons, and outcome."),
			mcp.WithString("question", mcp.Description("The decision question (max 200 characters)"), mcp.Required()),
			mcp.WithString("decision", mcp.Description("Final decision: yes, no, or undecided"), mcp.Required()),
			mcp.WithArray("pros", mcp.Description("List of points in favor")),
			mcp.WithArray("cons", mcp.Description("List of points against")),
			mcp.WithString("notes", mcp.Description("Optional notes (max 500 characters)")),
		),
		mcpLogDecision(deps),
	)

	s.AddTool(
		mcp.NewTool("list_decisions",
			mcp.WithDescription("List recorded decisions, most recent first."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10)")),
		),
		mcpListDecisions(deps),
	)

	s.AddTool(
		mcp.NewTool("get_decision",
			mcp.WithDescription("Fetch one decision record by id, including its full pros and cons."),
			mcp.WithString("id", mcp.Description("Decision id"), mcp.Required()),
		),
		mcpGetDecision(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"decisions://recent",
			"Recent Decisions",
			mcp.WithResourceDescription("Last 10 recorded decisions (summaries only)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpLogDecision(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}
		decision, err := req.RequireString("decision")
		if err != nil {
			return mcpError("decision is required"), nil
		}

		nd := storage.NewDecision{
			Question:      question,
			Pros:          itemsFromTexts(req.GetStringSlice("pros", nil)),
			Cons:          itemsFromTexts(req.GetStringSlice("cons", nil)),
			FinalDecision: decision,
			Notes:         req.GetString("notes", ""),
			TimeSpent:     storage.MaxTimeSpent,
			IsCompleted:   true,
		}

		d, err := deps.Store.CreateDecision(deps.Owner, nd)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to log decision: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Logged decision %s (%s)", d.ID, d.FinalDecision)), nil
	}
}

func mcpListDecisions(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 50 {
			limit = 50
		}

		decisions, err := deps.Store.ListDecisions(deps.Owner)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list decisions: %v", err)), nil
		}
		if len(decisions) > limit {
			decisions = decisions[:limit]
		}

		summaries := make([]decisionSummary, len(decisions))
		for i, d := range decisions {
			summaries[i] = summarize(d)
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetDecision(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		d, err := deps.Store.GetDecision(deps.Owner, id)
		if err != nil {
			return mcpError(fmt.Sprintf("decision %s not available: %v", id, err)), nil
		}

		b, err := json.Marshal(d)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal decision: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

type decisionSummary struct {
	ID            string `json:"id"`
	Question      string `json:"question"`
	FinalDecision string `json:"finalDecision"`
	IsCompleted   bool   `json:"isCompleted"`
	CreatedAt     string `json:"createdAt"`
}

func summarize(d storage.Decision) decisionSummary {
	question := d.Question
	if utf8.RuneCountInString(question) > 120 {
		runes := []rune(question)
		question = string(runes[:120]) + "..."
	}
	return decisionSummary{
		ID:            d.ID,
		Question:      question,
		FinalDecision: d.FinalDecision,
		IsCompleted:   d.IsCompleted,
		CreatedAt:     d.CreatedAt.Format(time.RFC3339),
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		decisions, err := deps.Store.ListDecisions(deps.Owner)
		if err != nil {
			return nil, fmt.Errorf("failed to list decisions: %w", err)
		}
		if len(decisions) > 10 {
			decisions = decisions[:10]
		}

		summaries := make([]decisionSummary, len(decisions))
		for i, d := range decisions {
			summaries[i] = summarize(d)
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal decisions: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func itemsFromTexts(texts []string) []storage.ListItem {
	if len(texts) == 0 {
		return nil
	}
	now := time.Now().UTC()
	items := make([]storage.ListItem, len(texts))
	for i, t := range texts {
		items[i] = storage.ListItem{Text: t, CreatedAt: now}
	}
	return items
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
