package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/habitd/internal/engine"
	"github.com/kalambet/habitd/internal/profile"
	"github.com/kalambet/habitd/internal/tabular"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Profiles profile.Store
	Writer   engine.TableWriter
}

// NewMCPServer creates an MCP server exposing the journaling surface to
// agent clients: quick thought capture plus read access to a user's
// configuration.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"habitd",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("habitd — conversational diary and habit tracker."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("log_thought",
			mcp.WithDescription("Append a thought to the user's journal, bypassing the conversation flow."),
			mcp.WithNumber("user_id", mcp.Description("Numeric user id"), mcp.Required()),
			mcp.WithString("text", mcp.Description("The thought to record"), mcp.Required()),
			mcp.WithString("category", mcp.Description("Optional category label")),
		),
		mcpLogThought(deps),
	)

	s.AddTool(
		mcp.NewTool("profile_summary",
			mcp.WithDescription("Return a user's configuration: connected sheet, schema fields, locale, usage counters."),
			mcp.WithNumber("user_id", mcp.Description("Numeric user id"), mcp.Required()),
		),
		mcpProfileSummary(deps),
	)

	s.AddTool(
		mcp.NewTool("list_questions",
			mcp.WithDescription("List a user's active reflection questions."),
			mcp.WithNumber("user_id", mcp.Description("Numeric user id"), mcp.Required()),
		),
		mcpListQuestions(deps),
	)

	return s
}

func mcpLogThought(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireFloat("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}
		category := req.GetString("category", "")

		prof, err := deps.Profiles.Get(ctx, int64(userID))
		if err != nil {
			return mcpError(fmt.Sprintf("unknown user: %v", err)), nil
		}
		if prof.SheetID == "" {
			return mcpError("user has no sheet connected"), nil
		}

		rec := tabular.Record{
			Timestamp: time.Now().UTC(),
			Raw:       text,
			Fields:    map[string]any{"category": category},
		}
		if err := deps.Writer.Append(ctx, prof.SheetID, tabular.Thoughts, nil, rec); err != nil {
			return mcpError(fmt.Sprintf("failed to append: %v", err)), nil
		}

		prof.Usage.Thoughts++
		if err := deps.Profiles.Save(ctx, prof); err != nil {
			return mcpError(fmt.Sprintf("appended but failed to update usage: %v", err)), nil
		}
		return mcpText("Thought recorded."), nil
	}
}

func mcpProfileSummary(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireFloat("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}

		prof, err := deps.Profiles.Get(ctx, int64(userID))
		if err != nil {
			return mcpError(fmt.Sprintf("unknown user: %v", err)), nil
		}

		summary := map[string]any{
			"user_id":         prof.UserID,
			"sheet_connected": prof.SheetID != "",
			"language":        prof.Language,
			"timezone":        prof.Timezone,
			"custom_fields":   len(prof.Schema.Fields),
			"questions":       len(prof.ActiveQuestions()),
			"usage":           prof.Usage,
		}
		encoded, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return mcpError(fmt.Sprintf("failed to encode summary: %v", err)), nil
		}
		return mcpText(string(encoded)), nil
	}
}

func mcpListQuestions(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireFloat("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}

		prof, err := deps.Profiles.Get(ctx, int64(userID))
		if err != nil {
			return mcpError(fmt.Sprintf("unknown user: %v", err)), nil
		}

		questions := prof.ActiveQuestions()
		texts := make([]string, len(questions))
		for i, q := range questions {
			texts[i] = q.Text
		}
		encoded, err := json.Marshal(texts)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to encode questions: %v", err)), nil
		}
		return mcpText(string(encoded)), nil
	}
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
