package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/booktalk/internal/catalog"
	"github.com/kalambet/booktalk/internal/dialogue"
	"github.com/kalambet/booktalk/internal/metrics"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Query    *catalog.Query
	Chat     *dialogue.Orchestrator
	Metrics  *metrics.Metrics
	TopLimit int
	Version  string
}

// NewMCPServer creates an MCP server exposing the catalog and book chat.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"booktalk",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("booktalk: browse a book catalog by category and chat about a single book, grounded in its content."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_categories",
			mcp.WithDescription("List every book category in the catalog, in first-seen order."),
		),
		mcpListCategories(deps),
	)

	s.AddTool(
		mcp.NewTool("top_books",
			mcp.WithDescription("Return the top-rated books of one category."),
			mcp.WithString("category", mcp.Description("Category name, matched exactly"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of books (default 10)")),
		),
		mcpTopBooks(deps),
	)

	s.AddTool(
		mcp.NewTool("chat_with_book",
			mcp.WithDescription("Ask the book assistant for its next reply, given the conversation so far."),
			mcp.WithString("unique_id", mcp.Description("Catalog id of the book"), mcp.Required()),
			mcp.WithString("messages", mcp.Description("JSON array of {role, content} message objects, oldest first"), mcp.Required()),
		),
		mcpChatWithBook(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"catalog://categories",
			"Book Categories",
			mcp.WithResourceDescription("All catalog categories as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceCategories(deps),
	)

	return s
}

func mcpListCategories(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		deps.Metrics.CountQuery("categories")
		b, err := json.Marshal(deps.Query.Categories())
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal categories: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpTopBooks(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		category, err := req.RequireString("category")
		if err != nil {
			return mcpError("category is required"), nil
		}

		limit := req.GetInt("limit", 0)
		if limit <= 0 {
			limit = topLimit(deps.TopLimit)
		}

		deps.Metrics.CountQuery("top_books")
		b, err := json.Marshal(deps.Query.TopInCategory(category, limit))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal books: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpChatWithBook(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("unique_id")
		if err != nil {
			return mcpError("unique_id is required"), nil
		}
		messagesJSON, err := req.RequireString("messages")
		if err != nil {
			return mcpError("messages is required"), nil
		}

		var messages []dialogue.Message
		if err := json.Unmarshal([]byte(messagesJSON), &messages); err != nil {
			return mcpError(fmt.Sprintf("invalid messages JSON: %v", err)), nil
		}
		if messages == nil {
			verr := &dialogue.ValidationError{Field: "messages", Reason: "is required"}
			return mcpError(verr.Error()), nil
		}

		reply, err := deps.Chat.Respond(ctx, dialogue.TurnRequest{UniqueID: id, Messages: messages})
		if err != nil {
			var nerr *dialogue.NotFoundError
			if errors.As(err, &nerr) {
				return mcpError("Book not found"), nil
			}
			return mcpError(err.Error()), nil
		}
		return mcpText(reply.Content), nil
	}
}

func mcpResourceCategories(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(map[string]any{"categories": deps.Query.Categories()})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal categories: %w", err)
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
