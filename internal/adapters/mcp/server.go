// Package mcp exposes catalog search to MCP clients.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/media-search/internal/core/domain"
	"github.com/kirillkom/media-search/internal/timecode"
)

const defaultResultLimit = 20

// Backend is the part of the media-search API the tools need.
type Backend interface {
	Search(ctx context.Context, query string) ([]domain.SearchHit, error)
	List(ctx context.Context, only string) ([]domain.MediaAsset, error)
	Captions(ctx context.Context, assetID string) ([]domain.CaptionSegment, error)
}

type Tools struct {
	backend Backend
}

func NewTools(backend Backend) *Tools {
	return &Tools{backend: backend}
}

// NewServer registers every tool on a fresh MCP server.
func NewServer(backend Backend, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"media-search",
		version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)
	tools := NewTools(backend)

	s.AddTool(
		mcp.NewTool(
			"search_media",
			mcp.WithDescription("Full-text search over video captions and document text. Video hits carry the caption start time."),
			mcp.WithString("query", mcp.Required(), mcp.Description("Text to look for, case-insensitive")),
			mcp.WithNumber("limit", mcp.Description("Max number of results (default 20)")),
		),
		tools.SearchMedia,
	)
	s.AddTool(
		mcp.NewTool(
			"list_assets",
			mcp.WithDescription("List uploaded assets, newest first."),
			mcp.WithString("only", mcp.Description("all, video or document")),
		),
		tools.ListAssets,
	)
	s.AddTool(
		mcp.NewTool(
			"get_captions",
			mcp.WithDescription("Timed caption lines of a video asset."),
			mcp.WithString("asset_id", mcp.Required(), mcp.Description("The asset ID")),
		),
		tools.GetCaptions,
	)
	return s
}

func (t *Tools) SearchMedia(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query argument required"), nil
	}
	limit := defaultResultLimit
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	hits, err := t.backend.Search(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(hits) == 0 {
		return mcp.NewToolResultText("No matches."), nil
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}

	lines := make([]string, 0, len(hits))
	for _, h := range hits {
		at := ""
		if h.SourceTimestamp != nil {
			at = " @" + timecode.Format(*h.SourceTimestamp)
		}
		lines = append(lines, fmt.Sprintf("[%s] %s (%s)%s: %s", h.MatchedFrom, h.Name, h.MediaAssetID, at, h.Snippet))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (t *Tools) ListAssets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	only, _ := request.GetArguments()["only"].(string)
	if _, ok := domain.ParseKindFilter(only); !ok {
		return mcp.NewToolResultError("only must be one of all, video, document"), nil
	}
	assets, err := t.backend.List(ctx, only)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	return jsonResult(assets)
}

func (t *Tools) GetCaptions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	assetID, _ := request.GetArguments()["asset_id"].(string)
	if assetID == "" {
		return mcp.NewToolResultError("asset_id argument required"), nil
	}
	segments, err := t.backend.Captions(ctx, assetID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("captions failed: %v", err)), nil
	}
	if len(segments) == 0 {
		return mcp.NewToolResultText("No captions yet."), nil
	}
	lines := make([]string, 0, len(segments))
	for _, s := range segments {
		lines = append(lines, timecode.Format(s.StartSec)+" "+s.Text)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
