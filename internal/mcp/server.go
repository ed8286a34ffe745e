package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/amanknow/internal/ingest"
	"github.com/Aman-CERP/amanknow/internal/search"
	"github.com/Aman-CERP/amanknow/internal/store"
	"github.com/Aman-CERP/amanknow/pkg/knowledge"
	"github.com/Aman-CERP/amanknow/pkg/version"
)

// ServerName is reported to MCP clients.
const ServerName = "amanknow"

// Knowledge is the engine surface the server exposes. *knowledge.Service
// implements it.
type Knowledge interface {
	Ingest(ctx context.Context, title, source string, tags []string, content string,
		linked map[string]string, meta map[string]any) (*store.Document, int, error)
	IngestInboxBatch(ctx context.Context, limit int) (int, []ingest.FileResult, error)
	RebuildIndex(ctx context.Context) (docsIndexed, chunksIndexed, termsCount int, err error)
	Search(ctx context.Context, query string, limit int, tag string) ([]search.Hit, error)
	GetDocument(ctx context.Context, id string) (*store.Document, error)
	GetChunk(ctx context.Context, id string) (*store.Chunk, error)
	Stats(ctx context.Context) (*knowledge.Stats, error)
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search",
		Description: "Keyword search over stored knowledge. Returns the best matching chunks with their document title, source, tags, and a snippet. Optionally restrict to documents with a tag.",
	},
	{
		Name:        "get_document",
		Description: "Fetch a stored document by id (know_...), including tags, links, and metadata.",
	},
	{
		Name:        "get_chunk",
		Description: "Fetch the full text of a chunk by id (chk_...). Use after search to read a hit in full.",
	},
	{
		Name:        "ingest",
		Description: "Store a new text document. It is normalized, split into overlapping chunks, and indexed immediately.",
	},
	{
		Name:        "ingest_inbox",
		Description: "Ingest pending files from the inbox directory in name order. Each file is archived to the clean directory.",
	},
	{
		Name:        "rebuild_index",
		Description: "Rebuild the search index from all stored documents and chunks.",
	},
	{
		Name:        "knowledge_stats",
		Description: "Report document, chunk, and term counts plus query statistics for this session.",
	},
}

// Server is the MCP server for the knowledge engine.
type Server struct {
	mcp    *mcp.Server
	kb     Knowledge
	logger *slog.Logger
}

// NewServer creates a server and registers its tools and resources.
func NewServer(kb Knowledge) (*Server, error) {
	if kb == nil {
		return nil, errors.New("knowledge service is required")
	}

	s := &Server{
		kb:     kb,
		logger: slog.Default(),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	s.registerResources()
	return s, nil
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return ServerName, version.Version
}

// ListTools returns the registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), tools...)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, toolDef("search"), s.handleSearch)
	mcp.AddTool(s.mcp, toolDef("get_document"), s.handleGetDocument)
	mcp.AddTool(s.mcp, toolDef("get_chunk"), s.handleGetChunk)
	mcp.AddTool(s.mcp, toolDef("ingest"), s.handleIngest)
	mcp.AddTool(s.mcp, toolDef("ingest_inbox"), s.handleIngestInbox)
	mcp.AddTool(s.mcp, toolDef("rebuild_index"), s.handleRebuildIndex)
	mcp.AddTool(s.mcp, toolDef("knowledge_stats"), s.handleStats)

	s.logger.Debug("MCP tools registered", slog.Int("count", len(tools)))
}

func toolDef(name string) *mcp.Tool {
	for _, t := range tools {
		if t.Name == name {
			return &mcp.Tool{Name: t.Name, Description: t.Description}
		}
	}
	panic("mcp: unknown tool " + name)
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	start := time.Now()
	requestID := generateRequestID()

	limit := input.Limit
	if limit <= 0 {
		limit = search.DefaultLimit
	}

	hits, err := s.kb.Search(ctx, input.Query, limit, strings.TrimSpace(input.Tag))
	if err != nil {
		s.logger.Error("search failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, SearchOutput{}, MapError(err)
	}

	s.logger.Info("search completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", len(hits)))

	output := SearchOutput{
		Results: make([]SearchResultOutput, 0, len(hits)),
		Count:   len(hits),
	}
	for _, h := range hits {
		output.Results = append(output.Results, ToSearchResultOutput(h))
	}
	return textResult(FormatSearchResults(input.Query, hits)), output, nil
}

func (s *Server) handleGetDocument(ctx context.Context, _ *mcp.CallToolRequest, input GetDocumentInput) (
	*mcp.CallToolResult,
	DocumentOutput,
	error,
) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, DocumentOutput{}, NewInvalidParamsError("id parameter is required")
	}

	doc, err := s.kb.GetDocument(ctx, id)
	if err != nil {
		return nil, DocumentOutput{}, MapError(err)
	}
	if doc == nil {
		return nil, DocumentOutput{}, NewNotFoundError("document", id)
	}
	return nil, ToDocumentOutput(doc), nil
}

func (s *Server) handleGetChunk(ctx context.Context, _ *mcp.CallToolRequest, input GetChunkInput) (
	*mcp.CallToolResult,
	ChunkOutput,
	error,
) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, ChunkOutput{}, NewInvalidParamsError("id parameter is required")
	}

	chunk, err := s.kb.GetChunk(ctx, id)
	if err != nil {
		return nil, ChunkOutput{}, MapError(err)
	}
	if chunk == nil {
		return nil, ChunkOutput{}, NewNotFoundError("chunk", id)
	}
	return nil, ToChunkOutput(chunk), nil
}

func (s *Server) handleIngest(ctx context.Context, _ *mcp.CallToolRequest, input IngestInput) (
	*mcp.CallToolResult,
	IngestOutput,
	error,
) {
	requestID := generateRequestID()

	doc, n, err := s.kb.Ingest(ctx, input.Title, input.Source, input.Tags, input.Content, input.Linked, input.Meta)
	if err != nil {
		s.logger.Error("ingest failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return nil, IngestOutput{}, MapError(err)
	}

	s.logger.Info("ingest completed",
		slog.String("request_id", requestID),
		slog.String("doc_id", doc.ID),
		slog.Int("chunks", n))
	return nil, IngestOutput{Document: ToDocumentOutput(doc), ChunksCreated: n}, nil
}

func (s *Server) handleIngestInbox(ctx context.Context, _ *mcp.CallToolRequest, input IngestInboxInput) (
	*mcp.CallToolResult,
	IngestInboxOutput,
	error,
) {
	limit := input.Limit
	if limit <= 0 {
		limit = ingest.DefaultInboxLimit
	}

	ingested, results, err := s.kb.IngestInboxBatch(ctx, limit)
	if err != nil && results == nil {
		return nil, IngestInboxOutput{}, MapError(err)
	}

	output := IngestInboxOutput{
		Ingested: ingested,
		Files:    make([]InboxFileOutput, 0, len(results)),
	}
	for _, r := range results {
		output.Files = append(output.Files, ToInboxFileOutput(r))
	}
	return nil, output, nil
}

func (s *Server) handleRebuildIndex(ctx context.Context, _ *mcp.CallToolRequest, _ RebuildIndexInput) (
	*mcp.CallToolResult,
	RebuildIndexOutput,
	error,
) {
	docs, chunks, terms, err := s.kb.RebuildIndex(ctx)
	if err != nil {
		return nil, RebuildIndexOutput{}, MapError(err)
	}
	return nil, RebuildIndexOutput{DocsIndexed: docs, ChunksIndexed: chunks, Terms: terms}, nil
}

func (s *Server) handleStats(ctx context.Context, _ *mcp.CallToolRequest, _ StatsInput) (
	*mcp.CallToolResult,
	StatsOutput,
	error,
) {
	st, err := s.kb.Stats(ctx)
	if err != nil {
		return nil, StatsOutput{}, MapError(err)
	}

	output := StatsOutput{
		Documents:     st.Documents,
		Chunks:        st.Chunks,
		IndexedChunks: st.IndexedChunks,
		Terms:         st.Terms,
		Backend:       st.Backend,
	}
	if st.Queries != nil {
		output.TotalQueries = st.Queries.TotalQueries
		output.ZeroResults = st.Queries.ZeroResultCount
	}
	return nil, output, nil
}

// Serve runs the server on the given transport until ctx is canceled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "", "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// generateRequestID creates a short request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
