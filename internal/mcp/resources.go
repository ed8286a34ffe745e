package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Resource URIs.
const (
	QueryMetricsURI     = "amanknow://query_metrics"
	DocumentURIPrefix   = "amanknow://documents/"
	DocumentURITemplate = DocumentURIPrefix + "{id}"
)

// QueryMetricsOutput is the JSON body of the query_metrics resource.
type QueryMetricsOutput struct {
	TotalQueries        int64            `json:"total_queries"`
	ZeroResultPct       float64          `json:"zero_result_pct"`
	TaggedQueries       int64            `json:"tagged_queries"`
	ExactRepeats        int64            `json:"exact_repeats"`
	TopTerms            []QueryTermCount `json:"top_terms"`
	ZeroResultQueries   []string         `json:"zero_result_queries"`
	LatencyDistribution map[string]int64 `json:"latency_distribution"`
}

// QueryTermCount is a term and its frequency.
type QueryTermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

func (s *Server) registerResources() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "query_metrics",
			URI:         QueryMetricsURI,
			Description: "Query statistics for this session",
			MIMEType:    "application/json",
		},
		s.handleQueryMetrics,
	)
	s.mcp.AddResourceTemplate(
		&mcp.ResourceTemplate{
			Name:        "document",
			URITemplate: DocumentURITemplate,
			Description: "A stored document by id",
			MIMEType:    "application/json",
		},
		s.handleDocumentResource,
	)
}

func (s *Server) handleQueryMetrics(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	st, err := s.kb.Stats(ctx)
	if err != nil {
		return nil, MapError(err)
	}

	output := QueryMetricsOutput{
		TopTerms:            []QueryTermCount{},
		ZeroResultQueries:   []string{},
		LatencyDistribution: map[string]int64{},
	}
	if q := st.Queries; q != nil {
		output.TotalQueries = q.TotalQueries
		output.ZeroResultPct = q.ZeroResultPercentage()
		output.TaggedQueries = q.TaggedQueries
		output.ExactRepeats = q.ExactRepeatCount
		for _, tc := range q.TopTerms {
			output.TopTerms = append(output.TopTerms, QueryTermCount{Term: tc.Term, Count: tc.Count})
		}
		output.ZeroResultQueries = append(output.ZeroResultQueries, q.ZeroResultQueries...)
		for bucket, n := range q.LatencyDistribution {
			output.LatencyDistribution[string(bucket)] = n
		}
	}

	return jsonResource(QueryMetricsURI, output)
}

func (s *Server) handleDocumentResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	id, ok := strings.CutPrefix(uri, DocumentURIPrefix)
	if !ok || id == "" {
		return nil, NewResourceNotFoundError(uri)
	}

	doc, err := s.kb.GetDocument(ctx, id)
	if err != nil {
		return nil, MapError(err)
	}
	if doc == nil {
		return nil, NewResourceNotFoundError(uri)
	}
	return jsonResource(uri, ToDocumentOutput(doc))
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: uri, MIMEType: "application/json", Text: string(content)},
		},
	}, nil
}
