package search

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	amerrors "github.com/Aman-CERP/amanknow/internal/errors"
	"github.com/Aman-CERP/amanknow/internal/index"
	"github.com/Aman-CERP/amanknow/internal/store"
	"github.com/Aman-CERP/amanknow/internal/telemetry"
)

// Engine scores index candidates by query term coverage.
type Engine struct {
	indexer *index.Indexer
	repo    store.Repository
	metrics *telemetry.QueryMetrics // optional
}

// Ensure Engine implements Searcher.
var _ Searcher = (*Engine)(nil)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// EngineOption configures the search engine.
type EngineOption func(*Engine)

// WithMetrics records every query in m.
func WithMetrics(m *telemetry.QueryMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates an engine reading the index from indexer and chunk
// text from repo.
func NewEngine(indexer *index.Indexer, repo store.Repository, opts ...EngineOption) (*Engine, error) {
	if indexer == nil || repo == nil {
		return nil, ErrNilDependency
	}
	e := &Engine{indexer: indexer, repo: repo}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

type candidate struct {
	id    string
	meta  store.ChunkMeta
	text  string
	score float64
}

// Search returns chunks containing any query term, best coverage first.
// Equal scores keep candidate order: the query term that first reached a
// chunk, then posting list order. A blank query returns no hits.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]Hit, error) {
	start := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		return []Hit{}, nil
	}
	terms := index.UniqueTerms(query)
	if len(terms) == 0 {
		e.record(query, terms, opts, 0, start)
		return []Hit{}, nil
	}

	idx, err := e.indexer.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	filters := buildFilters(opts)
	var cands []candidate
	seen := make(map[string]struct{})
	for _, term := range terms {
		for _, id := range idx.Terms[term] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			meta, ok := idx.ChunkMeta[id]
			if !ok || !matchesAllFilters(meta, filters) {
				continue
			}
			cands = append(cands, candidate{id: id, meta: meta})
		}
	}

	texts, err := e.loadTexts(ctx, cands)
	if err != nil {
		return nil, err
	}

	scored := cands[:0]
	for _, c := range cands {
		text, ok := texts[c.id]
		if !ok {
			continue
		}
		c.text = text
		c.score = Score(terms, index.TermSet(text))
		if c.score <= 0 {
			continue
		}
		scored = append(scored, c)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if limit := ClampLimit(opts.Limit); len(scored) > limit {
		scored = scored[:limit]
	}

	hits := make([]Hit, len(scored))
	for i, c := range scored {
		hits[i] = Hit{
			DocID:    c.meta.DocID,
			DocTitle: c.meta.Title,
			ChunkID:  c.id,
			Score:    c.score,
			Snippet:  Snippet(c.text),
			Source:   c.meta.Source,
			Tags:     slices.Clone(c.meta.Tags),
			Linked:   maps.Clone(c.meta.Linked),
		}
	}

	e.record(query, terms, opts, len(hits), start)
	slog.Debug("search_complete",
		slog.String("query", query),
		slog.Int("candidates", len(cands)),
		slog.Int("hits", len(hits)),
		slog.Duration("duration", time.Since(start)))
	return hits, nil
}

// loadTexts fetches the stored text of each candidate. Chunks missing from
// the store are absent from the result.
func (e *Engine) loadTexts(ctx context.Context, cands []candidate) (map[string]string, error) {
	texts := make(map[string]string, len(cands))
	if len(cands) == 0 {
		return texts, nil
	}

	if g, ok := e.repo.(store.ChunkGetter); ok {
		ids := make([]string, len(cands))
		for i, c := range cands {
			ids[i] = c.id
		}
		chunks, err := g.GetChunks(ctx, ids)
		if err != nil {
			return nil, amerrors.StorageUnavailable("load chunks", err)
		}
		for id, c := range chunks {
			texts[id] = c.Text
		}
		return texts, nil
	}

	wanted := make(map[string]struct{}, len(cands))
	for _, c := range cands {
		wanted[c.id] = struct{}{}
	}
	all, err := e.repo.ListChunks(ctx)
	if err != nil {
		return nil, amerrors.StorageUnavailable("list chunks", err)
	}
	for _, c := range all {
		if _, ok := wanted[c.ID]; ok {
			texts[c.ID] = c.Text
		}
	}
	return texts, nil
}

func (e *Engine) record(query string, terms []string, opts Options, n int, start time.Time) {
	e.metrics.Record(telemetry.QueryEvent{
		Query:       query,
		Terms:       terms,
		Tag:         opts.Tag,
		ResultCount: n,
		Latency:     time.Since(start),
	})
}
