package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"vaultsearch/internal/config"
	"vaultsearch/internal/markdown"
	"vaultsearch/internal/retrieval"
	"vaultsearch/internal/store"
)

// snippetLen bounds rendered passage snippets in search results.
const snippetLen = 300

// makeSearchHandler creates the search_notes tool handler. The query passes
// the engine's moderation gate; flagged queries come back as an explicit
// error with zero results, never as a silent empty list.
func makeSearchHandler(engine *retrieval.Engine, cfg *config.Config) func(
	context.Context, *mcp.CallToolRequest, SearchNotesInput,
) (*mcp.CallToolResult, SearchNotesOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchNotesInput) (
		*mcp.CallToolResult, SearchNotesOutput, error,
	) {
		if len([]rune(input.Query)) < cfg.MinQueryLength {
			return nil, SearchNotesOutput{
				Results: []SearchResult{},
				Message: fmt.Sprintf("Query must be at least %d characters.", cfg.MinQueryLength),
			}, nil
		}

		opts := retrieval.Options{
			Threshold:  cfg.Search.Threshold,
			MatchCount: cfg.Search.MatchCount,
			MinLength:  cfg.Search.MinLength,
		}
		if input.MaxResults > 0 {
			opts.MatchCount = input.MaxResults
		}
		if input.MinScore > 0 {
			opts.Threshold = float32(input.MinScore)
		}

		results, err := engine.Search(ctx, input.Query, opts)
		if err != nil {
			if errors.Is(err, retrieval.ErrModerated) {
				return nil, SearchNotesOutput{
					Results: []SearchResult{},
					Message: "Query was rejected by content moderation.",
				}, nil
			}
			return nil, SearchNotesOutput{}, fmt.Errorf("search failed: %w", err)
		}

		out := SearchNotesOutput{Results: make([]SearchResult, 0, len(results))}
		for _, r := range results {
			out.Results = append(out.Results, SearchResult{
				Path:    r.Path,
				Score:   float64(r.Similarity),
				Snippet: markdown.Truncate(markdown.Plain(r.Content), snippetLen),
			})
		}

		if len(out.Results) == 0 {
			out.Message = "No matching notes found. Try broader search terms."
		}
		return nil, out, nil
	}
}

// makeAskHandler creates the ask_notes tool handler. Each call is a fresh
// single-turn conversation; multi-turn history belongs to interactive
// callers that own a session.
func makeAskHandler(engine *retrieval.Engine, cfg *config.Config) func(
	context.Context, *mcp.CallToolRequest, AskNotesInput,
) (*mcp.CallToolResult, AskNotesOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskNotesInput) (
		*mcp.CallToolResult, AskNotesOutput, error,
	) {
		if len([]rune(input.Query)) < cfg.MinQueryLength {
			return nil, AskNotesOutput{}, fmt.Errorf("query must be at least %d characters", cfg.MinQueryLength)
		}

		conv := &retrieval.Conversation{}
		answer, err := engine.Answer(ctx, input.Query, conv, retrieval.Options{
			Threshold:  cfg.Chat.Threshold,
			MatchCount: cfg.Chat.MatchCount,
			MinLength:  cfg.Chat.MinLength,
		})
		if err != nil {
			if errors.Is(err, retrieval.ErrModerated) {
				return nil, AskNotesOutput{}, fmt.Errorf("query was rejected by content moderation")
			}
			return nil, AskNotesOutput{}, fmt.Errorf("answer failed: %w", err)
		}

		return nil, AskNotesOutput{Answer: answer}, nil
	}
}

// makeListHandler creates the list_notes tool handler.
func makeListHandler(st *store.Store) func(
	context.Context, *mcp.CallToolRequest, ListNotesInput,
) (*mcp.CallToolResult, ListNotesOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListNotesInput) (
		*mcp.CallToolResult, ListNotesOutput, error,
	) {
		docs, err := st.ListDocuments(ctx)
		if err != nil {
			return nil, ListNotesOutput{}, fmt.Errorf("list notes: %w", err)
		}

		paths := make([]string, 0, len(docs))
		for _, doc := range docs {
			paths = append(paths, doc.Path)
		}
		sort.Strings(paths)

		return nil, ListNotesOutput{Paths: paths, Count: len(paths)}, nil
	}
}

// makeStatusHandler creates the index_status tool handler.
func makeStatusHandler(st *store.Store) func(
	context.Context, *mcp.CallToolRequest, IndexStatusInput,
) (*mcp.CallToolResult, IndexStatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IndexStatusInput) (
		*mcp.CallToolResult, IndexStatusOutput, error,
	) {
		docs, err := st.ListDocuments(ctx)
		if err != nil {
			return nil, IndexStatusOutput{}, fmt.Errorf("list documents: %w", err)
		}

		_, sections, err := st.Counts(ctx)
		if err != nil {
			return nil, IndexStatusOutput{}, fmt.Errorf("count points: %w", err)
		}

		out := IndexStatusOutput{
			TotalDocuments: len(docs),
			TotalSections:  int(sections),
		}

		var latest time.Time
		for _, doc := range docs {
			if doc.Checksum == "" {
				out.PendingDocuments++
			}
			if doc.IndexedAt.After(latest) {
				latest = doc.IndexedAt
			}
		}
		if !latest.IsZero() {
			out.LastIndexedAt = latest.Format(time.RFC3339)
		}

		return nil, out, nil
	}
}
