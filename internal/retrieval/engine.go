// Package retrieval answers queries against the index: ranked passages for
// semantic search, and grounded chat answers for generative search. All
// free-text input passes a moderation gate before any other provider call.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"vaultsearch/internal/ai"
	"vaultsearch/internal/store"
)

// queryPreviewLen bounds how much of a failing query is recorded for
// diagnostics.
const queryPreviewLen = 40

const instructionPrompt = `You are an assistant answering questions about the user's notes. ` +
	`Ground every answer in the note passages provided below and cite the note paths you used. ` +
	`If the passages do not contain the answer, say that you cannot find relevant information in the notes; do not guess.`

const noPassagesContext = `No relevant notes were found for this question. ` +
	`Tell the user you cannot find relevant information in their notes.`

// Store is the similarity-query capability the engine reads through.
type Store interface {
	QuerySections(ctx context.Context, vector []float32, matchCount int, threshold float32, minLength int) ([]*store.ScoredSection, error)
}

// Embedder converts query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (*ai.Embedding, error)
}

// Moderator screens free-text input.
type Moderator interface {
	Moderate(ctx context.Context, text string) (bool, error)
}

// Chat produces a completion from a message history.
type Chat interface {
	Complete(ctx context.Context, messages []ai.Message) (string, error)
}

// Options is the ranking policy for one query, configured independently for
// semantic and generative search.
type Options struct {
	Threshold  float32 // minimum similarity for a section to match
	MatchCount int     // maximum sections returned
	MinLength  int     // minimum section content length in runes
}

// Result is one ranked passage.
type Result struct {
	Content    string
	Similarity float32
	Path       string
}

// Engine is a pure request/response retrieval engine: no timing state, no
// retries (retry policy belongs to the caller), no persistence.
type Engine struct {
	store     Store
	embedder  Embedder
	moderator Moderator
	chat      Chat
	logger    *slog.Logger
}

// New creates a retrieval engine.
func New(st Store, embedder Embedder, moderator Moderator, chat Chat, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:     st,
		embedder:  embedder,
		moderator: moderator,
		chat:      chat,
		logger:    logger,
	}
}

// Search embeds the query and returns passages ranked by similarity under
// the threshold/count/length policy. A moderation-flagged query returns
// ErrModerated before any embedding call is made.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if err := e.moderate(ctx, query); err != nil {
		return nil, err
	}
	return e.search(ctx, query, opts)
}

func (e *Engine) search(ctx context.Context, query string, opts Options) ([]Result, error) {
	embedding, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query %q: %w", preview(query), err)
	}

	sections, err := e.store.QuerySections(ctx, embedding.Vector, opts.MatchCount, opts.Threshold, opts.MinLength)
	if err != nil {
		return nil, fmt.Errorf("query sections for %q: %w", preview(query), err)
	}

	results := make([]Result, 0, len(sections))
	for _, s := range sections {
		results = append(results, Result{
			Content:    s.Content,
			Similarity: s.Score,
			Path:       s.Path,
		})
	}

	e.logger.Debug("semantic search", "query", preview(query), "results", len(results))
	return results, nil
}

// Answer runs generative search: retrieve passages for the query, assemble a
// grounded context message, and ask the chat model. On success the user turn
// and the assistant turn are appended to the caller-owned history. When
// retrieval finds nothing above threshold, the context says so explicitly so
// the model declines instead of hallucinating.
func (e *Engine) Answer(ctx context.Context, query string, history *Conversation, opts Options) (string, error) {
	if err := e.moderate(ctx, query); err != nil {
		return "", err
	}

	results, err := e.search(ctx, query, opts)
	if err != nil {
		return "", err
	}

	messages := make([]ai.Message, 0, history.Len()+2)
	messages = append(messages, ai.Message{
		Role:    ai.RoleSystem,
		Content: buildContext(results),
	})
	messages = append(messages, history.Messages...)
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: query})

	answer, err := e.chat.Complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("chat completion for %q: %w", preview(query), err)
	}

	history.Append(ai.RoleUser, query)
	history.Append(ai.RoleAssistant, answer)

	e.logger.Debug("generative search", "query", preview(query), "passages", len(results))
	return answer, nil
}

// moderate rejects flagged queries with ErrModerated. The gate runs before
// any embedding or chat call.
func (e *Engine) moderate(ctx context.Context, query string) error {
	flagged, err := e.moderator.Moderate(ctx, query)
	if err != nil {
		return fmt.Errorf("moderate query %q: %w", preview(query), err)
	}
	if flagged {
		return fmt.Errorf("%w: %q", ErrModerated, preview(query))
	}
	return nil
}

// buildContext assembles the system message for generative search: the
// instruction prompt plus the retrieved passages, each tagged with its
// source path.
func buildContext(results []Result) string {
	var b strings.Builder
	b.WriteString(instructionPrompt)
	b.WriteString("\n\n")

	if len(results) == 0 {
		b.WriteString(noPassagesContext)
		return b.String()
	}

	b.WriteString("Note passages:\n")
	for _, r := range results {
		fmt.Fprintf(&b, "\n[%s]\n%s\n", r.Path, r.Content)
	}
	return b.String()
}

// preview returns the first few runes of a query for error diagnostics.
func preview(query string) string {
	runes := []rune(query)
	if len(runes) <= queryPreviewLen {
		return query
	}
	return string(runes[:queryPreviewLen])
}
