// Package indexer keeps the vector index synchronized with a mutable source
// tree. Each document is diffed against the index by content checksum and
// visibility, then skipped, touched, fully re-embedded, or deleted.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"vaultsearch/internal/ai"
	"vaultsearch/internal/chunk"
	"vaultsearch/internal/markdown"
	"vaultsearch/internal/source"
	"vaultsearch/internal/store"
)

// Store is the record-store capability the engine writes through.
type Store interface {
	GetDocumentByPath(ctx context.Context, path string) (*store.Document, error)
	UpsertDocument(ctx context.Context, doc *store.Document) error
	SetChecksum(ctx context.Context, id, checksum string) error
	SetVisibility(ctx context.Context, id string, public bool) error
	InsertSection(ctx context.Context, section *store.Section) error
	DeleteSectionsByDocument(ctx context.Context, documentID string) error
	DeleteDocumentByPath(ctx context.Context, path string) error
	ListDocuments(ctx context.Context) ([]*store.Document, error)
}

// Embedder produces a vector and token count for one text.
type Embedder interface {
	Embed(ctx context.Context, text string) (*ai.Embedding, error)
}

// Source lists the live document set at call time.
type Source interface {
	List(ctx context.Context) ([]source.File, error)
}

// Config carries the chunking and visibility policy for a sync pass.
type Config struct {
	MinChunkSize    int
	MaxChunkSize    int
	OverlapSize     int // trailing runes of the previous chunk carried into the next embedding input
	ExcludePrefixes []string
	PublicPrefixes  []string
}

// Result counts the terminal outcome of every document in one sync pass.
type Result struct {
	Success int // documents skipped, touched, or fully re-indexed
	Updated int // visibility-only updates and full re-indexes
	Errors  int // documents that failed mid-flight and will retry next pass
	Deleted int // dangling documents removed by reconciliation
}

// Engine orchestrates sync passes. Documents are processed one at a time and
// sections within a document strictly in order: the stored checksum must
// only ever describe a fully persisted section set, and one in-flight embed
// call per document keeps error attribution exact.
type Engine struct {
	source   Source
	store    Store
	embedder Embedder
	cfg      Config
	logger   *slog.Logger
}

// New creates a sync engine.
func New(src Source, st Store, embedder Embedder, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		source:   src,
		store:    st,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
	}
}

// Sync runs one full pass: diff every live document against the index, then
// reconcile dangling index entries against the live set. Per-document
// failures are converted to counters; only a failed source listing aborts
// the pass.
func (e *Engine) Sync(ctx context.Context) (*Result, error) {
	files, err := e.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	// Exclusion applies before any read or diff: an excluded path is not
	// part of the live set at all, so reconciliation will drop it from the
	// index if it was ever there.
	live := make(map[string]bool, len(files))
	result := &Result{}

	for _, file := range files {
		path := normalizePath(file.Path())
		if e.excluded(path) {
			continue
		}
		live[path] = true

		outcome, err := e.syncDocument(ctx, path, file)
		if err != nil {
			e.logger.Warn("document sync failed", "path", path, "error", err)
			result.Errors++
			continue
		}
		result.Success++
		if outcome != outcomeSkipped {
			result.Updated++
		}
	}

	e.reconcile(ctx, live, result)

	e.logger.Info("sync complete",
		"success", result.Success,
		"updated", result.Updated,
		"errors", result.Errors,
		"deleted", result.Deleted,
	)
	return result, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeVisibilityUpdated
	outcomeReindexed
)

// syncDocument runs the per-document state machine: skip on matching
// checksum and visibility, touch the visibility flag alone when only that
// changed, otherwise re-chunk and re-embed from scratch.
func (e *Engine) syncDocument(ctx context.Context, path string, file source.File) (outcome, error) {
	text, err := file.Content(ctx)
	if err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}

	sum := Checksum(text)
	public := e.public(path)

	existing, err := e.store.GetDocumentByPath(ctx, path)
	if err != nil && !errors.Is(err, store.ErrDocumentNotFound) {
		return 0, fmt.Errorf("lookup: %w", err)
	}

	if existing != nil && existing.Checksum == sum {
		if existing.IsPublic == public {
			return outcomeSkipped, nil
		}
		if err := e.store.SetVisibility(ctx, existing.ID, public); err != nil {
			return 0, fmt.Errorf("update visibility: %w", err)
		}
		e.logger.Debug("visibility updated", "path", path, "public", public)
		return outcomeVisibilityUpdated, nil
	}

	if err := e.reindex(ctx, path, text, sum, public, existing); err != nil {
		return 0, err
	}
	return outcomeReindexed, nil
}

// reindex replaces a document's section set wholesale. Old sections are
// deleted first, the document row is upserted with an empty checksum, and
// the checksum is only written once every new section has been persisted.
// Any failure leaves the checksum empty so the next pass retries.
func (e *Engine) reindex(ctx context.Context, path, text, sum string, public bool, existing *store.Document) error {
	if existing != nil {
		if err := e.store.DeleteSectionsByDocument(ctx, existing.ID); err != nil {
			return fmt.Errorf("delete old sections: %w", err)
		}
	}

	body, meta := markdown.ParseFrontmatter(text)
	meta["path"] = path
	chunks := chunk.Smart(body, e.cfg.MinChunkSize, e.cfg.MaxChunkSize)

	doc := &store.Document{
		Path:     path,
		Checksum: "",
		Metadata: meta,
		IsPublic: public,
	}
	if err := e.store.UpsertDocument(ctx, doc); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}

	tail := ""
	for i, c := range chunks {
		input := chunk.BuildContext(c, meta, path, tail)

		embedding, err := e.embedder.Embed(ctx, input)
		if err != nil {
			return fmt.Errorf("embed chunk %d: %w", i, err)
		}

		section := &store.Section{
			DocumentID: doc.ID,
			Position:   i,
			Content:    c,
			Path:       path,
			TokenCount: embedding.TokenCount,
			Embedding:  embedding.Vector,
		}
		if err := e.store.InsertSection(ctx, section); err != nil {
			return fmt.Errorf("store chunk %d: %w", i, err)
		}

		tail = chunk.Tail(c, e.cfg.OverlapSize)
	}

	if err := e.store.SetChecksum(ctx, doc.ID, sum); err != nil {
		return fmt.Errorf("finalize checksum: %w", err)
	}

	e.logger.Info("indexed document", "path", path, "sections", len(chunks))
	return nil
}

// reconcile deletes indexed documents whose path is no longer in the live
// set. Failures here are logged and counted but never abort the pass.
func (e *Engine) reconcile(ctx context.Context, live map[string]bool, result *Result) {
	indexed, err := e.store.ListDocuments(ctx)
	if err != nil {
		e.logger.Warn("reconciliation listing failed", "error", err)
		result.Errors++
		return
	}

	for _, doc := range indexed {
		if live[doc.Path] {
			continue
		}
		if err := e.store.DeleteDocumentByPath(ctx, doc.Path); err != nil {
			e.logger.Warn("dangling document delete failed", "path", doc.Path, "error", err)
			result.Errors++
			continue
		}
		e.logger.Info("deleted dangling document", "path", doc.Path)
		result.Deleted++
	}
}

func (e *Engine) excluded(path string) bool {
	return anyPrefixMatch(path, e.cfg.ExcludePrefixes)
}

// public reports whether the path falls under a configured public directory.
// Exclusion has already removed excluded paths from consideration.
func (e *Engine) public(path string) bool {
	return anyPrefixMatch(path, e.cfg.PublicPrefixes)
}

func anyPrefixMatch(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		prefix = normalizePath(prefix)
		if prefix == "" {
			continue
		}
		trimmed := strings.TrimSuffix(prefix, "/")
		if path == trimmed || strings.HasPrefix(path, trimmed+"/") {
			return true
		}
	}
	return false
}

func normalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.TrimPrefix(p, "./")
}

// Checksum is the content hash used to detect document changes: SHA-256 hex
// over the raw text, front matter included. A metadata-only edit therefore
// changes the checksum and triggers a full re-chunk.
func Checksum(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
