package store

import "time"

// Document is the index entry for one source file. Document points carry no
// embedding vector; sections do.
type Document struct {
	ID        string         // UUID, derived deterministically from Path
	Path      string         // Unique identifier within the index
	Checksum  string         // SHA-256 of raw text; empty while indexing is incomplete
	Metadata  map[string]any // Front-matter key/values, always includes the path
	IsPublic  bool
	IndexedAt time.Time
}

// Section is one embedded passage of a document. Sections are regenerated as
// a complete set whenever their document is re-indexed.
type Section struct {
	ID         string // UUID
	DocumentID string // Owning Document.ID
	Position   int    // Order within the document (0, 1, 2...)
	Content    string // Raw chunk text, without the embedding context header
	Path       string // Same as owning document path (for filtering and joins)
	TokenCount int    // As reported by the embedding call
	Embedding  []float32
}

// ScoredSection is a section joined with its similarity score from a query.
type ScoredSection struct {
	Section
	Score float32
}

// DefaultCollection is the Qdrant collection holding documents and sections.
const DefaultCollection = "notes"
