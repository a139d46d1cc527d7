// Package mcp exposes the retrieval engine over the Model Context Protocol.
package mcp

// SearchNotesInput defines the input parameters for the search_notes tool.
type SearchNotesInput struct {
	// Query is the semantic search query.
	Query string `json:"query" jsonschema:"required,description=The semantic search query for finding relevant notes"`
	// MaxResults is the maximum number of passages to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"minimum=1,maximum=50,default=10,description=Maximum number of passages to return"`
	// MinScore is the minimum similarity threshold (0-1).
	MinScore float64 `json:"min_score,omitempty" jsonschema:"minimum=0,maximum=1,description=Minimum similarity score threshold (0-1)"`
}

// SearchNotesOutput contains the search results.
type SearchNotesOutput struct {
	// Results is the list of matching passages.
	Results []SearchResult `json:"results"`
	// Message provides informational context (e.g. why results are empty).
	Message string `json:"message,omitempty"`
}

// SearchResult represents a single passage match from semantic search.
type SearchResult struct {
	// Path is the source note path.
	Path string `json:"path"`
	// Score is the similarity score (0-1).
	Score float64 `json:"score"`
	// Snippet is the passage content rendered as plain text.
	Snippet string `json:"snippet"`
}

// AskNotesInput defines the input parameters for the ask_notes tool.
type AskNotesInput struct {
	// Query is the question to answer from the notes.
	Query string `json:"query" jsonschema:"required,description=The question to answer using the indexed notes"`
}

// AskNotesOutput contains the grounded answer.
type AskNotesOutput struct {
	// Answer is the model's grounded answer text.
	Answer string `json:"answer"`
}

// ListNotesInput defines the input parameters for the list_notes tool.
// The tool takes no parameters.
type ListNotesInput struct{}

// ListNotesOutput contains all indexed note paths.
type ListNotesOutput struct {
	// Paths is all indexed note paths.
	Paths []string `json:"paths"`
	// Count is the total number of indexed notes.
	Count int `json:"count"`
}

// IndexStatusInput defines the input parameters for the index_status tool.
type IndexStatusInput struct{}

// IndexStatusOutput describes the current state of the index.
type IndexStatusOutput struct {
	// TotalDocuments is the number of indexed notes.
	TotalDocuments int `json:"total_documents"`
	// TotalSections is the number of embedded passages.
	TotalSections int `json:"total_sections"`
	// PendingDocuments counts notes whose last indexing attempt did not
	// complete; they retry on the next sync pass.
	PendingDocuments int `json:"pending_documents"`
	// LastIndexedAt is the most recent indexing timestamp, RFC 3339.
	LastIndexedAt string `json:"last_indexed_at,omitempty"`
}
