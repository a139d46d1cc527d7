//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVectorSize = 1536

// setupTestStore connects to a local Qdrant with a unique collection per
// test. Skips when Qdrant is not running.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	collection := "vaultsearch_test_" + uuid.New().String()
	s, err := New("localhost", 6334, collection, testVectorSize)
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}

	require.NoError(t, s.EnsureCollection(context.Background()))
	t.Cleanup(func() { s.Close() })

	return s
}

func testVector(fill float32) []float32 {
	v := make([]float32, testVectorSize)
	for i := range v {
		v[i] = fill
	}
	return v
}

func TestDocumentLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	doc := &Document{
		Path:     "notes/lifecycle.md",
		Checksum: "",
		Metadata: map[string]any{
			"title": "Lifecycle",
			"tags":  []any{"test"},
			"path":  "notes/lifecycle.md",
		},
		IsPublic: false,
	}
	require.NoError(t, s.UpsertDocument(ctx, doc))
	assert.Equal(t, DocumentID(doc.Path), doc.ID)

	retrieved, err := s.GetDocumentByPath(ctx, doc.Path)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, retrieved.ID)
	assert.Equal(t, "", retrieved.Checksum)
	assert.Equal(t, "Lifecycle", retrieved.Metadata["title"])
	assert.False(t, retrieved.IsPublic)
	assert.WithinDuration(t, time.Now().UTC(), retrieved.IndexedAt, time.Minute)

	// Partial payload updates do not disturb the other fields.
	require.NoError(t, s.SetChecksum(ctx, doc.ID, "abc123"))
	require.NoError(t, s.SetVisibility(ctx, doc.ID, true))

	retrieved, err = s.GetDocumentByPath(ctx, doc.Path)
	require.NoError(t, err)
	assert.Equal(t, "abc123", retrieved.Checksum)
	assert.True(t, retrieved.IsPublic)
	assert.Equal(t, "Lifecycle", retrieved.Metadata["title"])

	// Re-upserting the same path overwrites the same point.
	again := &Document{Path: doc.Path, Checksum: "def456", Metadata: map[string]any{}}
	require.NoError(t, s.UpsertDocument(ctx, again))
	assert.Equal(t, doc.ID, again.ID)

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	require.NoError(t, s.DeleteDocumentByPath(ctx, doc.Path))
	_, err = s.GetDocumentByPath(ctx, doc.Path)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestSectionSearchRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	doc := &Document{Path: "notes/search.md", Metadata: map[string]any{}}
	require.NoError(t, s.UpsertDocument(ctx, doc))

	section := &Section{
		DocumentID: doc.ID,
		Position:   0,
		Content:    "A passage about quarterly planning and deadlines for the team.",
		Path:       doc.Path,
		TokenCount: 14,
		Embedding:  testVector(0.1),
	}
	require.NoError(t, s.InsertSection(ctx, section))
	require.NotEmpty(t, section.ID)

	results, err := s.QuerySections(ctx, testVector(0.1), 10, 0.5, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)

	got := results[0]
	assert.Equal(t, section.Content, got.Content)
	assert.Equal(t, doc.ID, got.DocumentID)
	assert.Equal(t, doc.Path, got.Path)
	assert.Equal(t, 0, got.Position)
	assert.Equal(t, 14, got.TokenCount)
	assert.Greater(t, got.Score, float32(0.9), "identical vectors should score near 1")
}

func TestQuerySections_MinLengthFilter(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	doc := &Document{Path: "notes/short.md", Metadata: map[string]any{}}
	require.NoError(t, s.UpsertDocument(ctx, doc))

	short := &Section{
		DocumentID: doc.ID,
		Position:   0,
		Content:    "Tiny.",
		Path:       doc.Path,
		Embedding:  testVector(0.2),
	}
	long := &Section{
		DocumentID: doc.ID,
		Position:   1,
		Content:    "A longer passage that easily clears the minimum content length bar.",
		Path:       doc.Path,
		Embedding:  testVector(0.2),
	}
	require.NoError(t, s.InsertSection(ctx, short))
	require.NoError(t, s.InsertSection(ctx, long))

	results, err := s.QuerySections(ctx, testVector(0.2), 10, 0.5, 40)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, long.Content, results[0].Content)
}

func TestDeleteSectionsByDocument(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	doc := &Document{Path: "notes/delete.md", Metadata: map[string]any{}}
	require.NoError(t, s.UpsertDocument(ctx, doc))

	for i := 0; i < 3; i++ {
		require.NoError(t, s.InsertSection(ctx, &Section{
			DocumentID: doc.ID,
			Position:   i,
			Content:    "Section content that is long enough to match later queries.",
			Path:       doc.Path,
			Embedding:  testVector(0.3),
		}))
	}

	require.NoError(t, s.DeleteSectionsByDocument(ctx, doc.ID))

	results, err := s.QuerySections(ctx, testVector(0.3), 10, 0.0, 0)
	require.NoError(t, err)
	assert.Empty(t, results)

	// The document point itself survives a section-only delete.
	_, err = s.GetDocumentByPath(ctx, doc.Path)
	assert.NoError(t, err)
}

func TestDeleteDocumentByPath_Cascades(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	doc := &Document{Path: "notes/cascade.md", Metadata: map[string]any{}}
	require.NoError(t, s.UpsertDocument(ctx, doc))
	require.NoError(t, s.InsertSection(ctx, &Section{
		DocumentID: doc.ID,
		Content:    "Section that must disappear with its document.",
		Path:       doc.Path,
		Embedding:  testVector(0.4),
	}))

	require.NoError(t, s.DeleteDocumentByPath(ctx, doc.Path))

	_, err := s.GetDocumentByPath(ctx, doc.Path)
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	results, err := s.QuerySections(ctx, testVector(0.4), 10, 0.0, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCounts(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, path := range []string{"a.md", "b.md"} {
		doc := &Document{Path: path, Metadata: map[string]any{}}
		require.NoError(t, s.UpsertDocument(ctx, doc))
		require.NoError(t, s.InsertSection(ctx, &Section{
			DocumentID: doc.ID,
			Content:    "Some content for the count test sections.",
			Path:       path,
			Embedding:  testVector(0.5),
		}))
	}

	// Qdrant counts are eventually consistent right after writes.
	time.Sleep(100 * time.Millisecond)

	documents, sections, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), documents)
	assert.Equal(t, uint64(2), sections)
}

func TestDimensionValidation(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	err := s.InsertSection(ctx, &Section{
		DocumentID: uuid.New().String(),
		Content:    "Wrong dimension",
		Embedding:  make([]float32, 512),
	})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = s.QuerySections(ctx, make([]float32, 512), 10, 0.5, 0)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
