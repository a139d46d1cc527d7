package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentID_DeterministicByPath(t *testing.T) {
	a := DocumentID("notes/plan.md")
	b := DocumentID("notes/plan.md")
	assert.Equal(t, a, b, "same path must always map to the same point ID")

	other := DocumentID("notes/other.md")
	assert.NotEqual(t, a, other)
}

func TestDocumentID_IsValidUUID(t *testing.T) {
	id := DocumentID("journal/2026-08-29.md")
	_, err := uuid.Parse(id)
	require.NoError(t, err)
}
