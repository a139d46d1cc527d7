// Package store persists documents and their embedded sections in Qdrant and
// answers similarity queries over them.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

const (
	pointTypeDocument = "document"
	pointTypeSection  = "section"

	// vectorName is the named vector carried by section points. Document
	// points use an empty vector map so both kinds share one collection.
	vectorName = "content"
)

// documentNamespace seeds deterministic document IDs so upserting by path
// always lands on the same point.
var documentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("vaultsearch/document"))

// DocumentID derives the stable point ID for a document path.
func DocumentID(path string) string {
	return uuid.NewSHA1(documentNamespace, []byte(path)).String()
}

// Store wraps the Qdrant client with the collection schema for documents and
// sections.
type Store struct {
	client     *qdrant.Client
	collection string
	vectorSize uint64
}

// New creates a Qdrant-backed store and validates connectivity. The health
// check retries with exponential backoff and fails fast if Qdrant stays
// unreachable, so callers refuse to sync or search against a dead store.
func New(host string, port int, collection string, vectorSize int) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	if collection == "" {
		collection = DefaultCollection
	}
	s := &Store{
		client:     client,
		collection: collection,
		vectorSize: uint64(vectorSize),
	}

	if err := s.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return s, nil
}

func (s *Store) healthCheckWithRetry(ctx context.Context) error {
	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, newBackOff())
}

// Health performs a single health check against Qdrant.
func (s *Store) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection creates the collection and payload indexes if they do not
// exist yet. Idempotent.
func (s *Store) EnsureCollection(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, name := range collections {
		if name == s.collection {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			vectorName: {
				Size:     s.vectorSize,
				Distance: qdrant.Distance_Cosine,
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	return s.createPayloadIndexes(ctx)
}

// createPayloadIndexes indexes every field the store filters on. Without
// these, filtered scrolls and queries degrade badly as the corpus grows.
func (s *Store) createPayloadIndexes(ctx context.Context) error {
	keyword := []string{"type", "path", "document_id"}
	for _, field := range keyword {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("create index for field %s: %w", field, err)
		}
	}

	_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.collection,
		FieldName:      "content_length",
		FieldType:      qdrant.FieldType_FieldTypeInteger.Enum(),
	})
	if err != nil {
		return fmt.Errorf("create index for field content_length: %w", err)
	}

	return nil
}

// Close closes the Qdrant client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *Store) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	operation := func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
		})
		return err
	}
	return backoff.Retry(operation, backoff.WithContext(newBackOff(), ctx))
}

// UpsertDocument writes a document point, keyed deterministically by path so
// repeated upserts for the same path overwrite in place. The document's ID
// field is populated on return.
func (s *Store) UpsertDocument(ctx context.Context, doc *Document) error {
	if doc.ID == "" {
		doc.ID = DocumentID(doc.Path)
	}
	if doc.IndexedAt.IsZero() {
		doc.IndexedAt = time.Now().UTC()
	}

	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(doc.ID),
		Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{}),
		Payload: qdrant.NewValueMap(map[string]any{
			"type":       pointTypeDocument,
			"path":       doc.Path,
			"checksum":   doc.Checksum,
			"is_public":  doc.IsPublic,
			"metadata":   string(metadata),
			"indexed_at": doc.IndexedAt.Format(time.RFC3339),
		}),
	}

	return s.upsertWithRetry(ctx, []*qdrant.PointStruct{point})
}

// SetChecksum updates only the checksum field of a document point. The sync
// engine calls this after every section of the document has been persisted.
func (s *Store) SetChecksum(ctx context.Context, id, checksum string) error {
	return s.setPayload(ctx, id, map[string]any{"checksum": checksum})
}

// SetVisibility updates only the visibility flag of a document point.
func (s *Store) SetVisibility(ctx context.Context, id string, public bool) error {
	return s.setPayload(ctx, id, map[string]any{"is_public": public})
}

func (s *Store) setPayload(ctx context.Context, id string, fields map[string]any) error {
	_, err := s.client.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: s.collection,
		Payload:        qdrant.NewValueMap(fields),
		PointsSelector: qdrant.NewPointsSelector(qdrant.NewIDUUID(id)),
	})
	if err != nil {
		return fmt.Errorf("set payload on %s: %w", id, err)
	}
	return nil
}

// InsertSection writes a single section point with its embedding.
func (s *Store) InsertSection(ctx context.Context, section *Section) error {
	if uint64(len(section.Embedding)) != s.vectorSize {
		return fmt.Errorf("%w: section has %d dimensions, expected %d",
			ErrDimensionMismatch, len(section.Embedding), s.vectorSize)
	}
	if section.ID == "" {
		section.ID = uuid.New().String()
	}

	point := &qdrant.PointStruct{
		Id: qdrant.NewIDUUID(section.ID),
		Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
			vectorName: qdrant.NewVector(section.Embedding...),
		}),
		Payload: qdrant.NewValueMap(map[string]any{
			"type":           pointTypeSection,
			"document_id":    section.DocumentID,
			"position":       section.Position,
			"content":        section.Content,
			"content_length": len([]rune(section.Content)),
			"path":           section.Path,
			"token_count":    section.TokenCount,
		}),
	}

	return s.upsertWithRetry(ctx, []*qdrant.PointStruct{point})
}

// DeleteSectionsByDocument removes every section owned by the document.
func (s *Store) DeleteSectionsByDocument(ctx context.Context, documentID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("type", pointTypeSection),
				qdrant.NewMatch("document_id", documentID),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("delete sections of %s: %w", documentID, err)
	}
	return nil
}

// DeleteDocumentByPath removes the document point and all of its sections.
// Both point kinds carry the path in their payload, so one filtered delete
// cascades over the whole family.
func (s *Store) DeleteDocumentByPath(ctx context.Context, path string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("path", path),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("delete document %s: %w", path, err)
	}
	return nil
}

// GetDocumentByPath retrieves a document point by its path. Returns
// ErrDocumentNotFound when the path is not indexed.
func (s *Store) GetDocumentByPath(ctx context.Context, path string) (*Document, error) {
	results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("type", pointTypeDocument),
				qdrant.NewMatch("path", path),
			},
		},
		Limit:       qdrant.PtrOf(uint32(1)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query document by path: %w", err)
	}
	if len(results) == 0 {
		return nil, ErrDocumentNotFound
	}

	return documentFromPayload(results[0].Id.GetUuid(), results[0].Payload), nil
}

// ListDocuments scans every document point in the index. Used by the sync
// engine's reconciliation pass and by the status surface.
func (s *Store) ListDocuments(ctx context.Context) ([]*Document, error) {
	var docs []*Document
	var offset *qdrant.PointId

	batchSize := uint32(100)
	for {
		results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Filter: &qdrant.Filter{
				Must: []*qdrant.Condition{
					qdrant.NewMatch("type", pointTypeDocument),
				},
			},
			Limit:       qdrant.PtrOf(batchSize),
			Offset:      offset,
			WithPayload: qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("scroll documents: %w", err)
		}

		for _, result := range results {
			docs = append(docs, documentFromPayload(result.Id.GetUuid(), result.Payload))
		}

		if uint32(len(results)) < batchSize {
			break
		}
		offset = results[len(results)-1].Id
	}

	return docs, nil
}

// QuerySections runs a similarity query over section points. Results are
// ordered by score descending, cut off below threshold, and restricted to
// sections whose content is at least minLength runes.
func (s *Store) QuerySections(ctx context.Context, vector []float32, matchCount int, threshold float32, minLength int) ([]*ScoredSection, error) {
	if uint64(len(vector)) != s.vectorSize {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), s.vectorSize)
	}

	must := []*qdrant.Condition{
		qdrant.NewMatch("type", pointTypeSection),
	}
	if minLength > 0 {
		must = append(must, qdrant.NewRange("content_length", &qdrant.Range{
			Gte: qdrant.PtrOf(float64(minLength)),
		}))
	}

	using := vectorName
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Using:          &using,
		Filter:         &qdrant.Filter{Must: must},
		Limit:          qdrant.PtrOf(uint64(matchCount)),
		ScoreThreshold: qdrant.PtrOf(threshold),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("query sections: %w", err)
	}

	sections := make([]*ScoredSection, 0, len(results))
	for _, result := range results {
		payload := result.Payload
		sections = append(sections, &ScoredSection{
			Section: Section{
				ID:         result.Id.GetUuid(),
				DocumentID: payload["document_id"].GetStringValue(),
				Position:   int(payload["position"].GetIntegerValue()),
				Content:    payload["content"].GetStringValue(),
				Path:       payload["path"].GetStringValue(),
				TokenCount: int(payload["token_count"].GetIntegerValue()),
			},
			Score: result.Score,
		})
	}

	return sections, nil
}

// Counts returns the number of indexed documents and sections.
func (s *Store) Counts(ctx context.Context) (documents, sections uint64, err error) {
	documents, err = s.countByType(ctx, pointTypeDocument)
	if err != nil {
		return 0, 0, err
	}
	sections, err = s.countByType(ctx, pointTypeSection)
	if err != nil {
		return 0, 0, err
	}
	return documents, sections, nil
}

func (s *Store) countByType(ctx context.Context, pointType string) (uint64, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("type", pointType),
			},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("count %s points: %w", pointType, err)
	}
	return count, nil
}

// documentFromPayload rebuilds a Document from a stored point payload.
func documentFromPayload(id string, payload map[string]*qdrant.Value) *Document {
	indexedAt, err := time.Parse(time.RFC3339, payload["indexed_at"].GetStringValue())
	if err != nil {
		indexedAt = time.Time{}
	}

	metadata := map[string]any{}
	if raw := payload["metadata"].GetStringValue(); raw != "" {
		// A decode failure leaves the metadata empty rather than failing the
		// read; the checksum still drives re-indexing decisions.
		_ = json.Unmarshal([]byte(raw), &metadata)
	}

	return &Document{
		ID:        id,
		Path:      payload["path"].GetStringValue(),
		Checksum:  payload["checksum"].GetStringValue(),
		Metadata:  metadata,
		IsPublic:  payload["is_public"].GetBoolValue(),
		IndexedAt: indexedAt,
	}
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}
