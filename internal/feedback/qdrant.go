package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/joseph-ayodele/document-extractor/internal/entity"
)

// QdrantConfig locates the collection holding feedback vectors.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimensions int
}

// QdrantIndex keeps one point per feedback entry, keyed by the entry id and
// embedded from its document type. It serves both SimilaritySearcher and Indexer.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dims       uint64
	embedder   Embedder
	logger     *slog.Logger
}

var (
	_ SimilaritySearcher = (*QdrantIndex)(nil)
	_ Indexer            = (*QdrantIndex)(nil)
)

func NewQdrantIndex(cfg QdrantConfig, embedder Embedder, logger *slog.Logger) (*QdrantIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &QdrantIndex{
		client:     client,
		collection: cfg.Collection,
		dims:       uint64(cfg.Dimensions),
		embedder:   embedder,
		logger:     logger,
	}, nil
}

func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

// EnsureIndex creates the collection when it does not exist yet.
func (q *QdrantIndex) EnsureIndex(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", q.collection, err)
	}
	if exists {
		return nil
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     q.dims,
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", q.collection, err)
	}
	q.logger.Info("feedback.index.collection_created", "collection", q.collection, "dims", q.dims)
	return nil
}

func (q *QdrantIndex) IndexFeedback(ctx context.Context, s entity.FeedbackSummary) error {
	vec, err := q.embedder.Embed(ctx, s.DocumentType)
	if err != nil {
		return fmt.Errorf("embed feedback %s: %w", s.ID, err)
	}
	wait := true
	_, err = q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(s.ID.String()),
			Vectors: qdrant.NewVectors(vec...),
			Payload: qdrant.NewValueMap(map[string]any{
				"feedback_id":       s.ID.String(),
				"document_id":       s.DocumentID.String(),
				"document_type":     s.DocumentType,
				"problem_fields":    strings.Join(s.ProblemFields, ","),
				"has_comments":      s.HasComments,
				"has_custom_prompt": s.HasCustomPrompt,
				"timestamp":         s.CreatedAt.UTC().Format(time.RFC3339),
			}),
		}},
	})
	if err != nil {
		return fmt.Errorf("upsert feedback %s: %w", s.ID, err)
	}
	q.logger.Debug("feedback.index.upserted", "feedback_id", s.ID, "document_type", s.DocumentType)
	return nil
}

func (q *QdrantIndex) FindSimilar(ctx context.Context, documentType string, limit int) ([]Match, error) {
	vec, err := q.embedder.Embed(ctx, documentType)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	n := uint64(limit)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          &n,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", q.collection, err)
	}

	out := make([]Match, 0, len(hits))
	for _, hit := range hits {
		id, err := uuid.Parse(hit.Payload["feedback_id"].GetStringValue())
		if err != nil {
			q.logger.Warn("feedback.index.bad_payload", "point", hit.GetId().GetUuid(), "error", err)
			continue
		}
		out = append(out, Match{
			FeedbackID:   id,
			DocumentType: hit.Payload["document_type"].GetStringValue(),
			Score:        hit.Score,
		})
	}
	return out, nil
}
