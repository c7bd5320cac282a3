package feedback

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/document-extractor/internal/entity"
)

// staticEmbedder maps a handful of document types onto fixed unit vectors.
type staticEmbedder map[string][]float32

func (s staticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := s[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func TestQdrantIndexRoundTrip(t *testing.T) {
	host := os.Getenv("QDRANT_HOST")
	if host == "" {
		t.Skip("QDRANT_HOST not set")
	}
	port := 6334
	if p, err := strconv.Atoi(os.Getenv("QDRANT_PORT")); err == nil {
		port = p
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	emb := staticEmbedder{"Invoice": {1, 0, 0}, "Receipt": {0, 1, 0}}
	idx, err := NewQdrantIndex(QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: "feedback_test_" + uuid.NewString()[:8],
		Dimensions: 3,
	}, emb, discard)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.EnsureIndex(ctx))
	require.NoError(t, idx.EnsureIndex(ctx))

	invoice := entity.FeedbackSummary{ID: uuid.New(), DocumentID: uuid.New(), DocumentType: "Invoice", HasComments: true, CreatedAt: time.Now()}
	receipt := entity.FeedbackSummary{ID: uuid.New(), DocumentID: uuid.New(), DocumentType: "Receipt", HasComments: true, CreatedAt: time.Now()}
	require.NoError(t, idx.IndexFeedback(ctx, invoice))
	require.NoError(t, idx.IndexFeedback(ctx, receipt))

	hits, err := idx.FindSimilar(ctx, "Invoice", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, invoice.ID, hits[0].FeedbackID)
	assert.Equal(t, "Invoice", hits[0].DocumentType)
}
