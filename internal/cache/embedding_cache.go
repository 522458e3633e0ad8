package cache

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// DB interface for database operations (compatible with pgxpool.Pool and pgxmock)
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

// Entry is the stored extraction result of one enrollment image.
// Embedding is nil when the image did not contain exactly one face.
type Entry struct {
	ImageID   string
	PersonID  string
	FaceCount int
	Embedding []float64
}

// EmbeddingCache persists extraction results per enrollment image and model,
// so restarts and resyncs do not re-run the extractor on unchanged images
type EmbeddingCache struct {
	db    DB
	model string
}

// NewEmbeddingCache creates a cache for embeddings produced by model
func NewEmbeddingCache(db *pgxpool.Pool, model string) *EmbeddingCache {
	return &EmbeddingCache{db: db, model: model}
}

// NewEmbeddingCacheWithDB creates a cache with custom DB interface
func NewEmbeddingCacheWithDB(db DB, model string) *EmbeddingCache {
	return &EmbeddingCache{db: db, model: model}
}

func toVector(embedding []float64) *pgvector.Vector {
	if len(embedding) == 0 {
		return nil
	}
	floats := make([]float32, len(embedding))
	for i, v := range embedding {
		floats[i] = float32(v)
	}
	vec := pgvector.NewVector(floats)
	return &vec
}

func fromVector(vec *pgvector.Vector) []float64 {
	if vec == nil || vec.Slice() == nil {
		return nil
	}
	out := make([]float64, len(vec.Slice()))
	for i, v := range vec.Slice() {
		out[i] = float64(v)
	}
	return out
}

// GetMultiple returns the cached results for the given images keyed by image id.
// Images without a stored result are absent from the map.
func (c *EmbeddingCache) GetMultiple(ctx context.Context, imageIDs []string) (map[string]Entry, error) {
	if len(imageIDs) == 0 {
		return make(map[string]Entry), nil
	}

	query := `
		SELECT image_id, person_id, face_count, embedding
		FROM enrollment_embeddings
		WHERE image_id = ANY($1) AND model = $2
	`

	rows, err := c.db.Query(ctx, query, imageIDs, c.model)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]Entry, len(imageIDs))
	for rows.Next() {
		var entry Entry
		var embedding *pgvector.Vector
		if err := rows.Scan(&entry.ImageID, &entry.PersonID, &entry.FaceCount, &embedding); err != nil {
			return nil, err
		}
		entry.Embedding = fromVector(embedding)
		result[entry.ImageID] = entry
	}

	return result, rows.Err()
}

// Set stores the extraction result for an image, replacing any previous one
func (c *EmbeddingCache) Set(ctx context.Context, entry Entry) error {
	query := `
		INSERT INTO enrollment_embeddings (image_id, model, person_id, face_count, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (image_id, model) DO UPDATE
		SET person_id = EXCLUDED.person_id,
		    face_count = EXCLUDED.face_count,
		    embedding = EXCLUDED.embedding,
		    created_at = NOW()
	`

	_, err := c.db.Exec(ctx, query, entry.ImageID, c.model, entry.PersonID, entry.FaceCount, toVector(entry.Embedding))
	return err
}

// Clear removes all results produced by this cache's model
func (c *EmbeddingCache) Clear(ctx context.Context) (int64, error) {
	query := `DELETE FROM enrollment_embeddings WHERE model = $1`
	result, err := c.db.Exec(ctx, query, c.model)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
