package retrieval

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/raailabs/raai/internal/llm"
)

const vectorSchema = `
CREATE TABLE IF NOT EXISTS chunk_embeddings (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	text      TEXT NOT NULL,
	source_id TEXT NOT NULL DEFAULT '',
	url       TEXT NOT NULL DEFAULT '',
	title     TEXT NOT NULL DEFAULT '',
	embedding BLOB NOT NULL
);
`

// VectorIndex stores chunk embeddings as little-endian float32 blobs in
// SQLite. When the sqlite-vec extension is present (vec0 virtual tables) ANN
// search runs in the database; otherwise search brute-forces cosine
// similarity over the stored blobs.
type VectorIndex struct {
	db       *sql.DB
	embedder llm.Embedder
	log      *zap.SugaredLogger
	vecExt   bool
	dims     int
}

// NewVectorIndex prepares the embedding table. The embedder may not be nil;
// an absent embedder means the engine should run without a vector index.
func NewVectorIndex(db *sql.DB, embedder llm.Embedder, dims int, log *zap.SugaredLogger) (*VectorIndex, error) {
	if embedder == nil {
		return nil, fmt.Errorf("vector index requires an embedder")
	}
	if _, err := db.Exec(vectorSchema); err != nil {
		return nil, fmt.Errorf("failed to create embedding table: %w", err)
	}

	v := &VectorIndex{db: db, embedder: embedder, log: log, dims: dims}
	v.vecExt = v.detectVecExtension()
	if v.vecExt {
		log.Infow("sqlite-vec extension detected; ANN search enabled")
	} else {
		log.Infow("sqlite-vec extension not available; using brute-force cosine search")
	}
	return v, nil
}

// detectVecExtension probes for vec0 virtual table support.
func (v *VectorIndex) detectVecExtension() bool {
	if _, err := v.db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS vec_probe USING vec0(embedding float[4])"); err != nil {
		return false
	}
	v.db.Exec("DROP TABLE IF EXISTS vec_probe")

	ddl := fmt.Sprintf(
		"CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(rowid INTEGER PRIMARY KEY, embedding float[%d])",
		v.dims)
	if _, err := v.db.Exec(ddl); err != nil {
		return false
	}
	return true
}

// Add embeds and indexes the chunks. Chunks whose embedding fails are
// skipped with a warning; ingestion should not abort wholesale over one bad
// passage.
func (v *VectorIndex) Add(ctx context.Context, chunks []Chunk) error {
	for _, c := range chunks {
		vec, err := v.embedder.Embed(ctx, c.Text)
		if err != nil {
			v.log.Warnw("embedding failed; chunk skipped", "error", err, "source", c.SourceID)
			continue
		}
		blob := encodeFloat32Blob(vec)

		res, err := v.db.ExecContext(ctx,
			`INSERT INTO chunk_embeddings (text, source_id, url, title, embedding) VALUES (?, ?, ?, ?, ?)`,
			c.Text, c.SourceID, c.URL, c.Title, blob)
		if err != nil {
			return fmt.Errorf("failed to store embedding: %w", err)
		}

		if v.vecExt {
			if id, err := res.LastInsertId(); err == nil {
				if _, err := v.db.ExecContext(ctx,
					`INSERT INTO vec_chunks (rowid, embedding) VALUES (?, ?)`, id, blob); err != nil {
					v.log.Warnw("vec table insert failed", "error", err)
				}
			}
		}
	}
	return nil
}

// SimilaritySearch returns the top-k chunks nearest to query.
func (v *VectorIndex) SimilaritySearch(ctx context.Context, query string, k int) ([]Chunk, error) {
	queryVec, err := v.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}

	if v.vecExt {
		chunks, err := v.searchVec(ctx, queryVec, k)
		if err == nil {
			return chunks, nil
		}
		v.log.Debugw("vec search failed; falling back to brute force", "error", err)
	}
	return v.searchBruteForce(ctx, queryVec, k)
}

// Count reports the number of indexed embeddings.
func (v *VectorIndex) Count(ctx context.Context) (int, error) {
	var n int
	err := v.db.QueryRowContext(ctx, `SELECT count(*) FROM chunk_embeddings`).Scan(&n)
	return n, err
}

func (v *VectorIndex) searchVec(ctx context.Context, queryVec []float32, k int) ([]Chunk, error) {
	rows, err := v.db.QueryContext(ctx, `
		SELECT ce.text, ce.source_id, ce.url, ce.title,
		       vec_distance_cosine(vc.embedding, ?) AS distance
		FROM vec_chunks vc
		JOIN chunk_embeddings ce ON ce.id = vc.rowid
		ORDER BY distance ASC
		LIMIT ?`, encodeFloat32Blob(queryVec), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		var distance float64
		if err := rows.Scan(&c.Text, &c.SourceID, &c.URL, &c.Title, &distance); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (v *VectorIndex) searchBruteForce(ctx context.Context, queryVec []float32, k int) ([]Chunk, error) {
	rows, err := v.db.QueryContext(ctx,
		`SELECT text, source_id, url, title, embedding FROM chunk_embeddings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type scored struct {
		chunk Chunk
		sim   float64
	}
	var candidates []scored

	for rows.Next() {
		var c Chunk
		var blob []byte
		if err := rows.Scan(&c.Text, &c.SourceID, &c.URL, &c.Title, &blob); err != nil {
			return nil, err
		}
		vec := decodeFloat32Blob(blob)
		candidates = append(candidates, scored{chunk: c, sim: cosineSimilarity(queryVec, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].sim > candidates[j].sim
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	out := make([]Chunk, len(candidates))
	for i, s := range candidates {
		out[i] = s.chunk
	}
	return out, nil
}

// encodeFloat32Blob encodes a float32 slice little-endian, the layout
// sqlite-vec expects.
func encodeFloat32Blob(vec []float32) []byte {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, vec)
	return buf.Bytes()
}

func decodeFloat32Blob(blob []byte) []float32 {
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
