package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/didi/gendry/builder"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/legalrag/internal/model"
	"github.com/xxxsen/legalrag/internal/pkg/dbutil"
	appErr "github.com/xxxsen/legalrag/internal/pkg/errors"
	"github.com/xxxsen/legalrag/internal/rag"
)

const chunkColumns = "seq, id, document_id, title, url, category, content, embedding, embedding_model, position, ctime"

// CorpusRepo is the postgres corpus: documents plus their pgvector chunks.
type CorpusRepo struct {
	db *sql.DB
}

func NewCorpusRepo(db *sql.DB) *CorpusRepo {
	return &CorpusRepo{db: db}
}

// ReplaceDocument upserts doc and swaps its chunks in one transaction, so
// readers see either the old chunk set or the new one.
func (r *CorpusRepo) ReplaceDocument(ctx context.Context, doc *model.Document, chunks []model.Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const upsert = `
		INSERT INTO documents (id, title, url, category, content_hash, source_key, chunk_count, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			url = EXCLUDED.url,
			category = EXCLUDED.category,
			content_hash = EXCLUDED.content_hash,
			source_key = EXCLUDED.source_key,
			chunk_count = EXCLUDED.chunk_count,
			mtime = EXCLUDED.mtime
	`
	if _, err := tx.ExecContext(ctx, upsert,
		doc.ID, doc.Title, doc.URL, string(doc.Category), doc.ContentHash,
		doc.SourceKey, len(chunks), doc.Ctime, doc.Mtime,
	); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, doc.ID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}
	if len(chunks) > 0 {
		rows := make([]map[string]interface{}, 0, len(chunks))
		for _, c := range chunks {
			rows = append(rows, map[string]interface{}{
				"id":              c.ID,
				"document_id":     doc.ID,
				"title":           c.Title,
				"url":             c.URL,
				"category":        string(c.Category),
				"content":         c.Content,
				"embedding":       pgvector.NewVector(c.Embedding),
				"embedding_model": c.EmbeddingModel,
				"position":        c.Position,
				"ctime":           c.Ctime,
			})
		}
		sqlStr, args, err := builder.BuildInsert("chunks", rows)
		if err != nil {
			return err
		}
		sqlStr, args = dbutil.Finalize(sqlStr, args)
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}
	}
	doc.ChunkCount = len(chunks)
	return tx.Commit()
}

func (r *CorpusRepo) DeleteDocument(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *CorpusRepo) ListChunks(ctx context.Context, filter rag.Filter) ([]model.Chunk, error) {
	where := map[string]interface{}{
		"_orderby": "seq asc",
	}
	if len(filter.Categories) > 0 {
		where["category in"] = categoryArgs(filter.Categories)
	}
	if filter.EmbeddingModel != "" {
		where["embedding_model"] = filter.EmbeddingModel
	}
	if filter.DocumentID != "" {
		where["document_id"] = filter.DocumentID
	}
	cols := strings.Split(chunkColumns, ", ")
	sqlStr, args, err := builder.BuildSelect("chunks", where, cols)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	return scanChunks(rows)
}

// SearchCandidates pre-selects by pgvector cosine distance. Chunks of another
// dimension are skipped because the operator rejects them; the model filter is
// part of the WHERE clause so stale chunks never take candidate slots.
func (r *CorpusRepo) SearchCandidates(ctx context.Context, query []float32, filter rag.Filter, limit int) ([]model.Chunk, error) {
	var sb strings.Builder
	sb.WriteString("SELECT " + chunkColumns + " FROM chunks WHERE vector_dims(embedding) = $2")
	args := []interface{}{pgvector.NewVector(query), len(query)}
	if len(filter.Categories) > 0 {
		args = append(args, pq.Array(categoryStrings(filter.Categories)))
		fmt.Fprintf(&sb, " AND category = ANY($%d)", len(args))
	}
	if filter.EmbeddingModel != "" {
		args = append(args, filter.EmbeddingModel)
		fmt.Fprintf(&sb, " AND embedding_model = $%d", len(args))
	}
	if filter.DocumentID != "" {
		args = append(args, filter.DocumentID)
		fmt.Fprintf(&sb, " AND document_id = $%d", len(args))
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, " ORDER BY embedding <=> $1, seq ASC LIMIT $%d", len(args))
	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	return scanChunks(rows)
}

// Dimensions lists every distinct embedding size stored in the corpus.
func (r *CorpusRepo) Dimensions(ctx context.Context) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT vector_dims(embedding) FROM chunks ORDER BY 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var dims []int
	for rows.Next() {
		var d int
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dims = append(dims, d)
	}
	return dims, rows.Err()
}

// ListStale returns chunks embedded by any model other than modelName.
func (r *CorpusRepo) ListStale(ctx context.Context, modelName string, limit int) ([]model.Chunk, error) {
	where := map[string]interface{}{
		"embedding_model !=": modelName,
		"_orderby":           "seq asc",
		"_limit":             []uint{0, uint(limit)},
	}
	sqlStr, args, err := builder.BuildSelect("chunks", where, strings.Split(chunkColumns, ", "))
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	return scanChunks(rows)
}

// UpdateEmbedding swaps a chunk's vector in place. Seq is kept so the
// corpus order does not change.
func (r *CorpusRepo) UpdateEmbedding(ctx context.Context, chunkID string, embedding []float32, modelName string) error {
	sqlStr, args, err := builder.BuildUpdate("chunks",
		map[string]interface{}{"id": chunkID},
		map[string]interface{}{
			"embedding":       pgvector.NewVector(embedding),
			"embedding_model": modelName,
		},
	)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func scanChunks(rows *sql.Rows) ([]model.Chunk, error) {
	defer rows.Close()
	out := make([]model.Chunk, 0)
	for rows.Next() {
		var (
			c        model.Chunk
			category string
			vec      pgvector.Vector
		)
		if err := rows.Scan(&c.Seq, &c.ID, &c.DocumentID, &c.Title, &c.URL, &category,
			&c.Content, &vec, &c.EmbeddingModel, &c.Position, &c.Ctime); err != nil {
			return nil, err
		}
		c.Category = model.Category(category)
		c.Embedding = vec.Slice()
		out = append(out, c)
	}
	return out, rows.Err()
}

func categoryStrings(list []model.Category) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, string(c))
	}
	return out
}

func categoryArgs(list []model.Category) []interface{} {
	out := make([]interface{}, 0, len(list))
	for _, c := range list {
		out = append(out, string(c))
	}
	return out
}
