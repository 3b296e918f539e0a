package repo

import (
	"context"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/legalrag/internal/model"
	"github.com/xxxsen/legalrag/internal/pkg/dbutil"
	appErr "github.com/xxxsen/legalrag/internal/pkg/errors"
)

var documentColumns = []string{"id", "title", "url", "category", "content_hash", "source_key", "chunk_count", "ctime", "mtime"}

func (r *CorpusRepo) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	where := map[string]interface{}{
		"id": id,
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	docs, err := r.queryDocuments(ctx, sqlStr, args)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, appErr.ErrNotFound
	}
	return &docs[0], nil
}

// ListDocuments pages through documents, most recently changed first.
func (r *CorpusRepo) ListDocuments(ctx context.Context, limit, offset int) ([]model.Document, error) {
	where := map[string]interface{}{
		"_orderby": "mtime desc, id asc",
		"_limit":   []uint{uint(offset), uint(limit)},
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return r.queryDocuments(ctx, sqlStr, args)
}

func (r *CorpusRepo) queryDocuments(ctx context.Context, sqlStr string, args []interface{}) ([]model.Document, error) {
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	docs := make([]model.Document, 0)
	for rows.Next() {
		var (
			doc      model.Document
			category string
		)
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.URL, &category, &doc.ContentHash,
			&doc.SourceKey, &doc.ChunkCount, &doc.Ctime, &doc.Mtime); err != nil {
			return nil, err
		}
		doc.Category = model.Category(category)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
