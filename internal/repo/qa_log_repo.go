package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/legalrag/internal/model"
	"github.com/xxxsen/legalrag/internal/pkg/dbutil"
)

type QALogRepo struct {
	db *sql.DB
}

func NewQALogRepo(db *sql.DB) *QALogRepo {
	return &QALogRepo{db: db}
}

func (r *QALogRepo) Create(ctx context.Context, item *model.QALog) error {
	sources, err := json.Marshal(item.Sources)
	if err != nil {
		return fmt.Errorf("encode sources: %w", err)
	}
	data := map[string]interface{}{
		"id":         item.ID,
		"request_id": item.RequestID,
		"question":   item.Question,
		"answer":     item.Answer,
		"sources":    string(sources),
		"confidence": item.Confidence,
		"outcome":    string(item.Outcome),
		"ctime":      item.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("qa_logs", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *QALogRepo) ListRecent(ctx context.Context, limit int) ([]model.QALog, error) {
	where := map[string]interface{}{
		"_orderby": "ctime desc, id asc",
		"_limit":   []uint{0, uint(limit)},
	}
	cols := []string{"id", "request_id", "question", "answer", "sources", "confidence", "outcome", "ctime"}
	sqlStr, args, err := builder.BuildSelect("qa_logs", where, cols)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.QALog, 0)
	for rows.Next() {
		var (
			item    model.QALog
			sources []byte
			outcome string
		)
		if err := rows.Scan(&item.ID, &item.RequestID, &item.Question, &item.Answer,
			&sources, &item.Confidence, &outcome, &item.Ctime); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(sources, &item.Sources); err != nil {
			return nil, fmt.Errorf("decode sources of %s: %w", item.ID, err)
		}
		item.Outcome = model.Outcome(outcome)
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *QALogRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM qa_logs WHERE ctime < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
