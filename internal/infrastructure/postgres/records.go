package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"accountx/internal/domain"
)

// recordRepository stores every record kind in the records table, the payload as
// JSONB. Date filters are applied after loading.
type recordRepository[T domain.Record] struct {
	exec   executor
	entity domain.EntityType
}

func newRecordRepository[T domain.Record](exec executor, entity domain.EntityType) *recordRepository[T] {
	return &recordRepository[T]{exec: exec, entity: entity}
}

func (r *recordRepository[T]) Create(ctx context.Context, rec T) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.entity, err)
	}
	q := builder.Insert("records").
		Columns("id", "entity", "company_id", "data", "created_at").
		Values(rec.RecordID(), string(r.entity), rec.CompanyRef(), data, squirrel.Expr("now()"))
	_, err = execStmt(ctx, r.exec, q, "insert "+string(r.entity))
	return err
}

func (r *recordRepository[T]) Update(ctx context.Context, rec T) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.entity, err)
	}
	q := builder.Update("records").
		Set("data", data).
		Set("company_id", rec.CompanyRef()).
		Where(squirrel.Eq{"id": rec.RecordID(), "entity": string(r.entity)})
	tag, err := execStmt(ctx, r.exec, q, "update "+string(r.entity))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s %s: %w", r.entity, rec.RecordID(), domain.ErrNotFound)
	}
	return nil
}

func (r *recordRepository[T]) Delete(ctx context.Context, recordID string) error {
	q := builder.Delete("records").Where(squirrel.Eq{"id": recordID, "entity": string(r.entity)})
	_, err := execStmt(ctx, r.exec, q, "delete "+string(r.entity))
	return err
}

func (r *recordRepository[T]) GetByID(ctx context.Context, recordID string) (T, error) {
	var zero T
	recs, err := r.query(ctx, squirrel.Eq{"id": recordID, "entity": string(r.entity)})
	if err != nil {
		return zero, err
	}
	if len(recs) == 0 {
		return zero, fmt.Errorf("%s %s: %w", r.entity, recordID, domain.ErrNotFound)
	}
	return recs[0], nil
}

func (r *recordRepository[T]) List(ctx context.Context, filter domain.RecordFilter) ([]T, error) {
	where := squirrel.Eq{"entity": string(r.entity)}
	if filter.CompanyID != "" {
		where["company_id"] = filter.CompanyID
	}
	if len(filter.IDs) > 0 {
		where["id"] = filter.IDs
	}
	recs, err := r.query(ctx, where)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		if filter.Match(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *recordRepository[T]) query(ctx context.Context, where squirrel.Eq) ([]T, error) {
	stmt, args, err := builder.Select("data").From("records").Where(where).OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select %s sql: %w", r.entity, err)
	}
	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, translate(err, "query "+string(r.entity))
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (T, error) {
		var (
			rec  T
			data []byte
		)
		if err := row.Scan(&data); err != nil {
			return rec, err
		}
		if err := json.Unmarshal(data, &rec); err != nil {
			return rec, fmt.Errorf("decode %s: %w", r.entity, err)
		}
		return rec, nil
	})
}
