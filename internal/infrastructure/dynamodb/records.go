package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsv2types "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"accountx/internal/domain"
)

// recordRepository keeps each record under REC#<id> and a copy under its company
// partition, which serves listings scoped to one company.
type recordRepository[T domain.Record] struct {
	s      *session
	entity domain.EntityType
}

func newRecordRepository[T domain.Record](s *session, entity domain.EntityType) *recordRepository[T] {
	return &recordRepository[T]{s: s, entity: entity}
}

func (r *recordRepository[T]) segment(op string) string {
	return "DynamoDB." + op + strings.ToUpper(string(r.entity))
}

func (r *recordRepository[T]) items(rec T) (main, index writeOp, err error) {
	main, err = putOp(recordPK(rec.RecordID()), metaSK, string(r.entity), rec)
	if err != nil {
		return writeOp{}, writeOp{}, err
	}
	index, err = putOp(companyPK(rec.CompanyRef()), companyRecordSK(r.entity, rec.RecordID()), "", rec)
	if err != nil {
		return writeOp{}, writeOp{}, err
	}
	return main, index, nil
}

func (r *recordRepository[T]) Create(ctx context.Context, rec T) error {
	main, index, err := r.items(rec)
	if err != nil {
		return err
	}
	return r.s.write(ctx, r.segment("Put"), main.ifNotExists(domain.ErrConflict), index)
}

func (r *recordRepository[T]) Update(ctx context.Context, rec T) error {
	main, index, err := r.items(rec)
	if err != nil {
		return err
	}
	return r.s.write(ctx, r.segment("Put"), main.ifExists(domain.ErrNotFound), index)
}

func (r *recordRepository[T]) Delete(ctx context.Context, recordID string) error {
	rec, err := r.GetByID(ctx, recordID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return r.s.write(ctx, r.segment("Delete"),
		deleteOp(recordPK(recordID), metaSK),
		deleteOp(companyPK(rec.CompanyRef()), companyRecordSK(r.entity, recordID)),
	)
}

// GetByID treats a record of another kind under the same id as missing.
func (r *recordRepository[T]) GetByID(ctx context.Context, recordID string) (T, error) {
	var rec T
	item, err := r.s.client.getRaw(ctx, r.segment("Get"), key(recordPK(recordID), metaSK))
	if err != nil {
		return rec, notFound(err, string(r.entity), recordID)
	}
	if et, ok := item["EntityType"].(*awsv2types.AttributeValueMemberS); !ok || et.Value != string(r.entity) {
		return rec, fmt.Errorf("%w: %s %s", domain.ErrNotFound, r.entity, recordID)
	}
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}

func (r *recordRepository[T]) List(ctx context.Context, filter domain.RecordFilter) ([]T, error) {
	var recs []T
	switch {
	case filter.CompanyID != "":
		items, err := r.s.client.queryPrefix(ctx, r.segment("List"), companyPK(filter.CompanyID), companyRecordPrefix(r.entity))
		if err != nil {
			return nil, err
		}
		if recs, err = unmarshalRecords[T](items); err != nil {
			return nil, err
		}
	case len(filter.IDs) > 0:
		var err error
		if recs, err = collect(ctx, filter.IDs, r.GetByID); err != nil {
			return nil, err
		}
	default:
		items, err := r.s.client.scanEntity(ctx, string(r.entity), "")
		if err != nil {
			return nil, err
		}
		if recs, err = unmarshalRecords[T](items); err != nil {
			return nil, err
		}
	}
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		if filter.Match(rec) {
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b T) int { return strings.Compare(a.RecordID(), b.RecordID()) })
	return out, nil
}

func unmarshalRecords[T domain.Record](items []map[string]awsv2types.AttributeValue) ([]T, error) {
	recs := make([]T, 0, len(items))
	for _, item := range items {
		var rec T
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
