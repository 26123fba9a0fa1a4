package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"accountx/internal/domain"
)

type grantRepository struct {
	exec executor
}

func (r *grantRepository) Put(ctx context.Context, g domain.Grant) error {
	q := builder.Insert("grants").
		Columns("object_id", "permission", "subject_type", "subject_id").
		Values(g.ObjectID, g.Permission.String(), string(g.Subject.Type), g.Subject.ID).
		Suffix("ON CONFLICT DO NOTHING")
	_, err := execStmt(ctx, r.exec, q, "insert grant")
	return err
}

func (r *grantRepository) Delete(ctx context.Context, g domain.Grant) error {
	q := builder.Delete("grants").Where(squirrel.Eq{
		"object_id":    g.ObjectID,
		"permission":   g.Permission.String(),
		"subject_type": string(g.Subject.Type),
		"subject_id":   g.Subject.ID,
	})
	_, err := execStmt(ctx, r.exec, q, "delete grant")
	return err
}

func (r *grantRepository) ListHolders(ctx context.Context, perm domain.Permission, objectID string) ([]domain.Subject, error) {
	grants, err := r.list(ctx, squirrel.Eq{"object_id": objectID, "permission": perm.String()})
	if err != nil {
		return nil, err
	}
	holders := make([]domain.Subject, 0, len(grants))
	for _, g := range grants {
		holders = append(holders, g.Subject)
	}
	return holders, nil
}

func (r *grantRepository) ListObjects(ctx context.Context, subject domain.Subject, perm domain.Permission) ([]string, error) {
	q := builder.Select("object_id").
		From("grants").
		Where(squirrel.Eq{"subject_type": string(subject.Type), "subject_id": subject.ID, "permission": perm.String()}).
		OrderBy("object_id")
	return queryStrings(ctx, r.exec, q, "list granted objects")
}

func (r *grantRepository) ListByObject(ctx context.Context, objectID string) ([]domain.Grant, error) {
	return r.list(ctx, squirrel.Eq{"object_id": objectID})
}

func (r *grantRepository) ListBySubject(ctx context.Context, subject domain.Subject) ([]domain.Grant, error) {
	return r.list(ctx, squirrel.Eq{"subject_type": string(subject.Type), "subject_id": subject.ID})
}

func (r *grantRepository) DeleteByObject(ctx context.Context, objectID string) error {
	_, err := execStmt(ctx, r.exec, builder.Delete("grants").Where(squirrel.Eq{"object_id": objectID}), "delete grants by object")
	return err
}

func (r *grantRepository) DeleteBySubject(ctx context.Context, subject domain.Subject) error {
	q := builder.Delete("grants").Where(squirrel.Eq{"subject_type": string(subject.Type), "subject_id": subject.ID})
	_, err := execStmt(ctx, r.exec, q, "delete grants by subject")
	return err
}

func (r *grantRepository) list(ctx context.Context, where squirrel.Eq) ([]domain.Grant, error) {
	stmt, args, err := builder.Select("object_id", "permission", "subject_type", "subject_id").
		From("grants").
		Where(where).
		OrderBy("object_id", "permission", "subject_type", "subject_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select grants sql: %w", err)
	}
	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, translate(err, "query grants")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Grant, error) {
		var (
			g           domain.Grant
			perm, stype string
		)
		if err := row.Scan(&g.ObjectID, &perm, &stype, &g.Subject.ID); err != nil {
			return domain.Grant{}, err
		}
		p, err := domain.ParsePermission(perm)
		if err != nil {
			return domain.Grant{}, err
		}
		g.Permission, g.Subject.Type = p, domain.SubjectType(stype)
		return g, nil
	})
}
