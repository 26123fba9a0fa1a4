package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsv2types "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"accountx/internal/domain"
)

// Every grant is stored twice: once under its object and once under its subject,
// so holders and accessible objects are both a single query.
type grantRepository struct {
	s *session
}

type grantItem struct {
	Permission  string `dynamodbav:"Permission"`
	SubjectType string `dynamodbav:"SubjectType"`
	SubjectID   string `dynamodbav:"SubjectID"`
	ObjectID    string `dynamodbav:"ObjectID"`
}

func toGrantItem(g domain.Grant) grantItem {
	return grantItem{
		Permission:  g.Permission.String(),
		SubjectType: string(g.Subject.Type),
		SubjectID:   g.Subject.ID,
		ObjectID:    g.ObjectID,
	}
}

func (i grantItem) grant() (domain.Grant, error) {
	perm, err := domain.ParsePermission(i.Permission)
	if err != nil {
		return domain.Grant{}, err
	}
	return domain.Grant{
		Permission: perm,
		Subject:    domain.Subject{Type: domain.SubjectType(i.SubjectType), ID: i.SubjectID},
		ObjectID:   i.ObjectID,
	}, nil
}

func (r *grantRepository) Put(ctx context.Context, grant domain.Grant) error {
	item := toGrantItem(grant)
	byObject, err := putOp(objectPK(grant.ObjectID), grantObjectSK(grant), entityGrant, item)
	if err != nil {
		return err
	}
	bySubject, err := putOp(subjectPK(grant.Subject), grantSubjectSK(grant), entityGrant, item)
	if err != nil {
		return err
	}
	return r.s.write(ctx, "DynamoDB.PutGrant", byObject, bySubject)
}

func (r *grantRepository) Delete(ctx context.Context, grant domain.Grant) error {
	return r.s.write(ctx, "DynamoDB.DeleteGrant", grantDeletes(grant)...)
}

func (r *grantRepository) ListHolders(ctx context.Context, perm domain.Permission, objectID string) ([]domain.Subject, error) {
	grants, err := r.query(ctx, "DynamoDB.ListHolders", objectPK(objectID), grantPrefix(perm))
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
	grants, err := r.query(ctx, "DynamoDB.ListObjects", subjectPK(subject), grantPrefix(perm))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(grants))
	for _, g := range grants {
		ids = append(ids, g.ObjectID)
	}
	return ids, nil
}

func (r *grantRepository) ListByObject(ctx context.Context, objectID string) ([]domain.Grant, error) {
	return r.query(ctx, "DynamoDB.ListGrantsByObject", objectPK(objectID), grantPrefix(domain.Permission{}))
}

func (r *grantRepository) ListBySubject(ctx context.Context, subject domain.Subject) ([]domain.Grant, error) {
	return r.query(ctx, "DynamoDB.ListGrantsBySubject", subjectPK(subject), grantPrefix(domain.Permission{}))
}

func (r *grantRepository) DeleteByObject(ctx context.Context, objectID string) error {
	grants, err := r.ListByObject(ctx, objectID)
	if err != nil {
		return err
	}
	return r.deleteAll(ctx, grants)
}

func (r *grantRepository) DeleteBySubject(ctx context.Context, subject domain.Subject) error {
	grants, err := r.ListBySubject(ctx, subject)
	if err != nil {
		return err
	}
	return r.deleteAll(ctx, grants)
}

func (r *grantRepository) deleteAll(ctx context.Context, grants []domain.Grant) error {
	if len(grants) == 0 {
		return nil
	}
	ops := make([]writeOp, 0, 2*len(grants))
	for _, g := range grants {
		ops = append(ops, grantDeletes(g)...)
	}
	return r.s.write(ctx, "DynamoDB.DeleteGrants", ops...)
}

func (r *grantRepository) query(ctx context.Context, segment, pk, prefix string) ([]domain.Grant, error) {
	items, err := r.s.client.queryPrefix(ctx, segment, pk, prefix)
	if err != nil {
		return nil, err
	}
	return grantsFrom(items)
}

func grantsFrom(items []map[string]awsv2types.AttributeValue) ([]domain.Grant, error) {
	grants := make([]domain.Grant, 0, len(items))
	for _, item := range items {
		var gi grantItem
		if err := attributevalue.UnmarshalMap(item, &gi); err != nil {
			return nil, err
		}
		g, err := gi.grant()
		if err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, nil
}

func grantDeletes(g domain.Grant) []writeOp {
	return []writeOp{
		deleteOp(objectPK(g.ObjectID), grantObjectSK(g)),
		deleteOp(subjectPK(g.Subject), grantSubjectSK(g)),
	}
}
