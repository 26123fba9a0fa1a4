package dynamodb

import (
	"context"
	"slices"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"

	"accountx/internal/domain"
	"accountx/internal/ports"
)

// Store keeps the whole permission model in one DynamoDB table.
//
// Outside WithinTx every repository call is committed on its own. Inside WithinTx
// writes are buffered and committed with TransactWriteItems once fn returns; a unit
// of work larger than one transaction is split into several.
type Store struct {
	client *Client
}

var _ ports.Store = (*Store)(nil)

func NewStore(client *Client) *Store {
	return &Store{client: client}
}

func (s *Store) Repositories() ports.Repositories {
	return repositoriesFor(&session{client: s.client})
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos ports.Repositories) error) error {
	sess := &session{client: s.client, tx: newBatch()}
	if err := fn(ctx, repositoriesFor(sess)); err != nil {
		return err
	}
	return s.client.commit(ctx, "DynamoDB.TransactWriteItems", sess.tx)
}

func (s *Store) ListIDs(ctx context.Context, entity domain.EntityType) ([]string, error) {
	items, err := s.client.scanEntity(ctx, string(entity), "ID")
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		var row struct {
			ID string `dynamodbav:"ID"`
		}
		if err := attributevalue.UnmarshalMap(item, &row); err != nil {
			return nil, err
		}
		ids = append(ids, row.ID)
	}
	slices.Sort(ids)
	return ids, nil
}

// session routes writes either straight to the table or into the open transaction.
type session struct {
	client *Client
	tx     *batch
}

func (s *session) write(ctx context.Context, segment string, ops ...writeOp) error {
	if s.tx != nil {
		s.tx.add(ops...)
		return nil
	}
	b := newBatch()
	b.add(ops...)
	return s.client.commit(ctx, segment, b)
}

func repositoriesFor(s *session) ports.Repositories {
	return ports.Repositories{
		Users:        &userRepository{s: s},
		Groups:       &groupRepository{s: s},
		Grants:       &grantRepository{s: s},
		Companies:    &companyRepository{s: s},
		Sales:        newRecordRepository[domain.Sale](s, domain.EntitySale),
		Purchases:    newRecordRepository[domain.Purchase](s, domain.EntityPurchase),
		Bookings:     newRecordRepository[domain.Booking](s, domain.EntityBooking),
		BookingTypes: newRecordRepository[domain.BookingType](s, domain.EntityBookingType),
		Media:        newRecordRepository[domain.Media](s, domain.EntityMedia),
	}
}
