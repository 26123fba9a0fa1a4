package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"accountx/internal/domain"
	"accountx/internal/ports"
)

// Record is the constraint shared by the record kinds a RecordService manages.
type Record[T any] interface {
	domain.Record
	CreatedOn() time.Time
	WithIdentity(id string, createdAt, updatedAt time.Time) T
	Detach(refID string) (T, bool)
}

// RecordService implements the permission-gated lifecycle shared by every
// company-owned record kind.
type RecordService[T Record[T]] struct {
	deps   Dependencies
	entity domain.EntityType
	repo   func(ports.Repositories) ports.RecordRepository[T]
	// afterDelete runs inside the deletion transaction.
	afterDelete func(ctx context.Context, repos ports.Repositories, deleted T) error
}

func NewSaleService(deps Dependencies) *RecordService[domain.Sale] {
	return &RecordService[domain.Sale]{
		deps:   deps.withDefaults(),
		entity: domain.EntitySale,
		repo:   func(r ports.Repositories) ports.RecordRepository[domain.Sale] { return r.Sales },
	}
}

func NewPurchaseService(deps Dependencies) *RecordService[domain.Purchase] {
	return &RecordService[domain.Purchase]{
		deps:   deps.withDefaults(),
		entity: domain.EntityPurchase,
		repo:   func(r ports.Repositories) ports.RecordRepository[domain.Purchase] { return r.Purchases },
	}
}

func NewBookingService(deps Dependencies) *RecordService[domain.Booking] {
	return &RecordService[domain.Booking]{
		deps:   deps.withDefaults(),
		entity: domain.EntityBooking,
		repo:   func(r ports.Repositories) ports.RecordRepository[domain.Booking] { return r.Bookings },
	}
}

func NewBookingTypeService(deps Dependencies) *RecordService[domain.BookingType] {
	return &RecordService[domain.BookingType]{
		deps:   deps.withDefaults(),
		entity: domain.EntityBookingType,
		repo:   func(r ports.Repositories) ports.RecordRepository[domain.BookingType] { return r.BookingTypes },
		afterDelete: func(ctx context.Context, repos ports.Repositories, deleted domain.BookingType) error {
			return detachEverywhere(ctx, repos, deleted.CompanyID, deleted.ID)
		},
	}
}

func (s *RecordService[T]) Create(ctx context.Context, actorID string, rec T) (T, error) {
	return s.create(ctx, actorID, rec, nil)
}

// create persists rec and provisions its grants in one transaction. inTx, when set,
// runs in the same transaction after the record is written.
func (s *RecordService[T]) create(ctx context.Context, actorID string, rec T, inTx func(ctx context.Context, created T) error) (T, error) {
	var zero T
	if err := rec.Validate(); err != nil {
		return zero, err
	}
	if err := s.authorizeReferences(ctx, actorID, rec); err != nil {
		return zero, err
	}

	ts := now()
	created := rec.WithIdentity(newID(), ts, ts)
	err := s.deps.Store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		if err := s.repo(repos).Create(ctx, created); err != nil {
			return err
		}
		if err := s.deps.Provisioner.ProvisionChild(ctx, repos, created.CompanyRef(), created.RecordID(), s.entity); err != nil {
			return err
		}
		if inTx != nil {
			return inTx(ctx, created)
		}
		return nil
	})
	s.deps.Metrics.ObserveProvisioning(string(s.entity), err)
	if err != nil {
		s.deps.Logger.Error(ctx, "record creation failed", "entity", s.entity, "company_id", created.CompanyRef(), "error", err)
		return zero, err
	}
	return created, nil
}

func (s *RecordService[T]) Get(ctx context.Context, actorID, id string) (T, error) {
	return s.load(ctx, actorID, domain.ActionView, id)
}

// Update replaces the record's fields. The owning company cannot change.
func (s *RecordService[T]) Update(ctx context.Context, actorID, id string, rec T) (T, error) {
	var zero T
	existing, err := s.load(ctx, actorID, domain.ActionChange, id)
	if err != nil {
		return zero, err
	}
	if rec.CompanyRef() != existing.CompanyRef() {
		return zero, fmt.Errorf("%w: company of a %s cannot change", domain.ErrInvalidInput, s.entity)
	}
	if err := rec.Validate(); err != nil {
		return zero, err
	}
	if err := s.authorizeReferences(ctx, actorID, rec); err != nil {
		return zero, err
	}
	updated := rec.WithIdentity(existing.RecordID(), existing.CreatedOn(), now())
	if err := s.repo(s.deps.Store.Repositories()).Update(ctx, updated); err != nil {
		return zero, err
	}
	return updated, nil
}

// Delete removes the record and every grant on it.
func (s *RecordService[T]) Delete(ctx context.Context, actorID, id string) (T, error) {
	var zero T
	existing, err := s.load(ctx, actorID, domain.ActionDelete, id)
	if err != nil {
		return zero, err
	}
	err = s.deps.Store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		if err := repos.Grants.DeleteByObject(ctx, id); err != nil {
			return fmt.Errorf("delete grants of %s %s: %w", s.entity, id, err)
		}
		if err := s.repo(repos).Delete(ctx, id); err != nil {
			return err
		}
		if s.afterDelete != nil {
			return s.afterDelete(ctx, repos, existing)
		}
		return nil
	})
	if err != nil {
		return zero, err
	}
	return existing, nil
}

// List returns the records the actor can view that match filter.
func (s *RecordService[T]) List(ctx context.Context, actorID string, filter domain.RecordFilter) ([]T, error) {
	ids, err := s.deps.Evaluator.FilterAccessible(ctx, domain.UserSubject(actorID), domain.Perm(domain.ActionView, s.entity), s.entity)
	if err != nil {
		return nil, err
	}
	if len(filter.IDs) > 0 {
		ids = intersect(ids, filter.IDs)
	}
	if len(ids) == 0 {
		return []T{}, nil
	}
	filter.IDs = ids
	return s.repo(s.deps.Store.Repositories()).List(ctx, filter)
}

func (s *RecordService[T]) load(ctx context.Context, actorID string, action domain.Action, id string) (T, error) {
	var zero T
	if id == "" {
		return zero, domain.ErrInvalidInput
	}
	rec, err := s.repo(s.deps.Store.Repositories()).GetByID(ctx, id)
	if err != nil {
		return zero, err
	}
	if err := s.deps.Evaluator.Authorize(ctx, actorID, action, s.entity, id); err != nil {
		return zero, err
	}
	return rec, nil
}

// authorizeReferences checks the parent company and every referenced booking type
// or media. A reference the actor cannot see, or one owned by another company, is
// reported as domain.ErrPermissionDeny whether or not it exists.
func (s *RecordService[T]) authorizeReferences(ctx context.Context, actorID string, rec T) error {
	repos := s.deps.Store.Repositories()
	companyID := rec.CompanyRef()
	if _, err := repos.Companies.GetByID(ctx, companyID); err != nil {
		return denyMissing(err, domain.EntityCompany, companyID)
	}
	parent := domain.Perm(s.deps.Provisioner.Policy().ParentAction, domain.EntityCompany)
	if err := s.deps.Evaluator.Require(ctx, actorID, parent, companyID); err != nil {
		return err
	}

	refs := rec.References()
	if refs.BookingTypeID != "" {
		bt, err := repos.BookingTypes.GetByID(ctx, refs.BookingTypeID)
		if err != nil {
			return denyMissing(err, domain.EntityBookingType, refs.BookingTypeID)
		}
		if err := s.requireSibling(ctx, actorID, bt, companyID); err != nil {
			return err
		}
	}
	for _, mediaID := range unique(refs.MediaIDs) {
		m, err := repos.Media.GetByID(ctx, mediaID)
		if err != nil {
			return denyMissing(err, domain.EntityMedia, mediaID)
		}
		if err := s.requireSibling(ctx, actorID, m, companyID); err != nil {
			return err
		}
	}
	return nil
}

func (s *RecordService[T]) requireSibling(ctx context.Context, actorID string, ref domain.Record, companyID string) error {
	if ref.CompanyRef() != companyID {
		return fmt.Errorf("%w: %s %s belongs to another company", domain.ErrPermissionDeny, ref.Entity(), ref.RecordID())
	}
	return s.deps.Evaluator.Require(ctx, actorID, domain.Perm(domain.ActionView, ref.Entity()), ref.RecordID())
}

func denyMissing(err error, entity domain.EntityType, id string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", domain.ErrPermissionDeny, entity, id)
	}
	return err
}

// detachEverywhere drops refID from the ledger records of the company.
func detachEverywhere(ctx context.Context, repos ports.Repositories, companyID, refID string) error {
	if err := detachFrom(ctx, repos.Sales, companyID, refID); err != nil {
		return err
	}
	if err := detachFrom(ctx, repos.Purchases, companyID, refID); err != nil {
		return err
	}
	return detachFrom(ctx, repos.Bookings, companyID, refID)
}

func detachFrom[T Record[T]](ctx context.Context, repo ports.RecordRepository[T], companyID, refID string) error {
	records, err := repo.List(ctx, domain.RecordFilter{CompanyID: companyID})
	if err != nil {
		return err
	}
	for _, r := range records {
		detached, changed := r.Detach(refID)
		if !changed {
			continue
		}
		if err := repo.Update(ctx, detached); err != nil {
			return fmt.Errorf("detach %s from %s %s: %w", refID, r.Entity(), r.RecordID(), err)
		}
	}
	return nil
}
