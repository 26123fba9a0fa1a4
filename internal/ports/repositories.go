package ports

import (
	"context"

	"accountx/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	Update(ctx context.Context, user domain.User) error
	Delete(ctx context.Context, userID string) error
	GetByID(ctx context.Context, userID string) (domain.User, error)
	ListByIDs(ctx context.Context, userIDs []string) ([]domain.User, error)
}

// GroupRepository enforces unique group names: Create and Rename return
// domain.ErrDuplicateName when the name is taken.
type GroupRepository interface {
	Create(ctx context.Context, group domain.Group) error
	Rename(ctx context.Context, groupID, name string) error
	Delete(ctx context.Context, groupID string) error
	GetByID(ctx context.Context, groupID string) (domain.Group, error)
	GetByName(ctx context.Context, name string) (domain.Group, error)
	ListByIDs(ctx context.Context, groupIDs []string) ([]domain.Group, error)
	AddMember(ctx context.Context, groupID, userID string) error
	RemoveMember(ctx context.Context, groupID, userID string) error
	ListByMember(ctx context.Context, userID string) ([]domain.Group, error)
	ListMembers(ctx context.Context, groupID string) ([]string, error)
}

// GrantRepository is the (subject, permission, object) table. Put and Delete are
// idempotent.
type GrantRepository interface {
	Put(ctx context.Context, grant domain.Grant) error
	Delete(ctx context.Context, grant domain.Grant) error
	ListHolders(ctx context.Context, perm domain.Permission, objectID string) ([]domain.Subject, error)
	ListObjects(ctx context.Context, subject domain.Subject, perm domain.Permission) ([]string, error)
	ListByObject(ctx context.Context, objectID string) ([]domain.Grant, error)
	ListBySubject(ctx context.Context, subject domain.Subject) ([]domain.Grant, error)
	DeleteByObject(ctx context.Context, objectID string) error
	DeleteBySubject(ctx context.Context, subject domain.Subject) error
}

// CompanyRepository returns domain.ErrConflict when a company name is taken or when
// a new company names a group another company already owns.
type CompanyRepository interface {
	Create(ctx context.Context, company domain.Company) error
	Update(ctx context.Context, company domain.Company) error
	Delete(ctx context.Context, companyID string) error
	GetByID(ctx context.Context, companyID string) (domain.Company, error)
	// GetByGroup returns the company owning groupID, or domain.ErrNotFound.
	GetByGroup(ctx context.Context, groupID string) (domain.Company, error)
	List(ctx context.Context, companyIDs []string) ([]domain.Company, error)
}

// RecordRepository stores one kind of company-owned record. List with an empty
// filter returns every record of the kind.
type RecordRepository[T domain.Record] interface {
	Create(ctx context.Context, record T) error
	Update(ctx context.Context, record T) error
	Delete(ctx context.Context, recordID string) error
	GetByID(ctx context.Context, recordID string) (T, error)
	List(ctx context.Context, filter domain.RecordFilter) ([]T, error)
}

type Repositories struct {
	Users        UserRepository
	Groups       GroupRepository
	Grants       GrantRepository
	Companies    CompanyRepository
	Sales        RecordRepository[domain.Sale]
	Purchases    RecordRepository[domain.Purchase]
	Bookings     RecordRepository[domain.Booking]
	BookingTypes RecordRepository[domain.BookingType]
	Media        RecordRepository[domain.Media]
}

// Store hands out repositories and runs units of work. Writes made through the
// repositories passed to fn are committed together or not at all. Reads inside fn
// are only guaranteed to observe data committed before fn started.
type Store interface {
	Repositories() Repositories
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	ListIDs(ctx context.Context, entity domain.EntityType) ([]string, error)
}
