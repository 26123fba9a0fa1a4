package application

import (
	"context"
	"fmt"

	"accountx/internal/domain"
	"accountx/internal/ports"
)

type GrantService struct {
	store ports.Store
}

func NewGrantService(store ports.Store) *GrantService {
	return &GrantService{store: store}
}

func (s *GrantService) Grant(ctx context.Context, perm domain.Permission, subject domain.Subject, objectID string) error {
	grant := domain.Grant{Permission: perm, Subject: subject, ObjectID: objectID}
	if err := grant.Validate(); err != nil {
		return err
	}
	return s.store.Repositories().Grants.Put(ctx, grant)
}

func (s *GrantService) Revoke(ctx context.Context, perm domain.Permission, subject domain.Subject, objectID string) error {
	grant := domain.Grant{Permission: perm, Subject: subject, ObjectID: objectID}
	if err := grant.Validate(); err != nil {
		return err
	}
	return s.store.Repositories().Grants.Delete(ctx, grant)
}

func (s *GrantService) HoldersOf(ctx context.Context, perm domain.Permission, objectID string) ([]domain.Subject, error) {
	if !perm.Valid() || objectID == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.store.Repositories().Grants.ListHolders(ctx, perm, objectID)
}

// ObjectsWithPerm returns the ids of entity objects on which subject holds perms,
// either directly or through any group it belongs to. MatchAny requires one of the
// permissions, MatchAll every one of them.
func (s *GrantService) ObjectsWithPerm(ctx context.Context, subject domain.Subject, perms []domain.Permission, entity domain.EntityType, match domain.MatchMode) ([]string, error) {
	if !subject.Valid() || len(perms) == 0 || !entity.Valid() {
		return nil, domain.ErrInvalidInput
	}
	if match == "" {
		match = domain.MatchAny
	}
	if match != domain.MatchAny && match != domain.MatchAll {
		return nil, domain.ErrInvalidInput
	}
	for _, p := range perms {
		if !p.Valid() || p.Entity != entity {
			return nil, fmt.Errorf("%w: %s is not a %s permission", domain.ErrInvalidInput, p, entity)
		}
	}

	subjects, err := s.expand(ctx, subject)
	if err != nil {
		return nil, err
	}

	var result []string
	for i, perm := range perms {
		var held []string
		for _, sub := range subjects {
			ids, err := s.store.Repositories().Grants.ListObjects(ctx, sub, perm)
			if err != nil {
				return nil, fmt.Errorf("list objects for %s: %w", sub, err)
			}
			held = append(held, ids...)
		}
		held = unique(held)
		switch {
		case i == 0:
			result = held
		case match == domain.MatchAny:
			result = unique(append(result, held...))
		default:
			result = intersect(result, held)
		}
	}
	return result, nil
}

// expand resolves the subjects whose grants count for subject: a user and every
// group it belongs to, or a group on its own.
func (s *GrantService) expand(ctx context.Context, subject domain.Subject) ([]domain.Subject, error) {
	subjects := []domain.Subject{subject}
	if subject.Type != domain.SubjectUser {
		return subjects, nil
	}
	groups, err := s.store.Repositories().Groups.ListByMember(ctx, subject.ID)
	if err != nil {
		return nil, fmt.Errorf("list groups of %s: %w", subject.ID, err)
	}
	for _, g := range groups {
		subjects = append(subjects, domain.GroupSubject(g.ID))
	}
	return subjects, nil
}
