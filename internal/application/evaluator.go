package application

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"accountx/internal/domain"
	"accountx/internal/ports"
)

// Evaluator is the single place where access decisions are made. It reads grants
// and memberships on every call; nothing is cached, so revocations apply to the
// next check.
type Evaluator struct {
	store      ports.Store
	grants     *GrantService
	superusers []string
	logger     ports.Logger
	metrics    ports.Metrics
}

func NewEvaluator(store ports.Store, grants *GrantService, logger ports.Logger, metrics ports.Metrics, superuserIDs ...string) *Evaluator {
	return &Evaluator{
		store:      store,
		grants:     grants,
		superusers: slices.Clone(superuserIDs),
		logger:     orNopLogger(logger),
		metrics:    orNopMetrics(metrics),
	}
}

func (e *Evaluator) IsSuperuser(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	if slices.Contains(e.superusers, userID) {
		return true, nil
	}
	user, err := e.store.Repositories().Users.GetByID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load user %s: %w", userID, err)
	}
	return user.Superuser, nil
}

func (e *Evaluator) HasPermission(ctx context.Context, subject domain.Subject, perm domain.Permission, objectID string) (bool, error) {
	if !subject.Valid() || !perm.Valid() || objectID == "" {
		return false, domain.ErrInvalidInput
	}
	allowed, err := e.decide(ctx, subject, perm, objectID)
	if err != nil {
		return false, err
	}
	e.metrics.ObserveDecision(perm.String(), allowed)
	if !allowed {
		e.logger.Debug(ctx, "permission denied", "subject", subject.String(), "permission", perm.String(), "object_id", objectID)
	}
	return allowed, nil
}

func (e *Evaluator) decide(ctx context.Context, subject domain.Subject, perm domain.Permission, objectID string) (bool, error) {
	if subject.Type == domain.SubjectUser {
		if slices.Contains(e.superusers, subject.ID) {
			return true, nil
		}
		user, err := e.store.Repositories().Users.GetByID(ctx, subject.ID)
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("load user %s: %w", subject.ID, err)
		}
		if user.Superuser {
			return true, nil
		}
	}

	holders, err := e.grants.HoldersOf(ctx, perm, objectID)
	if err != nil {
		return false, fmt.Errorf("list holders of %s on %s: %w", perm, objectID, err)
	}
	if len(holders) == 0 {
		return false, nil
	}
	subjects, err := e.grants.expand(ctx, subject)
	if err != nil {
		return false, err
	}
	for _, h := range holders {
		if slices.Contains(subjects, h) {
			return true, nil
		}
	}
	return false, nil
}

// Check is HasPermission for a user.
func (e *Evaluator) Check(ctx context.Context, userID string, perm domain.Permission, objectID string) (bool, error) {
	return e.HasPermission(ctx, domain.UserSubject(userID), perm, objectID)
}

// Require turns a negative Check into domain.ErrPermissionDeny.
func (e *Evaluator) Require(ctx context.Context, userID string, perm domain.Permission, objectID string) error {
	allowed, err := e.Check(ctx, userID, perm, objectID)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: %s on %s", domain.ErrPermissionDeny, perm, objectID)
	}
	return nil
}

// FilterAccessible lists the entity objects subject may access with perm. Superusers
// get every object of the entity type.
func (e *Evaluator) FilterAccessible(ctx context.Context, subject domain.Subject, perm domain.Permission, entity domain.EntityType) ([]string, error) {
	if subject.Type == domain.SubjectUser {
		super, err := e.IsSuperuser(ctx, subject.ID)
		if err != nil {
			return nil, err
		}
		if super {
			if perm.Entity != entity {
				return nil, domain.ErrInvalidInput
			}
			return e.store.ListIDs(ctx, entity)
		}
	}
	return e.grants.ObjectsWithPerm(ctx, subject, []domain.Permission{perm}, entity, domain.MatchAny)
}

// Authorize gates direct access to a single object. An actor that cannot view the
// object gets domain.ErrNotFound; one that can view it but lacks action gets
// domain.ErrPermissionDeny.
func (e *Evaluator) Authorize(ctx context.Context, userID string, action domain.Action, entity domain.EntityType, objectID string) error {
	viewable, err := e.Check(ctx, userID, domain.Perm(domain.ActionView, entity), objectID)
	if err != nil {
		return err
	}
	if !viewable {
		return fmt.Errorf("%w: %s %s", domain.ErrNotFound, entity, objectID)
	}
	if action == domain.ActionView {
		return nil
	}
	return e.Require(ctx, userID, domain.Perm(action, entity), objectID)
}
