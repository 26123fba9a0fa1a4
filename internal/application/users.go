package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"accountx/internal/domain"
	"accountx/internal/ports"
)

type UserInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
}

// UserDetails adds the user's memberships and the companies it can view or change.
type UserDetails struct {
	domain.User
	Groups    []string `json:"groups"`
	Companies []string `json:"companies"`
	IsAdminOf []string `json:"isAdminOf"`
}

type UserService struct {
	deps Dependencies
}

func NewUserService(deps Dependencies) *UserService {
	return &UserService{deps: deps.withDefaults()}
}

// Register creates the profile of a self-registered identity. Such users may create
// companies. An empty identityID gets a generated id.
func (s *UserService) Register(ctx context.Context, identityID string, input UserInput) (UserDetails, error) {
	if identityID == "" {
		identityID = newID()
	}
	user := newUser(identityID, input)
	user.CanCreateCompanies = true
	if err := user.Validate(); err != nil {
		return UserDetails{}, err
	}
	err := s.deps.Store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		if err := repos.Users.Create(ctx, user); err != nil {
			return err
		}
		return s.deps.Provisioner.ProvisionUser(ctx, repos, user.ID, nil)
	})
	s.deps.Metrics.ObserveProvisioning(string(domain.EntityUser), err)
	if err != nil {
		return UserDetails{}, err
	}
	s.deps.Logger.Info(ctx, "user registered", "user_id", user.ID)
	return s.details(ctx, user)
}

// Create adds a user on behalf of an actor, typically a company admin adding an
// accountant. The new user joins groups and cannot create companies.
func (s *UserService) Create(ctx context.Context, actorID string, input UserInput, groups []string) (UserDetails, error) {
	groups = unique(groups)
	if err := s.mayAssign(ctx, actorID, groups); err != nil {
		return UserDetails{}, err
	}
	user := newUser(newID(), input)
	if err := user.Validate(); err != nil {
		return UserDetails{}, err
	}
	err := s.deps.Store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		if err := repos.Users.Create(ctx, user); err != nil {
			return err
		}
		for _, groupID := range groups {
			if err := repos.Groups.AddMember(ctx, groupID, user.ID); err != nil {
				return fmt.Errorf("add user to group %s: %w", groupID, err)
			}
		}
		return s.deps.Provisioner.ProvisionUser(ctx, repos, user.ID, groups)
	})
	s.deps.Metrics.ObserveProvisioning(string(domain.EntityUser), err)
	if err != nil {
		return UserDetails{}, err
	}
	s.deps.Logger.Info(ctx, "user created", "user_id", user.ID, "created_by", actorID, "groups", len(groups))
	return s.details(ctx, user)
}

func (s *UserService) Get(ctx context.Context, actorID, userID string) (UserDetails, error) {
	user, err := s.load(ctx, actorID, domain.ActionView, userID)
	if err != nil {
		return UserDetails{}, err
	}
	return s.details(ctx, user)
}

// Me returns the actor's own profile without a permission check.
func (s *UserService) Me(ctx context.Context, actorID string) (UserDetails, error) {
	if actorID == "" {
		return UserDetails{}, domain.ErrInvalidInput
	}
	user, err := s.deps.Store.Repositories().Users.GetByID(ctx, actorID)
	if err != nil {
		return UserDetails{}, err
	}
	return s.details(ctx, user)
}

func (s *UserService) Update(ctx context.Context, actorID, userID string, input UserInput) (UserDetails, error) {
	user, err := s.load(ctx, actorID, domain.ActionChange, userID)
	if err != nil {
		return UserDetails{}, err
	}
	updated := newUser(user.ID, input)
	updated.Superuser = user.Superuser
	updated.CanCreateCompanies = user.CanCreateCompanies
	updated.CreatedAt = user.CreatedAt
	if err := updated.Validate(); err != nil {
		return UserDetails{}, err
	}
	if err := s.deps.Store.Repositories().Users.Update(ctx, updated); err != nil {
		return UserDetails{}, err
	}
	return s.details(ctx, updated)
}

// SetGroups replaces the user's memberships. The actor must be able to change every
// requested group, unless the requested groups are a subset of its own. Memberships
// in groups the actor cannot change are kept, except when users edit themselves.
func (s *UserService) SetGroups(ctx context.Context, actorID, userID string, groups []string) (UserDetails, error) {
	user, err := s.load(ctx, actorID, domain.ActionChange, userID)
	if err != nil {
		return UserDetails{}, err
	}
	groups = unique(groups)
	if err := s.mayAssign(ctx, actorID, groups); err != nil {
		return UserDetails{}, err
	}

	current, err := s.groupIDs(ctx, user.ID)
	if err != nil {
		return UserDetails{}, err
	}
	left, err := s.removable(ctx, actorID, user.ID, current, groups)
	if err != nil {
		return UserDetails{}, err
	}
	var joined []string
	err = s.deps.Store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		for _, groupID := range left {
			if err := repos.Groups.RemoveMember(ctx, groupID, user.ID); err != nil {
				return fmt.Errorf("remove user from group %s: %w", groupID, err)
			}
		}
		for _, groupID := range groups {
			if slices.Contains(current, groupID) {
				continue
			}
			if err := repos.Groups.AddMember(ctx, groupID, user.ID); err != nil {
				return fmt.Errorf("add user to group %s: %w", groupID, err)
			}
			joined = append(joined, groupID)
		}
		return s.deps.Provisioner.ProvisionMembership(ctx, repos, user.ID, joined)
	})
	if err != nil {
		return UserDetails{}, err
	}
	return s.details(ctx, user)
}

// Delete removes the user, its memberships and every grant on or held by it.
func (s *UserService) Delete(ctx context.Context, actorID, userID string) error {
	user, err := s.load(ctx, actorID, domain.ActionDelete, userID)
	if err != nil {
		return err
	}
	current, err := s.groupIDs(ctx, user.ID)
	if err != nil {
		return err
	}
	return s.deps.Store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		for _, groupID := range current {
			if err := repos.Groups.RemoveMember(ctx, groupID, user.ID); err != nil {
				return fmt.Errorf("remove user from group %s: %w", groupID, err)
			}
		}
		if err := repos.Grants.DeleteByObject(ctx, user.ID); err != nil {
			return fmt.Errorf("delete grants on user: %w", err)
		}
		if err := repos.Grants.DeleteBySubject(ctx, domain.UserSubject(user.ID)); err != nil {
			return fmt.Errorf("delete grants held by user: %w", err)
		}
		return repos.Users.Delete(ctx, user.ID)
	})
}

// List returns the users the actor can view. With companyID set it instead returns
// the users holding any permission on that company, directly or through a group,
// provided the actor can view the company.
func (s *UserService) List(ctx context.Context, actorID, companyID string) ([]domain.User, error) {
	repos := s.deps.Store.Repositories()
	var ids []string
	if companyID == "" {
		accessible, err := s.deps.Evaluator.FilterAccessible(ctx, domain.UserSubject(actorID), domain.Perm(domain.ActionView, domain.EntityUser), domain.EntityUser)
		if err != nil {
			return nil, err
		}
		ids = accessible
	} else {
		allowed, err := s.deps.Evaluator.Check(ctx, actorID, domain.Perm(domain.ActionView, domain.EntityCompany), companyID)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return []domain.User{}, nil
		}
		ids, err = usersWithPerms(ctx, repos, companyID)
		if err != nil {
			return nil, err
		}
	}
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	return repos.Users.ListByIDs(ctx, ids)
}

func usersWithPerms(ctx context.Context, repos ports.Repositories, objectID string) ([]string, error) {
	grants, err := repos.Grants.ListByObject(ctx, objectID)
	if err != nil {
		return nil, fmt.Errorf("list grants of %s: %w", objectID, err)
	}
	var ids []string
	for _, g := range grants {
		if g.Subject.Type == domain.SubjectUser {
			ids = append(ids, g.Subject.ID)
			continue
		}
		members, err := repos.Groups.ListMembers(ctx, g.Subject.ID)
		if err != nil {
			return nil, fmt.Errorf("list members of %s: %w", g.Subject.ID, err)
		}
		ids = append(ids, members...)
	}
	return unique(ids), nil
}

// removable returns the current groups missing from requested that the actor may
// take the user out of.
func (s *UserService) removable(ctx context.Context, actorID, userID string, current, requested []string) ([]string, error) {
	var out []string
	for _, groupID := range current {
		if slices.Contains(requested, groupID) {
			continue
		}
		if actorID == userID {
			out = append(out, groupID)
			continue
		}
		allowed, err := s.deps.Evaluator.Check(ctx, actorID, domain.Perm(domain.ActionChange, domain.EntityGroup), groupID)
		if err != nil {
			return nil, err
		}
		if !allowed {
			s.deps.Logger.Info(ctx, "keeping membership outside actor's reach", "user_id", userID, "group_id", groupID, "actor_id", actorID)
			continue
		}
		out = append(out, groupID)
	}
	return out, nil
}

func (s *UserService) mayAssign(ctx context.Context, actorID string, groups []string) error {
	if len(groups) == 0 {
		return nil
	}
	manageable := true
	for _, groupID := range groups {
		allowed, err := s.deps.Evaluator.Check(ctx, actorID, domain.Perm(domain.ActionChange, domain.EntityGroup), groupID)
		if err != nil {
			return err
		}
		if !allowed {
			manageable = false
			break
		}
	}
	if manageable {
		return nil
	}
	own, err := s.groupIDs(ctx, actorID)
	if err != nil {
		return err
	}
	for _, groupID := range groups {
		if !slices.Contains(own, groupID) {
			return fmt.Errorf("%w: cannot assign group %s", domain.ErrPermissionDeny, groupID)
		}
	}
	return nil
}

func (s *UserService) load(ctx context.Context, actorID string, action domain.Action, userID string) (domain.User, error) {
	if userID == "" {
		return domain.User{}, domain.ErrInvalidInput
	}
	user, err := s.deps.Store.Repositories().Users.GetByID(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.deps.Evaluator.Authorize(ctx, actorID, action, domain.EntityUser, userID); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (s *UserService) groupIDs(ctx context.Context, userID string) ([]string, error) {
	groups, err := s.deps.Store.Repositories().Groups.ListByMember(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("list groups of %s: %w", userID, err)
	}
	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	return ids, nil
}

func (s *UserService) details(ctx context.Context, user domain.User) (UserDetails, error) {
	groups, err := s.groupIDs(ctx, user.ID)
	if err != nil {
		return UserDetails{}, err
	}
	subject := domain.UserSubject(user.ID)
	companies, err := s.deps.Evaluator.FilterAccessible(ctx, subject, domain.Perm(domain.ActionView, domain.EntityCompany), domain.EntityCompany)
	if err != nil {
		return UserDetails{}, err
	}
	adminOf, err := s.deps.Evaluator.grants.ObjectsWithPerm(ctx, subject, []domain.Permission{domain.Perm(domain.ActionChange, domain.EntityCompany)}, domain.EntityCompany, domain.MatchAny)
	if err != nil {
		return UserDetails{}, err
	}
	return UserDetails{User: user, Groups: groups, Companies: companies, IsAdminOf: adminOf}, nil
}

func newUser(id string, input UserInput) domain.User {
	ts := now()
	return domain.User{
		ID:        id,
		Username:  strings.TrimSpace(input.Username),
		Email:     strings.TrimSpace(input.Email),
		FirstName: input.FirstName,
		LastName:  input.LastName,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}
