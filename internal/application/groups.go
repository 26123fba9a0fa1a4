package application

import (
	"context"
	"strings"

	"accountx/internal/domain"
	"accountx/internal/ports"
)

type GroupService struct {
	store  ports.Store
	logger ports.Logger
}

func NewGroupService(store ports.Store, logger ports.Logger) *GroupService {
	return &GroupService{store: store, logger: orNopLogger(logger)}
}

func (s *GroupService) Create(ctx context.Context, name string) (domain.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Group{}, domain.ErrInvalidInput
	}
	group := domain.Group{ID: newID(), Name: name, CreatedAt: now()}
	if err := s.store.Repositories().Groups.Create(ctx, group); err != nil {
		return domain.Group{}, err
	}
	return group, nil
}

func (s *GroupService) Get(ctx context.Context, groupID string) (domain.Group, error) {
	if groupID == "" {
		return domain.Group{}, domain.ErrInvalidInput
	}
	return s.store.Repositories().Groups.GetByID(ctx, groupID)
}

func (s *GroupService) GetByName(ctx context.Context, name string) (domain.Group, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Group{}, domain.ErrInvalidInput
	}
	return s.store.Repositories().Groups.GetByName(ctx, strings.TrimSpace(name))
}

func (s *GroupService) AddMember(ctx context.Context, groupID, userID string) error {
	repos, err := s.memberPair(ctx, groupID, userID)
	if err != nil {
		return err
	}
	return repos.Groups.AddMember(ctx, groupID, userID)
}

func (s *GroupService) RemoveMember(ctx context.Context, groupID, userID string) error {
	if groupID == "" || userID == "" {
		return domain.ErrInvalidInput
	}
	return s.store.Repositories().Groups.RemoveMember(ctx, groupID, userID)
}

func (s *GroupService) GroupsOf(ctx context.Context, userID string) ([]domain.Group, error) {
	if userID == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.store.Repositories().Groups.ListByMember(ctx, userID)
}

func (s *GroupService) Members(ctx context.Context, groupID string) ([]string, error) {
	if groupID == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.store.Repositories().Groups.ListMembers(ctx, groupID)
}

func (s *GroupService) memberPair(ctx context.Context, groupID, userID string) (ports.Repositories, error) {
	repos := s.store.Repositories()
	if groupID == "" || userID == "" {
		return repos, domain.ErrInvalidInput
	}
	if _, err := repos.Groups.GetByID(ctx, groupID); err != nil {
		return repos, err
	}
	if _, err := repos.Users.GetByID(ctx, userID); err != nil {
		return repos, err
	}
	return repos, nil
}
