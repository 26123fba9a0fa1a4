package application

import (
	"context"
	"fmt"

	"accountx/internal/domain"
	"accountx/internal/ports"
)

type CompanyRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GroupDetails is a group with its members and the companies it can view.
type GroupDetails struct {
	domain.Group
	Members   []string     `json:"members"`
	Companies []CompanyRef `json:"companies"`
}

// MembershipService exposes groups to the actors allowed to manage them.
type MembershipService struct {
	deps   Dependencies
	groups *GroupService
}

func NewMembershipService(deps Dependencies, groups *GroupService) *MembershipService {
	return &MembershipService{deps: deps.withDefaults(), groups: groups}
}

// ListManageable returns the groups the actor can change.
func (s *MembershipService) ListManageable(ctx context.Context, actorID string) ([]GroupDetails, error) {
	ids, err := s.deps.Evaluator.FilterAccessible(ctx, domain.UserSubject(actorID), domain.Perm(domain.ActionChange, domain.EntityGroup), domain.EntityGroup)
	if err != nil {
		return nil, err
	}
	return s.detailsOf(ctx, ids)
}

// ListForCompany returns the groups holding any permission on a company the actor
// can view, and nothing otherwise.
func (s *MembershipService) ListForCompany(ctx context.Context, actorID, companyID string) ([]GroupDetails, error) {
	allowed, err := s.deps.Evaluator.Check(ctx, actorID, domain.Perm(domain.ActionView, domain.EntityCompany), companyID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return []GroupDetails{}, nil
	}
	grants, err := s.deps.Store.Repositories().Grants.ListByObject(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list grants of company %s: %w", companyID, err)
	}
	subjects := make([]domain.Subject, 0, len(grants))
	for _, g := range grants {
		subjects = append(subjects, g.Subject)
	}
	return s.detailsOf(ctx, groupIDsOf(subjects))
}

func (s *MembershipService) Get(ctx context.Context, actorID, groupID string) (GroupDetails, error) {
	group, err := s.manageable(ctx, actorID, groupID)
	if err != nil {
		return GroupDetails{}, err
	}
	return s.details(ctx, group)
}

// AddMember adds the user to the group and hands the group's managers the user
// management actions on it.
func (s *MembershipService) AddMember(ctx context.Context, actorID, groupID, userID string) (GroupDetails, error) {
	group, err := s.manageable(ctx, actorID, groupID)
	if err != nil {
		return GroupDetails{}, err
	}
	if _, err := s.deps.Store.Repositories().Users.GetByID(ctx, userID); err != nil {
		return GroupDetails{}, err
	}
	err = s.deps.Store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		if err := repos.Groups.AddMember(ctx, group.ID, userID); err != nil {
			return err
		}
		return s.deps.Provisioner.ProvisionMembership(ctx, repos, userID, []string{group.ID})
	})
	if err != nil {
		return GroupDetails{}, err
	}
	s.deps.Logger.Info(ctx, "member added", "group_id", group.ID, "user_id", userID, "by", actorID)
	return s.details(ctx, group)
}

func (s *MembershipService) RemoveMember(ctx context.Context, actorID, groupID, userID string) (GroupDetails, error) {
	group, err := s.manageable(ctx, actorID, groupID)
	if err != nil {
		return GroupDetails{}, err
	}
	if err := s.groups.RemoveMember(ctx, group.ID, userID); err != nil {
		return GroupDetails{}, err
	}
	s.deps.Logger.Info(ctx, "member removed", "group_id", group.ID, "user_id", userID, "by", actorID)
	return s.details(ctx, group)
}

// manageable loads a group the actor can change. Other groups are reported as not
// found.
func (s *MembershipService) manageable(ctx context.Context, actorID, groupID string) (domain.Group, error) {
	group, err := s.groups.Get(ctx, groupID)
	if err != nil {
		return domain.Group{}, err
	}
	allowed, err := s.deps.Evaluator.Check(ctx, actorID, domain.Perm(domain.ActionChange, domain.EntityGroup), groupID)
	if err != nil {
		return domain.Group{}, err
	}
	if !allowed {
		return domain.Group{}, fmt.Errorf("%w: group %s", domain.ErrNotFound, groupID)
	}
	return group, nil
}

func (s *MembershipService) detailsOf(ctx context.Context, ids []string) ([]GroupDetails, error) {
	if len(ids) == 0 {
		return []GroupDetails{}, nil
	}
	groups, err := s.deps.Store.Repositories().Groups.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]GroupDetails, 0, len(groups))
	for _, g := range groups {
		d, err := s.details(ctx, g)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *MembershipService) details(ctx context.Context, group domain.Group) (GroupDetails, error) {
	members, err := s.groups.Members(ctx, group.ID)
	if err != nil {
		return GroupDetails{}, err
	}
	ids, err := s.deps.Evaluator.grants.ObjectsWithPerm(ctx, domain.GroupSubject(group.ID), []domain.Permission{domain.Perm(domain.ActionView, domain.EntityCompany)}, domain.EntityCompany, domain.MatchAny)
	if err != nil {
		return GroupDetails{}, err
	}
	refs := []CompanyRef{}
	if len(ids) > 0 {
		companies, err := s.deps.Store.Repositories().Companies.List(ctx, ids)
		if err != nil {
			return GroupDetails{}, err
		}
		for _, c := range companies {
			refs = append(refs, CompanyRef{ID: c.ID, Name: c.Name})
		}
	}
	return GroupDetails{Group: group, Members: members, Companies: refs}, nil
}
