package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"

	"accountx/internal/domain"
)

type userRepository struct {
	s *session
}

func (r *userRepository) Create(ctx context.Context, user domain.User) error {
	op, err := putOp(userPK(user.ID), metaSK, string(domain.EntityUser), user)
	if err != nil {
		return err
	}
	return r.s.write(ctx, "DynamoDB.PutUser", op.ifNotExists(domain.ErrConflict))
}

func (r *userRepository) Update(ctx context.Context, user domain.User) error {
	op, err := putOp(userPK(user.ID), metaSK, string(domain.EntityUser), user)
	if err != nil {
		return err
	}
	return r.s.write(ctx, "DynamoDB.PutUser", op.ifExists(domain.ErrNotFound))
}

func (r *userRepository) Delete(ctx context.Context, userID string) error {
	return r.s.write(ctx, "DynamoDB.DeleteUser", deleteOp(userPK(userID), metaSK))
}

func (r *userRepository) GetByID(ctx context.Context, userID string) (domain.User, error) {
	var user domain.User
	if err := r.s.client.getItem(ctx, "DynamoDB.GetUser", key(userPK(userID), metaSK), &user); err != nil {
		return domain.User{}, notFound(err, "user", userID)
	}
	return user, nil
}

func (r *userRepository) ListByIDs(ctx context.Context, userIDs []string) ([]domain.User, error) {
	return collect(ctx, userIDs, r.GetByID)
}

type groupRepository struct {
	s *session
}

type groupLock struct {
	GroupID string `dynamodbav:"GroupID"`
}

type membership struct {
	GroupID string `dynamodbav:"GroupID"`
	UserID  string `dynamodbav:"UserID"`
}

// Create claims the group name with a lock item so two groups can never share it.
func (r *groupRepository) Create(ctx context.Context, group domain.Group) error {
	lock, err := putOp(groupNamePK(group.Name), lockSK, "", groupLock{GroupID: group.ID})
	if err != nil {
		return err
	}
	meta, err := putOp(groupPK(group.ID), metaSK, string(domain.EntityGroup), group)
	if err != nil {
		return err
	}
	return r.s.write(ctx, "DynamoDB.CreateGroup",
		lock.ifNotExists(domain.ErrDuplicateName),
		meta.ifNotExists(domain.ErrConflict),
	)
}

// Rename moves the name lock in the same write as the group item.
func (r *groupRepository) Rename(ctx context.Context, groupID, name string) error {
	current, err := r.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if current.Name == name {
		return nil
	}
	renamed := current
	renamed.Name = name
	meta, err := putOp(groupPK(groupID), metaSK, string(domain.EntityGroup), renamed)
	if err != nil {
		return err
	}
	lock, err := putOp(groupNamePK(name), lockSK, "", groupLock{GroupID: groupID})
	if err != nil {
		return err
	}
	return r.s.write(ctx, "DynamoDB.RenameGroup",
		meta.ifExists(domain.ErrNotFound),
		lock.ifNotExists(domain.ErrDuplicateName),
		deleteOp(groupNamePK(current.Name), lockSK),
	)
}

func (r *groupRepository) Delete(ctx context.Context, groupID string) error {
	group, err := r.GetByID(ctx, groupID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return r.s.write(ctx, "DynamoDB.DeleteGroup",
		deleteOp(groupPK(group.ID), metaSK),
		deleteOp(groupNamePK(group.Name), lockSK),
	)
}

func (r *groupRepository) GetByID(ctx context.Context, groupID string) (domain.Group, error) {
	var group domain.Group
	if err := r.s.client.getItem(ctx, "DynamoDB.GetGroup", key(groupPK(groupID), metaSK), &group); err != nil {
		return domain.Group{}, notFound(err, "group", groupID)
	}
	return group, nil
}

func (r *groupRepository) GetByName(ctx context.Context, name string) (domain.Group, error) {
	var lock groupLock
	if err := r.s.client.getItem(ctx, "DynamoDB.GetGroupName", key(groupNamePK(name), lockSK), &lock); err != nil {
		return domain.Group{}, notFound(err, "group", name)
	}
	return r.GetByID(ctx, lock.GroupID)
}

func (r *groupRepository) ListByIDs(ctx context.Context, groupIDs []string) ([]domain.Group, error) {
	return collect(ctx, groupIDs, r.GetByID)
}

// AddMember writes the membership in both directions and fails when the group is gone.
func (r *groupRepository) AddMember(ctx context.Context, groupID, userID string) error {
	m := membership{GroupID: groupID, UserID: userID}
	forward, err := putOp(groupPK(groupID), memberSK(userID), entityMembership, m)
	if err != nil {
		return err
	}
	reverse, err := putOp(userPK(userID), memberOfSK(groupID), entityMembership, m)
	if err != nil {
		return err
	}
	return r.s.write(ctx, "DynamoDB.AddMember",
		checkExists(groupPK(groupID), metaSK, domain.ErrNotFound),
		forward,
		reverse,
	)
}

func (r *groupRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	return r.s.write(ctx, "DynamoDB.RemoveMember",
		deleteOp(groupPK(groupID), memberSK(userID)),
		deleteOp(userPK(userID), memberOfSK(groupID)),
	)
}

func (r *groupRepository) ListByMember(ctx context.Context, userID string) ([]domain.Group, error) {
	items, err := r.s.client.queryPrefix(ctx, "DynamoDB.ListMemberships", userPK(userID), memberOfSK(""))
	if err != nil {
		return nil, err
	}
	groups := make([]domain.Group, 0, len(items))
	for _, item := range items {
		var m membership
		if err := attributevalue.UnmarshalMap(item, &m); err != nil {
			return nil, err
		}
		group, err := r.GetByID(ctx, m.GroupID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	slices.SortFunc(groups, func(a, b domain.Group) int { return strings.Compare(a.ID, b.ID) })
	return groups, nil
}

func (r *groupRepository) ListMembers(ctx context.Context, groupID string) ([]string, error) {
	items, err := r.s.client.queryPrefix(ctx, "DynamoDB.ListMembers", groupPK(groupID), memberSK(""))
	if err != nil {
		return nil, err
	}
	members := make([]string, 0, len(items))
	for _, item := range items {
		var m membership
		if err := attributevalue.UnmarshalMap(item, &m); err != nil {
			return nil, err
		}
		members = append(members, m.UserID)
	}
	slices.Sort(members)
	return members, nil
}

type companyRepository struct {
	s *session
}

type companyLock struct {
	CompanyID string `dynamodbav:"CompanyID"`
}

func (r *companyRepository) Create(ctx context.Context, company domain.Company) error {
	lock, err := putOp(companyNamePK(company.Name), lockSK, "", companyLock{CompanyID: company.ID})
	if err != nil {
		return err
	}
	meta, err := putOp(companyPK(company.ID), metaSK, string(domain.EntityCompany), company)
	if err != nil {
		return err
	}
	ops := []writeOp{lock.ifNotExists(domain.ErrConflict), meta.ifNotExists(domain.ErrConflict)}
	owners, err := ownerOps(company)
	if err != nil {
		return err
	}
	return r.s.write(ctx, "DynamoDB.CreateCompany", append(ops, owners...)...)
}

// ownerOps claims each company group for the company; a group already claimed by
// another company fails the write with domain.ErrConflict.
func ownerOps(company domain.Company) ([]writeOp, error) {
	var ops []writeOp
	for _, groupID := range []string{company.AdminsGroupID, company.AccountantsGroupID} {
		if groupID == "" {
			continue
		}
		op, err := putOp(groupPK(groupID), ownerSK, "", companyLock{CompanyID: company.ID})
		if err != nil {
			return nil, err
		}
		ops = append(ops, op.ifNotExists(domain.ErrConflict))
	}
	return ops, nil
}

// Update moves the name lock when the company is renamed.
func (r *companyRepository) Update(ctx context.Context, company domain.Company) error {
	current, err := r.GetByID(ctx, company.ID)
	if err != nil {
		return err
	}
	meta, err := putOp(companyPK(company.ID), metaSK, string(domain.EntityCompany), company)
	if err != nil {
		return err
	}
	ops := []writeOp{meta.ifExists(domain.ErrNotFound)}
	if current.Name != company.Name {
		lock, err := putOp(companyNamePK(company.Name), lockSK, "", companyLock{CompanyID: company.ID})
		if err != nil {
			return err
		}
		ops = append(ops, lock.ifNotExists(domain.ErrConflict), deleteOp(companyNamePK(current.Name), lockSK))
	}
	return r.s.write(ctx, "DynamoDB.UpdateCompany", ops...)
}

func (r *companyRepository) Delete(ctx context.Context, companyID string) error {
	company, err := r.GetByID(ctx, companyID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	ops := []writeOp{deleteOp(companyPK(company.ID), metaSK), deleteOp(companyNamePK(company.Name), lockSK)}
	for _, groupID := range []string{company.AdminsGroupID, company.AccountantsGroupID} {
		if groupID != "" {
			ops = append(ops, deleteOp(groupPK(groupID), ownerSK))
		}
	}
	return r.s.write(ctx, "DynamoDB.DeleteCompany", ops...)
}

func (r *companyRepository) GetByID(ctx context.Context, companyID string) (domain.Company, error) {
	var company domain.Company
	if err := r.s.client.getItem(ctx, "DynamoDB.GetCompany", key(companyPK(companyID), metaSK), &company); err != nil {
		return domain.Company{}, notFound(err, "company", companyID)
	}
	return company, nil
}

func (r *companyRepository) GetByGroup(ctx context.Context, groupID string) (domain.Company, error) {
	var owner companyLock
	if err := r.s.client.getItem(ctx, "DynamoDB.GetGroupOwner", key(groupPK(groupID), ownerSK), &owner); err != nil {
		return domain.Company{}, notFound(err, "owner of group", groupID)
	}
	return r.GetByID(ctx, owner.CompanyID)
}

func (r *companyRepository) List(ctx context.Context, companyIDs []string) ([]domain.Company, error) {
	return collect(ctx, companyIDs, r.GetByID)
}

// collect loads ids one by one, skipping the ones that no longer exist.
func collect[T any](ctx context.Context, ids []string, get func(context.Context, string) (T, error)) ([]T, error) {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	out := make([]T, 0, len(sorted))
	for _, id := range slices.Compact(sorted) {
		v, err := get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", domain.ErrNotFound, kind, id)
	}
	return err
}
