package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"accountx/internal/domain"
)

type userRepo struct{ s *Store }

func (r *userRepo) Create(_ context.Context, user domain.User) error {
	return r.s.write(func(st *state) error {
		if _, ok := st.users[user.ID]; ok {
			return fmt.Errorf("%w: user %s", domain.ErrConflict, user.ID)
		}
		st.users[user.ID] = user
		return nil
	})
}

func (r *userRepo) Update(_ context.Context, user domain.User) error {
	return r.s.write(func(st *state) error {
		if _, ok := st.users[user.ID]; !ok {
			return notFound("user", user.ID)
		}
		st.users[user.ID] = user
		return nil
	})
}

func (r *userRepo) Delete(_ context.Context, userID string) error {
	return r.s.write(func(st *state) error {
		delete(st.users, userID)
		return nil
	})
}

func (r *userRepo) GetByID(_ context.Context, userID string) (domain.User, error) {
	var user domain.User
	err := r.s.read(func(st *state) error {
		u, ok := st.users[userID]
		if !ok {
			return notFound("user", userID)
		}
		user = u
		return nil
	})
	return user, err
}

func (r *userRepo) ListByIDs(_ context.Context, userIDs []string) ([]domain.User, error) {
	var out []domain.User
	err := r.s.read(func(st *state) error {
		out = pick(st.users, userIDs)
		return nil
	})
	return out, err
}

type groupRepo struct{ s *Store }

func (r *groupRepo) Create(_ context.Context, group domain.Group) error {
	return r.s.write(func(st *state) error {
		for _, g := range st.groups {
			if g.Name == group.Name {
				return fmt.Errorf("%w: %s", domain.ErrDuplicateName, group.Name)
			}
		}
		if _, ok := st.groups[group.ID]; ok {
			return fmt.Errorf("%w: group %s", domain.ErrConflict, group.ID)
		}
		st.groups[group.ID] = group
		return nil
	})
}

func (r *groupRepo) Rename(_ context.Context, groupID, name string) error {
	return r.s.write(func(st *state) error {
		group, ok := st.groups[groupID]
		if !ok {
			return notFound("group", groupID)
		}
		for _, g := range st.groups {
			if g.Name == name && g.ID != groupID {
				return fmt.Errorf("%w: %s", domain.ErrDuplicateName, name)
			}
		}
		group.Name = name
		st.groups[groupID] = group
		return nil
	})
}

func (r *groupRepo) Delete(_ context.Context, groupID string) error {
	return r.s.write(func(st *state) error {
		delete(st.groups, groupID)
		delete(st.members, groupID)
		return nil
	})
}

func (r *groupRepo) GetByID(_ context.Context, groupID string) (domain.Group, error) {
	var group domain.Group
	err := r.s.read(func(st *state) error {
		g, ok := st.groups[groupID]
		if !ok {
			return notFound("group", groupID)
		}
		group = g
		return nil
	})
	return group, err
}

func (r *groupRepo) GetByName(_ context.Context, name string) (domain.Group, error) {
	var group domain.Group
	err := r.s.read(func(st *state) error {
		for _, g := range st.groups {
			if g.Name == name {
				group = g
				return nil
			}
		}
		return notFound("group", name)
	})
	return group, err
}

func (r *groupRepo) ListByIDs(_ context.Context, groupIDs []string) ([]domain.Group, error) {
	var out []domain.Group
	err := r.s.read(func(st *state) error {
		out = pick(st.groups, groupIDs)
		return nil
	})
	return out, err
}

func (r *groupRepo) AddMember(_ context.Context, groupID, userID string) error {
	return r.s.write(func(st *state) error {
		if _, ok := st.groups[groupID]; !ok {
			return notFound("group", groupID)
		}
		if st.members[groupID] == nil {
			st.members[groupID] = make(map[string]struct{})
		}
		st.members[groupID][userID] = struct{}{}
		return nil
	})
}

func (r *groupRepo) RemoveMember(_ context.Context, groupID, userID string) error {
	return r.s.write(func(st *state) error {
		delete(st.members[groupID], userID)
		return nil
	})
}

func (r *groupRepo) ListByMember(_ context.Context, userID string) ([]domain.Group, error) {
	var out []domain.Group
	err := r.s.read(func(st *state) error {
		for groupID, m := range st.members {
			if _, ok := m[userID]; ok {
				if g, ok := st.groups[groupID]; ok {
					out = append(out, g)
				}
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b domain.Group) int { return cmp.Compare(a.ID, b.ID) })
	return out, err
}

func (r *groupRepo) ListMembers(_ context.Context, groupID string) ([]string, error) {
	var out []string
	err := r.s.read(func(st *state) error {
		out = sortedKeys(st.members[groupID])
		return nil
	})
	return out, err
}

type grantRepo struct{ s *Store }

func (r *grantRepo) Put(_ context.Context, grant domain.Grant) error {
	return r.s.write(func(st *state) error {
		st.grants[grant] = struct{}{}
		return nil
	})
}

func (r *grantRepo) Delete(_ context.Context, grant domain.Grant) error {
	return r.s.write(func(st *state) error {
		delete(st.grants, grant)
		return nil
	})
}

func (r *grantRepo) ListHolders(_ context.Context, perm domain.Permission, objectID string) ([]domain.Subject, error) {
	var out []domain.Subject
	err := r.s.read(func(st *state) error {
		for g := range st.grants {
			if g.Permission == perm && g.ObjectID == objectID {
				out = append(out, g.Subject)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b domain.Subject) int { return cmp.Compare(a.String(), b.String()) })
	return out, err
}

func (r *grantRepo) ListObjects(_ context.Context, subject domain.Subject, perm domain.Permission) ([]string, error) {
	var out []string
	err := r.s.read(func(st *state) error {
		for g := range st.grants {
			if g.Subject == subject && g.Permission == perm {
				out = append(out, g.ObjectID)
			}
		}
		return nil
	})
	slices.Sort(out)
	return out, err
}

func (r *grantRepo) ListByObject(_ context.Context, objectID string) ([]domain.Grant, error) {
	return r.collect(func(g domain.Grant) bool { return g.ObjectID == objectID })
}

func (r *grantRepo) ListBySubject(_ context.Context, subject domain.Subject) ([]domain.Grant, error) {
	return r.collect(func(g domain.Grant) bool { return g.Subject == subject })
}

func (r *grantRepo) DeleteByObject(_ context.Context, objectID string) error {
	return r.s.write(func(st *state) error {
		for g := range st.grants {
			if g.ObjectID == objectID {
				delete(st.grants, g)
			}
		}
		return nil
	})
}

func (r *grantRepo) DeleteBySubject(_ context.Context, subject domain.Subject) error {
	return r.s.write(func(st *state) error {
		for g := range st.grants {
			if g.Subject == subject {
				delete(st.grants, g)
			}
		}
		return nil
	})
}

func (r *grantRepo) collect(match func(domain.Grant) bool) ([]domain.Grant, error) {
	var out []domain.Grant
	err := r.s.read(func(st *state) error {
		for g := range st.grants {
			if match(g) {
				out = append(out, g)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b domain.Grant) int {
		return cmp.Or(
			cmp.Compare(a.ObjectID, b.ObjectID),
			cmp.Compare(a.Permission.String(), b.Permission.String()),
			cmp.Compare(a.Subject.String(), b.Subject.String()),
		)
	})
	return out, err
}

type companyRepo struct{ s *Store }

func (r *companyRepo) Create(_ context.Context, company domain.Company) error {
	return r.s.write(func(st *state) error {
		if err := nameTaken(st, company); err != nil {
			return err
		}
		if err := groupsTaken(st, company); err != nil {
			return err
		}
		if _, ok := st.companies[company.ID]; ok {
			return fmt.Errorf("%w: company %s", domain.ErrConflict, company.ID)
		}
		st.companies[company.ID] = company
		return nil
	})
}

func (r *companyRepo) Update(_ context.Context, company domain.Company) error {
	return r.s.write(func(st *state) error {
		if _, ok := st.companies[company.ID]; !ok {
			return notFound("company", company.ID)
		}
		if err := nameTaken(st, company); err != nil {
			return err
		}
		if err := groupsTaken(st, company); err != nil {
			return err
		}
		st.companies[company.ID] = company
		return nil
	})
}

func (r *companyRepo) Delete(_ context.Context, companyID string) error {
	return r.s.write(func(st *state) error {
		delete(st.companies, companyID)
		return nil
	})
}

func (r *companyRepo) GetByID(_ context.Context, companyID string) (domain.Company, error) {
	var company domain.Company
	err := r.s.read(func(st *state) error {
		c, ok := st.companies[companyID]
		if !ok {
			return notFound("company", companyID)
		}
		company = c
		return nil
	})
	return company, err
}

func (r *companyRepo) GetByGroup(_ context.Context, groupID string) (domain.Company, error) {
	var company domain.Company
	err := r.s.read(func(st *state) error {
		for _, c := range st.companies {
			if c.AdminsGroupID == groupID || c.AccountantsGroupID == groupID {
				company = c
				return nil
			}
		}
		return fmt.Errorf("%w: no company owns group %s", domain.ErrNotFound, groupID)
	})
	return company, err
}

func (r *companyRepo) List(_ context.Context, companyIDs []string) ([]domain.Company, error) {
	var out []domain.Company
	err := r.s.read(func(st *state) error {
		out = pick(st.companies, companyIDs)
		return nil
	})
	return out, err
}

func groupsTaken(st *state, company domain.Company) error {
	for _, c := range st.companies {
		if c.ID == company.ID {
			continue
		}
		for _, g := range []string{company.AdminsGroupID, company.AccountantsGroupID} {
			if g != "" && (g == c.AdminsGroupID || g == c.AccountantsGroupID) {
				return fmt.Errorf("%w: group %s belongs to company %s", domain.ErrConflict, g, c.ID)
			}
		}
	}
	return nil
}

func nameTaken(st *state, company domain.Company) error {
	for _, c := range st.companies {
		if c.Name == company.Name && c.ID != company.ID {
			return fmt.Errorf("%w: company %q", domain.ErrConflict, company.Name)
		}
	}
	return nil
}

type recordRepo[T domain.Record] struct {
	s     *Store
	table func(*state) map[string]T
}

func (r *recordRepo[T]) Create(_ context.Context, rec T) error {
	return r.s.write(func(st *state) error {
		t := r.table(st)
		if _, ok := t[rec.RecordID()]; ok {
			return fmt.Errorf("%w: %s %s", domain.ErrConflict, rec.Entity(), rec.RecordID())
		}
		t[rec.RecordID()] = rec
		return nil
	})
}

func (r *recordRepo[T]) Update(_ context.Context, rec T) error {
	return r.s.write(func(st *state) error {
		t := r.table(st)
		if _, ok := t[rec.RecordID()]; !ok {
			return notFound(string(rec.Entity()), rec.RecordID())
		}
		t[rec.RecordID()] = rec
		return nil
	})
}

func (r *recordRepo[T]) Delete(_ context.Context, id string) error {
	return r.s.write(func(st *state) error {
		delete(r.table(st), id)
		return nil
	})
}

func (r *recordRepo[T]) GetByID(_ context.Context, id string) (T, error) {
	var rec T
	err := r.s.read(func(st *state) error {
		v, ok := r.table(st)[id]
		if !ok {
			return notFound("record", id)
		}
		rec = v
		return nil
	})
	return rec, err
}

func (r *recordRepo[T]) List(_ context.Context, filter domain.RecordFilter) ([]T, error) {
	var out []T
	err := r.s.read(func(st *state) error {
		for _, id := range sortedKeys(r.table(st)) {
			rec := r.table(st)[id]
			if filter.Match(rec) {
				out = append(out, rec)
			}
		}
		return nil
	})
	return out, err
}

// pick returns the values stored under ids in id order, skipping unknown ids.
func pick[V any](m map[string]V, ids []string) []V {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	out := make([]V, 0, len(ids))
	for _, id := range ids {
		if v, ok := m[id]; ok {
			out = append(out, v)
		}
	}
	return out
}
