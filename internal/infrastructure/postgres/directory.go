package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"accountx/internal/domain"
)

var userColumns = []string{"id", "username", "email", "first_name", "last_name", "superuser", "can_create_companies", "created_at", "updated_at"}

type userRepository struct {
	exec executor
}

func (r *userRepository) Create(ctx context.Context, user domain.User) error {
	q := builder.Insert("users").
		Columns(userColumns...).
		Values(user.ID, user.Username, user.Email, user.FirstName, user.LastName, user.Superuser, user.CanCreateCompanies, user.CreatedAt, user.UpdatedAt)
	_, err := execStmt(ctx, r.exec, q, "insert user")
	return err
}

func (r *userRepository) Update(ctx context.Context, user domain.User) error {
	q := builder.Update("users").
		SetMap(map[string]any{
			"username":             user.Username,
			"email":                user.Email,
			"first_name":           user.FirstName,
			"last_name":            user.LastName,
			"superuser":            user.Superuser,
			"can_create_companies": user.CanCreateCompanies,
			"updated_at":           user.UpdatedAt,
		}).
		Where(squirrel.Eq{"id": user.ID})
	tag, err := execStmt(ctx, r.exec, q, "update user")
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update user %s: %w", user.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, userID string) error {
	_, err := execStmt(ctx, r.exec, builder.Delete("users").Where(squirrel.Eq{"id": userID}), "delete user")
	return err
}

func (r *userRepository) GetByID(ctx context.Context, userID string) (domain.User, error) {
	users, err := r.list(ctx, squirrel.Eq{"id": userID})
	if err != nil {
		return domain.User{}, err
	}
	if len(users) == 0 {
		return domain.User{}, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return users[0], nil
}

func (r *userRepository) ListByIDs(ctx context.Context, userIDs []string) ([]domain.User, error) {
	if len(userIDs) == 0 {
		return []domain.User{}, nil
	}
	return r.list(ctx, squirrel.Eq{"id": userIDs})
}

func (r *userRepository) list(ctx context.Context, where squirrel.Sqlizer) ([]domain.User, error) {
	stmt, args, err := builder.Select(userColumns...).From("users").Where(where).OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select users sql: %w", err)
	}
	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, translate(err, "query users")
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.Superuser, &u.CanCreateCompanies, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

type groupRepository struct {
	exec executor
}

func (r *groupRepository) Create(ctx context.Context, group domain.Group) error {
	q := builder.Insert("groups").Columns("id", "name", "created_at").Values(group.ID, group.Name, group.CreatedAt)
	_, err := execStmt(ctx, r.exec, q, "insert group")
	return err
}

func (r *groupRepository) Rename(ctx context.Context, groupID, name string) error {
	q := builder.Update("groups").Set("name", name).Where(squirrel.Eq{"id": groupID})
	tag, err := execStmt(ctx, r.exec, q, "rename group")
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rename group %s: %w", groupID, domain.ErrNotFound)
	}
	return nil
}

func (r *groupRepository) Delete(ctx context.Context, groupID string) error {
	_, err := execStmt(ctx, r.exec, builder.Delete("groups").Where(squirrel.Eq{"id": groupID}), "delete group")
	return err
}

func (r *groupRepository) GetByID(ctx context.Context, groupID string) (domain.Group, error) {
	return r.get(ctx, squirrel.Eq{"id": groupID}, groupID)
}

func (r *groupRepository) GetByName(ctx context.Context, name string) (domain.Group, error) {
	return r.get(ctx, squirrel.Eq{"name": name}, name)
}

func (r *groupRepository) get(ctx context.Context, where squirrel.Eq, ref string) (domain.Group, error) {
	stmt, args, err := builder.Select("id", "name", "created_at").From("groups").Where(where).Limit(1).ToSql()
	if err != nil {
		return domain.Group{}, fmt.Errorf("build select group sql: %w", err)
	}
	var g domain.Group
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&g.ID, &g.Name, &g.CreatedAt); err != nil {
		return domain.Group{}, translate(err, "group "+ref)
	}
	return g, nil
}

func (r *groupRepository) ListByIDs(ctx context.Context, groupIDs []string) ([]domain.Group, error) {
	if len(groupIDs) == 0 {
		return []domain.Group{}, nil
	}
	q := builder.Select("id", "name", "created_at").From("groups").Where(squirrel.Eq{"id": groupIDs}).OrderBy("id")
	return r.list(ctx, q)
}

// AddMember fails with domain.ErrNotFound when the group does not exist.
func (r *groupRepository) AddMember(ctx context.Context, groupID, userID string) error {
	q := builder.Insert("group_members").
		Columns("group_id", "user_id").
		Values(groupID, userID).
		Suffix("ON CONFLICT DO NOTHING")
	_, err := execStmt(ctx, r.exec, q, "add member")
	return err
}

func (r *groupRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	q := builder.Delete("group_members").Where(squirrel.Eq{"group_id": groupID, "user_id": userID})
	_, err := execStmt(ctx, r.exec, q, "remove member")
	return err
}

func (r *groupRepository) ListByMember(ctx context.Context, userID string) ([]domain.Group, error) {
	q := builder.Select("g.id", "g.name", "g.created_at").
		From("groups g").
		Join("group_members m ON m.group_id = g.id").
		Where(squirrel.Eq{"m.user_id": userID}).
		OrderBy("g.id")
	return r.list(ctx, q)
}

func (r *groupRepository) ListMembers(ctx context.Context, groupID string) ([]string, error) {
	q := builder.Select("user_id").From("group_members").Where(squirrel.Eq{"group_id": groupID}).OrderBy("user_id")
	return queryStrings(ctx, r.exec, q, "list members")
}

func (r *groupRepository) list(ctx context.Context, q squirrel.SelectBuilder) ([]domain.Group, error) {
	stmt, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select groups sql: %w", err)
	}
	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, translate(err, "query groups")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Group, error) {
		var g domain.Group
		err := row.Scan(&g.ID, &g.Name, &g.CreatedAt)
		return g, err
	})
}

var companyColumns = []string{"id", "name", "description", "admins_group_id", "accountants_group_id", "created_at", "updated_at"}

type companyRepository struct {
	exec executor
}

func (r *companyRepository) Create(ctx context.Context, c domain.Company) error {
	q := builder.Insert("companies").
		Columns(companyColumns...).
		Values(c.ID, c.Name, c.Description, c.AdminsGroupID, c.AccountantsGroupID, c.CreatedAt, c.UpdatedAt)
	_, err := execStmt(ctx, r.exec, q, "insert company")
	return err
}

func (r *companyRepository) Update(ctx context.Context, c domain.Company) error {
	q := builder.Update("companies").
		SetMap(map[string]any{
			"name":        c.Name,
			"description": c.Description,
			"updated_at":  c.UpdatedAt,
		}).
		Where(squirrel.Eq{"id": c.ID})
	tag, err := execStmt(ctx, r.exec, q, "update company")
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update company %s: %w", c.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *companyRepository) Delete(ctx context.Context, companyID string) error {
	_, err := execStmt(ctx, r.exec, builder.Delete("companies").Where(squirrel.Eq{"id": companyID}), "delete company")
	return err
}

func (r *companyRepository) GetByID(ctx context.Context, companyID string) (domain.Company, error) {
	companies, err := r.list(ctx, squirrel.Eq{"id": companyID})
	if err != nil {
		return domain.Company{}, err
	}
	if len(companies) == 0 {
		return domain.Company{}, fmt.Errorf("company %s: %w", companyID, domain.ErrNotFound)
	}
	return companies[0], nil
}

func (r *companyRepository) GetByGroup(ctx context.Context, groupID string) (domain.Company, error) {
	companies, err := r.list(ctx, squirrel.Or{
		squirrel.Eq{"admins_group_id": groupID},
		squirrel.Eq{"accountants_group_id": groupID},
	})
	if err != nil {
		return domain.Company{}, err
	}
	if len(companies) == 0 {
		return domain.Company{}, fmt.Errorf("company owning group %s: %w", groupID, domain.ErrNotFound)
	}
	return companies[0], nil
}

func (r *companyRepository) List(ctx context.Context, companyIDs []string) ([]domain.Company, error) {
	if len(companyIDs) == 0 {
		return []domain.Company{}, nil
	}
	return r.list(ctx, squirrel.Eq{"id": companyIDs})
}

func (r *companyRepository) list(ctx context.Context, where squirrel.Sqlizer) ([]domain.Company, error) {
	stmt, args, err := builder.Select(companyColumns...).From("companies").Where(where).OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select companies sql: %w", err)
	}
	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, translate(err, "query companies")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Company, error) {
		var c domain.Company
		err := row.Scan(&c.ID, &c.Name, &c.Description, &c.AdminsGroupID, &c.AccountantsGroupID, &c.CreatedAt, &c.UpdatedAt)
		return c, err
	})
}
