package application

import (
	"context"
	"errors"
	"fmt"

	"accountx/internal/domain"
	"accountx/internal/ports"
)

// Provisioner installs the default groups and grants of the policy. The Provision*
// methods write through the repositories they are given so callers can run them
// inside the transaction that persists the object.
type Provisioner struct {
	policy domain.Policy
	logger ports.Logger
}

func NewProvisioner(policy domain.Policy, logger ports.Logger) (*Provisioner, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid provisioning policy: %w", err)
	}
	return &Provisioner{
		policy: policy,
		logger: orNopLogger(logger),
	}, nil
}

func (p *Provisioner) Policy() domain.Policy { return p.policy }

// ClaimCompanyGroups returns the admins and accountants groups named after the
// company, creating them when missing. A leftover group of that name is reused
// only while no company owns it; an owned one fails with domain.ErrConflict.
func (p *Provisioner) ClaimCompanyGroups(ctx context.Context, repos ports.Repositories, companyName string) (admins, accountants domain.Group, err error) {
	admins, err = p.claimGroup(ctx, repos, p.policy.GroupName(companyName, domain.RoleAdmins))
	if err != nil {
		return domain.Group{}, domain.Group{}, fmt.Errorf("claim admins group: %w", err)
	}
	accountants, err = p.claimGroup(ctx, repos, p.policy.GroupName(companyName, domain.RoleAccountants))
	if err != nil {
		return domain.Group{}, domain.Group{}, fmt.Errorf("claim accountants group: %w", err)
	}
	return admins, accountants, nil
}

func (p *Provisioner) claimGroup(ctx context.Context, repos ports.Repositories, name string) (domain.Group, error) {
	existing, err := repos.Groups.GetByName(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		group := domain.Group{ID: newID(), Name: name, CreatedAt: now()}
		if err := repos.Groups.Create(ctx, group); err != nil {
			return domain.Group{}, err
		}
		return group, nil
	}
	if err != nil {
		return domain.Group{}, err
	}
	owner, err := repos.Companies.GetByGroup(ctx, existing.ID)
	if err == nil {
		return domain.Group{}, fmt.Errorf("%w: group %s belongs to company %s", domain.ErrConflict, name, owner.ID)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Group{}, err
	}
	p.logger.Info(ctx, "reusing unowned group", "group_id", existing.ID, "name", existing.Name)
	return existing, nil
}

// RenameCompanyGroups renames both company groups after the company.
func (p *Provisioner) RenameCompanyGroups(ctx context.Context, repos ports.Repositories, company domain.Company) error {
	for _, role := range domain.Roles {
		name := p.policy.GroupName(company.Name, role)
		err := repos.Groups.Rename(ctx, company.GroupFor(role), name)
		if errors.Is(err, domain.ErrDuplicateName) {
			return fmt.Errorf("%w: group %s already exists", domain.ErrConflict, name)
		}
		if err != nil {
			return fmt.Errorf("rename %s group: %w", role, err)
		}
	}
	return nil
}

// ProvisionCompany adds the owner to both company groups and installs the company
// and group management grants. company must already carry its group ids.
func (p *Provisioner) ProvisionCompany(ctx context.Context, repos ports.Repositories, ownerID string, company domain.Company) error {
	if company.ID == "" || company.AdminsGroupID == "" || company.AccountantsGroupID == "" {
		return domain.ErrInvalidInput
	}
	for _, role := range domain.Roles {
		groupID := company.GroupFor(role)
		if ownerID != "" {
			if err := repos.Groups.AddMember(ctx, groupID, ownerID); err != nil {
				return fmt.Errorf("add owner to %s: %w", role, err)
			}
		}
		if err := p.grantAll(ctx, repos, domain.GroupSubject(groupID), domain.EntityCompany, p.policy.ActionsFor(domain.EntityCompany, role), company.ID); err != nil {
			return err
		}
		if err := p.grantAll(ctx, repos, domain.GroupSubject(company.AdminsGroupID), domain.EntityGroup, p.policy.GroupManagement, groupID); err != nil {
			return err
		}
	}
	p.logger.Info(ctx, "company provisioned", "company_id", company.ID, "owner_id", ownerID)
	return nil
}

// ProvisionChild grants the parent company's groups their policy actions on a new
// child record. The groups are resolved from the company, never passed in.
func (p *Provisioner) ProvisionChild(ctx context.Context, repos ports.Repositories, companyID, objectID string, entity domain.EntityType) error {
	if companyID == "" || objectID == "" || entity == domain.EntityCompany {
		return domain.ErrInvalidInput
	}
	if _, ok := p.policy.Entities[entity]; !ok {
		return fmt.Errorf("%w: no provisioning policy for %s", domain.ErrInvalidInput, entity)
	}
	company, err := repos.Companies.GetByID(ctx, companyID)
	if err != nil {
		return fmt.Errorf("resolve company %s: %w", companyID, err)
	}
	for _, role := range domain.Roles {
		subject := domain.GroupSubject(company.GroupFor(role))
		if err := p.grantAll(ctx, repos, subject, entity, p.policy.ActionsFor(entity, role), objectID); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provisioner) grantAll(ctx context.Context, repos ports.Repositories, subject domain.Subject, entity domain.EntityType, actions []domain.Action, objectID string) error {
	for _, action := range actions {
		grant := domain.Grant{Permission: domain.Perm(action, entity), Subject: subject, ObjectID: objectID}
		if err := grant.Validate(); err != nil {
			return err
		}
		if err := repos.Grants.Put(ctx, grant); err != nil {
			return fmt.Errorf("grant %s to %s: %w", grant.Permission, subject, err)
		}
	}
	return nil
}

// ProvisionUser gives the user the policy's user management actions on itself and
// on the user to every subject that may change one of the joined groups.
func (p *Provisioner) ProvisionUser(ctx context.Context, repos ports.Repositories, userID string, joined []string) error {
	if userID == "" {
		return domain.ErrInvalidInput
	}
	if err := p.grantAll(ctx, repos, domain.UserSubject(userID), domain.EntityUser, p.policy.UserManagement, userID); err != nil {
		return err
	}
	return p.ProvisionMembership(ctx, repos, userID, joined)
}

// ProvisionMembership grants user management on userID to the subjects holding
// change_group on any of the joined groups.
func (p *Provisioner) ProvisionMembership(ctx context.Context, repos ports.Repositories, userID string, joined []string) error {
	for _, groupID := range joined {
		managers, err := repos.Grants.ListHolders(ctx, domain.Perm(domain.ActionChange, domain.EntityGroup), groupID)
		if err != nil {
			return fmt.Errorf("list managers of group %s: %w", groupID, err)
		}
		for _, m := range managers {
			if err := p.grantAll(ctx, repos, m, domain.EntityUser, p.policy.UserManagement, userID); err != nil {
				return err
			}
		}
	}
	return nil
}
