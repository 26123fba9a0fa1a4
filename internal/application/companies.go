package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"accountx/internal/domain"
	"accountx/internal/ports"
)

type CompanyInput struct {
	Name        string
	Description string
}

// CompanyDetails is a company together with the groups holding any permission on it.
type CompanyDetails struct {
	domain.Company
	Groups []string `json:"groups"`
}

type CompanyService struct {
	deps Dependencies
}

func NewCompanyService(deps Dependencies) *CompanyService {
	return &CompanyService{deps: deps.withDefaults()}
}

func (s *CompanyService) Create(ctx context.Context, actorID string, input CompanyInput) (CompanyDetails, error) {
	if err := s.canCreate(ctx, actorID); err != nil {
		return CompanyDetails{}, err
	}
	company := domain.Company{
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
	}
	if err := company.Validate(); err != nil {
		return CompanyDetails{}, err
	}

	company.ID = newID()
	company.CreatedAt = now()
	company.UpdatedAt = company.CreatedAt

	err := s.provision(ctx, actorID, &company)
	if errors.Is(err, domain.ErrDuplicateName) {
		// A concurrent writer created one of the groups after it was looked up.
		err = s.provision(ctx, actorID, &company)
	}
	if errors.Is(err, domain.ErrDuplicateName) {
		err = fmt.Errorf("%w: %v", domain.ErrConflict, err)
	}
	s.deps.Metrics.ObserveProvisioning(string(domain.EntityCompany), err)
	if err != nil {
		s.deps.Logger.Error(ctx, "company creation failed", "name", company.Name, "error", err)
		return CompanyDetails{}, err
	}
	return s.details(ctx, company)
}

// provision claims the company groups and persists the company with its grants in
// one transaction.
func (s *CompanyService) provision(ctx context.Context, actorID string, company *domain.Company) error {
	return s.deps.Store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		admins, accountants, err := s.deps.Provisioner.ClaimCompanyGroups(ctx, repos, company.Name)
		if err != nil {
			return err
		}
		company.AdminsGroupID = admins.ID
		company.AccountantsGroupID = accountants.ID
		if err := repos.Companies.Create(ctx, *company); err != nil {
			return err
		}
		return s.deps.Provisioner.ProvisionCompany(ctx, repos, actorID, *company)
	})
}

func (s *CompanyService) canCreate(ctx context.Context, actorID string) error {
	super, err := s.deps.Evaluator.IsSuperuser(ctx, actorID)
	if err != nil || super {
		return err
	}
	user, err := s.deps.Store.Repositories().Users.GetByID(ctx, actorID)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: unknown user", domain.ErrPermissionDeny)
	}
	if err != nil {
		return err
	}
	if !user.CanCreateCompanies {
		return fmt.Errorf("%w: user %s may not create companies", domain.ErrPermissionDeny, actorID)
	}
	return nil
}

func (s *CompanyService) Get(ctx context.Context, actorID, companyID string) (CompanyDetails, error) {
	company, err := s.load(ctx, actorID, domain.ActionView, companyID)
	if err != nil {
		return CompanyDetails{}, err
	}
	return s.details(ctx, company)
}

func (s *CompanyService) List(ctx context.Context, actorID string) ([]CompanyDetails, error) {
	ids, err := s.deps.Evaluator.FilterAccessible(ctx, domain.UserSubject(actorID), domain.Perm(domain.ActionView, domain.EntityCompany), domain.EntityCompany)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []CompanyDetails{}, nil
	}
	companies, err := s.deps.Store.Repositories().Companies.List(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]CompanyDetails, 0, len(companies))
	for _, c := range companies {
		d, err := s.details(ctx, c)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *CompanyService) Update(ctx context.Context, actorID, companyID string, input CompanyInput) (CompanyDetails, error) {
	company, err := s.load(ctx, actorID, domain.ActionChange, companyID)
	if err != nil {
		return CompanyDetails{}, err
	}
	previous := company.Name
	company.Name = strings.TrimSpace(input.Name)
	company.Description = input.Description
	company.UpdatedAt = now()
	if err := company.Validate(); err != nil {
		return CompanyDetails{}, err
	}
	renamed := company.Name != previous
	err = s.deps.Store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		if err := repos.Companies.Update(ctx, company); err != nil {
			return err
		}
		if !renamed {
			return nil
		}
		return s.deps.Provisioner.RenameCompanyGroups(ctx, repos, company)
	})
	if err != nil {
		return CompanyDetails{}, err
	}
	return s.details(ctx, company)
}

// Delete removes the company with every record it owns, the grants on all of them,
// and both company groups. Media content is removed from the blob store once the
// deletion is committed.
func (s *CompanyService) Delete(ctx context.Context, actorID, companyID string) error {
	company, err := s.load(ctx, actorID, domain.ActionDelete, companyID)
	if err != nil {
		return err
	}

	var mediaIDs []string
	err = s.deps.Store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		if _, err := cascadeRecords(ctx, repos, repos.Sales, company.ID); err != nil {
			return err
		}
		if _, err := cascadeRecords(ctx, repos, repos.Purchases, company.ID); err != nil {
			return err
		}
		if _, err := cascadeRecords(ctx, repos, repos.Bookings, company.ID); err != nil {
			return err
		}
		if _, err := cascadeRecords(ctx, repos, repos.BookingTypes, company.ID); err != nil {
			return err
		}
		ids, err := cascadeRecords(ctx, repos, repos.Media, company.ID)
		if err != nil {
			return err
		}
		mediaIDs = ids

		if err := repos.Grants.DeleteByObject(ctx, company.ID); err != nil {
			return fmt.Errorf("delete company grants: %w", err)
		}
		for _, role := range domain.Roles {
			if err := deleteGroup(ctx, repos, company.GroupFor(role)); err != nil {
				return err
			}
		}
		return repos.Companies.Delete(ctx, company.ID)
	})
	if err != nil {
		return err
	}

	s.deps.Logger.Info(ctx, "company deleted", "company_id", company.ID, "media", len(mediaIDs))
	for _, id := range mediaIDs {
		if s.deps.Blobs == nil {
			break
		}
		if err := s.deps.Blobs.Delete(ctx, domain.MediaBlobKey(id)); err != nil {
			s.deps.Logger.Warn(ctx, "failed to delete media content", "media_id", id, "error", err)
		}
	}
	return nil
}

func (s *CompanyService) load(ctx context.Context, actorID string, action domain.Action, companyID string) (domain.Company, error) {
	if companyID == "" {
		return domain.Company{}, domain.ErrInvalidInput
	}
	company, err := s.deps.Store.Repositories().Companies.GetByID(ctx, companyID)
	if err != nil {
		return domain.Company{}, err
	}
	if err := s.deps.Evaluator.Authorize(ctx, actorID, action, domain.EntityCompany, companyID); err != nil {
		return domain.Company{}, err
	}
	return company, nil
}

func (s *CompanyService) details(ctx context.Context, company domain.Company) (CompanyDetails, error) {
	grants, err := s.deps.Store.Repositories().Grants.ListByObject(ctx, company.ID)
	if err != nil {
		return CompanyDetails{}, fmt.Errorf("list grants of company %s: %w", company.ID, err)
	}
	subjects := make([]domain.Subject, 0, len(grants))
	for _, g := range grants {
		subjects = append(subjects, g.Subject)
	}
	return CompanyDetails{Company: company, Groups: groupIDsOf(subjects)}, nil
}

// cascadeRecords deletes every record of one kind owned by the company together with
// the grants on it and returns the deleted ids.
func cascadeRecords[T domain.Record](ctx context.Context, repos ports.Repositories, repo ports.RecordRepository[T], companyID string) ([]string, error) {
	records, err := repo.List(ctx, domain.RecordFilter{CompanyID: companyID})
	if err != nil {
		return nil, fmt.Errorf("list records of company %s: %w", companyID, err)
	}
	ids := make([]string, 0, len(records))
	for _, r := range records {
		if err := repos.Grants.DeleteByObject(ctx, r.RecordID()); err != nil {
			return nil, fmt.Errorf("delete grants of %s %s: %w", r.Entity(), r.RecordID(), err)
		}
		if err := repo.Delete(ctx, r.RecordID()); err != nil {
			return nil, fmt.Errorf("delete %s %s: %w", r.Entity(), r.RecordID(), err)
		}
		ids = append(ids, r.RecordID())
	}
	return ids, nil
}

func deleteGroup(ctx context.Context, repos ports.Repositories, groupID string) error {
	if groupID == "" {
		return nil
	}
	members, err := repos.Groups.ListMembers(ctx, groupID)
	if err != nil {
		return fmt.Errorf("list members of %s: %w", groupID, err)
	}
	for _, userID := range members {
		if err := repos.Groups.RemoveMember(ctx, groupID, userID); err != nil {
			return fmt.Errorf("remove %s from %s: %w", userID, groupID, err)
		}
	}
	if err := repos.Grants.DeleteByObject(ctx, groupID); err != nil {
		return fmt.Errorf("delete grants on group %s: %w", groupID, err)
	}
	if err := repos.Grants.DeleteBySubject(ctx, domain.GroupSubject(groupID)); err != nil {
		return fmt.Errorf("delete grants held by group %s: %w", groupID, err)
	}
	return repos.Groups.Delete(ctx, groupID)
}
