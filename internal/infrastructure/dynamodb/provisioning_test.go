package dynamodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountx/internal/application"
	"accountx/internal/domain"
)

func TestStore_ProvisionAndCascade(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	groups := application.NewGroupService(store, nil)
	grants := application.NewGrantService(store)
	evaluator := application.NewEvaluator(store, grants, nil, nil)
	provisioner, err := application.NewProvisioner(domain.DefaultPolicy(), nil)
	require.NoError(t, err)
	deps := application.Dependencies{Store: store, Evaluator: evaluator, Provisioner: provisioner}

	users := application.NewUserService(deps)
	companies := application.NewCompanyService(deps)
	sales := application.NewSaleService(deps)

	_, err = users.Register(ctx, "alice", application.UserInput{Username: "alice"})
	require.NoError(t, err)
	acme, err := companies.Create(ctx, "alice", application.CompanyInput{Name: "Acme"})
	require.NoError(t, err)

	_, err = companies.Create(ctx, "alice", application.CompanyInput{Name: "Acme"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	ok, err := evaluator.Check(ctx, "alice", domain.Perm(domain.ActionDelete, domain.EntityCompany), acme.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	sale, err := sales.Create(ctx, "alice", domain.Sale{
		CompanyID:   acme.ID,
		InvoiceDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		VAT:         0.19,
		Net:         100,
	})
	require.NoError(t, err)
	ok, err = evaluator.Check(ctx, "alice", domain.Perm(domain.ActionChange, domain.EntitySale), sale.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, companies.Delete(ctx, "alice", acme.ID))

	_, err = sales.Get(ctx, "alice", sale.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	of, err := groups.GroupsOf(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, of)

	// Only the user and the self-management grants survive.
	remaining, err := store.Repositories().Grants.ListBySubject(ctx, domain.UserSubject("alice"))
	require.NoError(t, err)
	assert.Len(t, remaining, len(domain.AllActions))
	assert.Equal(t, 1+2*len(domain.AllActions), db.count())
}

func TestStore_RenamedCompanyKeepsItsGroups(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	grants := application.NewGrantService(store)
	evaluator := application.NewEvaluator(store, grants, nil, nil)
	provisioner, err := application.NewProvisioner(domain.DefaultPolicy(), nil)
	require.NoError(t, err)
	deps := application.Dependencies{Store: store, Evaluator: evaluator, Provisioner: provisioner}
	users := application.NewUserService(deps)
	companies := application.NewCompanyService(deps)

	for _, id := range []string{"alice", "mallory"} {
		_, err = users.Register(ctx, id, application.UserInput{Username: id})
		require.NoError(t, err)
	}
	acme, err := companies.Create(ctx, "alice", application.CompanyInput{Name: "Acme"})
	require.NoError(t, err)
	_, err = companies.Update(ctx, "alice", acme.ID, application.CompanyInput{Name: "Renamed"})
	require.NoError(t, err)

	renamed, err := store.Repositories().Groups.GetByName(ctx, "Renamed_admins")
	require.NoError(t, err)
	assert.Equal(t, acme.AdminsGroupID, renamed.ID)

	other, err := companies.Create(ctx, "mallory", application.CompanyInput{Name: "Acme"})
	require.NoError(t, err)
	assert.NotEqual(t, acme.AdminsGroupID, other.AdminsGroupID)
	assert.NotEqual(t, acme.AccountantsGroupID, other.AccountantsGroupID)
	assert.ErrorIs(t, companies.Delete(ctx, "mallory", acme.ID), domain.ErrNotFound)
}
