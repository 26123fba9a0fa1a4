package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountx/internal/domain"
	"accountx/internal/ports"
)

func TestGroups_UniqueNamesAndMembership(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()

	require.NoError(t, repos.Groups.Create(ctx, domain.Group{ID: "g1", Name: "Acme_admins"}))
	err := repos.Groups.Create(ctx, domain.Group{ID: "g2", Name: "Acme_admins"})
	assert.ErrorIs(t, err, domain.ErrDuplicateName)

	require.NoError(t, repos.Groups.AddMember(ctx, "g1", "alice"))
	require.NoError(t, repos.Groups.AddMember(ctx, "g1", "alice"))
	members, err := repos.Groups.ListMembers(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, members)

	assert.ErrorIs(t, repos.Groups.AddMember(ctx, "missing", "alice"), domain.ErrNotFound)

	byName, err := repos.Groups.GetByName(ctx, "Acme_admins")
	require.NoError(t, err)
	assert.Equal(t, "g1", byName.ID)
}

func TestGrants_IdempotentAndQueryable(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	view := domain.Perm(domain.ActionView, domain.EntityCompany)

	for range 2 {
		require.NoError(t, repos.Grants.Put(ctx, domain.Grant{Permission: view, Subject: domain.GroupSubject("g1"), ObjectID: "c1"}))
	}
	require.NoError(t, repos.Grants.Put(ctx, domain.Grant{Permission: view, Subject: domain.UserSubject("bob"), ObjectID: "c1"}))

	holders, err := repos.Grants.ListHolders(ctx, view, "c1")
	require.NoError(t, err)
	assert.Equal(t, []domain.Subject{domain.GroupSubject("g1"), domain.UserSubject("bob")}, holders)

	require.NoError(t, repos.Grants.DeleteByObject(ctx, "c1"))
	objects, err := repos.Grants.ListObjects(ctx, domain.GroupSubject("g1"), view)
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	boom := errors.New("grant failed")

	err := store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		if err := repos.Companies.Create(ctx, domain.Company{ID: "c1", Name: "Acme"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.Repositories().Companies.GetByID(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		return repos.Companies.Create(ctx, domain.Company{ID: "c1", Name: "Acme"})
	}))
	ids, err := store.ListIDs(ctx, domain.EntityCompany)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids)
}

func TestCompanies_NameConflict(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()

	require.NoError(t, repos.Companies.Create(ctx, domain.Company{ID: "c1", Name: "Acme"}))
	require.NoError(t, repos.Companies.Create(ctx, domain.Company{ID: "c2", Name: "Globex"}))
	assert.ErrorIs(t, repos.Companies.Update(ctx, domain.Company{ID: "c2", Name: "Acme"}), domain.ErrConflict)
	assert.NoError(t, repos.Companies.Update(ctx, domain.Company{ID: "c1", Name: "Acme", Description: "renamed"}))
}

func TestGroups_Rename(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()

	require.NoError(t, repos.Groups.Create(ctx, domain.Group{ID: "g1", Name: "Acme_admins"}))
	require.NoError(t, repos.Groups.Create(ctx, domain.Group{ID: "g2", Name: "Beta_admins"}))
	assert.ErrorIs(t, repos.Groups.Rename(ctx, "g1", "Beta_admins"), domain.ErrDuplicateName)
	assert.ErrorIs(t, repos.Groups.Rename(ctx, "nope", "x"), domain.ErrNotFound)
	require.NoError(t, repos.Groups.Rename(ctx, "g1", "Renamed_admins"))

	got, err := repos.Groups.GetByName(ctx, "Renamed_admins")
	require.NoError(t, err)
	assert.Equal(t, "g1", got.ID)
	_, err = repos.Groups.GetByName(ctx, "Acme_admins")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCompanies_GroupOwnership(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()

	require.NoError(t, repos.Companies.Create(ctx, domain.Company{ID: "c1", Name: "Acme", AdminsGroupID: "g1", AccountantsGroupID: "g2"}))
	assert.ErrorIs(t, repos.Companies.Create(ctx, domain.Company{ID: "c2", Name: "Beta", AdminsGroupID: "g2"}), domain.ErrConflict)
	require.NoError(t, repos.Companies.Create(ctx, domain.Company{ID: "c2", Name: "Beta", AdminsGroupID: "g3"}))
	assert.ErrorIs(t, repos.Companies.Update(ctx, domain.Company{ID: "c2", Name: "Beta", AdminsGroupID: "g1"}), domain.ErrConflict)

	owner, err := repos.Companies.GetByGroup(ctx, "g2")
	require.NoError(t, err)
	assert.Equal(t, "c1", owner.ID)
	_, err = repos.Companies.GetByGroup(ctx, "g4")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecords_ListFiltersByCompany(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repos := store.Repositories()

	require.NoError(t, repos.BookingTypes.Create(ctx, domain.BookingType{ID: "b2", CompanyID: "c1", Name: "Rent"}))
	require.NoError(t, repos.BookingTypes.Create(ctx, domain.BookingType{ID: "b1", CompanyID: "c1", Name: "Travel"}))
	require.NoError(t, repos.BookingTypes.Create(ctx, domain.BookingType{ID: "b3", CompanyID: "c2", Name: "Travel"}))
	assert.ErrorIs(t, repos.BookingTypes.Create(ctx, domain.BookingType{ID: "b1", CompanyID: "c1"}), domain.ErrConflict)

	got, err := repos.BookingTypes.List(ctx, domain.RecordFilter{CompanyID: "c1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b1", got[0].ID)
	assert.Equal(t, "b2", got[1].ID)

	_, err = store.ListIDs(ctx, "invoice")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBlobStore(t *testing.T) {
	ctx := context.Background()
	blobs := NewBlobStore()

	require.NoError(t, blobs.Put(ctx, "media/m1", strings.NewReader("%PDF"), 4, "application/pdf"))
	rc, err := blobs.Get(ctx, "media/m1")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "%PDF", string(body))

	require.NoError(t, blobs.Delete(ctx, "media/m1"))
	assert.Equal(t, 0, blobs.Len())
	_, err = blobs.Get(ctx, "media/m1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
