package application

import (
	"context"

	"github.com/stretchr/testify/mock"

	"accountx/internal/domain"
	"accountx/internal/ports"
)

type userRepoMock struct{ mock.Mock }

func (m *userRepoMock) Create(ctx context.Context, user domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *userRepoMock) Update(ctx context.Context, user domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *userRepoMock) Delete(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *userRepoMock) GetByID(ctx context.Context, userID string) (domain.User, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.User), args.Error(1)
}

func (m *userRepoMock) ListByIDs(ctx context.Context, userIDs []string) ([]domain.User, error) {
	args := m.Called(ctx, userIDs)
	return args.Get(0).([]domain.User), args.Error(1)
}

type groupRepoMock struct{ mock.Mock }

func (m *groupRepoMock) Create(ctx context.Context, group domain.Group) error {
	args := m.Called(ctx, group)
	return args.Error(0)
}

func (m *groupRepoMock) Rename(ctx context.Context, groupID, name string) error {
	args := m.Called(ctx, groupID, name)
	return args.Error(0)
}

func (m *groupRepoMock) Delete(ctx context.Context, groupID string) error {
	args := m.Called(ctx, groupID)
	return args.Error(0)
}

func (m *groupRepoMock) GetByID(ctx context.Context, groupID string) (domain.Group, error) {
	args := m.Called(ctx, groupID)
	return args.Get(0).(domain.Group), args.Error(1)
}

func (m *groupRepoMock) GetByName(ctx context.Context, name string) (domain.Group, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(domain.Group), args.Error(1)
}

func (m *groupRepoMock) ListByIDs(ctx context.Context, groupIDs []string) ([]domain.Group, error) {
	args := m.Called(ctx, groupIDs)
	return args.Get(0).([]domain.Group), args.Error(1)
}

func (m *groupRepoMock) AddMember(ctx context.Context, groupID, userID string) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *groupRepoMock) RemoveMember(ctx context.Context, groupID, userID string) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *groupRepoMock) ListByMember(ctx context.Context, userID string) ([]domain.Group, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Group), args.Error(1)
}

func (m *groupRepoMock) ListMembers(ctx context.Context, groupID string) ([]string, error) {
	args := m.Called(ctx, groupID)
	return args.Get(0).([]string), args.Error(1)
}

type grantRepoMock struct{ mock.Mock }

func (m *grantRepoMock) Put(ctx context.Context, grant domain.Grant) error {
	args := m.Called(ctx, grant)
	return args.Error(0)
}

func (m *grantRepoMock) Delete(ctx context.Context, grant domain.Grant) error {
	args := m.Called(ctx, grant)
	return args.Error(0)
}

func (m *grantRepoMock) ListHolders(ctx context.Context, perm domain.Permission, objectID string) ([]domain.Subject, error) {
	args := m.Called(ctx, perm, objectID)
	return args.Get(0).([]domain.Subject), args.Error(1)
}

func (m *grantRepoMock) ListObjects(ctx context.Context, subject domain.Subject, perm domain.Permission) ([]string, error) {
	args := m.Called(ctx, subject, perm)
	return args.Get(0).([]string), args.Error(1)
}

func (m *grantRepoMock) ListByObject(ctx context.Context, objectID string) ([]domain.Grant, error) {
	args := m.Called(ctx, objectID)
	return args.Get(0).([]domain.Grant), args.Error(1)
}

func (m *grantRepoMock) ListBySubject(ctx context.Context, subject domain.Subject) ([]domain.Grant, error) {
	args := m.Called(ctx, subject)
	return args.Get(0).([]domain.Grant), args.Error(1)
}

func (m *grantRepoMock) DeleteByObject(ctx context.Context, objectID string) error {
	args := m.Called(ctx, objectID)
	return args.Error(0)
}

func (m *grantRepoMock) DeleteBySubject(ctx context.Context, subject domain.Subject) error {
	args := m.Called(ctx, subject)
	return args.Error(0)
}

type metricsMock struct{ mock.Mock }

func (m *metricsMock) ObserveDecision(permission string, allowed bool) {
	m.Called(permission, allowed)
}

func (m *metricsMock) ObserveProvisioning(entity string, err error) {
	m.Called(entity, err)
}

// mockStore hands out the mocked repositories and runs fn directly.
type mockStore struct {
	users  *userRepoMock
	groups *groupRepoMock
	grants *grantRepoMock
	ids    map[domain.EntityType][]string
}

func newMockStore() *mockStore {
	return &mockStore{users: new(userRepoMock), groups: new(groupRepoMock), grants: new(grantRepoMock)}
}

func (s *mockStore) Repositories() ports.Repositories {
	return ports.Repositories{Users: s.users, Groups: s.groups, Grants: s.grants}
}

func (s *mockStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos ports.Repositories) error) error {
	return fn(ctx, s.Repositories())
}

func (s *mockStore) ListIDs(_ context.Context, entity domain.EntityType) ([]string, error) {
	return s.ids[entity], nil
}
