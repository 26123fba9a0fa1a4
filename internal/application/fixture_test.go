package application

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"accountx/internal/domain"
	"accountx/internal/infrastructure/memory"
	"accountx/internal/ports"
)

type testApp struct {
	store       *memory.Store
	blobs       *memory.BlobStore
	groups      *GroupService
	grants      *GrantService
	evaluator   *Evaluator
	provisioner *Provisioner

	users        *UserService
	companies    *CompanyService
	memberships  *MembershipService
	sales        *RecordService[domain.Sale]
	purchases    *RecordService[domain.Purchase]
	bookings     *RecordService[domain.Booking]
	bookingTypes *RecordService[domain.BookingType]
	media        *MediaService
	reports      *ReportService
}

func newTestApp(t *testing.T, superusers ...string) *testApp {
	t.Helper()
	return newTestAppWithStore(t, memory.NewStore(), superusers...)
}

func newTestAppWithStore(t *testing.T, store ports.Store, superusers ...string) *testApp {
	t.Helper()
	blobs := memory.NewBlobStore()
	groups := NewGroupService(store, nil)
	grants := NewGrantService(store)
	evaluator := NewEvaluator(store, grants, nil, nil, superusers...)
	provisioner, err := NewProvisioner(domain.DefaultPolicy(), nil)
	require.NoError(t, err)

	deps := Dependencies{Store: store, Evaluator: evaluator, Provisioner: provisioner, Blobs: blobs}
	app := &testApp{
		blobs:        blobs,
		groups:       groups,
		grants:       grants,
		evaluator:    evaluator,
		provisioner:  provisioner,
		users:        NewUserService(deps),
		companies:    NewCompanyService(deps),
		memberships:  NewMembershipService(deps, groups),
		sales:        NewSaleService(deps),
		purchases:    NewPurchaseService(deps),
		bookings:     NewBookingService(deps),
		bookingTypes: NewBookingTypeService(deps),
		media:        NewMediaService(deps),
		reports:      NewReportService(store, evaluator),
	}
	if ms, ok := store.(*memory.Store); ok {
		app.store = ms
	}
	return app
}

func (a *testApp) register(t *testing.T, id string) string {
	t.Helper()
	_, err := a.users.Register(context.Background(), id, UserInput{Username: id, Email: id + "@example.com"})
	require.NoError(t, err)
	return id
}

func (a *testApp) company(t *testing.T, owner, name string) CompanyDetails {
	t.Helper()
	c, err := a.companies.Create(context.Background(), owner, CompanyInput{Name: name})
	require.NoError(t, err)
	return c
}

func (a *testApp) sale(t *testing.T, actor, companyID string, net float64, cashflow *time.Time) domain.Sale {
	t.Helper()
	s, err := a.sales.Create(context.Background(), actor, domain.Sale{
		CompanyID:    companyID,
		InvoiceDate:  day(2024, 3, 1),
		Customer:     "Customer",
		VAT:          0.19,
		Net:          net,
		CashflowDate: cashflow,
	})
	require.NoError(t, err)
	return s
}

func (a *testApp) upload(t *testing.T, actor, companyID, name string) domain.Media {
	t.Helper()
	m, err := a.media.Upload(context.Background(), actor, Upload{
		CompanyID:   companyID,
		FileName:    name,
		ContentType: "application/pdf",
		Size:        3,
		Body:        strings.NewReader("pdf"),
	})
	require.NoError(t, err)
	return m
}

func (a *testApp) can(t *testing.T, user string, action domain.Action, entity domain.EntityType, objectID string) bool {
	t.Helper()
	ok, err := a.evaluator.Check(context.Background(), user, domain.Perm(action, entity), objectID)
	require.NoError(t, err)
	return ok
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }
