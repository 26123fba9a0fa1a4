package application

import (
	"context"
	"fmt"
	"time"

	"accountx/internal/domain"
	"accountx/internal/ports"
)

type ReportService struct {
	store     ports.Store
	evaluator *Evaluator
}

func NewReportService(store ports.Store, evaluator *Evaluator) *ReportService {
	return &ReportService{store: store, evaluator: evaluator}
}

// Vat sums the tax of the company's sales (VatIn) and purchases (VatOut) whose
// cashflow date lies within [after, before].
func (s *ReportService) Vat(ctx context.Context, actorID, companyID string, after, before time.Time) (domain.VatReport, error) {
	if companyID == "" || after.IsZero() || before.IsZero() || before.Before(after) {
		return domain.VatReport{}, domain.ErrInvalidInput
	}
	repos := s.store.Repositories()
	if _, err := repos.Companies.GetByID(ctx, companyID); err != nil {
		return domain.VatReport{}, err
	}
	if err := s.evaluator.Require(ctx, actorID, domain.Perm(domain.ActionView, domain.EntityCompany), companyID); err != nil {
		return domain.VatReport{}, err
	}

	filter := domain.RecordFilter{CompanyID: companyID, CashflowFrom: &after, CashflowTo: &before}
	sales, err := repos.Sales.List(ctx, filter)
	if err != nil {
		return domain.VatReport{}, fmt.Errorf("list sales: %w", err)
	}
	purchases, err := repos.Purchases.List(ctx, filter)
	if err != nil {
		return domain.VatReport{}, fmt.Errorf("list purchases: %w", err)
	}

	report := domain.VatReport{CompanyID: companyID, After: after, Before: before}
	for _, sale := range sales {
		report.VatIn += sale.Tax()
	}
	for _, p := range purchases {
		report.VatOut += p.Tax()
	}
	return report, nil
}
