package application

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"accountx/internal/domain"
	"accountx/internal/ports"
)

// Dependencies bundles the collaborators shared by the company and record services.
type Dependencies struct {
	Store       ports.Store
	Evaluator   *Evaluator
	Provisioner *Provisioner
	Blobs       ports.BlobStore
	Logger      ports.Logger
	Metrics     ports.Metrics
}

func (d Dependencies) withDefaults() Dependencies {
	d.Logger = orNopLogger(d.Logger)
	d.Metrics = orNopMetrics(d.Metrics)
	return d
}

type nopLogger struct{}

func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Debug(context.Context, string, ...any) {}

type nopMetrics struct{}

func (nopMetrics) ObserveDecision(string, bool)      {}
func (nopMetrics) ObserveProvisioning(string, error) {}

func orNopLogger(l ports.Logger) ports.Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}

func orNopMetrics(m ports.Metrics) ports.Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}

var (
	newID = uuid.NewString
	now   = func() time.Time { return time.Now().UTC() }
)

func groupIDsOf(subjects []domain.Subject) []string {
	var ids []string
	for _, s := range subjects {
		if s.Type == domain.SubjectGroup && !slices.Contains(ids, s.ID) {
			ids = append(ids, s.ID)
		}
	}
	slices.Sort(ids)
	return ids
}

func intersect(a, b []string) []string {
	out := make([]string, 0, min(len(a), len(b)))
	for _, v := range a {
		if slices.Contains(b, v) && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func unique(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}
