package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"accountx/internal/ports"
)

const namespace = "accountx"

// Recorder exports permission decisions and provisioning outcomes to Prometheus.
type Recorder struct {
	registry     *prometheus.Registry
	decisions    *prometheus.CounterVec
	provisioning *prometheus.CounterVec
}

var _ ports.Metrics = (*Recorder)(nil)

// NewRecorder registers the collectors with reg. A nil reg uses a fresh registry.
func NewRecorder(reg *prometheus.Registry) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	decisions, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "permission_decisions_total",
		Help:      "Permission checks partitioned by permission and outcome.",
	}, []string{"permission", "outcome"}))
	if err != nil {
		return nil, err
	}
	provisioning, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provisioning_total",
		Help:      "Provisioning runs partitioned by entity and outcome.",
	}, []string{"entity", "outcome"}))
	if err != nil {
		return nil, err
	}
	return &Recorder{registry: reg, decisions: decisions, provisioning: provisioning}, nil
}

func (r *Recorder) ObserveDecision(permission string, allowed bool) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	r.decisions.WithLabelValues(permission, outcome).Inc()
}

func (r *Recorder) ObserveProvisioning(entity string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.provisioning.WithLabelValues(entity, outcome).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the registry the recorder writes to, for other collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return nil, fmt.Errorf("register collector: %w", err)
	}
	return c, nil
}
