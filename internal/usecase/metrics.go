package usecase

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arklim/token-vault/internal/repository"
)

// StoreMetricsOptions configures the store instrumentation collectors.
type StoreMetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
	Buckets    []float64
}

// StoreMetrics exposes Prometheus collectors for token store operations.
// A nil *StoreMetrics is valid and records nothing.
type StoreMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewStoreMetrics constructs and registers the collectors, reusing already
// registered ones so repeated wiring does not fail.
func NewStoreMetrics(opts StoreMetricsOptions) (*StoreMetrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "tokenvault"
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Total number of token store operations partitioned by operation and outcome.",
	}, []string{"op", "status"})

	if err := reg.Register(operations); err != nil {
		already := prometheus.AlreadyRegisteredError{}
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				operations = existing
			} else {
				return nil, err
			}
		} else {
			return nil, err
		}
	}

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "operation_duration_seconds",
		Help:      "Token store operation latency partitioned by operation.",
		Buckets:   buckets,
	}, []string{"op"})

	if err := reg.Register(duration); err != nil {
		already := prometheus.AlreadyRegisteredError{}
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.HistogramVec); ok {
				duration = existing
			} else {
				return nil, err
			}
		} else {
			return nil, err
		}
	}

	return &StoreMetrics{operations: operations, duration: duration}, nil
}

func (m *StoreMetrics) observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}

	m.operations.WithLabelValues(op, outcome(err)).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, repository.ErrNotFound):
		return "not_found"
	case errors.Is(err, repository.ErrBackendUnavailable):
		return "unavailable"
	case errors.Is(err, repository.ErrUnexpected):
		return "unexpected"
	default:
		return "invalid"
	}
}
