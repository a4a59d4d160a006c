package tracker

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Capture outcomes.
const (
	resultSuccess  = "success"
	resultRejected = "rejected" // endpoint answered with a non-OK status
	resultFailed   = "failed"   // transport or decoding failure
)

type Metrics struct {
	captures          *prometheus.CounterVec
	captureDuration   prometheus.Histogram
	formsInstrumented prometheus.Counter
	submissions       *prometheus.CounterVec
}

// NewMetrics registers the capture collectors with reg. Collectors already
// registered by an earlier client on the same registry are shared.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "getracker",
			Name:      "captures_total",
			Help:      "Lead capture attempts by result.",
		}, []string{"result"}),
		captureDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "getracker",
			Name:      "capture_duration_seconds",
			Help:      "Time spent delivering a lead to the tracker endpoint.",
			Buckets:   prometheus.DefBuckets,
		}),
		formsInstrumented: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "getracker",
			Name:      "forms_instrumented_total",
			Help:      "Forms a submit listener was attached to.",
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "getracker",
			Name:      "form_submissions_total",
			Help:      "Instrumented form submissions by outcome.",
		}, []string{"outcome"}),
	}
	m.captures = register(reg, m.captures)
	m.captureDuration = register(reg, m.captureDuration)
	m.formsInstrumented = register(reg, m.formsInstrumented)
	m.submissions = register(reg, m.submissions)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	// Conflicting collector under the same name: count unregistered.
	return c
}
