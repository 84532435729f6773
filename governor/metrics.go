package governor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	authorizations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aicore",
		Subsystem: "governor",
		Name:      "authorizations_total",
		Help:      "Authorization decisions by outcome (allowed, fail_open, or deny reason).",
	}, []string{"outcome"})

	recordedCost = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aicore",
		Subsystem: "governor",
		Name:      "recorded_cost_total",
		Help:      "Accumulated cost of recorded calls in currency units.",
	}, []string{"model"})
)
