package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// internTotal counts intern outcomes per entity. "created" means a new
// record was persisted; "deduped" means an equivalent record already
// existed and its identity was returned. The ratio is the main health
// signal during a high-volume taint pass.
var internTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "lavadb",
		Name:      "intern_total",
		Help:      "Intern operations by entity and outcome.",
	},
	[]string{"entity", "outcome"},
)

func observeIntern(entity string, created bool) {
	outcome := "deduped"
	if created {
		outcome = "created"
	}
	internTotal.WithLabelValues(entity, outcome).Inc()
}
