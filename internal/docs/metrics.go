package docs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	runOutcomeSucceeded = "succeeded"
	runOutcomeFailed    = "failed"

	fileResultProcessed = "processed"
	fileResultSkipped   = "skipped"
)

var (
	runCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autodocs",
		Subsystem: "docs",
		Name:      "runs_total",
		Help:      "The total number of documentation runs",
	}, []string{"outcome"})

	fileCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autodocs",
		Subsystem: "docs",
		Name:      "files_total",
		Help:      "The total number of candidate files handled by documentation runs",
	}, []string{"result"})
)
