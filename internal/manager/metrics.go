package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llamactld",
			Subsystem: "lifecycle",
			Name:      "loads_total",
			Help:      "Model load attempts by outcome",
		},
		[]string{"outcome"},
	)

	unloadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "llamactld",
			Subsystem: "lifecycle",
			Name:      "unloads_total",
			Help:      "Completed model unloads",
		},
	)

	restartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "llamactld",
			Subsystem: "lifecycle",
			Name:      "restarts_total",
			Help:      "Subprocess restarts after unexpected exits",
		},
	)

	restartsExhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "llamactld",
			Subsystem: "lifecycle",
			Name:      "crash_loops_total",
			Help:      "Instances abandoned after exhausting the restart budget",
		},
	)

	instancesGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "llamactld",
			Subsystem: "lifecycle",
			Name:      "instances",
			Help:      "Currently committed instances",
		},
	)
)

func init() {
	prometheus.MustRegister(loadsTotal, unloadsTotal, restartsTotal, restartsExhaustedTotal, instancesGauge)
}
