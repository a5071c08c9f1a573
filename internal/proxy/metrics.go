package proxy

import "github.com/prometheus/client_golang/prometheus"

var proxiedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "llamactld",
	Subsystem: "proxy",
	Name:      "requests_total",
	Help:      "Routed inference requests by outcome (forwarded, rejected, error).",
}, []string{"outcome"})

func init() {
	prometheus.MustRegister(proxiedTotal)
}
