package chat

import "github.com/prometheus/client_golang/prometheus"

var (
	generationTokensTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kairos",
		Subsystem: "generation",
		Name:      "tokens_total",
		Help:      "Raw tokens produced by the engine",
	})

	generationTokensPerSecond = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "kairos",
		Subsystem: "generation",
		Name:      "tokens_per_second",
		Help:      "Throughput of the most recent generation",
	})
)

func init() {
	prometheus.MustRegister(generationTokensTotal, generationTokensPerSecond)
}
