package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	loadAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kairos",
			Subsystem: "model",
			Name:      "load_attempts_total",
			Help:      "Model load attempts by outcome",
		},
		[]string{"outcome"},
	)

	loadedGPULayers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kairos",
			Subsystem: "model",
			Name:      "loaded_gpu_layers",
			Help:      "GPU layers offloaded by the loaded session",
		},
	)
)

func init() {
	prometheus.MustRegister(loadAttemptsTotal, loadedGPULayers)
}
