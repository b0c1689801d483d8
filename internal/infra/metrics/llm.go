package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(llmCallLatencyMs, llmRetriesTotal)
}

var (
	llmCallLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_call_latency_ms",
			Help:    "LLM call latency distribution in milliseconds.",
			Buckets: []float64{50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 30000},
		},
		[]string{"provider", "model", "success"},
	)

	llmRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_retries_total",
			Help: "Count of retried LLM calls per provider, by reason.",
		},
		[]string{"provider", "reason"},
	)
)

func ObserveLLMCall(provider, model string, latency time.Duration, success bool) {
	llmCallLatencyMs.WithLabelValues(provider, model, strconv.FormatBool(success)).
		Observe(float64(latency / time.Millisecond))
	if !success {
		llmRetriesTotal.WithLabelValues(provider, "error").Inc()
	}
}
