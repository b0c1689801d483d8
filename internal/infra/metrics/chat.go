package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(chatTurnsTotal, toolCallsTotal) }

var (
	chatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Completed conversation turns, labeled by mode and outcome.",
		},
		[]string{"mode", "outcome"}, // mode: 'process'|'stream', outcome: 'ok'|'error'
	)

	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tool_calls_total",
			Help: "Tool invocations requested by the model, labeled by tool name.",
		},
		[]string{"tool"},
	)
)

func IncChatTurn(mode string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	chatTurnsTotal.WithLabelValues(mode, outcome).Inc()
}

func IncToolCall(tool string) {
	toolCallsTotal.WithLabelValues(tool).Inc()
}
