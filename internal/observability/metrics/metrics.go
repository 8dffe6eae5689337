package metrics

import "github.com/prometheus/client_golang/prometheus"

// BotMetrics exposes counters/histograms for conversation flows.
type BotMetrics struct {
	turnsTotal       *prometheus.CounterVec
	dispatchTotal    *prometheus.CounterVec
	alertsTotal      prometheus.Counter
	assistantLatency prometheus.Histogram
}

func NewBotMetrics(reg prometheus.Registerer) *BotMetrics {
	m := &BotMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roombot",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Total conversation turns by channel",
		}, []string{"channel", "status"}),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roombot",
			Subsystem: "dispatch",
			Name:      "actions_total",
			Help:      "Total dispatched action directives",
		}, []string{"command", "outcome"}),
		alertsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roombot",
			Subsystem: "reminder",
			Name:      "alerts_total",
			Help:      "Total meeting alerts sent",
		}),
		assistantLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "roombot",
			Subsystem: "assistant",
			Name:      "latency_seconds",
			Help:      "Latency of NLU service calls",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.dispatchTotal, m.alertsTotal, m.assistantLatency)
	return m
}

func (m *BotMetrics) ObserveTurn(channel, status string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(channel, status).Inc()
}

func (m *BotMetrics) ObserveDispatch(command, outcome string) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(command, outcome).Inc()
}

func (m *BotMetrics) ObserveAlert() {
	if m == nil {
		return
	}
	m.alertsTotal.Inc()
}

func (m *BotMetrics) ObserveAssistantLatency(seconds float64) {
	if m == nil {
		return
	}
	m.assistantLatency.Observe(seconds)
}
