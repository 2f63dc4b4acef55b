package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// ChannelMetrics exposes counters/histograms for the Telegram and WhatsApp adapters.
type ChannelMetrics struct {
	inboundTotal   *prometheus.CounterVec
	outboundTotal  *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewChannelMetrics(reg prometheus.Registerer) *ChannelMetrics {
	m := &ChannelMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pharmacy",
			Subsystem: "channels",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound channel webhooks",
		}, []string{"channel", "status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pharmacy",
			Subsystem: "channels",
			Name:      "outbound_total",
			Help:      "Total outbound channel sends",
		}, []string{"channel", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pharmacy",
			Subsystem: "channels",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of channel webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.webhookLatency)
	return m
}

func (m *ChannelMetrics) ObserveInbound(channel, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(channel, status).Inc()
}

func (m *ChannelMetrics) ObserveOutbound(channel, status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(channel, status).Inc()
}

func (m *ChannelMetrics) ObserveWebhookLatency(channel string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(channel).Observe(seconds)
}

// ConversationMetrics covers the message pipeline and promotion redemptions.
type ConversationMetrics struct {
	turnsTotal          *prometheus.CounterVec
	classifierFallbacks *prometheus.CounterVec
	lookupFailures      *prometheus.CounterVec
	redemptions         *prometheus.CounterVec
	llmLatency          *prometheus.HistogramVec
	cacheEvictions      prometheus.Counter
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pharmacy",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Processed conversation turns",
		}, []string{"intent", "channel", "outcome"}),
		classifierFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pharmacy",
			Subsystem: "conversation",
			Name:      "classifier_fallback_total",
			Help:      "Intent classifications that fell back to general_inquiry",
		}, []string{"reason"}),
		lookupFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pharmacy",
			Subsystem: "conversation",
			Name:      "lookup_failures_total",
			Help:      "Domain lookups that failed during reply composition",
		}, []string{"intent"}),
		redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pharmacy",
			Subsystem: "promotions",
			Name:      "redemptions_total",
			Help:      "Promotion application attempts by result",
		}, []string{"result"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pharmacy",
			Subsystem: "conversation",
			Name:      "llm_latency_seconds",
			Help:      "Latency of language model calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"kind", "success"}),
		cacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pharmacy",
			Subsystem: "conversation",
			Name:      "context_cache_evictions_total",
			Help:      "Context cache entries removed by the sweep",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.classifierFallbacks, m.lookupFailures, m.redemptions, m.llmLatency, m.cacheEvictions)
	return m
}

func (m *ConversationMetrics) ObserveTurn(intent, channel, outcome string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(intent, channel, outcome).Inc()
}

func (m *ConversationMetrics) ObserveClassifierFallback(reason string) {
	if m == nil {
		return
	}
	m.classifierFallbacks.WithLabelValues(reason).Inc()
}

func (m *ConversationMetrics) ObserveLookupFailure(intent string) {
	if m == nil {
		return
	}
	m.lookupFailures.WithLabelValues(intent).Inc()
}

func (m *ConversationMetrics) ObserveRedemption(result string) {
	if m == nil {
		return
	}
	m.redemptions.WithLabelValues(result).Inc()
}

func (m *ConversationMetrics) ObserveLLMLatency(kind string, success bool, seconds float64) {
	if m == nil {
		return
	}
	m.llmLatency.WithLabelValues(kind, strconv.FormatBool(success)).Observe(seconds)
}

func (m *ConversationMetrics) ObserveEvictions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cacheEvictions.Add(float64(n))
}
