// Package metrics provides Prometheus instrumentation for the prediction stream.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "prediction_stream"

var (
	// ActiveSessions tracks currently open websocket sessions.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Number of currently open websocket sessions.",
	})

	// SessionsTotal counts accepted sessions.
	SessionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_total",
		Help:      "Total websocket sessions accepted.",
	})

	// PredictionsTotal counts predictions by source (periodic, request).
	PredictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "predictions_total",
		Help:      "Total predictions produced by source.",
	}, []string{"source"})

	// FraudFlagsTotal counts predictions flagged by each model.
	FraudFlagsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fraud_flags_total",
		Help:      "Total predictions flagged as fraud by model.",
	}, []string{"model"})

	// InboundErrorsTotal counts client frames answered with an error message.
	InboundErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "inbound_errors_total",
		Help:      "Total inbound frames that could not be processed.",
	})

	// RecorderDroppedTotal counts prediction records dropped because the buffer was full.
	RecorderDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recorder_dropped_total",
		Help:      "Total prediction records dropped by the recorder.",
	})

	// SinkErrorsTotal counts failed sink writes by sink name.
	SinkErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sink_errors_total",
		Help:      "Total failed sink writes by sink.",
	}, []string{"sink"})
)

func init() {
	prometheus.MustRegister(
		ActiveSessions,
		SessionsTotal,
		PredictionsTotal,
		FraudFlagsTotal,
		InboundErrorsTotal,
		RecorderDroppedTotal,
		SinkErrorsTotal,
	)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
