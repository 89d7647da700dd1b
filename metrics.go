package calculator

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Label names attached by transports through Context.PrometheusLabels.
const (
	LabelMethod    = "method"
	LabelTransport = "transport"
)

// NewMetrics creates the collectors RegisterMetrics expects, labelled by
// method, transport, server name and reply status. The caller registers them.
func NewMetrics(namespace string) (*prometheus.HistogramVec, *prometheus.GaugeVec) {
	responseTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "rpc",
		Name:      "response_time_seconds",
		Help:      "Time taken to reply to a call.",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
	}, []string{LabelMethod, LabelTransport, "name", "status"})

	errorCount := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "rpc",
		Name:      "errors",
		Help:      "Number of calls replied with an error.",
	}, []string{LabelMethod, LabelTransport, "name", "status", "message"})

	return responseTime, errorCount
}

// RegisterMetrics records every call in responseTime and every failed call in
// errorCount. Either may be nil. Both must carry the labels of NewMetrics;
// only the method and transport labels of a call are used.
func (s *Server) RegisterMetrics(responseTime *prometheus.HistogramVec, errorCount *prometheus.GaugeVec) {
	s.OnAfterResponse(func(e *AfterResponseEvent) {
		status := "0"
		if e.Res != nil {
			status = strconv.Itoa(e.Res.Status)
		}

		labels := prometheus.Labels{
			LabelMethod:    e.Labels[LabelMethod],
			LabelTransport: e.Labels[LabelTransport],
			"name":         s.options.name,
			"status":       status,
		}

		if responseTime != nil {
			responseTime.
				With(labels).
				Observe(e.Duration.Seconds())
		}

		if e.Res != nil && e.Res.Error != nil && errorCount != nil {
			labels["message"] = e.Res.Error.Error()
			errorCount.
				With(labels).
				Inc()
		}
	})
}
