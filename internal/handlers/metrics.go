package handlers

import "github.com/prometheus/client_golang/prometheus"

type DirectoryMetrics struct {
	Requests   *prometheus.CounterVec
	Detections *prometheus.CounterVec
}

func (m *DirectoryMetrics) IncRequest(endpoint, status string) {
	if m == nil || m.Requests == nil {
		return
	}

	m.Requests.WithLabelValues(endpoint, status).Inc()
}

func (m *DirectoryMetrics) IncDetection(source string) {
	if m == nil || m.Detections == nil {
		return
	}

	m.Detections.WithLabelValues(source).Inc()
}
