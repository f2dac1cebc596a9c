package metrics

import (
	otelapi "go.opentelemetry.io/otel/metric"
)

var (
	AuthSuccessCount otelapi.Int64Counter
	AuthFailureCount otelapi.Int64Counter
	TokenAge         otelapi.Int64Histogram

	ProxySuccessCount otelapi.Int64Counter
	ProxyFailureCount otelapi.Int64Counter

	FrontendConnectionsCount otelapi.Int64ObservableGauge
)
