// Package httpserver contains HTTP handlers and middleware.
//
// It exposes the résumé/job fitness scoring endpoint plus health,
// readiness, and metrics probes, keeping HTTP concerns (routing,
// validation, tracing, error-to-status mapping) separate from the
// coordinator's business logic.
package httpserver

import (
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// TraceMiddleware starts a server span for each HTTP request, carrying the
// standard http.method/http.target/http.status_code attributes the
// otelhttp instrumentation library fills in.
var TraceMiddleware = otelhttp.NewMiddleware("http.server")
