// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

/*
Package middleware provides HTTP middleware shared by the API router.

Key Components:

  - Request ID: X-Request-ID propagation into the request and logging contexts
  - Prometheus Metrics: request counts, latency and in-flight gauge

Both use the http.HandlerFunc signature; the api package adapts them to
chi's func(http.Handler) http.Handler.

Usage:

	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chiMiddleware(middleware.PrometheusMetrics))

	func handler(w http.ResponseWriter, r *http.Request) {
	    requestID := middleware.GetRequestID(r.Context())
	    logging.Ctx(r.Context()).Info().Msg("handling")
	}

Metric Labels:

The endpoint label is the chi route pattern ("/api/v1/experiments/{name}/assignment"),
not the raw path, so user-controlled path segments cannot grow label
cardinality. Requests that match no route are recorded as "unmatched".

See Also:

  - internal/api: HTTP handlers wrapped by middleware
  - internal/metrics: Prometheus metrics definitions
*/
package middleware
