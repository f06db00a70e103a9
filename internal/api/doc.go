// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

/*
Package api exposes the recommendation core over HTTP using the chi router.

Endpoints:

	GET  /api/v1/recommendations?user_id=&content_type=&size=
	POST /api/v1/feedback
	GET  /api/v1/users/{userID}/feedback?limit=
	GET  /api/v1/breakers
	GET  /api/v1/experiments/{name}/assignment?user_id=
	GET  /health/live
	GET  /health/ready
	GET  /metrics

Every JSON endpoint answers with the models.APIResponse envelope. Only an
invalid request is reported as an error on the recommendation endpoint;
dependency failures surface as a fallback response with status 200.

Middleware Stack (outermost first):

  - middleware.RequestID: X-Request-ID propagation into the logging context
  - chimiddleware.RealIP and chimiddleware.Recoverer
  - go-chi/cors
  - go-chi/httprate (API routes only)
  - middleware.PrometheusMetrics (API routes only)
*/
package api
