// Package api hosts the HTTP server, middleware, and REST handlers for
// the domain intelligence service. Notable routes:
//   - GET / and /health for the service descriptor and liveness.
//   - GET /metrics for Prometheus scraping.
//   - GET /domains, /domain/{domain}, /categories, and /search for
//     bearer-authenticated domain analytics.
//
// Protected routes run behind auth, per-key rate limiting, and (for the
// listing endpoints) a TTL response cache.
package api
