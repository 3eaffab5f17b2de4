// Package health provides HTTP handlers for liveness and readiness probes.
//
//	r.Get("/healthz", health.LivenessHandler())
//	r.Get("/readyz", health.ReadinessHandler(health.Checks{
//		"relay": func(ctx context.Context) error { return relay.Ping(ctx, addr) },
//	}, health.WithLogger(log)))
//
// Probes answer plain "OK" / "Service Unavailable" by default, and JSON when the
// request sets Accept: application/json or ?format=json:
//
//	{"status":"unhealthy","checks":{"relay":{"status":"unhealthy","error":"relay: connection failed: ..."}}}
package health
