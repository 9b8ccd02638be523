// Package health serves liveness and readiness probes.
//
// Readiness runs named dependency checks concurrently with a shared
// timeout and reports each result:
//
//	r.Get("/health/live", health.LivenessHandler())
//	r.Get("/health/ready", health.ReadinessHandler(health.Checks{
//		"postgres": db.Healthcheck(pool),
//		"redis":    redis.Healthcheck(client),
//	}, health.WithLogger(log)))
//
// Responses are JSON:
//
//	{"status":"unhealthy","checks":{"redis":{"status":"unhealthy","error":"...","duration":"1.2ms"}}}
package health
