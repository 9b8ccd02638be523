// Package redis opens go-redis clients from environment configuration.
//
// Open parses REDIS_URL (redis:// or rediss://), applies pool and timeout
// settings from Config and pings the server, retrying transient failures.
// Healthcheck and Shutdown adapt a client to readiness probes and shutdown
// hooks.
//
//	client, err := redis.Open(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
// Errors are joined with the package sentinels (ErrEmptyConnectionURL,
// ErrFailedToParseURL, ErrConnectionFailed, ErrHealthcheckFailed).
package redis
