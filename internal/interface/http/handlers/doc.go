// Package handlers contains HTTP health checks and reusable middleware.
//
// # Health Checks
//
// Checks run in parallel, each bounded by its own timeout. A failing required
// check makes the service unready; a failing optional check only marks it
// degraded:
//
//	checker := handlers.NewCompositeHealthChecker("v0.1.0")
//	checker.AddCheck("database", handlers.NewPingCheck(db))
//	checker.AddOptionalCheck("cache", handlers.NewPingCheck(cache))
//
// # Middleware
//
// API keys are configured as bcrypt hashes:
//
//	auth := handlers.NewAPIKeyAuth("X-API-Key", cfg.HTTP.APIKeyHashes)
//	handler := handlers.ChainHandler(
//	    api,
//	    handlers.SecurityHeadersMiddleware,
//	    handlers.NoCacheMiddleware,
//	    auth.Middleware,
//	)
package handlers
