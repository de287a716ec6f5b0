package server

// Route path constants. All routes are defined here to keep handlers and
// tests in sync.
const (
	RouteHealth  = "/health"
	RouteMetrics = "/metrics"

	// OAuth2 routes
	RouteOAuthAuthorize  = "/oauth/authorize"
	RouteOAuthDecision   = "/oauth/authorize/decision"
	RouteOAuthToken      = "/oauth/token"
	RouteOAuthRevoke     = "/oauth/revoke"
	RouteOAuthIntrospect = "/oauth/introspect"

	// Protected resource routes
	RouteAPIUser        = "/api/user"
	RouteAPIUserDetails = "/api/user/details"
)
