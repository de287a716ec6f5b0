package server

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mubarokah/id-server/scopes"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteHealth, s.Health())
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	// OAuth2 endpoints
	s.RegisterRouteHandler("GET "+RouteOAuthAuthorize, ChainMiddleware(s.Authorize(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteOAuthDecision, ChainMiddleware(s.Decision(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteOAuthToken, ChainMiddleware(s.Token(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteOAuthRevoke, ChainMiddleware(s.Revoke(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteOAuthIntrospect, ChainMiddleware(s.Introspect(), s.APIMiddleware()...))

	// Protected resources: bearer auth, then the per-endpoint scope gate,
	// then the per-client rate budget.
	s.RegisterRouteHandler("GET "+RouteAPIUser,
		ChainMiddleware(s.UserInfo(), s.resourceMiddleware(scopes.ViewUser, s.userLimiter)...))
	s.RegisterRouteHandler("GET "+RouteAPIUserDetails,
		ChainMiddleware(s.UserDetails(), s.resourceMiddleware(scopes.DetailUser, s.detailsLimiter)...))
}
