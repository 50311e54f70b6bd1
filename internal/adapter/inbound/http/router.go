package http

import "net/http"

// Route names reported by Router.Route and used as metric labels.
const (
	RouteIntercept = "intercept"
	RoutePlain     = "plain"
)

// DefaultControlPath is the upstream's JSON-RPC endpoint.
const DefaultControlPath = "/jsonrpc"

// Router dispatches control-protocol posts to the interceptor and every
// other request to the plain forwarder.
type Router struct {
	controlPath string
	intercept   http.Handler
	plain       http.Handler
}

// NewRouter creates a router. An empty controlPath means DefaultControlPath.
func NewRouter(controlPath string, intercept, plain http.Handler) *Router {
	if controlPath == "" {
		controlPath = DefaultControlPath
	}
	return &Router{
		controlPath: controlPath,
		intercept:   intercept,
		plain:       plain,
	}
}

// Route classifies r. The query string does not take part in the match.
func (rt *Router) Route(r *http.Request) string {
	if r.Method == http.MethodPost && r.URL.Path == rt.controlPath {
		return RouteIntercept
	}
	return RoutePlain
}

// ServeHTTP dispatches r.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if rt.Route(r) == RouteIntercept {
		rt.intercept.ServeHTTP(w, r)
		return
	}
	rt.plain.ServeHTTP(w, r)
}
