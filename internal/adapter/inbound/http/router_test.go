package http

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// markerHandler returns an http.Handler that writes a specific marker string.
// Used in routing tests to verify which handler received the request.
func markerHandler(marker string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Handler", marker)
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, marker)
	})
}

func TestRouter_Dispatch(t *testing.T) {
	router := NewRouter("", markerHandler("intercept"), markerHandler("plain"))

	methods := []string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete,
		http.MethodHead, http.MethodPatch, http.MethodOptions,
	}
	paths := []string{"/jsonrpc", "/", "/jsonrpc/", "/image/thumb.jpg", "/JSONRPC", "/jsonrpc?Player.Open"}

	for _, method := range methods {
		for _, path := range paths {
			want := "plain"
			if method == http.MethodPost && (path == "/jsonrpc" || path == "/jsonrpc?Player.Open") {
				want = "intercept"
			}

			t.Run(method+" "+path, func(t *testing.T) {
				req := httptest.NewRequest(method, path, nil)
				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, req)

				if got := rec.Header().Get("X-Handler"); got != want {
					t.Errorf("%s %s routed to %q, want %q", method, path, got, want)
				}
				if got := router.Route(req); got != want {
					t.Errorf("Route(%s %s) = %q, want %q", method, path, got, want)
				}
			})
		}
	}
}

func TestRouter_CustomControlPath(t *testing.T) {
	router := NewRouter("/kodi/jsonrpc", markerHandler("intercept"), markerHandler("plain"))

	tests := []struct {
		path string
		want string
	}{
		{path: "/kodi/jsonrpc", want: RouteIntercept},
		{path: "/jsonrpc", want: RoutePlain},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, tt.path, nil)
		if got := router.Route(req); got != tt.want {
			t.Errorf("Route(POST %s) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
