// Package gateway terminates trust for the system: it verifies the bearer
// credential once, then forwards the authenticated identity downstream over
// a plain header. The gateway is the only permitted writer of that header on
// the trusted network segment, so any client-supplied value is discarded
// before forwarding.
package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"strings"

	"github.com/minisocial/minisocial/internal/auth"
	"github.com/minisocial/minisocial/internal/config"
	logpkg "github.com/minisocial/minisocial/pkg/log"
)

// TrustedIdentityHeader carries the verified subject id to downstream
// services. They treat it as authoritative and must never accept it from an
// external client directly.
const TrustedIdentityHeader = "X-User-Id"

type route struct {
	prefix string
	proxy  *httputil.ReverseProxy
	public bool
}

// Server is the authenticated reverse proxy.
type Server struct {
	verifier *auth.Verifier
	logger   logpkg.Logger
	routes   []route
}

// New builds a Server from the static routing table. Path-to-backend
// mapping is configuration, not negotiated at runtime.
func New(cfg config.GatewayConfig, verifier *auth.Verifier, logger logpkg.Logger) (*Server, error) {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	s := &Server{verifier: verifier, logger: logger.With(logpkg.Component("gateway"))}

	add := func(table map[string]string, public bool) error {
		for prefix, target := range table {
			u, err := url.Parse(target)
			if err != nil {
				return err
			}
			s.routes = append(s.routes, route{
				prefix: prefix,
				proxy:  httputil.NewSingleHostReverseProxy(u),
				public: public,
			})
		}
		return nil
	}
	if err := add(cfg.Routes, false); err != nil {
		return nil, err
	}
	if err := add(cfg.PublicRoutes, true); err != nil {
		return nil, err
	}
	// The websocket upgrade path authenticates in the hub's handshake, so it
	// forwards like a public route.
	if err := add(cfg.SocketRoute, true); err != nil {
		return nil, err
	}

	// Longest prefix wins, so /api/users/login shadows /api/users.
	sort.Slice(s.routes, func(i, j int) bool {
		return len(s.routes[i].prefix) > len(s.routes[j].prefix)
	})
	return s, nil
}

func (s *Server) match(path string) (route, bool) {
	for _, rt := range s.routes {
		if path == rt.prefix || strings.HasPrefix(path, rt.prefix+"/") {
			return rt, true
		}
	}
	return route{}, false
}

func writeAuthError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}

// Handler returns the gateway's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/", s.forward)
	return cors(mux)
}

// forward routes one request: public paths pass through unverified,
// protected paths fail closed on any credential problem.
func (s *Server) forward(w http.ResponseWriter, r *http.Request) {
	rt, ok := s.match(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	// The identity header is gateway-owned. Whatever the client sent is
	// dropped unconditionally, on every path.
	r.Header.Del(TrustedIdentityHeader)

	if rt.public {
		rt.proxy.ServeHTTP(w, r)
		return
	}

	token, err := auth.FromAuthorizationHeader(r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, "access denied: no token provided")
		return
	}
	userID, err := s.verifier.VerifyToken(token)
	if err != nil {
		s.logger.Debug("credential rejected", logpkg.Str("path", r.URL.Path), logpkg.Err(err))
		writeAuthError(w, "invalid token")
		return
	}

	// Overwrite, never merge: the only value downstream ever sees is the
	// verified subject.
	r.Header.Set(TrustedIdentityHeader, userID)
	rt.proxy.ServeHTTP(w, r)
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
