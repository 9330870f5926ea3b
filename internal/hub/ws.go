package hub

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/minisocial/minisocial/internal/auth"
	logpkg "github.com/minisocial/minisocial/pkg/log"
)

// wsSender adapts a websocket connection to the Sender contract.
type wsSender struct {
	conn *websocket.Conn
}

func (s wsSender) Send(ctx context.Context, msg Message) error {
	return wsjson.Write(ctx, s.conn, msg)
}

// Handler upgrades and registers websocket connections after verifying the
// identity token. The token travels as a ?token= query parameter or an
// Authorization bearer header on the upgrade request.
type Handler struct {
	hub      *Hub
	verifier *auth.Verifier
	logger   logpkg.Logger
}

// NewHandler builds a websocket handshake handler for hub.
func NewHandler(h *Hub, verifier *auth.Verifier, logger logpkg.Logger) *Handler {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	return &Handler{hub: h, verifier: verifier, logger: logger.With(logpkg.Component("hub"))}
}

func (h *Handler) token(r *http.Request) (string, error) {
	if t := r.URL.Query().Get("token"); t != "" {
		return t, nil
	}
	return auth.FromAuthorizationHeader(r.Header.Get("Authorization"))
}

// ServeHTTP implements the handshake: verify first, refuse with an
// authentication error on failure, register on success, tear down on
// disconnect.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, err := h.token(r)
	if err != nil {
		http.Error(w, "authentication error", http.StatusUnauthorized)
		return
	}
	userID, err := h.verifier.VerifyToken(token)
	if err != nil {
		http.Error(w, "authentication error", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		h.logger.Warn("websocket accept failed", logpkg.Err(err))
		return
	}
	session := h.hub.Register(userID, wsSender{conn: conn})
	defer h.hub.Teardown(session)
	defer conn.CloseNow()

	h.logger.Info("user connected", logpkg.Str("user", userID))

	// Inbound frames are ignored; the read loop exists to observe the close.
	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			break
		}
	}
	h.logger.Info("user disconnected", logpkg.Str("user", userID))
}
