package handler

import (
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"ironveil/domain"
	adapterwebsocket "ironveil/server/adapter/websocket"
)

type AcceptHandler struct {
	pubsub  domain.PubSub
	gateway domain.Gateway
}

func NewAcceptHandler(pubsub domain.PubSub, gateway domain.Gateway) *AcceptHandler {
	return &AcceptHandler{pubsub: pubsub, gateway: gateway}
}

func (h *AcceptHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // 開発用: Origin チェックをスキップ
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to accept", "err", err)
		return
	}

	session := domain.NewSession()
	transport := adapterwebsocket.NewTransportFrom(conn)
	connection := domain.NewConnection(session.ID(), transport)
	endpoint, err := domain.NewSessionEndpoint(session, connection, h.pubsub, h.gateway)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create session endpoint", "err", err)
		return
	}
	slog.DebugContext(ctx, "accepted new connection", "session_id", session.ID())
	err = endpoint.Run()
	if err != nil {
		slog.ErrorContext(ctx, "failed to run session endpoint", "err", err)
		return
	}
}
