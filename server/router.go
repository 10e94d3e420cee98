package server

import (
	"net/http"

	"ironveil/domain"
	"ironveil/server/handler"
)

func Route(pubsub domain.PubSub, gateway domain.Gateway) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", handler.NewAcceptHandler(pubsub, gateway))
	mux.Handle("/healthz", handler.NewHealthHandler())
	return mux
}
