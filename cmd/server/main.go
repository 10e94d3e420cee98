package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ironveil/domain"
	"ironveil/game"
	sessionmemory "ironveil/repository/gamesession/memory"
	historymemory "ironveil/repository/history/memory"
	"ironveil/server"
	adaptermqtt "ironveil/server/adapter/mqtt"
	"ironveil/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := utils.GetEnvDefault("ADDR", "localhost")
	port := utils.GetEnvDefault("PORT", "9090")
	roomCode := utils.GetEnvDefault("ROOM_CODE", "LOBBY")
	brokerURL := utils.GetEnvDefault("MQTT_URL", "")
	tickEnv := utils.GetEnvDefault("POWERUP_INTERVAL", "")

	// PubSub初期化
	pubsub := domain.NewSimplePubSub()
	index := domain.NewIndex()

	// 永続層（インメモリ）。起動時にデフォルトルームを1つ用意する。
	sessions := sessionmemory.NewStore()
	seed := sessions.Create("Default Room", roomCode, 8, true)
	slog.InfoContext(ctx, "default room created", "code", seed.Code, "id", seed.ID)

	hist := historymemory.NewStore(historymemory.DefaultMaxPerRoom)

	// イベントバス。ブローカー未設定ならno-op。
	var bus domain.EventBus = domain.NopEventBus{}
	if brokerURL != "" {
		publisher, err := adaptermqtt.NewPublisher(brokerURL, "ironveil-"+port)
		if err != nil {
			slog.WarnContext(ctx, "mqtt unavailable, running without bus", "err", err)
		} else {
			defer publisher.Close()
			bus = publisher
		}
	}

	rooms := game.NewRegistry(sessions)
	combat := game.NewCombat(rooms)
	fanout := game.NewFanout(index, pubsub, bus, hist)
	gateway := game.NewGateway(index, rooms, combat, fanout, hist)

	scheduler := game.NewScheduler(rooms, fanout)
	if tickEnv != "" {
		if interval, err := time.ParseDuration(tickEnv); err == nil {
			scheduler.WithInterval(interval)
		} else {
			slog.WarnContext(ctx, "invalid POWERUP_INTERVAL, using default", "value", tickEnv)
		}
	}
	go scheduler.Run(ctx)

	handler := server.Route(pubsub, gateway)
	s := server.NewServer(fmt.Sprintf("%s:%s", addr, port), handler)

	go func() {
		if err := s.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()
	slog.InfoContext(ctx, "server listening", "addr", addr+":"+port)

	<-ctx.Done()
	slog.InfoContext(ctx, "shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(ctx, "graceful shutdown failed", "error", err)
		if err := s.Close(); err != nil {
			slog.ErrorContext(ctx, "forced close failed", "error", err)
		}
	}
	slog.InfoContext(ctx, "server shutdown complete")
}
