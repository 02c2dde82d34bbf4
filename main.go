package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"geopresence/config"
	"geopresence/hub"
	"geopresence/protocol"
	"geopresence/status"
	ws "geopresence/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.Logger())

	registry := hub.New()
	handler := protocol.NewHandler(registry)

	server := &http.Server{
		Addr:    cfg.Addr(),
		Handler: newMux(cfg, registry, handler),
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Addr(), "statusPrefix", cfg.StatusPathPrefix)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	registry.CloseAll()
}

// newMux routes WebSocket upgrades on /ws and on the status paths, so
// clients behind a reverse proxy can connect to the prefix itself.
func newMux(cfg config.Config, registry *hub.Hub, handler *protocol.Handler) *http.ServeMux {
	connect := wsHandler(registry, handler, cfg.SendBuffer)
	page := status.PageHandler(registry)
	statusOrUpgrade := func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			connect(w, r)
			return
		}
		if r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		page(w, r)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", connect)
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/stats", status.StatsHandler(registry))
	mux.HandleFunc("/{$}", statusOrUpgrade)
	if cfg.StatusPathPrefix != "" {
		mux.HandleFunc(cfg.StatusPathPrefix+"{$}", statusOrUpgrade)
	}
	return mux
}

func wsHandler(registry *hub.Hub, handler *protocol.Handler, sendBuffer int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("upgrade error", "error", err)
			return
		}

		wsConn := ws.NewConn(uuid.New().String(), conn, sendBuffer, registry, handler)
		slog.Debug("connection accepted", "clientId", wsConn.ID(), "remoteAddr", r.RemoteAddr)
		wsConn.Start()
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
