package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"truco-fdp-server/api"
	"truco-fdp-server/applog"
	"truco-fdp-server/broadcast"
	"truco-fdp-server/config"
	"truco-fdp-server/session"
	"truco-fdp-server/store"
	"truco-fdp-server/ws"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		if err2 := godotenv.Load("server/.env"); err2 != nil {
			fmt.Fprintln(os.Stderr, "No .env file found; using environment variables.")
		}
	}

	cfg := config.Load()
	log := slog.New(applog.NewCompactHandler(os.Stdout, slog.LevelInfo))

	log.Info("configuration loaded", "wsPort", cfg.WSPort, "rooms", len(cfg.Rooms),
		"startingLives", cfg.HostSettingsDefaults.StartingLives, "turnTimerSec", cfg.HostSettingsDefaults.TurnTimerSeconds)

	st := store.New(cfg.SnapshotPath, log)
	if err := st.Restore(); err != nil {
		log.Error("failed to restore snapshot, starting with an empty world", "error", err)
	}

	sessions := session.New(st, cfg, log)
	fanout := broadcast.New(st, cfg, log)
	hub := ws.NewHub(sessions, fanout, st, cfg, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	stopSnapshot := make(chan struct{})
	go st.RunPeriodicSnapshot(time.Duration(cfg.SnapshotIntervalSec)*time.Second, stopSnapshot)

	stopSweep := make(chan struct{})
	go sessions.RunExpirySweep(time.Duration(cfg.SessionSweepIntervalSec)*time.Second, stopSweep, func(removed []session.ExpiredEntry) {
		for _, entry := range removed {
			fanout.RoomEvent(entry.RoomID, "player_left", map[string]any{"playerId": entry.PlayerID, "reason": "disconnected"})
		}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)

	apiHandler := api.NewHandler(cfg, st)
	mux.HandleFunc("/api/rooms", apiHandler.Rooms)
	mux.HandleFunc("/api/rooms/", apiHandler.RoomDetail)
	mux.HandleFunc("/api/health", apiHandler.Health)

	addr := fmt.Sprintf(":%d", cfg.WSPort)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		log.Info("truco-fdp-server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	cancel()
	close(stopSweep)
	close(stopSnapshot)
	time.Sleep(100 * time.Millisecond)
}
