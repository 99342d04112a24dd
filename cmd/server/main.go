package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"odyssey/internal/api"
	"odyssey/internal/chess"
	"odyssey/internal/config"
	"odyssey/internal/game"
	"odyssey/internal/pq"

	"github.com/joho/godotenv"
)

const selfPingInterval = 10 * time.Minute

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	}

	log.Println("🍄 ================================")
	log.Println("🍄  ODYSSEY - REALTIME SERVER")
	log.Println("🍄 ================================")

	appConfig := config.Load()
	gameCfg := appConfig.Game
	serverCfg := appConfig.Server

	if gameCfg.GMPassword == "" {
		log.Println("⚠️ GM_PASSWORD not set - GM surface disabled")
	}
	log.Printf("🎮 Config: %d Hz tick, %s player timeout, debug=%v",
		gameCfg.TickHz, gameCfg.PlayerTimeout, gameCfg.Debug)

	hub := game.NewHub(game.Config{
		TickHz:         gameCfg.TickHz,
		PlayerTimeout:  gameCfg.PlayerTimeout,
		GMPassword:     gameCfg.GMPassword,
		Debug:          gameCfg.Debug,
		EliteCheckMin:  gameCfg.EliteCheckMin,
		EliteCheckMax:  gameCfg.EliteCheckMax,
		OnTickDuration: api.RecordTickDuration,
	})

	server := api.NewServer(api.ServerConfig{
		Hub:   hub,
		Chess: chess.NewRouter(),
		PQ:    pq.NewRelay(),
	})

	if os.Getenv("DISABLE_DEBUG_SERVER") != "true" {
		if err := api.StartDebugServer(api.DefaultObservabilityConfig()); err != nil {
			log.Printf("⚠️ Debug server disabled: %v", err)
		}
	}

	metricsStop := make(chan struct{})
	api.StartMetricsLoop(hub, metricsStop)

	hub.Start()
	log.Println("✅ Hub started")

	if serverCfg.SelfPingURL != "" {
		go selfPing(serverCfg.SelfPingURL)
		log.Printf("🏓 Self-ping enabled: %s", serverCfg.SelfPingURL)
	}

	go func() {
		addr := ":" + strconv.Itoa(serverCfg.Port)
		log.Printf("🌐 Listening on http://localhost%s", addr)
		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	close(metricsStop)
	server.Stop()
	hub.Stop()
	log.Println("👋 Goodbye!")
}

// selfPing keeps free-tier hosting from idling the process out.
func selfPing(url string) {
	ticker := time.NewTicker(selfPingInterval)
	defer ticker.Stop()
	client := &http.Client{Timeout: 30 * time.Second}
	for range ticker.C {
		resp, err := client.Get(url)
		if err != nil {
			log.Printf("⚠️ Self-ping failed: %v", err)
			continue
		}
		resp.Body.Close()
	}
}
