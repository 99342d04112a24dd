package api

import (
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"odyssey/internal/game"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics with bounded cardinality (no per-player or per-map labels).
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "game_tick_duration_seconds",
		Help:    "Time spent in one monster simulation tick",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
	})

	playerCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_player_count",
		Help: "Connected players across all maps",
	})

	monsterCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_monster_count",
		Help: "Live monsters across all maps",
	})

	roomCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_room_count",
		Help: "Active map rooms",
	})

	framesIn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingress_frames_total",
		Help: "Client event frames received",
	})

	framesUnroutable = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingress_frames_unroutable_total",
		Help: "Client event frames no router claimed",
	})

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or caps",
	}, []string{"reason"}) // Bounded: "rate_limit", "ws_total_limit", "ws_ip_limit", "poll_limit"

	socketsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_sessions_active",
		Help: "Currently active realtime sessions (ws + poll)",
	})
)

// RecordTickDuration observes one simulation tick's cost. Wired to the hub
// via its OnTickDuration callback.
func RecordTickDuration(d time.Duration) {
	tickDuration.Observe(d.Seconds())
}

// RecordConnectionRejected counts a rejection by bounded reason.
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

func recordFrameIn()         { framesIn.Inc() }
func recordFrameUnroutable() { framesUnroutable.Inc() }

func updateSessionCount(n int) { socketsActive.Set(float64(n)) }

// StartMetricsLoop periodically mirrors hub occupancy into gauges.
func StartMetricsLoop(hub *game.Hub, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s := hub.Stats()
				playerCount.Set(float64(s.TotalPlayers))
				monsterCount.Set(float64(s.TotalMonsters))
				roomCount.Set(float64(len(s.Maps)))
			case <-stop:
				return
			}
		}
	}()
}

// ObservabilityConfig configures the debug server.
type ObservabilityConfig struct {
	Enabled    bool
	ListenAddr string // MUST stay on localhost in production
}

// DefaultObservabilityConfig returns safe defaults.
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// StartDebugServer starts the internal observability server.
// CRITICAL: this binds to localhost only to prevent pprof-based DoS.
func StartDebugServer(cfg ObservabilityConfig) error {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}

	if cfg.ListenAddr != "127.0.0.1:6060" && cfg.ListenAddr != "localhost:6060" {
		if os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
			log.Println("⚠️ Debug server forced to localhost for security")
			cfg.ListenAddr = "127.0.0.1:6060"
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	go func() {
		log.Printf("📊 Debug server starting on %s", cfg.ListenAddr)
		if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()
	return nil
}
