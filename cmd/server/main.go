// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/openrally/rally/internal/config"
	"github.com/openrally/rally/internal/handlers"
	"github.com/openrally/rally/internal/lobby"
	"github.com/openrally/rally/internal/middleware"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	srv := handlers.NewServer(logger)

	// Liveness sweeper: the only recovery path for clients that vanish
	// without a close frame.
	sweeper := &lobby.Sweeper{
		Registry: srv.Registry,
		Interval: cfg.SweepInterval,
		Window:   cfg.StaleWindow,
		Logger:   logger,
	}
	go sweeper.Run(context.Background())

	mux := http.NewServeMux()

	// game websocket
	mux.Handle("/ws", http.HandlerFunc(handlers.WSHandler(logger, srv)))

	// connection metadata + join QR
	mux.Handle("/server-info", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.ServerInfoHandler(cfg),
	)))
	mux.Handle("/qr.svg", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.QRHandler(cfg),
	)))

	// browser client assets
	mux.Handle("/", middleware.LogMiddleware(logger)(http.FileServer(http.Dir(cfg.StaticDir))))

	info := handlers.ComputeServerInfo(cfg)
	logger.Infof("Listening on %s (public: %s)", info.HTTPURL, info.HTTPURLPublic)
	logger.Infof("WebSocket endpoint %s (public: %s)", info.WSURL, info.WSURLPublic)
	if err := http.ListenAndServe(cfg.Addr(), mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
