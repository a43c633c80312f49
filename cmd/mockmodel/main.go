package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Annmariya27/ctg-pro/internal/config"
	"github.com/Annmariya27/ctg-pro/internal/metrics"
	"github.com/Annmariya27/ctg-pro/internal/mockmodel"
)

func main() {
	_ = godotenv.Load()

	cfg := config.LoadModel()
	log.Printf("[%s] Starting on %s:%d", mockmodel.ModelName, cfg.Host, cfg.Port)

	var shuttingDown atomic.Bool
	m := metrics.NewModelMetrics(prometheus.DefaultRegisterer)
	handler := mockmodel.NewHandler(cfg, m, &shuttingDown)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", metrics.Handler())

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{Addr: addr, Handler: mux, ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second}

	go func() {
		log.Printf("[%s] Listening on %s", mockmodel.ModelName, addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shuttingDown.Store(true)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("[%s] Shutdown error: %v", mockmodel.ModelName, err)
	}
	log.Printf("[%s] Shutdown complete", mockmodel.ModelName)
}
