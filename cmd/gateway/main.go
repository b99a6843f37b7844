package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bobbyswhip/miniapp-applesnakes-sub004/auth"
	"github.com/bobbyswhip/miniapp-applesnakes-sub004/config"
	"github.com/bobbyswhip/miniapp-applesnakes-sub004/logger"
	"github.com/bobbyswhip/miniapp-applesnakes-sub004/metrics"
	"github.com/bobbyswhip/miniapp-applesnakes-sub004/proxy"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewZapLogger("applesnakes-gateway", cfg.App.LogLevel)
	recorder := metrics.NewPrometheusRecorder(prometheus.DefaultRegisterer)

	proxyHandler, err := proxy.NewHandler(cfg.Upstream.BaseURL,
		proxy.WithLogger(log),
		proxy.WithMetrics(recorder),
	)
	if err != nil {
		log.Error("proxy init", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	authService := auth.NewService([]byte(cfg.Auth.JWTSecret), log)

	mux := http.NewServeMux()
	mux.Handle("/auth/", http.StripPrefix("/auth", authService.Handler()))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/", proxyHandler)

	go func() {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.API.MetricsPort)
		if err := http.ListenAndServe(addr, metricsMux); err != nil && err != http.ErrServerClosed {
			log.Error("metrics listen and serve", map[string]any{"error": err.Error()})
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.API.Port)
	log.Info("gateway listening", map[string]any{
		"addr":     addr,
		"upstream": cfg.Upstream.BaseURL,
	})
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		log.Error("listen and serve", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}
