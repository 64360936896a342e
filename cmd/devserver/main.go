// Command devserver serves every Lambda handler behind one local HTTP port.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ventureai/internal/bootstrap"
	"ventureai/internal/config"
	"ventureai/internal/handlers"
	"ventureai/internal/logging"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	envFile := flag.String("env", ".env", "dotenv file to load if present")
	flag.Parse()

	if err := godotenv.Load(*envFile); err == nil {
		logging.Init(logging.FromEnv())
		logging.Info().Str("file", *envFile).Msg("loaded env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clients, err := bootstrap.Load(ctx)
	if err != nil {
		logging.Logger.Fatal().Err(err).Msg("load aws config")
	}
	rt := buildRoutes(ctx, clients)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newRouter(rt),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logging.Info().Str("addr", *addr).Msg("dev server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Logger.Fatal().Err(err).Msg("serve")
	}
}

// buildRoutes wires what it can; missing env for one route leaves the others up.
func buildRoutes(ctx context.Context, c *bootstrap.Clients) routes {
	rt := routes{
		Health:      handlers.Health(config.AppName() + "-devserver"),
		Dashboard:   handlers.NewDashboardHandler(c.Queries()).Handle,
		unavailable: map[string]error{},
	}

	if broker, err := c.Broker(); err != nil {
		rt.unavailable["sessions"] = err
	} else {
		rt.CreateSession = handlers.NewSessionHandler(broker).Handle
	}

	if svc, err := c.AnalysisService(ctx); err != nil {
		rt.unavailable["analyses"] = err
		rt.unavailable["ask"] = err
	} else {
		rt.Analyses = handlers.NewAnalysisHandler(svc).Handle
		rt.Ask = handlers.NewAskHandler(svc).Handle
	}

	if x, err := c.Extractor(); err != nil {
		rt.unavailable["extract"] = err
	} else {
		rt.Extract = handlers.NewExtractHandler(x).Handle
	}

	for name, err := range rt.unavailable {
		logging.Warn().Err(err).Str("route", name).Msg("route disabled")
	}
	return rt
}
