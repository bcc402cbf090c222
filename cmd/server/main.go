package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"social-service/internal/config"
	"social-service/internal/factory"
	"social-service/internal/util"
)

const shutdownTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	f, err := factory.NewFactory(ctx)
	if err != nil {
		util.Init(os.Getenv("ENVIRONMENT"), "info", "json")
		util.Fatal("Failed to initialize factory", util.ErrorField(err))
	}
	defer f.Close()

	cfg := f.Config()
	logger := f.Logger()
	f.Start(ctx)

	var servers []*http.Server
	switch {
	case cfg.Server.EnableTLS && cfg.IsProduction() && cfg.Server.AutoCert:
		servers = startAutoCertServers(f, cfg, logger)
	case cfg.Server.EnableTLS:
		servers = []*http.Server{startTLSServer(f, cfg, logger)}
	default:
		logger.Warn("Starting HTTP server - TLS is disabled",
			zap.String("environment", cfg.Environment),
			zap.String("port", cfg.Server.Port))
		srv := newServer(cfg, cfg.GetServerAddress(), f.Handler())
		serve(logger, srv, srv.ListenAndServe)
		servers = []*http.Server{srv}
	}

	<-ctx.Done()
	logger.Info("Received shutdown signal")
	shutdown(logger, servers...)
}

func newServer(cfg *config.Config, addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

func startTLSServer(f *factory.Factory, cfg *config.Config, logger *zap.Logger) *http.Server {
	srv := newServer(cfg, cfg.GetTLSAddress(), f.Handler())
	srv.TLSConfig = f.TLSManager().GetTLSConfig()

	logger.Info("Starting HTTPS server",
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.Server.TLSPort),
		zap.Bool("auto_cert", cfg.Server.AutoCert))

	// Certificates come from TLSConfig.GetCertificate.
	serve(logger, srv, func() error { return srv.ListenAndServeTLS("", "") })
	return srv
}

// startAutoCertServers answers ACME challenges on :80 and serves the API on :443.
func startAutoCertServers(f *factory.Factory, cfg *config.Config, logger *zap.Logger) []*http.Server {
	manager := f.TLSManager().AutocertManager()
	if manager == nil {
		logger.Fatal("AutoCert manager is not available in production")
	}

	challenge := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 10 * time.Second,
	}
	api := newServer(cfg, ":443", f.Handler())
	api.TLSConfig = f.TLSManager().GetTLSConfig()

	logger.Info("Starting HTTPS server with AutoCert", zap.String("domain", cfg.Server.Domain))
	serve(logger, challenge, challenge.ListenAndServe)
	serve(logger, api, func() error { return api.ListenAndServeTLS("", "") })
	return []*http.Server{api, challenge}
}

func serve(logger *zap.Logger, srv *http.Server, listen func() error) {
	go func() {
		if err := listen(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.String("address", srv.Addr), zap.Error(err))
		}
	}()
	logger.Info("Server started", zap.String("address", srv.Addr))
}

func shutdown(logger *zap.Logger, servers ...*http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Failed to shutdown server gracefully", zap.String("address", srv.Addr), zap.Error(err))
			continue
		}
		logger.Info("Server shutdown completed", zap.String("address", srv.Addr))
	}
}
