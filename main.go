package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"vavoo-proxy/auth"
	"vavoo-proxy/catalog"
	"vavoo-proxy/config"
	"vavoo-proxy/handlers"
	"vavoo-proxy/logger"
	"vavoo-proxy/m3u"
	"vavoo-proxy/proxy"
	"vavoo-proxy/resolver"
	"vavoo-proxy/updater"
	"vavoo-proxy/utils"
)

type app struct {
	store      *catalog.Store
	signatures *auth.SignatureCache
	streams    *proxy.StreamProxy
	handler    http.Handler
}

func newApp(cfg *config.Config, log logger.Logger) *app {
	httpClient := utils.NewHTTPClient(cfg.UpstreamTimeout)

	catalogLog := log.With("catalog")
	loader := catalog.NewLoader(httpClient, cfg.BundleURL, cfg.CatalogGroup, cfg.UpstreamTimeout, catalogLog)
	store := catalog.NewStore(loader, catalogLog)

	authLog := log.With("auth")
	var issuer auth.Issuer
	if cfg.StaticSignature != "" {
		authLog.Log("VAVOO_AUTH set. Using the static signature.")
		issuer = auth.StaticIssuer{Signature: cfg.StaticSignature}
	} else {
		issuer = auth.NewProvider(httpClient, auth.NewTokenPool(cfg.TokenPoolPath), cfg.PingURL, cfg.ProviderUserAgent, authLog)
	}
	signatures := auth.NewSignatureCache(issuer, authLog, auth.WithRefreshTimeout(cfg.UpstreamTimeout))

	redirects := resolver.New(httpClient, cfg.ProviderUserAgent, cfg.UpstreamTimeout, log.With("resolver"))
	streams := proxy.NewStreamProxy(httpClient, cfg.ProviderUserAgent, cfg.ChunkSize, proxy.NewSessionRegistry(), log)

	opts := m3u.Options{
		BaseURL:     cfg.BaseURL,
		UserAgent:   cfg.ProviderUserAgent,
		BouquetName: cfg.BouquetName,
	}

	return &app{
		store:      store,
		signatures: signatures,
		streams:    streams,
		handler: handlers.NewRouter(handlers.Routes{
			Stream:   handlers.NewStreamHTTPHandler(store, signatures, redirects, streams, cfg.ProviderAgentMatch, log),
			Playlist: handlers.NewM3UHTTPHandler(store, opts, log),
			Bouquet:  handlers.NewBouquetHTTPHandler(store, opts, log),
		}),
	}
}

func main() {
	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Default.Warnf("Error loading .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Default.Fatalf("Error loading configuration: %v", err)
	}
	logger.Configure(cfg.Debug, cfg.SafeLogs)
	log := logger.Default

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	a := newApp(cfg, log)

	up, err := updater.Initialize(ctx, a.store, cfg, log.With("updater"))
	if err != nil {
		log.Fatalf("Error initializing updater: %v", err)
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		log.Logf("Server is running on %s", server.Addr)
		log.Log("Playlist endpoint is running (`/channels.m3u8`)")
		log.Log("Bouquet endpoint is running (`/channels.bouquet`)")
		log.Log("Stream endpoint is running (`/stream/{id}`)")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Log("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Shutdown error: %v", err)
		_ = server.Close()
	}
	up.Stop()

	remaining := a.streams.Registry().List()
	for _, s := range remaining {
		log.Warnf("Session %s from %s on channel %s still %s after %s", s.ID, s.RemoteAddr, s.ChannelID, s.State, time.Since(s.OpenedAt).Round(time.Second))
	}
	log.Logf("Stopped with %d open sessions", len(remaining))
}
