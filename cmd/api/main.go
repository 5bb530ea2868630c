package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"imagestudio/internal/gateway"
	"imagestudio/internal/http/handlers"
	httpapi "imagestudio/internal/http/httpapi"
	"imagestudio/internal/infra"
	"imagestudio/internal/infra/geoip"
	"imagestudio/internal/middleware"
	"imagestudio/internal/providers/genai"
	"imagestudio/internal/session"
	"imagestudio/internal/store"
	"imagestudio/internal/videothumb"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	// Storage backend: local files by default, Postgres when several
	// instances need to share state.
	var storage store.Storage
	switch cfg.StorageBackend {
	case infra.StorageBackendPostgres:
		dbpool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()
		storage, err = store.NewPGStore(ctx, infra.NewSQLRunner(dbpool, logger))
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize postgres storage")
		}
	default:
		storage, err = store.NewFileStore(cfg.StoragePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize file storage")
		}
	}

	characters := store.NewCharacters(storage, logger)
	gallery := store.NewGallery(storage, logger)
	credentials := store.NewCredentials(storage, logger)

	// The provider key comes from the credential store when one was saved,
	// otherwise from the environment.
	apiKey := cfg.GeminiAPIKey
	if stored, err := credentials.GeminiAPIKey(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to read stored credentials")
	} else if stored != "" {
		apiKey = stored
	}

	client, err := genai.NewClient(genai.Options{
		APIKey:     apiKey,
		BaseURL:    cfg.GeminiBaseURL,
		ImageModel: cfg.GeminiImageModel,
		VideoModel: cfg.GeminiVideoModel,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to construct provider client")
	}

	gw := gateway.New(client, gateway.Config{
		Retries:         cfg.GenerationRetries,
		SafetySuffix:    cfg.SafetySuffix,
		PollInterval:    cfg.VideoPollInterval,
		PollMaxAttempts: cfg.VideoPollMaxAttempts,
	}, logger)

	app := &handlers.App{
		Logger:      logger,
		Config:      cfg,
		Sessions:    session.NewRegistry(),
		Characters:  characters,
		Gallery:     gallery,
		Credentials: credentials,
		Gateway:     gw,
		Thumbnailer: videothumb.New(client, logger),
		KeySink:     client,
	}

	// Optional GeoIP database for locale detection.
	var countryLookup middleware.CountryLookup
	geo, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip database unavailable")
	} else if geo != nil {
		defer geo.Close()
		countryLookup = geo.CountryCode
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		AllowedOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
		RateLimitPerMin: cfg.RateLimitPerMin,
		CountryLookup:   countryLookup,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
