package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"ledger/internal/cache"
	"ledger/internal/cli"
	apphttp "ledger/internal/http"
	applog "ledger/internal/log"
	"ledger/internal/services"
)

func main() {
	cli.LoadEnvFile()

	// Logger comes up before config so validation failures are logged.
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting ledger server",
		applog.FieldOperation, applog.OpStartup,
		"port", cfg.Port,
		"db_driver", cfg.DBDriver,
		"timezone", cfg.Timezone)

	repo := cli.OpenStore(context.Background(), logger, cfg)

	// Validate has already rejected an unloadable timezone.
	loc, _ := cfg.Location()
	svcCfg := services.LedgerServiceConfig{
		SummaryCacheSize: cfg.SummaryCacheSize,
		SummaryCacheTTL:  cfg.SummaryCacheTTL,
		Location:         loc,
	}
	var svc *services.LedgerService
	if client := cli.ConnectAMQP(logger, cfg, false); client != nil {
		svc = services.NewLedgerService(repo, client, svcCfg)
	} else {
		svc = services.NewLedgerService(repo, nil, svcCfg)
	}

	cacheManager := cache.NewManager()
	cacheManager.Register(svc.SummaryCache())
	cacheManager.StartCleanup(cfg.SummaryCacheTTL)

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		DefaultAccountID:   cfg.DefaultAccountID,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:             logger,
	})

	ctx := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cacheManager.Stop()
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close ledger service", applog.FieldError, err)
		}
	})

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
