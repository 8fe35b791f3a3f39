package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/metabridge/scraper/internal/browser"
	"github.com/metabridge/scraper/internal/cache"
	"github.com/metabridge/scraper/internal/config"
	"github.com/metabridge/scraper/internal/netclient"
	"github.com/metabridge/scraper/internal/orchestrator"
	"github.com/metabridge/scraper/internal/provider"
	"github.com/metabridge/scraper/internal/server"
)

const (
	commandUse              = "server"
	commandShortDescription = "Serve the metadata scraping API over HTTP"

	flagConfigName        = "config"
	flagConfigDescription = "Path to an optional YAML configuration file"

	providerDoujin = "doujin"
	providerStream = "stream"

	doujinBaseURL = "https://doujin.example"
	streamBaseURL = "https://stream.example"

	shutdownGracePeriod = 10 * time.Second

	errMessageLoggerCreate   = "create logger"
	errMessageLoadConfig     = "load configuration"
	errMessageListenAndServe = "listen and serve"

	logMessageStartingServer = "starting HTTP server"
	logMessageServerStopped  = "server stopped"
	logMessageShutdownSignal = "shutdown signal received"
	logFieldAddress          = "address"
)

func main() {
	cobra.CheckErr(newServerCommand().Execute())
}

func newServerCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   commandUse,
		Short: commandShortDescription,
		RunE:  runServerCommand,
	}

	command.Flags().String(flagConfigName, "", flagConfigDescription)
	cobra.CheckErr(viper.BindPFlag(flagConfigName, command.Flags().Lookup(flagConfigName)))

	cobra.OnInitialize(func() { config.Configure(viper.GetViper()) })

	return command
}

func runServerCommand(*cobra.Command, []string) error {
	if configPath := viper.GetString(flagConfigName); configPath != "" {
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("%s: %w", errMessageLoadConfig, err)
		}
	}

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("%s: %w", errMessageLoadConfig, err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("%s: %w", errMessageLoggerCreate, err)
	}
	defer func() { _ = logger.Sync() }()

	browserPool := browser.NewPool(cfg.Browser, logger)
	defer browserPool.Close()

	metadataCache := cache.New(cfg.Cache.TTL, cfg.Cache.Capacity)
	orch := orchestrator.New(logger, metadataCache)
	registerProviders(orch, cfg, browserPool)

	router := server.NewRouter(server.RouterConfig{
		Orchestrator:    orch,
		Logger:          logger,
		AuthToken:       cfg.AuthToken,
		TokenHeaderName: cfg.TokenHeaderName,
		RequestTimeout:  cfg.RequestTimeout(),
	})

	address := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{Addr: address, Handler: router}

	logger.Info(logMessageStartingServer, zap.String(logFieldAddress, address), zap.String("event", "ServiceStartup"))

	serveErrors := make(chan error, 1)
	go func() { serveErrors <- httpServer.ListenAndServe() }()

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: %w", errMessageListenAndServe, err)
		}
	case <-signalCtx.Done():
		logger.Info(logMessageShutdownSignal, zap.String("event", "ServiceShutdown"))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown failed", zap.Error(err))
		}
	}

	logger.Info(logMessageServerStopped, zap.String("event", "ServiceShutdown"))
	return nil
}

// registerProviders wires the two providers this service ships with into
// orch, each backed by its own browser-driven client: HTML pages go through
// the browser pool (JS-rendered / challenge-protected), and JSON requests
// go through that client's own private plain HTTP client.
func registerProviders(orch *orchestrator.Orchestrator, cfg config.Config, pool *browser.Pool) {
	doujinClient := netclient.NewBrowserClient(pool.ForRole(browser.RoleDetail), cfg.Browser.UserAgent,
		[]string{"h1.work-title", "div.work-detail"})
	doujinProvider := provider.NewDoujin(provider.DoujinSite{
		Name:      providerDoujin,
		BaseURL:   doujinBaseURL,
		UserAgent: cfg.Browser.UserAgent,
	}, doujinClient)
	doujinSettings := cfg.ProviderSettings(providerDoujin)
	orch.Register(doujinProvider, doujinSettings.MaxConcurrentRequests, doujinSettings.RateLimitSeconds)

	streamClient := netclient.NewBrowserClient(pool.ForRole(browser.RoleSearch), cfg.Browser.UserAgent,
		[]string{"h1.video-title"})
	streamProvider := provider.NewStream(provider.StreamSite{
		Name:    providerStream,
		BaseURL: streamBaseURL,
	}, streamClient)
	streamSettings := cfg.ProviderSettings(providerStream)
	orch.Register(streamProvider, streamSettings.MaxConcurrentRequests, streamSettings.RateLimitSeconds)
}
