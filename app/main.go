package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/job-poster/app/api"
	"github.com/lysyi3m/job-poster/app/cfg"
	"github.com/lysyi3m/job-poster/app/feed"
	"github.com/lysyi3m/job-poster/app/social"
	"github.com/lysyi3m/job-poster/app/store"
	"github.com/lysyi3m/job-poster/app/tasks"
)

const (
	exitOK          = 0
	exitConfigError = 1
	exitPostFailed  = 2
	exitFetchFailed = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	config, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return exitConfigError
	}
	if config == nil {
		return exitOK
	}

	setupLogger(config.Debug)

	slog.Info("Starting job poster",
		"version", config.Version,
		"feed", config.FeedURL,
		"format", config.FeedFormat,
		"platforms", config.Platforms,
		"timezone", config.Timezone,
		"post_delay", config.PostDelay)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, pipelines, closeStores, err := buildPipelines(config)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		return exitConfigError
	}
	defer closeStores()

	scheduler, err := tasks.NewScheduler(client, pipelines, config.Schedule, config.Location)
	if err != nil {
		slog.Error("Failed to create scheduler", "error", err)
		return exitConfigError
	}

	if config.Schedule == "" {
		if config.Port != "" {
			slog.Warn("Status server is only started in schedule mode", "port", config.Port)
		}
		results, err := scheduler.RunOnce(ctx)
		return exitCode(results, err)
	}

	return serve(ctx, config, scheduler)
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func buildPipelines(config *cfg.Cfg) (*feed.Client, []*tasks.PublishJobsTask, func(), error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	client := feed.NewClient(config.FeedURL, config.FeedFormat, config.FeedTimeout, config.UserAgent, nil)
	slog.Debug("Feed client ready", "url", client.URL(), "format", config.FeedFormat)
	today := feed.NewTodayFilter(config.Location, nil)

	filterer, err := feed.LoadFilterer(config.FiltersFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load filters: %w", err)
	}
	if filterer.Count() > 0 {
		slog.Info("Loaded job filters", "file", config.FiltersFile, "count", filterer.Count())
	}

	var logos tasks.LogoFetcher
	if config.AttachLogo {
		logos = feed.NewLogoFetcher(nil, config.UserAgent, "")
	}

	var stores []*store.PostedJobs
	closeStores := func() {
		for _, s := range stores {
			if err := s.Close(); err != nil {
				slog.Warn("Failed to release store lock", "path", s.Path(), "error", err)
			}
		}
	}

	pipelines := make([]*tasks.PublishJobsTask, 0, len(config.Platforms))
	for _, platform := range config.Platforms {
		s, err := store.Open(config.StorePath(platform))
		if err != nil {
			closeStores()
			return nil, nil, nil, fmt.Errorf("failed to open posted jobs for %s: %w", platform, err)
		}
		stores = append(stores, s)

		poster := newPoster(config, platform, httpClient)
		pipelines = append(pipelines, tasks.NewPublishJobsTask(client, s, poster, today, filterer, logos, config.PostDelay))
	}

	return client, pipelines, closeStores, nil
}

func newPoster(config *cfg.Cfg, platform string, httpClient *http.Client) social.Poster {
	switch platform {
	case cfg.PlatformLinkedIn:
		if config.LinkedInAccessToken == "" {
			slog.Warn("LinkedIn access token is not set, posts will fail", "platform", platform)
		}
		return social.NewLinkedInPoster(config.LinkedInAccessToken, config.LinkedInPersonURN, config.LinkedInAPIBase, httpClient)
	default:
		creds := social.XCredentials{
			APIKey:            config.TwitterAPIKey,
			APIKeySecret:      config.TwitterAPIKeySecret,
			AccessToken:       config.TwitterAccessToken,
			AccessTokenSecret: config.TwitterAccessTokenSecret,
			BearerToken:       config.TwitterBearerToken,
		}
		if creds.APIKey == "" || creds.APIKeySecret == "" || creds.AccessToken == "" || creds.AccessTokenSecret == "" {
			slog.Warn("X credentials are incomplete, posts will fail", "platform", platform)
		}
		return social.NewXPoster(creds, config.XAPIBase, config.XUploadBase, httpClient)
	}
}

// exitCode maps run results to the process exit status. Store and
// configuration errors win over post failures, which win over fetch failures.
func exitCode(results []tasks.Result, err error) int {
	if err != nil {
		return exitConfigError
	}

	code := exitOK
	for _, r := range results {
		if r.Failed > 0 {
			return exitPostFailed
		}
		if r.FetchFailed {
			code = exitFetchFailed
		}
	}
	return code
}

func serve(ctx context.Context, config *cfg.Cfg, scheduler *tasks.Scheduler) int {
	if err := scheduler.Start(ctx); err != nil {
		slog.Error("Failed to start scheduler", "error", err)
		return exitConfigError
	}
	defer scheduler.Stop()

	var httpServer *http.Server
	serverErrChan := make(chan error, 1)

	if config.Port != "" {
		handler := api.NewHandler(scheduler, config.Platforms, config.Schedule, config.Version)
		httpServer = &http.Server{
			Addr:         ":" + config.Port,
			Handler:      api.NewServer(handler),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		go func() {
			slog.Info("Starting status server", "port", config.Port)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down status server", "error", err)
		}
	}

	slog.Info("Job poster stopped")
	return exitOK
}
