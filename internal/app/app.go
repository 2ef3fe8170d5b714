// Package app wires configuration, storage, sources, classification and
// notification targets into a runnable monitor.
package app

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"monitorbot/internal/classify"
	"monitorbot/internal/config"
	"monitorbot/internal/monitor"
	"monitorbot/internal/notify"
	"monitorbot/internal/source"
	"monitorbot/internal/storage/sqlite"
)

// App holds everything built from one config file.
type App struct {
	Config  config.Config
	Store   *sqlite.Store
	Monitor *monitor.Monitor

	dispatcher *notify.Dispatcher
}

// Build loads the config, opens the store and assembles the pipeline. The
// caller owns Close. Invalid configuration is fatal inside config.Load.
func Build(configPath string) (*App, error) {
	cfg := config.Load(configPath)

	store, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	log.Printf("database initialized at %s", cfg.Database.Path)

	var verifier classify.Verifier
	if cfg.Classification.AnthropicAPIKey != "" {
		verifier = classify.NewAnthropicVerifier(cfg.Classification.AnthropicAPIKey, cfg.Classification.Model)
		log.Printf("AI verification enabled, model=%s", cfg.Classification.Model)
	} else {
		log.Printf("no anthropic_api_key configured, running keyword-only classification")
	}
	classifier := classify.New(cfg.Classification, verifier)

	var targets []notify.Target
	if cfg.TelegramOutputConfigured() {
		targets = append(targets, notify.NewTelegramTarget(cfg.Telegram.BotToken, cfg.Telegram.NotificationChannelID))
	}
	if cfg.SlackOutputConfigured() {
		targets = append(targets, notify.NewSlackTarget(cfg.Slack.BotToken, cfg.Slack.ChannelID))
	}
	dispatcher := notify.NewDispatcher(targets, store, cfg.Notifications.MaxPerHour)
	if !dispatcher.HasTargets() {
		log.Printf("no notification targets configured, running in dry mode")
	}

	mon := monitor.New(store, classifier, dispatcher, monitor.Options{
		MinTextLength:  cfg.Notifications.MinTextLength,
		IncludeDraft:   cfg.Notifications.IncludeDraft(),
		Retention:      cfg.Retention(),
		DigestSchedule: cfg.Notifications.DailyDigestSchedule,
	})

	if cfg.HasRedditSource() {
		mon.AddSource(source.NewRedditSource(cfg.Reddit), cfg.RedditInterval(), cfg.RedditLookback())
		log.Printf("reddit source enabled, subreddits=%d interval=%s", len(cfg.Reddit.Subreddits), cfg.RedditInterval())
	}
	if cfg.HasForumSource() {
		mon.AddSource(source.NewForumSource(cfg.Forums), cfg.RedditInterval(), cfg.RedditLookback())
		log.Printf("forum source enabled, feeds=%d", len(cfg.Forums.Feeds))
	}
	if cfg.HasTelegramSource() {
		mon.AddSource(source.NewTelegramSource(cfg.Telegram), cfg.TelegramInterval(), cfg.TelegramLookback())
		log.Printf("telegram source enabled, groups=%d channels=%d interval=%s",
			len(cfg.Telegram.Groups), len(cfg.Telegram.Channels), cfg.TelegramInterval())
	}

	return &App{
		Config:     cfg,
		Store:      store,
		Monitor:    mon,
		dispatcher: dispatcher,
	}, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}

// Run blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	err := a.Monitor.RunForever(ctx)
	log.Printf("monitor stopped")
	return err
}

// RunOnce performs a single pass and exits.
func (a *App) RunOnce(ctx context.Context) error {
	return a.Monitor.RunOnce(ctx)
}

// TestNotify pushes a synthetic item through the dispatcher so operators can
// check channel wiring without waiting for real traffic.
func (a *App) TestNotify(ctx context.Context) error {
	if !a.dispatcher.HasTargets() {
		return fmt.Errorf("no notification targets configured")
	}
	if err := a.dispatcher.SendTest(ctx); err != nil {
		return fmt.Errorf("test notification: %w", err)
	}
	return nil
}
