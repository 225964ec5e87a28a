package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/livyflow/observer/internal/alert"
	"github.com/livyflow/observer/internal/anomaly"
	"github.com/livyflow/observer/internal/api"
	"github.com/livyflow/observer/internal/config"
	"github.com/livyflow/observer/internal/logagg"
	"github.com/livyflow/observer/internal/metrics"
	"github.com/livyflow/observer/internal/observability"
	"github.com/livyflow/observer/internal/synthetic"
)

func main() {
	cfg := config.LoadConfig()

	collector := metrics.NewCollector()
	sampler := metrics.NewSystemSampler(collector)
	detector := anomaly.NewDetector()

	alertManager := alert.NewManager(collector, detector)
	alertManager.SetMaxAlertsPerHour(cfg.Alerting.MaxAlertsPerHour)

	// Notification channels come from configuration; unconfigured ones are
	// simply not registered.
	if cfg.SMTP.Host != "" {
		alertManager.AddChannel(alert.NewEmailChannel(alert.EmailConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.From,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}))
	}
	if cfg.Slack.WebhookURL != "" {
		alertManager.AddChannel(alert.NewSlackChannel(alert.SlackConfig{
			WebhookURL: cfg.Slack.WebhookURL,
		}))
	}
	if cfg.Webhook.URL != "" {
		alertManager.AddChannel(alert.NewWebhookChannel(alert.WebhookConfig{
			URL:     cfg.Webhook.URL,
			Timeout: time.Duration(cfg.Webhook.TimeoutSeconds) * time.Second,
		}))
	}

	for _, rule := range alert.DefaultRules() {
		if err := alertManager.AddRule(rule); err != nil {
			log.Printf("Warning: failed to add default rule %s: %v", rule.ID, err)
		}
	}

	monitor := synthetic.NewMonitor(cfg.Server.BaseURL, collector, alertManager)
	monitor.AddCheck(synthetic.Check{
		ID:       "api_health",
		Name:     "API Health Check",
		URL:      "/health",
		Interval: time.Minute,
		Enabled:  true,
	})

	aggregator, err := logagg.NewAggregator(cfg.Storage.LogPath, collector, alertManager)
	if err != nil {
		log.Fatalf("Failed to initialize log aggregation: %v", err)
	}

	obs := observability.NewManager(collector, sampler, alertManager, monitor, aggregator)
	obs.Initialize()
	defer obs.Shutdown()

	server := api.NewServer(obs)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Failed to start server: %v", err)
	case sig := <-quit:
		log.Printf("Received signal %s, shutting down", sig)
	}
}
