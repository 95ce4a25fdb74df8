package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbehnke/bts-codec/pkg/config"
	"github.com/dbehnke/bts-codec/pkg/database"
	"github.com/dbehnke/bts-codec/pkg/engine"
	"github.com/dbehnke/bts-codec/pkg/logger"
	"github.com/dbehnke/bts-codec/pkg/metrics"
	"github.com/dbehnke/bts-codec/pkg/publish"
	"github.com/dbehnke/bts-codec/pkg/web"
)

const retentionInterval = time.Hour

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the codec service",
		RunE:  runServer,
	}
	cmd.Flags().String("host", "", "Web host (overrides config)")
	cmd.Flags().IntP("port", "p", 0, "Web port (overrides config)")
	return cmd
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, configFile, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	hostOverride, _ := cmd.Flags().GetString("host")
	portOverride, _ := cmd.Flags().GetInt("port")
	if hostOverride != "" {
		cfg.Web.Host = hostOverride
	}
	if portOverride > 0 {
		cfg.Web.Port = portOverride
	}

	log, err := newLogger(cfg, nil)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("bts-codec starting",
		logger.String("version", Version),
		logger.String("build_time", BuildTime),
		logger.String("config_file", configFile))

	settings, err := engine.SettingsFrom(&cfg.Codec)
	if err != nil {
		return fmt.Errorf("invalid codec configuration: %w", err)
	}

	m := metrics.New()
	opts := []engine.Option{engine.WithMetrics(m)}

	var history web.HistoryReader
	var repo *database.DecodeRepository
	if cfg.History.Enabled {
		db, err := database.NewDB(database.Config{Path: cfg.History.Path}, log)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Warn("Failed to close history", logger.Error(err))
			}
		}()
		repo = db.Decodes()
		history = repo
		opts = append(opts, engine.WithHistory(repo))
	}

	if cfg.MQTT.Enabled {
		pub, err := publish.New(publish.Config{
			Broker:      cfg.MQTT.Broker,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			QoS:         cfg.MQTT.QoS,
			Retained:    cfg.MQTT.Retained,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		defer pub.Close()
		opts = append(opts, engine.WithPublisher(pub))
	}

	eng := engine.New(settings, log, opts...)
	defer eng.Stop()

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info("Shutdown signal received", logger.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	if repo != nil {
		go pruneHistory(ctx, repo, cfg.History, log)
	}

	server := web.NewServer(cfg, log, eng, m, history, Version, BuildTime)
	if err := server.Start(ctx); err != nil {
		log.Error("Web server error", logger.Error(err))
		return err
	}
	if !cfg.Web.Enabled {
		// Nothing serves requests; stay up for the publisher and history.
		<-ctx.Done()
	}

	log.Info("bts-codec stopped", logger.Duration("uptime", eng.Stats().Uptime))
	return nil
}

// pruneHistory drops decode records older than the retention window.
func pruneHistory(ctx context.Context, repo *database.DecodeRepository, cfg config.HistoryConfig, log *logger.Logger) {
	if cfg.Retention <= 0 {
		return
	}
	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()

	for {
		n, err := repo.DeleteOlderThan(time.Now().Add(-cfg.Retention))
		if err != nil {
			log.Warn("History cleanup failed", logger.Error(err))
		} else if n > 0 {
			log.Debug("History cleanup", logger.Int64("deleted", n))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
