package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tellnow/backend/internal/api"
	"tellnow/backend/internal/config"
)

func main() {
	cfg, err := config.Load(os.Getenv("TELLNOW_CONFIG"))
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	if err := config.ConfigureLogging(cfg); err != nil {
		logrus.Fatalf("configure logging: %v", err)
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logrus.Fatalf("create data directory: %v", err)
		}
	}

	debugLog, debugCloser, err := cfg.DebugLogger(time.Now())
	if err != nil {
		logrus.Fatalf("open classifier debug log: %v", err)
	}
	defer debugCloser.Close()

	classifierOpts := cfg.ClassifierOptions()
	classifierOpts.Debug = debugLog

	completer := cfg.Completer()
	if completer != nil {
		logrus.WithFields(logrus.Fields{
			"model":    cfg.AI.Model,
			"base_url": cfg.AI.BaseURL,
			"fallback": strings.TrimSpace(cfg.Fallback.APIKey) != "",
			"retries":  cfg.AI.MaxRetries,
			"timeout":  cfg.CallTimeout,
			"strict":   cfg.StrictTaxonomy,
		}).Info("classifier model configured")
	}

	server, err := api.NewServer(api.Config{
		DBPath:         cfg.DBPath,
		AllowedOrigins: cfg.AllowedOrigins,
		Completer:      completer,
		Classifier:     classifierOpts,
		RecentIssues:   cfg.RecentIssues,
	})
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}
	defer server.Close()

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	logrus.Infof("starting tellnow backend on :%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		logrus.Fatalf("server exited: %v", err)
	}
}
