package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dbsentry/internal/alert"
	"github.com/dbsentry/internal/analysis"
	"github.com/dbsentry/internal/api"
	"github.com/dbsentry/internal/config"
	"github.com/dbsentry/internal/database"
	"github.com/dbsentry/internal/monitor"
	"github.com/dbsentry/internal/notify"
	"github.com/dbsentry/internal/probe"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var (
		prober   probe.Prober
		analyzer analysis.Analyzer
	)
	switch cfg.Database.Driver {
	case "mysql":
		db, err := database.OpenMySQL(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if err != nil {
			log.Fatalf("Failed to connect to monitored database: %v", err)
		}
		defer database.CloseMySQL(db)
		prober = probe.NewMySQL(db)
		analyzer = analysis.NewMySQLAnalyzer(db, cfg.Thresholds.SlowQueryMs)
	case "postgres":
		pool, err := database.OpenPostgres(context.Background(), cfg.Database.DSN, cfg.Database.MaxOpenConns)
		if err != nil {
			log.Fatalf("Failed to connect to monitored database: %v", err)
		}
		defer pool.Close()
		prober = probe.NewPostgres(pool, cfg.Thresholds.SlowQueryMs)
		analyzer = analysis.NewPostgresAnalyzer(pool, cfg.Thresholds.SlowQueryMs)
	}

	alertEngine := alert.NewEngine(cfg.Thresholds)
	if cfg.Alert.Enabled {
		notifier := notify.New(cfg.Alert, cfg.Service.Name, cfg.Service.Environment)
		alertEngine.RegisterListener(notifier.Notify)
	}

	m := monitor.New(cfg.Monitor, prober, analyzer, alertEngine)
	if err := m.Start(); err != nil {
		log.Fatalf("Failed to start monitor: %v", err)
	}

	server := api.NewServer(m)
	go func() {
		if err := server.Start(cfg.Server.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("Shutting down")
	m.Stop()
}
