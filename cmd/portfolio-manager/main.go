package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mdevan/portfolio-manager/internal/api"
	"github.com/mdevan/portfolio-manager/internal/cache"
	"github.com/mdevan/portfolio-manager/internal/config"
	"github.com/mdevan/portfolio-manager/internal/database"
	"github.com/mdevan/portfolio-manager/internal/kafka"
	"github.com/mdevan/portfolio-manager/internal/ledger"
	"github.com/mdevan/portfolio-manager/internal/valuation"
)

const healthProbeInterval = 5 * time.Second

func main() {
	root := &cobra.Command{
		Use:   "portfolio-manager",
		Short: "Equity portfolio tracker API",
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP API server",
			RunE:  func(cmd *cobra.Command, args []string) error { return serve() },
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending database migrations",
			RunE:  func(cmd *cobra.Command, args []string) error { return migrateCmd() },
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Insert the default portfolio and starter stocks",
			RunE:  func(cmd *cobra.Command, args []string) error { return seedCmd() },
		},
	)

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func serve() error {
	cfg := config.Load()

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer db.Close()

	if !db.Available() {
		log.Warn("database unreachable at startup, serving in degraded mode")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db.StartHealthMonitor(ctx, healthProbeInterval)

	prices := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cache.DefaultTTL)
	defer prices.Close()
	if err := prices.Ping(ctx); err != nil {
		log.WithError(err).Warn("redis unreachable, valuation will use database prices")
	}

	ldg := ledger.New(db)
	valuator := valuation.New(db, prices)

	var producer *kafka.Producer
	handler := api.NewHandler(db, ldg, valuator, nil, prices, db)
	if cfg.Kafka.Enabled() {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventTopic)
		defer producer.Close()
		handler = api.NewHandler(db, ldg, valuator, producer, prices, db)

		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.PriceTopic, cfg.Kafka.GroupID, db, prices)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				log.WithError(err).Error("price feed consumer stopped")
			}
		}()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      api.SetupRoutes(handler),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("server shutdown failed")
		}
	}()

	log.WithField("addr", srv.Addr).Info("portfolio manager API listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	log.Info("server stopped")
	return nil
}

func migrateCmd() error {
	cfg := config.Load()

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.Database.MigrationsPath); err != nil {
		return err
	}

	log.Info("migrations applied")
	return nil
}

func seedCmd() error {
	cfg := config.Load()

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Seed(context.Background()); err != nil {
		return err
	}

	log.Info("seed complete")
	return nil
}
