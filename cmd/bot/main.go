package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"filebot/internal/bot"
	"filebot/internal/catalog"
	"filebot/internal/config"
	"filebot/internal/convert"
	"filebot/internal/db"
	"filebot/internal/gateway"
	"filebot/internal/ledger"
	"filebot/internal/payments"
	"filebot/internal/store"
	"filebot/internal/telegram"
	"filebot/internal/websocket"
)

func main() {
	cfg := config.Load()
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	if err := db.Migrate(database, cfg.MigrationsDir); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	users := store.NewUserStore(database)
	conversions := store.NewConversionStore(database)
	paymentRows := store.NewPaymentStore(database)
	activity := store.NewActivityStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()
	cat := catalog.Default()

	ledgerSvc := ledger.New(txRunner, users, activity, hub, cfg.DefaultRights)
	paymentSvc := payments.New(txRunner, paymentRows, ledgerSvc, activity, cat)
	orchestrator := convert.NewOrchestrator(txRunner, convert.NewSofficeEngine(), ledgerSvc, conversions)
	fetcher := telegram.NewFetcher(os.Getenv("TELEGRAM_BOT_TOKEN"))

	botHandler := bot.New(bot.Config{
		AdminID:     cfg.AdminID,
		MaxFileSize: cfg.MaxFileSize,
		TempDir:     cfg.TempDir,
	}, txRunner, ledgerSvc, paymentSvc, orchestrator, fetcher, users, conversions, activity, cat)

	handler := gateway.New(cfg, botHandler, paymentSvc, ledgerSvc, users, conversions, activity, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("filebot API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
