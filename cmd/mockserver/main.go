package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/BITS-DEVSEC/im-client/internal/config"
	"github.com/BITS-DEVSEC/im-client/internal/logger"
	"github.com/BITS-DEVSEC/im-client/internal/mockapi"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	sugar, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = sugar.Sync() }()

	addr := os.Getenv("INSURANCE_MOCK_ADDR")
	if addr == "" {
		addr = ":3000"
	}
	srv := mockapi.New(mockapi.Config{
		JWTSecret: os.Getenv("INSURANCE_JWT_SECRET"),
	}, sugar)
	app := srv.App()

	go func() {
		sugar.Infof("mock backend listening on %s", addr)
		if err := app.Listen(addr); err != nil {
			sugar.Fatalf("server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	sugar.Info("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutCtx); err != nil {
		sugar.Errorf("shutdown error: %v", err)
	}
}
