package main

import (
	"context"
	"log"

	_ "github.com/joho/godotenv/autoload"

	"github.com/shestoi/GoBigTech/payment-core/internal/app"
	"github.com/shestoi/GoBigTech/payment-core/internal/config"
)

func main() {
	// Загружаем конфигурацию (.env подхватывается автоматически, если есть)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.Log()

	ctx := context.Background()

	application, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to build app: %v", err)
	}

	// Run блокируется до SIGINT/SIGTERM и graceful shutdown
	if err := application.Run(ctx); err != nil {
		log.Fatalf("Service error: %v", err)
	}
}
