package main

import (
	"context"
	"log"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/sngm3741/cafe-club/api/internal/config"
	"github.com/sngm3741/cafe-club/api/internal/infrastructure/logger"
	"github.com/sngm3741/cafe-club/api/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	zl = zl.With(zap.String("env", cfg.Env))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(cfg.MongoURI).SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1))
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		zl.Fatal("mongo connect failed", zap.Error(err))
	}

	app, err := server.New(ctx, cfg, zl, client)
	if err != nil {
		_ = client.Disconnect(context.Background())
		zl.Fatal("server setup failed", zap.Error(err))
	}
	if err := app.Run(); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}
