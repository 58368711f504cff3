package main

import (
	"context"

	"github.com/i-dot-ai/medguard-paper-sub001/pkg/classify"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/codelist"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/common/config"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/common/database"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/common/kafka"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/common/logger"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/islands"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/pipeline"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/stratify"
)

func main() {
	logger.Init()
	cfg := config.Load()

	// Configuration errors invalidate every downstream derivation, so
	// they are fatal before any data is read.
	if err := cfg.Validate(); err != nil {
		logger.Log.WithError(err).Fatal("Invalid configuration")
	}

	lists, err := codelist.Load(cfg.CodeListPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load clinical code lists")
	}

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to database")
	}
	defer database.ClosePostgres()

	islandsRepo := islands.NewRepository(db)
	classifyRepo := classify.NewRepository(db)
	strataRepo := stratify.NewRepository(db)
	for _, migrate := range []func() error{
		islandsRepo.AutoMigrate,
		classifyRepo.AutoMigrate,
		strataRepo.AutoMigrate,
	} {
		if err := migrate(); err != nil {
			logger.Log.WithError(err).Fatal("Failed to migrate derived tables")
		}
	}

	cache := stratify.NewCache(database.GetRedis(), strataRepo, cfg.FeatureCacheTTL)

	producer := kafka.NewProducer(cfg.KafkaTopic)
	defer producer.Close()

	runner := pipeline.NewRunner(cfg, lists, islandsRepo, classifyRepo, strataRepo, cache, producer)
	if err := runner.Run(context.Background(), cfg.ReferenceDate); err != nil {
		logger.Log.WithError(err).Fatal("Derivation run aborted")
	}
}
