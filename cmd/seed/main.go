package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Ayash-Bera/shopassist/backend/internal/config"
	"github.com/Ayash-Bera/shopassist/backend/internal/database"
	"github.com/Ayash-Bera/shopassist/backend/internal/llm"
	"github.com/Ayash-Bera/shopassist/backend/internal/migration"
	"github.com/Ayash-Bera/shopassist/backend/internal/seeder"
	"github.com/Ayash-Bera/shopassist/backend/internal/vectorstore"
	"github.com/Ayash-Bera/shopassist/backend/pkg/utils"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// urlList collects -url flags, each of which may hold several comma separated URLs.
type urlList []string

func (u *urlList) String() string { return strings.Join(*u, ",") }

func (u *urlList) Set(value string) error {
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*u = append(*u, part)
		}
	}
	return nil
}

// Command line flags
var (
	dryRun      = flag.Bool("dry-run", false, "Don't embed or store anything, just print what would be stored")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	limit       = flag.Int("limit", 0, "Limit number of products to process (0 = all)")
	catalogPath = flag.String("catalog", "", "Path to a YAML product catalog")
	concurrent  = flag.Int("concurrent", 2, "Number of concurrent scrape requests")
	delay       = flag.Duration("delay", time.Second, "Delay between scrape requests")
	pageURLs    urlList
)

func main() {
	flag.Var(&pageURLs, "url", "Product page URL to scrape (repeatable, or comma separated)")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := utils.NewLogger(cfg.LogLevel)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	if *catalogPath == "" && len(pageURLs) == 0 {
		logger.Fatal("Nothing to seed: pass -catalog and/or -url")
	}

	logger.Info("Starting product catalog seeder...")

	processor := seeder.NewContentProcessor()
	products := collectProducts(processor, logger)
	if *limit > 0 && len(products) > *limit {
		products = products[:*limit]
	}
	if len(products) == 0 {
		logger.Fatal("No products to seed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ingestConfig := seeder.DefaultIngestConfig()
	ingestConfig.DryRun = *dryRun

	var (
		embedder seeder.BatchEmbedder
		store    seeder.ChunkStore
	)

	if !*dryRun {
		if err := cfg.ValidateEmbedding(); err != nil {
			logger.WithError(err).Fatal("Embedding configuration validation failed")
		}

		dbManager, err := database.NewManager(&database.Config{
			DatabaseURL: cfg.Database.URL,
			LogLevel:    cfg.LogLevel,
		}, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize database manager")
		}
		defer dbManager.Close()

		if err := migration.NewRunner(dbManager.DB, dbManager, logger).RunMigrations(cfg.Migrations.Path); err != nil {
			logger.WithError(err).Fatal("Failed to run migrations")
		}

		pgStore, err := vectorstore.NewPGVectorStore(dbManager.DB, vectorstore.Config{
			LibraryID:     cfg.Vector.LibraryID,
			Table:         cfg.Vector.Table,
			Distance:      cfg.Vector.Distance,
			QueryTimeout:  cfg.Vector.QueryTimeout,
			MaxConcurrent: cfg.Vector.MaxConcurrent,
		}, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize vector store")
		}
		store = pgStore

		e := cfg.Embedding.Endpoint
		embedder = llm.NewEmbedder(llm.Config{
			Provider:   e.Provider,
			APIKey:     e.APIKey,
			BaseURL:    e.BaseURL,
			Model:      e.Model,
			APIVersion: e.APIVersion,
			Timeout:    e.Timeout,
		}, cfg.Embedding.Dimensions, logger)
	}

	stats, err := seeder.NewIngestor(embedder, store, processor, ingestConfig, logger).Ingest(ctx, products)
	if err != nil {
		logger.WithError(err).Fatal("Content seeding failed")
	}

	logger.WithFields(logrus.Fields{
		"library_id": cfg.Vector.LibraryID,
		"products":   stats.Products,
		"chunks":     stats.Chunks,
		"skipped":    stats.Skipped,
		"written":    stats.Written,
		"dry_run":    *dryRun,
	}).Info("Content seeding completed successfully!")
}

func collectProducts(processor *seeder.ContentProcessor, logger *logrus.Logger) []seeder.Product {
	var products []seeder.Product

	if *catalogPath != "" {
		catalog, err := seeder.LoadCatalog(*catalogPath)
		if err != nil {
			logger.WithError(err).Fatal("Failed to load catalog")
		}
		logger.WithField("products", len(catalog)).Info("Catalog loaded")
		products = append(products, catalog...)
	}

	if len(pageURLs) > 0 {
		scrapeConfig := seeder.DefaultScraperConfig()
		scrapeConfig.Parallelism = *concurrent
		scrapeConfig.Delay = *delay

		scraped, errs := seeder.NewScraper(scrapeConfig, processor, logger).Scrape(pageURLs)
		for _, err := range errs {
			logger.WithError(err).Warn("Failed to scrape page")
		}
		logger.WithFields(logrus.Fields{
			"scraped": len(scraped),
			"failed":  len(errs),
		}).Info("Product pages scraped")
		products = append(products, scraped...)
	}

	return products
}
