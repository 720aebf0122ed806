// Package seeder loads product data into the vector store.
package seeder

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ayash-Bera/shopassist/backend/internal/models"
	"github.com/Ayash-Bera/shopassist/backend/pkg/utils"
	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"
)

// BatchEmbedder embeds many texts in one call.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore is the write side of the vector store.
type ChunkStore interface {
	ExistingHashes(ctx context.Context, hashes []string) (map[string]bool, error)
	Upsert(ctx context.Context, chunks []models.LibraryChunk) (int64, error)
}

type IngestConfig struct {
	MaxChunkChars int
	BatchSize     int
	DryRun        bool
	Retry         RetryConfig
}

func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		MaxChunkChars: 1500,
		BatchSize:     32,
		Retry:         DefaultRetryConfig(),
	}
}

// IngestStats summarizes one run.
type IngestStats struct {
	Products int
	Chunks   int
	Skipped  int
	Written  int64
}

type Ingestor struct {
	embedder  BatchEmbedder
	store     ChunkStore
	processor *ContentProcessor
	config    IngestConfig
	logger    *logrus.Logger
}

func NewIngestor(embedder BatchEmbedder, store ChunkStore, processor *ContentProcessor, config IngestConfig, logger *logrus.Logger) *Ingestor {
	if config.MaxChunkChars <= 0 {
		config.MaxChunkChars = DefaultIngestConfig().MaxChunkChars
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultIngestConfig().BatchSize
	}
	return &Ingestor{
		embedder:  embedder,
		store:     store,
		processor: processor,
		config:    config,
		logger:    logger,
	}
}

// Chunks renders a product and splits it into embeddable pieces. Every chunk
// after the first repeats the product header.
func (in *Ingestor) Chunks(p Product) []models.LibraryChunk {
	text := in.processor.CleanContent(p.Text())
	header := p.Header()
	pieces := in.processor.SplitIntoChunks(text, in.config.MaxChunkChars)
	doc := p.JSON()

	chunks := make([]models.LibraryChunk, 0, len(pieces))
	for i, piece := range pieces {
		if i > 0 && !strings.HasPrefix(piece, header) {
			piece = header + "\n\n" + piece
		}
		chunks = append(chunks, models.LibraryChunk{
			Content:     piece,
			JSONContent: doc,
			ContentHash: utils.ContentHash(piece),
		})
	}
	return chunks
}

// Ingest chunks, embeds and stores products. Chunks already stored with the
// same content hash are skipped.
func (in *Ingestor) Ingest(ctx context.Context, products []Product) (IngestStats, error) {
	stats := IngestStats{Products: len(products)}

	var pending []models.LibraryChunk
	seen := make(map[string]bool)
	for _, p := range products {
		for _, chunk := range in.Chunks(p) {
			if seen[chunk.ContentHash] {
				continue
			}
			seen[chunk.ContentHash] = true
			pending = append(pending, chunk)
		}
	}
	stats.Chunks = len(pending)

	if len(pending) == 0 {
		return stats, nil
	}

	if !in.config.DryRun {
		hashes := make([]string, len(pending))
		for i, c := range pending {
			hashes[i] = c.ContentHash
		}
		existing, err := in.store.ExistingHashes(ctx, hashes)
		if err != nil {
			return stats, err
		}
		fresh := pending[:0]
		for _, c := range pending {
			if existing[c.ContentHash] {
				stats.Skipped++
				continue
			}
			fresh = append(fresh, c)
		}
		pending = fresh
	}

	if in.config.DryRun {
		for _, c := range pending {
			in.logger.WithFields(logrus.Fields{
				"hash":   c.ContentHash[:8],
				"length": len(c.Content),
				"words":  in.processor.CountWords(c.Content),
			}).Info("DRY RUN: Would embed and store chunk")
		}
		return stats, nil
	}

	for start := 0; start < len(pending); start += in.config.BatchSize {
		end := start + in.config.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		written, err := in.storeBatch(ctx, batch)
		if err != nil {
			return stats, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		stats.Written += written

		in.logger.WithFields(logrus.Fields{
			"progress": fmt.Sprintf("%d/%d", end, len(pending)),
			"written":  written,
		}).Info("Chunk batch stored")
	}

	return stats, nil
}

func (in *Ingestor) storeBatch(ctx context.Context, batch []models.LibraryChunk) (int64, error) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}

	var vectors [][]float32
	err := retryOperation(ctx, in.config.Retry, in.logger, func() error {
		var err error
		vectors, err = in.embedder.EmbedBatch(ctx, texts)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(batch) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
	}

	for i := range batch {
		batch[i].Embedding = pgvector.NewVector(vectors[i])
	}
	return in.store.Upsert(ctx, batch)
}
