// Package vectorstore runs nearest-neighbour queries against the pgvector
// chunk table.
package vectorstore

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/Ayash-Bera/shopassist/backend/internal/models"
	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Distance names accepted in configuration.
const (
	DistanceL2           = "l2"
	DistanceCosine       = "cosine"
	DistanceInnerProduct = "inner_product"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SearchResult is one matching chunk. Smaller Distance means closer.
type SearchResult struct {
	Content  string  `json:"content" gorm:"column:content"`
	Distance float64 `json:"distance" gorm:"column:distance"`
}

type Config struct {
	LibraryID     int64
	Table         string
	Distance      string
	QueryTimeout  time.Duration
	MaxConcurrent int64
}

// PGVectorStore is scoped to a single library id.
type PGVectorStore struct {
	db        *gorm.DB
	libraryID int64
	table     string
	operator  string
	timeout   time.Duration
	sem       *semaphore.Weighted
	logger    *logrus.Logger
}

// Operator maps a distance name to its pgvector operator.
func Operator(distance string) (string, error) {
	switch distance {
	case DistanceL2, "":
		return "<->", nil
	case DistanceCosine:
		return "<=>", nil
	case DistanceInnerProduct:
		return "<#>", nil
	default:
		return "", fmt.Errorf("unsupported distance %q", distance)
	}
}

func NewPGVectorStore(db *gorm.DB, cfg Config, logger *logrus.Logger) (*PGVectorStore, error) {
	op, err := Operator(cfg.Distance)
	if err != nil {
		return nil, err
	}
	table := cfg.Table
	if table == "" {
		table = models.LibraryChunk{}.TableName()
	}
	if !identifier.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &PGVectorStore{
		db:        db,
		libraryID: cfg.LibraryID,
		table:     table,
		operator:  op,
		timeout:   timeout,
		sem:       semaphore.NewWeighted(maxConcurrent),
		logger:    logger,
	}, nil
}

// LibraryID returns the library the store is scoped to.
func (s *PGVectorStore) LibraryID() int64 {
	return s.libraryID
}

func (s *PGVectorStore) searchSQL() string {
	return fmt.Sprintf(
		"SELECT content, (embedding %s ?::vector) AS distance FROM %s WHERE library_id = ? ORDER BY distance ASC LIMIT ?",
		s.operator, s.table,
	)
}

// Search returns up to k chunks of the store's library closest to the query
// vector, nearest first.
func (s *PGVectorStore) Search(ctx context.Context, vector []float32, k int) ([]SearchResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for vector store slot: %w", err)
	}
	defer s.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	var results []SearchResult
	err := s.db.WithContext(ctx).
		Raw(s.searchSQL(), pgvector.NewVector(vector), s.libraryID, k).
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"library_id": s.libraryID,
		"k":          k,
		"results":    len(results),
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Debug("Vector search completed")

	return results, nil
}

// ExistingHashes returns which of the given content hashes are already stored.
func (s *PGVectorStore) ExistingHashes(ctx context.Context, hashes []string) (map[string]bool, error) {
	found := make(map[string]bool, len(hashes))
	if len(hashes) == 0 {
		return found, nil
	}

	var existing []string
	err := s.db.WithContext(ctx).
		Table(s.table).
		Where("library_id = ? AND content_hash IN ?", s.libraryID, hashes).
		Pluck("content_hash", &existing).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load content hashes: %w", err)
	}
	for _, h := range existing {
		found[h] = true
	}
	return found, nil
}

// Upsert inserts chunks for the store's library, skipping any whose content
// hash is already present. It returns the number of rows written.
func (s *PGVectorStore) Upsert(ctx context.Context, chunks []models.LibraryChunk) (int64, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	for i := range chunks {
		chunks[i].LibraryID = s.libraryID
		if chunks[i].JSONContent == "" {
			chunks[i].JSONContent = "{}"
		}
	}

	result := s.db.WithContext(ctx).
		Table(s.table).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "library_id"}, {Name: "content_hash"}},
			DoNothing: true,
		}).
		CreateInBatches(chunks, 100)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to upsert chunks: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Count returns the number of chunks stored for the library.
func (s *PGVectorStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Table(s.table).Where("library_id = ?", s.libraryID).Count(&n).Error
	return n, err
}
