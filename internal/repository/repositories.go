package repository

import (
	"context"

	"github.com/Ayash-Bera/shopassist/backend/internal/models"
	"gorm.io/gorm"
)

// ChatExchangeRepositoryImpl implements ChatExchangeRepository
type ChatExchangeRepositoryImpl struct {
	db *gorm.DB
}

func NewChatExchangeRepository(db *gorm.DB) models.ChatExchangeRepository {
	return &ChatExchangeRepositoryImpl{db: db}
}

func (r *ChatExchangeRepositoryImpl) Create(ctx context.Context, exchange *models.ChatExchange) error {
	return r.db.WithContext(ctx).Create(exchange).Error
}

func (r *ChatExchangeRepositoryImpl) GetBySession(ctx context.Context, session string, limit int) ([]models.ChatExchange, error) {
	var exchanges []models.ChatExchange
	err := r.db.WithContext(ctx).
		Where("user_session = ?", session).
		Order("created_at DESC").
		Limit(limit).
		Find(&exchanges).Error
	return exchanges, err
}

func (r *ChatExchangeRepositoryImpl) GetRecent(ctx context.Context, limit int) ([]models.ChatExchange, error) {
	var exchanges []models.ChatExchange
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&exchanges).Error
	return exchanges, err
}

// PopularQueryRepositoryImpl implements PopularQueryRepository
type PopularQueryRepositoryImpl struct {
	db *gorm.DB
}

func NewPopularQueryRepository(db *gorm.DB) models.PopularQueryRepository {
	return &PopularQueryRepositoryImpl{db: db}
}

func (r *PopularQueryRepositoryImpl) IncrementCount(ctx context.Context, queryText string) error {
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO popular_queries (query_text, search_count, last_searched, created_at, updated_at)
		VALUES (?, 1, NOW(), NOW(), NOW())
		ON CONFLICT (query_text)
		DO UPDATE SET
			search_count = popular_queries.search_count + 1,
			last_searched = NOW(),
			updated_at = NOW()
	`, queryText).Error
}

func (r *PopularQueryRepositoryImpl) GetTop(ctx context.Context, limit int) ([]models.PopularQuery, error) {
	var queries []models.PopularQuery
	err := r.db.WithContext(ctx).
		Order("search_count DESC, last_searched DESC").
		Limit(limit).
		Find(&queries).Error
	return queries, err
}

// UpdateStats folds one observation into the running averages. It must run
// after IncrementCount for the same query.
func (r *PopularQueryRepositoryImpl) UpdateStats(ctx context.Context, queryText string, productCount float64, responseTime int) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE popular_queries
		SET
			avg_product_count = (avg_product_count * (search_count - 1) + ?) / search_count,
			avg_response_time_ms = (avg_response_time_ms * (search_count - 1) + ?) / search_count,
			updated_at = NOW()
		WHERE query_text = ?
	`, productCount, responseTime, queryText).Error
}

// SystemHealthRepositoryImpl implements SystemHealthRepository
type SystemHealthRepositoryImpl struct {
	db *gorm.DB
}

func NewSystemHealthRepository(db *gorm.DB) models.SystemHealthRepository {
	return &SystemHealthRepositoryImpl{db: db}
}

func (r *SystemHealthRepositoryImpl) UpdateServiceHealth(ctx context.Context, serviceName, status string, responseTime int, errorMsg string) error {
	return r.db.WithContext(ctx).Create(&models.SystemHealth{
		ServiceName:    serviceName,
		Status:         status,
		ResponseTimeMs: responseTime,
		ErrorMessage:   errorMsg,
	}).Error
}

func (r *SystemHealthRepositoryImpl) GetServiceHealth(ctx context.Context, serviceName string) (*models.SystemHealth, error) {
	var health models.SystemHealth
	err := r.db.WithContext(ctx).
		Where("service_name = ?", serviceName).
		Order("checked_at DESC").
		First(&health).Error
	if err != nil {
		return nil, err
	}
	return &health, nil
}

func (r *SystemHealthRepositoryImpl) GetAllServicesHealth(ctx context.Context) ([]models.SystemHealth, error) {
	var health []models.SystemHealth
	err := r.db.WithContext(ctx).Raw(`
		SELECT DISTINCT ON (service_name) *
		FROM system_health
		ORDER BY service_name, checked_at DESC
	`).Scan(&health).Error
	return health, err
}

// RepositoryManager bundles all repositories
type RepositoryManager struct {
	ChatExchange models.ChatExchangeRepository
	PopularQuery models.PopularQueryRepository
	SystemHealth models.SystemHealthRepository
}

func NewRepositoryManager(db *gorm.DB) *RepositoryManager {
	return &RepositoryManager{
		ChatExchange: NewChatExchangeRepository(db),
		PopularQuery: NewPopularQueryRepository(db),
		SystemHealth: NewSystemHealthRepository(db),
	}
}
