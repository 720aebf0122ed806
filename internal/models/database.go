package models

// GORM models

import (
	"context"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatExchange records one request/response pair for analytics.
type ChatExchange struct {
	BaseModel
	UserSession    string `json:"user_session" gorm:"index"`
	RequestID      string `json:"request_id"`
	Message        string `json:"message" gorm:"not null"`
	HistoryTurns   int    `json:"history_turns"`
	ResponseKind   string `json:"response_kind" gorm:"not null;check:response_kind IN ('text','products','error')"`
	ToolRounds     int    `json:"tool_rounds"`
	ToolCalls      int    `json:"tool_calls"`
	QueryUsed      string `json:"query_used"`
	ProductCount   int    `json:"product_count"`
	Fallback       string `json:"fallback"`
	ResponseTimeMs int    `json:"response_time_ms"`
	UserAgent      string `json:"user_agent"`
	IPAddress      string `json:"ip_address"`
}

// PopularQuery represents frequently used product search queries
type PopularQuery struct {
	BaseModel
	QueryText         string    `json:"query_text" gorm:"unique;not null"`
	SearchCount       int       `json:"search_count" gorm:"default:1"`
	AvgProductCount   float64   `json:"avg_product_count" gorm:"type:decimal(5,2);default:0"`
	AvgResponseTimeMs int       `json:"avg_response_time_ms" gorm:"default:0"`
	LastSearched      time.Time `json:"last_searched" gorm:"default:NOW()"`
}

// SystemHealth represents service health monitoring
type SystemHealth struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	ServiceName    string    `json:"service_name" gorm:"not null"`
	Status         string    `json:"status" gorm:"not null;check:status IN ('healthy','degraded','unhealthy')"`
	ResponseTimeMs int       `json:"response_time_ms"`
	ErrorMessage   string    `json:"error_message"`
	CheckedAt      time.Time `json:"checked_at" gorm:"default:NOW()"`
}

// LibraryChunk is one embedded slice of product text. The table is created by
// the SQL migrations because the vector column needs the pgvector extension.
type LibraryChunk struct {
	ID          int64           `json:"id" gorm:"primaryKey"`
	LibraryID   int64           `json:"library_id" gorm:"not null;index"`
	Content     string          `json:"content" gorm:"not null"`
	Embedding   pgvector.Vector `json:"-" gorm:"type:vector"`
	JSONContent string          `json:"json_content" gorm:"column:json_content;type:jsonb"`
	ContentHash string          `json:"content_hash" gorm:"not null"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Database interfaces for repository pattern
type ChatExchangeRepository interface {
	Create(ctx context.Context, exchange *ChatExchange) error
	GetBySession(ctx context.Context, session string, limit int) ([]ChatExchange, error)
	GetRecent(ctx context.Context, limit int) ([]ChatExchange, error)
}

type PopularQueryRepository interface {
	IncrementCount(ctx context.Context, queryText string) error
	GetTop(ctx context.Context, limit int) ([]PopularQuery, error)
	UpdateStats(ctx context.Context, queryText string, productCount float64, responseTime int) error
}

type SystemHealthRepository interface {
	UpdateServiceHealth(ctx context.Context, serviceName, status string, responseTime int, errorMsg string) error
	GetServiceHealth(ctx context.Context, serviceName string) (*SystemHealth, error)
	GetAllServicesHealth(ctx context.Context) ([]SystemHealth, error)
}

// TableName methods for custom table names
func (ChatExchange) TableName() string { return "chat_exchanges" }
func (PopularQuery) TableName() string { return "popular_queries" }
func (SystemHealth) TableName() string { return "system_health" }
func (LibraryChunk) TableName() string { return "library_chunks" }

// Model validation methods
func (ce *ChatExchange) Validate() error {
	if ce.Message == "" {
		return fmt.Errorf("message is required")
	}
	validKinds := map[string]bool{
		KindText:     true,
		KindProducts: true,
		KindError:    true,
	}
	if !validKinds[ce.ResponseKind] {
		return fmt.Errorf("invalid response kind: %s", ce.ResponseKind)
	}
	if ce.ResponseTimeMs < 0 {
		return fmt.Errorf("response time cannot be negative")
	}
	return nil
}

func (sh *SystemHealth) Validate() error {
	validStatuses := map[string]bool{
		"healthy":   true,
		"degraded":  true,
		"unhealthy": true,
	}
	if !validStatuses[sh.Status] {
		return fmt.Errorf("invalid health status: %s", sh.Status)
	}
	return nil
}

// GORM hooks
func (ce *ChatExchange) BeforeCreate(tx *gorm.DB) error {
	return ce.Validate()
}

func (sh *SystemHealth) BeforeCreate(tx *gorm.DB) error {
	return sh.Validate()
}
