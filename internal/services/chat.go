package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Ayash-Bera/shopassist/backend/internal/agent"
	"github.com/Ayash-Bera/shopassist/backend/internal/database"
	"github.com/Ayash-Bera/shopassist/backend/internal/metrics"
	"github.com/Ayash-Bera/shopassist/backend/internal/models"
	"github.com/Ayash-Bera/shopassist/backend/internal/repository"
	"github.com/Ayash-Bera/shopassist/backend/pkg/utils"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	analyticsTimeout    = 5 * time.Second
	popularQueriesTTL   = 5 * time.Minute
	MaxPopularQueries   = 20
	DefaultPopularLimit = 10
)

// Responder answers one chat turn.
type Responder interface {
	Respond(ctx context.Context, history []models.ConversationTurn, message string) (models.AgentResponse, agent.Trace, error)
}

// RequestMeta identifies the caller for analytics.
type RequestMeta struct {
	Session   string
	RequestID string
	UserAgent string
	IPAddress string
}

type ChatService struct {
	agent       Responder
	repoManager *repository.RepositoryManager
	cache       *database.Cache
	metrics     *metrics.Recorder
	logger      *logrus.Logger
	wg          sync.WaitGroup
}

// NewChatService wires the agent to analytics. repoManager may be nil, in
// which case nothing is recorded.
func NewChatService(
	responder Responder,
	repoManager *repository.RepositoryManager,
	cache *database.Cache,
	m *metrics.Recorder,
	logger *logrus.Logger,
) *ChatService {
	return &ChatService{
		agent:       responder,
		repoManager: repoManager,
		cache:       cache,
		metrics:     m,
		logger:      logger,
	}
}

// Chat runs the agent for one turn. Errors are transport failures.
func (s *ChatService) Chat(ctx context.Context, req models.ChatRequest, meta RequestMeta) (models.AgentResponse, error) {
	start := time.Now()

	resp, trace, err := s.agent.Respond(ctx, req.History, req.Message)
	elapsed := time.Since(start)

	exchange := &models.ChatExchange{
		UserSession:    meta.Session,
		RequestID:      meta.RequestID,
		Message:        req.Message,
		HistoryTurns:   len(req.History),
		ToolRounds:     trace.ToolRounds,
		ToolCalls:      trace.ToolCalls,
		QueryUsed:      trace.LastQuery,
		Fallback:       trace.Fallback,
		ResponseTimeMs: int(elapsed.Milliseconds()),
		UserAgent:      meta.UserAgent,
		IPAddress:      meta.IPAddress,
	}

	if err != nil {
		s.metrics.ObserveChat(models.KindError, "error", elapsed)
		exchange.ResponseKind = models.KindError
		s.record(exchange, trace)
		return nil, fmt.Errorf("agent failed: %w", err)
	}

	status := "ok"
	if trace.Fallback != "" {
		status = "fallback"
	}
	s.metrics.ObserveChat(resp.Kind(), status, elapsed)

	exchange.ResponseKind = resp.Kind()
	if products, ok := resp.(*models.ProductResponse); ok {
		exchange.ProductCount = len(products.Products)
	}
	s.record(exchange, trace)

	return resp, nil
}

// record persists analytics in the background.
func (s *ChatService) record(exchange *models.ChatExchange, trace agent.Trace) {
	if s.repoManager == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), analyticsTimeout)
		defer cancel()

		if err := s.repoManager.ChatExchange.Create(ctx, exchange); err != nil {
			s.logger.WithError(err).Error("Failed to record chat exchange")
		}
		if trace.LastQuery != "" && exchange.ResponseKind != models.KindError {
			s.updatePopularQueries(ctx, trace.LastQuery, exchange.ProductCount, exchange.ResponseTimeMs)
		}
	}()
}

func (s *ChatService) updatePopularQueries(ctx context.Context, query string, productCount, responseTimeMs int) {
	query = utils.NormalizeQuery(query)
	if err := s.repoManager.PopularQuery.IncrementCount(ctx, query); err != nil {
		s.logger.WithError(err).Error("Failed to update popular queries")
		return
	}

	if err := s.repoManager.PopularQuery.UpdateStats(ctx, query, float64(productCount), responseTimeMs); err != nil {
		s.logger.WithError(err).Error("Failed to update query stats")
	}
	if err := s.cache.InvalidatePopularQueries(ctx); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate popular queries cache")
	}
}

// PopularQueries returns the most searched product queries, capped at
// MaxPopularQueries.
func (s *ChatService) PopularQueries(ctx context.Context, limit int) ([]models.PopularQuery, error) {
	if limit < 1 {
		limit = DefaultPopularLimit
	}
	if limit > MaxPopularQueries {
		limit = MaxPopularQueries
	}
	if s.repoManager == nil {
		return []models.PopularQuery{}, nil
	}

	// The cache always holds the top MaxPopularQueries rows.
	cached, err := s.cache.GetCachedPopularQueries(ctx)
	switch {
	case err == nil:
		return truncate(cached, limit), nil
	case !errors.Is(err, redis.Nil):
		s.logger.WithError(err).Warn("Popular queries cache read failed")
	}

	queries, err := s.repoManager.PopularQuery.GetTop(ctx, MaxPopularQueries)
	if err != nil {
		return nil, fmt.Errorf("failed to load popular queries: %w", err)
	}
	if err := s.cache.CachePopularQueries(ctx, queries, popularQueriesTTL); err != nil {
		s.logger.WithError(err).Warn("Failed to cache popular queries")
	}

	return truncate(queries, limit), nil
}

func truncate(queries []models.PopularQuery, limit int) []models.PopularQuery {
	if queries == nil {
		return []models.PopularQuery{}
	}
	if len(queries) > limit {
		return queries[:limit]
	}
	return queries
}

// Wait blocks until background analytics writes finish.
func (s *ChatService) Wait() {
	s.wg.Wait()
}
