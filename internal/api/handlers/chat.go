package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Ayash-Bera/shopassist/backend/internal/middleware"
	"github.com/Ayash-Bera/shopassist/backend/internal/models"
	"github.com/Ayash-Bera/shopassist/backend/internal/services"
	"github.com/Ayash-Bera/shopassist/backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// UnavailableMessage is returned when the model cannot be reached.
const UnavailableMessage = "The assistant is temporarily unavailable. Please try again."

// ChatService answers one chat turn.
type ChatService interface {
	Chat(ctx context.Context, req models.ChatRequest, meta services.RequestMeta) (models.AgentResponse, error)
}

// ChatLimits bounds what a single request may carry.
type ChatLimits struct {
	MaxMessageChars int
	MaxHistoryTurns int
	RequestTimeout  time.Duration
}

type ChatHandler struct {
	chatService ChatService
	limits      ChatLimits
	logger      *logrus.Logger
}

func NewChatHandler(chatService ChatService, limits ChatLimits, logger *logrus.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		limits:      limits,
		logger:      logger,
	}
}

// HandleChat answers {history, message} with either {content} or
// {products, query_used}.
func (h *ChatHandler) HandleChat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid chat request")
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.validate(&req); err != nil {
		utils.ValidationError(c, err)
		return
	}

	meta := services.RequestMeta{
		Session:   getUserSession(c),
		RequestID: middleware.GetRequestID(c),
		UserAgent: c.GetHeader("User-Agent"),
		IPAddress: c.ClientIP(),
	}

	h.logger.WithFields(logrus.Fields{
		"request_id":    meta.RequestID,
		"user_session":  meta.Session,
		"history_turns": len(req.History),
		"message_chars": utf8.RuneCountInString(req.Message),
	}).Info("Processing chat request")

	ctx := c.Request.Context()
	if h.limits.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.limits.RequestTimeout)
		defer cancel()
	}

	resp, err := h.chatService.Chat(ctx, req, meta)
	if err != nil {
		h.logger.WithError(err).WithField("request_id", meta.RequestID).Error("Chat failed")
		utils.ErrorResponse(c, http.StatusBadGateway, UnavailableMessage, nil)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) validate(req *models.ChatRequest) error {
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return fmt.Errorf("Message cannot be empty")
	}
	if h.limits.MaxMessageChars > 0 && utf8.RuneCountInString(req.Message) > h.limits.MaxMessageChars {
		return fmt.Errorf("Message too long (max %d characters)", h.limits.MaxMessageChars)
	}
	if h.limits.MaxHistoryTurns > 0 && len(req.History) > h.limits.MaxHistoryTurns {
		return fmt.Errorf("History too long (max %d turns)", h.limits.MaxHistoryTurns)
	}
	for i, turn := range req.History {
		if turn.Role != models.RoleUser && turn.Role != models.RoleAssistant {
			return fmt.Errorf("History turn %d has invalid role %q", i, turn.Role)
		}
	}
	return nil
}

func getUserSession(c *gin.Context) string {
	if session := c.GetHeader("X-Session-ID"); session != "" {
		return session
	}
	return utils.GenerateSessionID(c.ClientIP() + c.GetHeader("User-Agent"))
}
