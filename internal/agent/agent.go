// Package agent runs the bounded tool-calling loop that answers one chat turn.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ayash-Bera/shopassist/backend/internal/llm"
	"github.com/Ayash-Bera/shopassist/backend/internal/metrics"
	"github.com/Ayash-Bera/shopassist/backend/internal/models"
	"github.com/Ayash-Bera/shopassist/backend/internal/parser"
	"github.com/Ayash-Bera/shopassist/backend/internal/tools"
	"github.com/sirupsen/logrus"
)

// ErrRoundLimit means the model was still requesting tools after the last
// allowed round.
var ErrRoundLimit = errors.New("tool round limit reached")

// Fallback reasons recorded in the Trace.
const (
	FallbackRoundLimit        = "round_limit"
	FallbackUntrustedProducts = "untrusted_products"
	FallbackEmptySearch       = "empty_search"
	FallbackTextAfterSearch   = "text_after_search"
)

// ChatModel is the subset of the LLM client the agent needs.
type ChatModel interface {
	ChatWithTools(ctx context.Context, messages []llm.Message, tools []llm.ToolDescriptor) (*llm.ChatResponse, error)
}

// Trace summarizes what happened while answering a turn.
type Trace struct {
	ModelCalls       int
	ToolRounds       int
	ToolCalls        int
	ToolInvoked      bool
	AnyResults       bool
	LastQuery        string
	Fallback         string
	PromptTokens     int
	CompletionTokens int
	Duration         time.Duration
}

type Config struct {
	MaxToolRounds int
}

type Agent struct {
	model       ChatModel
	tools       map[string]tools.Tool
	descriptors []llm.ToolDescriptor
	parser      *parser.Parser
	maxRounds   int
	metrics     *metrics.Recorder
	logger      *logrus.Logger
}

func New(model ChatModel, toolset []tools.Tool, p *parser.Parser, cfg Config, m *metrics.Recorder, logger *logrus.Logger) *Agent {
	a := &Agent{
		model:     model,
		tools:     make(map[string]tools.Tool, len(toolset)),
		parser:    p,
		maxRounds: cfg.MaxToolRounds,
		metrics:   m,
		logger:    logger,
	}
	if a.maxRounds < 1 {
		a.maxRounds = 3
	}
	for _, t := range toolset {
		a.tools[t.Name()] = t
		a.descriptors = append(a.descriptors, llm.ToolDescriptor{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return a
}

// Respond answers message given the prior history. The returned error is
// non-nil only when the model could not be reached or ctx ended.
func (a *Agent) Respond(ctx context.Context, history []models.ConversationTurn, message string) (models.AgentResponse, Trace, error) {
	start := time.Now()
	trace := Trace{}

	raw, err := a.run(ctx, buildMessages(history, message), &trace)
	if errors.Is(err, ErrRoundLimit) {
		trace.Fallback = FallbackRoundLimit
		a.metrics.RoundLimit()
		a.logger.WithFields(logrus.Fields{
			"tool_rounds": trace.ToolRounds,
			"last_query":  trace.LastQuery,
		}).Warn("Agent exceeded tool round limit")
		trace.Duration = time.Since(start)
		return &models.TextResponse{Content: roundLimitReply}, trace, nil
	}
	if err != nil {
		trace.Duration = time.Since(start)
		return nil, trace, err
	}

	parsed, reason := a.parser.ParseWithReason(raw)
	if reason != "" {
		trace.Fallback = reason
	}
	resp := a.reconcile(parsed, raw, &trace)

	trace.Duration = time.Since(start)
	a.logger.WithFields(logrus.Fields{
		"kind":        resp.Kind(),
		"model_calls": trace.ModelCalls,
		"tool_rounds": trace.ToolRounds,
		"tool_calls":  trace.ToolCalls,
		"fallback":    trace.Fallback,
		"duration_ms": trace.Duration.Milliseconds(),
	}).Info("Agent response ready")

	return resp, trace, nil
}

// run drives the model until it stops requesting tools and returns its final
// text.
func (a *Agent) run(ctx context.Context, messages []llm.Message, trace *Trace) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		resp, err := a.model.ChatWithTools(ctx, messages, a.descriptors)
		if err != nil {
			return "", fmt.Errorf("chat model call failed: %w", err)
		}
		trace.ModelCalls++
		trace.PromptTokens += resp.PromptTokens
		trace.CompletionTokens += resp.CompletionTokens
		a.metrics.Tokens(resp.PromptTokens, resp.CompletionTokens)

		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}
		if trace.ToolRounds >= a.maxRounds {
			return "", ErrRoundLimit
		}
		trace.ToolRounds++

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			trace.ToolCalls++
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Content:    a.callTool(ctx, call, trace),
			})
		}
	}
}

func (a *Agent) callTool(ctx context.Context, call llm.ToolCall, trace *Trace) string {
	tool, ok := a.tools[call.Name]
	if !ok {
		a.logger.WithField("tool", call.Name).Warn("Model requested unknown tool")
		a.metrics.ToolCall(call.Name, metrics.ToolRejected)
		return fmt.Sprintf("Error: unknown tool %q", call.Name)
	}

	result, err := tool.Run(ctx, call.Arguments)
	if err != nil {
		a.logger.WithError(err).WithFields(logrus.Fields{
			"tool":      call.Name,
			"arguments": call.Arguments,
		}).Warn("Tool arguments rejected")
		return fmt.Sprintf("Error: %v", err)
	}

	trace.ToolInvoked = true
	if result.Query != "" {
		trace.LastQuery = result.Query
	}
	if result.Output == "" {
		return emptyToolOutput
	}
	trace.AnyResults = true
	return result.Output
}

// reconcile makes the response shape agree with what the tools actually did.
func (a *Agent) reconcile(parsed models.AgentResponse, raw string, trace *Trace) models.AgentResponse {
	if trace.ToolInvoked && !trace.AnyResults {
		if trace.Fallback == "" {
			trace.Fallback = FallbackEmptySearch
		}
		a.metrics.ShapeOverride(FallbackEmptySearch)
		return &models.ProductResponse{Products: []models.ProductAnswer{}, QueryUsed: trace.LastQuery}
	}

	products, isProducts := parsed.(*models.ProductResponse)
	if !isProducts {
		// Text after a search that returned rows is kept but flagged.
		if trace.AnyResults {
			if trace.Fallback == "" {
				trace.Fallback = FallbackTextAfterSearch
			}
			a.metrics.ShapeOverride(FallbackTextAfterSearch)
			a.logger.WithField("last_query", trace.LastQuery).Warn("Model answered with text after a search returned results")
		}
		return parsed
	}
	if !trace.ToolInvoked {
		trace.Fallback = FallbackUntrustedProducts
		a.metrics.ShapeOverride(FallbackUntrustedProducts)
		a.logger.Warn("Model returned products without searching, returning reply as text")
		return &models.TextResponse{Content: raw}
	}
	if products.QueryUsed == "" {
		products.QueryUsed = trace.LastQuery
	}
	return products
}

func buildMessages(history []models.ConversationTurn, message string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPolicy})
	for _, turn := range history {
		role := llm.RoleUser
		if turn.Role == models.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Content})
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: message})
}
