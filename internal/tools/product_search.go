package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Ayash-Bera/shopassist/backend/internal/metrics"
	"github.com/Ayash-Bera/shopassist/backend/internal/vectorstore"
	"github.com/sirupsen/logrus"
)

const (
	ProductSearchName = "searchProductAndService"

	DefaultTopK = 5
	MaxTopK     = 50
)

const productSearchDescription = "Performs a semantic product & service search using embedding vectors based on the user's input query."

var productSearchSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "input": {"type": "string", "description": "The user's product query input."},
    "topK": {"type": "integer", "minimum": 1, "maximum": 50, "description": "Number of top similar results to return. Default is 5."}
  },
  "required": ["input"],
  "additionalProperties": false
}`)

// Searcher finds the chunks nearest to a query vector.
type Searcher interface {
	Search(ctx context.Context, vector []float32, k int) ([]vectorstore.SearchResult, error)
}

// SearchArgs are the decoded tool arguments.
type SearchArgs struct {
	Input string `json:"input"`
	TopK  *int   `json:"topK,omitempty"`
}

// ProductSearchTool embeds the query and returns the nearest catalog chunks
// as plain text.
type ProductSearchTool struct {
	embedder Embedder
	store    Searcher
	metrics  *metrics.Recorder
	logger   *logrus.Logger
}

func NewProductSearchTool(embedder Embedder, store Searcher, m *metrics.Recorder, logger *logrus.Logger) *ProductSearchTool {
	return &ProductSearchTool{
		embedder: embedder,
		store:    store,
		metrics:  m,
		logger:   logger,
	}
}

func (t *ProductSearchTool) Name() string                { return ProductSearchName }
func (t *ProductSearchTool) Description() string         { return productSearchDescription }
func (t *ProductSearchTool) Parameters() json.RawMessage { return productSearchSchema }

// ParseSearchArgs validates raw tool arguments. Only a missing topK defaults
// to DefaultTopK; an explicit value must lie in [1, MaxTopK].
func ParseSearchArgs(arguments string) (string, int, error) {
	var args SearchArgs
	if strings.TrimSpace(arguments) == "" {
		return "", 0, fmt.Errorf("arguments are required")
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", 0, fmt.Errorf("arguments must be a JSON object with an input string and optional integer topK: %w", err)
	}

	input := strings.TrimSpace(args.Input)
	if input == "" {
		return "", 0, fmt.Errorf("input must be a non-empty string")
	}

	topK := DefaultTopK
	if args.TopK != nil {
		topK = *args.TopK
	}
	if topK < 1 || topK > MaxTopK {
		return "", 0, fmt.Errorf("topK must be between 1 and %d, got %d", MaxTopK, topK)
	}
	return input, topK, nil
}

func (t *ProductSearchTool) Run(ctx context.Context, arguments string) (Result, error) {
	input, topK, err := ParseSearchArgs(arguments)
	if err != nil {
		t.metrics.ToolCall(ProductSearchName, metrics.ToolRejected)
		return Result{}, err
	}

	out, err := t.Search(ctx, input, topK)
	if err != nil {
		// Upstream failures degrade to an empty result the model can handle.
		t.logger.WithError(err).WithFields(logrus.Fields{
			"tool":  ProductSearchName,
			"input": input,
			"top_k": topK,
		}).Error("Error during semantic search")
		t.metrics.ToolCall(ProductSearchName, metrics.ToolFailed)
		return Result{Query: input}, nil
	}

	if out == "" {
		t.metrics.ToolCall(ProductSearchName, metrics.ToolEmpty)
	} else {
		t.metrics.ToolCall(ProductSearchName, metrics.ToolOK)
	}
	return Result{Output: out, Query: input}, nil
}

// Search runs one embed + nearest-neighbour lookup and formats the rows.
func (t *ProductSearchTool) Search(ctx context.Context, input string, topK int) (string, error) {
	start := time.Now()
	defer func() { t.metrics.ObserveToolLatency(time.Since(start)) }()

	vector, err := t.embedder.Embed(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := t.store.Search(ctx, vector, topK)
	if err != nil {
		return "", fmt.Errorf("failed to search vector store: %w", err)
	}

	t.logger.WithFields(logrus.Fields{
		"input":   input,
		"top_k":   topK,
		"results": len(results),
	}).Info("Product search completed")

	return FormatResults(results), nil
}

// FormatResults renders each row as its content followed by a
// "similarity_score <distance>" line, rows separated by a blank line.
func FormatResults(results []vectorstore.SearchResult) string {
	rows := make([]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, r.Content+"\nsimilarity_score "+strconv.FormatFloat(r.Distance, 'f', -1, 64))
	}
	return strings.Join(rows, "\n\n")
}
