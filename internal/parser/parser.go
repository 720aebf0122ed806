// Package parser turns the model's final reply into a structured response.
// Parse never fails: anything it cannot decode is returned verbatim as text.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Ayash-Bera/shopassist/backend/internal/metrics"
	"github.com/Ayash-Bera/shopassist/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// Fallback reasons, also used as metric labels.
const (
	ReasonEmpty           = "empty"
	ReasonInvalidJSON     = "invalid_json"
	ReasonNotObject       = "not_object"
	ReasonAmbiguous       = "ambiguous"
	ReasonUnknownShape    = "unknown_shape"
	ReasonInvalidContent  = "invalid_content"
	ReasonInvalidProducts = "invalid_products"
)

// DecodeError explains why a reply was not a valid structured response.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

type Parser struct {
	metrics *metrics.Recorder
	logger  *logrus.Logger
}

func New(m *metrics.Recorder, logger *logrus.Logger) *Parser {
	return &Parser{metrics: m, logger: logger}
}

// Parse decodes raw into one of the two response shapes, falling back to
// {content: raw}.
func (p *Parser) Parse(raw string) models.AgentResponse {
	resp, _ := p.ParseWithReason(raw)
	return resp
}

// ParseWithReason is Parse that also reports the fallback reason, empty when
// the reply decoded cleanly.
func (p *Parser) ParseWithReason(raw string) (models.AgentResponse, string) {
	resp, err := Decode(raw)
	if err == nil {
		return resp, ""
	}

	reason := ReasonInvalidJSON
	var de *DecodeError
	if errors.As(err, &de) {
		reason = de.Reason
	}

	p.logger.WithError(err).WithFields(logrus.Fields{
		"reason": reason,
		"raw":    raw,
	}).Warn("Model reply is not a structured response, returning it as text")
	p.metrics.ParseFallback(reason)

	return &models.TextResponse{Content: raw}, reason
}

// Decode is the strict half of Parse.
func Decode(raw string) (models.AgentResponse, error) {
	body := stripFence(strings.TrimSpace(raw))
	if body == "" {
		return nil, &DecodeError{Reason: ReasonEmpty}
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, &DecodeError{Reason: ReasonInvalidJSON, Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &DecodeError{Reason: ReasonInvalidJSON, Err: errors.New("trailing data after JSON value")}
	}

	if _, ok := value.(map[string]any); !ok {
		return nil, &DecodeError{Reason: ReasonNotObject}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return nil, &DecodeError{Reason: ReasonInvalidJSON, Err: err}
	}

	content, hasContent := fields["content"]
	products, hasProducts := fields["products"]
	query, hasQuery := fields["query_used"]

	switch {
	case hasContent && (hasProducts || hasQuery):
		return nil, &DecodeError{Reason: ReasonAmbiguous}
	case hasContent:
		return decodeText(content)
	case hasProducts && hasQuery:
		return decodeProducts(products, query)
	default:
		return nil, &DecodeError{Reason: ReasonUnknownShape}
	}
}

func decodeText(content json.RawMessage) (models.AgentResponse, error) {
	var s string
	if isNull(content) {
		return nil, &DecodeError{Reason: ReasonInvalidContent, Err: errors.New("content is null")}
	}
	if err := json.Unmarshal(content, &s); err != nil {
		return nil, &DecodeError{Reason: ReasonInvalidContent, Err: err}
	}
	return &models.TextResponse{Content: s}, nil
}

type productFields struct {
	ID               *string  `json:"id"`
	Name             *string  `json:"name"`
	Benefits         []string `json:"benefits"`
	PainPointsSolved []string `json:"pain_points_solved"`
	Pricing          *string  `json:"pricing"`
	TargetAudience   []string `json:"target_audience"`
	SimilarityScore  *float64 `json:"similarity_score"`
}

func decodeProducts(rawProducts, rawQuery json.RawMessage) (models.AgentResponse, error) {
	var query string
	if isNull(rawQuery) {
		return nil, &DecodeError{Reason: ReasonInvalidProducts, Err: errors.New("query_used is null")}
	}
	if err := json.Unmarshal(rawQuery, &query); err != nil {
		return nil, &DecodeError{Reason: ReasonInvalidProducts, Err: fmt.Errorf("query_used: %w", err)}
	}

	if isNull(rawProducts) {
		return nil, &DecodeError{Reason: ReasonInvalidProducts, Err: errors.New("products is null")}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(rawProducts, &items); err != nil {
		return nil, &DecodeError{Reason: ReasonInvalidProducts, Err: fmt.Errorf("products: %w", err)}
	}

	out := make([]models.ProductAnswer, 0, len(items))
	for i, item := range items {
		var f productFields
		if isNull(item) || !bytes.HasPrefix(bytes.TrimSpace(item), []byte("{")) {
			return nil, &DecodeError{Reason: ReasonInvalidProducts, Err: fmt.Errorf("products[%d] is not an object", i)}
		}
		if err := json.Unmarshal(item, &f); err != nil {
			return nil, &DecodeError{Reason: ReasonInvalidProducts, Err: fmt.Errorf("products[%d]: %w", i, err)}
		}
		if f.Name == nil || strings.TrimSpace(*f.Name) == "" {
			return nil, &DecodeError{Reason: ReasonInvalidProducts, Err: fmt.Errorf("products[%d] has no name", i)}
		}
		out = append(out, models.ProductAnswer{
			ID:               deref(f.ID),
			Name:             *f.Name,
			Benefits:         orEmpty(f.Benefits),
			PainPointsSolved: orEmpty(f.PainPointsSolved),
			Pricing:          deref(f.Pricing),
			TargetAudience:   orEmpty(f.TargetAudience),
			SimilarityScore:  clamp(f.SimilarityScore),
		})
	}

	return &models.ProductResponse{Products: out, QueryUsed: query}, nil
}

// stripFence removes a Markdown code fence that wraps the whole reply.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	inner := strings.TrimSuffix(s[3:], "```")
	// Drop an optional language tag on the opening line.
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
		tag := strings.TrimSpace(inner[:nl])
		if tag == "" || isLangTag(tag) {
			inner = inner[nl+1:]
		}
	}
	if strings.Contains(inner, "```") {
		return s
	}
	return strings.TrimSpace(inner)
}

func isLangTag(tag string) bool {
	for _, r := range tag {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return false
		}
	}
	return true
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orEmpty(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

// clamp bounds a model-supplied score. The policy asks for a converted
// similarity, so out of range values only come from a misbehaving model.
func clamp(score *float64) float64 {
	if score == nil {
		return 0
	}
	switch {
	case *score < 0:
		return 0
	case *score > 1:
		return 1
	default:
		return *score
	}
}
