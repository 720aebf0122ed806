package models

import "encoding/json"

// Conversation roles accepted from clients.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is one message of the client-held history.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /.
type ChatRequest struct {
	History []ConversationTurn `json:"history"`
	Message string             `json:"message"`
}

// ProductAnswer is one structured product match.
type ProductAnswer struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Benefits         []string `json:"benefits"`
	PainPointsSolved []string `json:"pain_points_solved"`
	Pricing          string   `json:"pricing"`
	TargetAudience   []string `json:"target_audience"`
	SimilarityScore  float64  `json:"similarity_score"`
}

// Response kinds, used in logs, metrics and analytics rows.
const (
	KindText     = "text"
	KindProducts = "products"
	KindError    = "error"
)

// AgentResponse is either a TextResponse or a ProductResponse.
type AgentResponse interface {
	Kind() string
	isAgentResponse()
}

// TextResponse is a general answer.
type TextResponse struct {
	Content string `json:"content"`
}

func (TextResponse) Kind() string     { return KindText }
func (TextResponse) isAgentResponse() {}

// ProductResponse is a structured answer produced after a product search.
type ProductResponse struct {
	Products  []ProductAnswer `json:"products"`
	QueryUsed string          `json:"query_used"`
}

func (ProductResponse) Kind() string     { return KindProducts }
func (ProductResponse) isAgentResponse() {}

// MarshalJSON keeps an empty result as [] rather than null.
func (r ProductResponse) MarshalJSON() ([]byte, error) {
	type plain ProductResponse
	products := make([]ProductAnswer, len(r.Products))
	for i, p := range r.Products {
		products[i] = p.normalized()
	}
	r.Products = products
	return json.Marshal(plain(r))
}

func (p ProductAnswer) normalized() ProductAnswer {
	if p.Benefits == nil {
		p.Benefits = []string{}
	}
	if p.PainPointsSolved == nil {
		p.PainPointsSolved = []string{}
	}
	if p.TargetAudience == nil {
		p.TargetAudience = []string{}
	}
	return p
}
