// Package tools holds the functions the chat agent may call.
package tools

import (
	"context"
	"encoding/json"
)

// Tool is a function the model can invoke by name with JSON arguments.
type Tool interface {
	Name() string
	Description() string
	// Parameters is the JSON schema of the arguments object.
	Parameters() json.RawMessage
	// Run returns an error only when the arguments are rejected. Upstream
	// failures are reported through an empty Output.
	Run(ctx context.Context, arguments string) (Result, error)
}

// Result is what a tool hands back to the agent loop.
type Result struct {
	Output string
	// Query is the normalized input the tool searched for, if any.
	Query string
}
