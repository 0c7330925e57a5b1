// Package agent exposes the file-transfer operations as named,
// dispatchable handlers. Every handler returns a result payload;
// failures are data (an error field), never a fault surfaced to the
// caller's transport.
package agent

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/tturner/sftpsync/internal/logging"
)

// Handler executes one named operation. args is the raw JSON argument
// object; the returned value serializes to the operation's wire shape.
type Handler func(args json.RawMessage) any

// ErrorResult is the error variant every operation can return.
type ErrorResult struct {
	Error string `json:"error"`
}

// Errorf builds an error payload.
func Errorf(format string, args ...any) ErrorResult {
	return ErrorResult{Error: fmt.Sprintf(format, args...)}
}

// Registry maps operation names to handlers.
type Registry struct {
	logger   *logging.Logger
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *logging.Logger) *Registry {
	return &Registry{
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler under an operation name.
func (r *Registry) Register(name string, h Handler) {
	r.handlers[name] = h
}

// Operations returns the registered operation names, sorted.
func (r *Registry) Operations() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the named operation. An unknown name yields an error
// payload, not a fault.
func (r *Registry) Dispatch(name string, args json.RawMessage) any {
	h, ok := r.handlers[name]
	if !ok {
		return Errorf("unknown operation: %s", name)
	}

	reqID := uuid.NewString()[:8]
	r.logger.Verbose("[%s] dispatch %s", reqID, name)
	result := h(args)
	if errResult, ok := result.(ErrorResult); ok {
		r.logger.Info("[%s] %s failed: %s", reqID, name, errResult.Error)
	} else {
		r.logger.Verbose("[%s] %s ok", reqID, name)
	}
	return result
}

// decodeArgs unmarshals an argument object. A missing or empty object
// leaves the struct at its zero value.
func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
