// Package transport holds extension.Connection implementations
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	extension "github.com/effectus/extension-sdk"
)

// Recorder is an in-memory Connection. It records every request and answers
// with scripted responses, an empty acknowledgement by default.
type Recorder struct {
	mu        sync.Mutex
	requests  []extension.Request
	responses map[string]json.RawMessage
	failures  map[string]error
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{
		responses: make(map[string]json.RawMessage),
		failures:  make(map[string]error),
	}
}

// Respond scripts the data returned for action
func (r *Recorder) Respond(action string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding response for %s: %w", action, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[action] = raw
	return nil
}

// Fail makes action fail with err
func (r *Recorder) Fail(action string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[action] = err
}

// SendRequest implements extension.Connection
func (r *Recorder) SendRequest(ctx context.Context, action string, payload interface{}) (*extension.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := extension.Request{ID: uuid.NewString(), Action: action, Payload: payload}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	if err := r.failures[action]; err != nil {
		return nil, err
	}
	return &extension.Response{ID: req.ID, Data: r.responses[action]}, nil
}

// Requests returns a copy of the recorded requests
func (r *Recorder) Requests() []extension.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]extension.Request, len(r.requests))
	copy(out, r.requests)
	return out
}

// Reset forgets recorded requests
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = nil
}
