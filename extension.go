// Package extension defines the contracts shared by the extension SDK packages:
// the request transport to the host UI and the event bus carrying host
// notifications.
package extension

import (
	"context"
	"encoding/json"
)

// Host actions and event names exchanged with the host UI.
const (
	ActionSetData = "setData"

	EventEntrySave      = "entrySave"
	EventEntryChange    = "entryChange"
	EventEntryPublish   = "entryPublish"
	EventEntryUnPublish = "entryUnPublish"
	EventRegister       = "_eventRegistration"
	EventWildcard       = "*"
)

// Request is a single call sent to the host
type Request struct {
	ID      string      `json:"id"`
	Action  string      `json:"action"`
	Payload interface{} `json:"payload,omitempty"`
}

// Response is the host acknowledgement for a Request
type Response struct {
	ID    string          `json:"id"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Decode unmarshals the response data into v
func (r *Response) Decode(v interface{}) error {
	if r == nil || len(r.Data) == 0 {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}

// Connection sends requests to the host UI
type Connection interface {
	// SendRequest delivers action with its payload and waits for the host acknowledgement
	SendRequest(ctx context.Context, action string, payload interface{}) (*Response, error)
}

// Event is a notification delivered through an Emitter
type Event struct {
	Name string
	Data map[string]interface{}
}

// Handler processes an event
type Handler func(ctx context.Context, event Event) error

// Emitter is the event bus between the host and the SDK
type Emitter interface {
	// On registers handler for the named event
	On(name string, handler Handler)

	// Emit delivers data to the handlers registered for name
	Emit(ctx context.Context, name string, data map[string]interface{})
}

// EventRegistration announces to the host that a callback listens to an event
type EventRegistration struct {
	Name string `json:"name"`
}

// SetDataPayload is the payload of the setData action
type SetDataPayload struct {
	UID   string      `json:"uid"`
	Value interface{} `json:"value"`
}
