// Package pubsub fans compilation and run results out to live subscribers.
package pubsub

import (
	"context"
	"encoding/json"

	"github.com/ritzau/flowc/pkg/compiler"
	"github.com/ritzau/flowc/pkg/model"
)

// Topics
const (
	TopicCompilation = "compilation"
	TopicRun         = "run"
)

// Event types
const (
	EventCompiled = "compiled" // a flow compiled, possibly with diagnostics
	EventFailed   = "failed"   // the flow could not be loaded or compiled
	EventRunning  = "running"
	EventFinished = "finished"
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // Subscription topic, e.g. "compilation"
	Type    string          `json:"type"`    // Event type, e.g. "compiled" or "failed"
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Version number for ordering
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic
	// Context cancellation will close the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data interface{}) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// Compilation is the payload of a compilation event
type Compilation struct {
	Source      string                `json:"source,omitempty"` // flow file path, empty for API requests
	FlowID      string                `json:"flowId"`
	FlowName    string                `json:"flowName"`
	Script      string                `json:"script"`
	Imports     []string              `json:"imports"`
	Order       []string              `json:"order"`
	Packages    []string              `json:"packages"`
	Diagnostics []compiler.Diagnostic `json:"diagnostics"`
	Issues      []model.Issue         `json:"issues,omitempty"`
	Error       string                `json:"error,omitempty"` // set on failed events
}

// NewCompilation builds the event payload for a finished compilation
func NewCompilation(source string, flow *model.Flow, result *compiler.Result, packages []string) Compilation {
	return Compilation{
		Source:      source,
		FlowID:      flow.ID,
		FlowName:    flow.Name,
		Script:      result.Script,
		Imports:     result.Imports,
		Order:       result.Order,
		Packages:    nonNil(packages),
		Diagnostics: nonNil(result.Diagnostics),
		Issues:      flow.Validate(),
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
