package models

import (
	"encoding/json"
	"time"
)

// Subscription binds a fabric connection to a channel pattern, narrowed by
// an optional set of field filters. Created only after authentication.
type Subscription struct {
	ID           string            `json:"id"`
	ConnectionID string            `json:"connectionId"`
	Channel      string            `json:"channel"`
	Filters      map[string]string `json:"filters,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// WireMessage is the envelope for every WebSocket frame, in both
// directions.
type WireMessage struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// BrowserEvent is the payload of a browser_event server push.
type BrowserEvent struct {
	SessionID string    `json:"sessionId"`
	ContextID string    `json:"contextId"`
	PageID    string    `json:"pageId,omitempty"`
	Event     string    `json:"event"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PerformanceMetric is the payload of a performance_metric server push.
type PerformanceMetric struct {
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	PageID    string    `json:"pageId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
