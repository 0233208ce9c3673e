package amqp

import (
	"encoding/json"
	"time"
)

// PortfolioEvent is published after every successful portfolio mutation.
// It carries the new total so consumers never need to query the server.
type PortfolioEvent struct {
	SessionID  string    `json:"session_id"`
	Operation  string    `json:"operation"`
	Index      *int      `json:"index,omitempty"`
	Field      string    `json:"field,omitempty"`
	Value      *float64  `json:"value,omitempty"`
	Total      float64   `json:"total_after_tax_return"`
	GrantCount int       `json:"grant_count"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewPortfolioEvent creates an event stamped with the current time.
func NewPortfolioEvent(sessionID, operation string, total float64, grantCount int) *PortfolioEvent {
	return &PortfolioEvent{
		SessionID:  sessionID,
		Operation:  operation,
		Total:      total,
		GrantCount: grantCount,
		Timestamp:  time.Now().UTC(),
	}
}

// WithIndex records which grant changed.
func (e *PortfolioEvent) WithIndex(index int) *PortfolioEvent {
	e.Index = &index
	return e
}

// WithChange records the field and its new value.
func (e *PortfolioEvent) WithChange(field string, value float64) *PortfolioEvent {
	e.Field = field
	e.Value = &value
	return e
}

// ToJSON converts the message to JSON bytes
func (e *PortfolioEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// PortfolioEventFromJSON decodes a published event.
func PortfolioEventFromJSON(data []byte) (*PortfolioEvent, error) {
	var ev PortfolioEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
