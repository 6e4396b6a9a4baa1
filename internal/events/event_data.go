package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// UserCreatedData contains data for UserCreated events
type UserCreatedData struct {
	UserID   string  `json:"user_id"`
	Username string  `json:"username"`
	Cash     float64 `json:"cash"`
}

// EventType returns the event type for UserCreatedData
func (d *UserCreatedData) EventType() EventType {
	return UserCreated
}

// TradeExecutedData contains data for TradeExecuted events
type TradeExecutedData struct {
	UserID    string  `json:"user_id"`
	Ticker    string  `json:"ticker"`
	Side      string  `json:"side"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price"`
	Amount    float64 `json:"amount"`
	CashAfter float64 `json:"cash_after"`
}

// EventType returns the event type for TradeExecutedData
func (d *TradeExecutedData) EventType() EventType {
	return TradeExecuted
}

// SnapshotCapturedData contains data for SnapshotCaptured events
type SnapshotCapturedData struct {
	UserID  string `json:"user_id"`
	Date    string `json:"date"`
	Tickers int    `json:"tickers"`
	Source  string `json:"source"` // "api" or "scheduler"
}

// EventType returns the event type for SnapshotCapturedData
func (d *SnapshotCapturedData) EventType() EventType {
	return SnapshotCaptured
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Key       string  `json:"key"`
	SizeBytes int64   `json:"size_bytes"`
	Duration  float64 `json:"duration_seconds"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// JobFailedData contains data for JobFailed events
type JobFailedData struct {
	Job   string `json:"job"`
	Error string `json:"error"`
}

// EventType returns the event type for JobFailedData
func (d *JobFailedData) EventType() EventType {
	return JobFailed
}

// Event is a published event with typed data
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// MarshalJSON customizes JSON serialization for Event
func (e *Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if e.Data != nil {
		dataBytes, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		aux.Data = dataBytes
	}

	return json.Marshal(aux)
}

// UnmarshalJSON customizes JSON deserialization for Event
func (e *Event) UnmarshalJSON(data []byte) error {
	type Alias Event
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	if len(aux.Data) == 0 || string(aux.Data) == "null" {
		e.Data = nil
		return nil
	}

	var eventData EventData
	switch aux.Type {
	case UserCreated:
		eventData = &UserCreatedData{}
	case TradeExecuted:
		eventData = &TradeExecutedData{}
	case SnapshotCaptured:
		eventData = &SnapshotCapturedData{}
	case BackupCompleted:
		eventData = &BackupCompletedData{}
	case JobFailed:
		eventData = &JobFailedData{}
	default:
		return fmt.Errorf("unknown event type %q", aux.Type)
	}

	if err := json.Unmarshal(aux.Data, eventData); err != nil {
		return err
	}
	e.Data = eventData
	return nil
}
