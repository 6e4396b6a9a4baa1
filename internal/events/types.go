// Package events provides in-process publish/subscribe for domain events.
package events

// EventType identifies a kind of domain event
type EventType string

const (
	// UserCreated is emitted after signup
	UserCreated EventType = "USER_CREATED"
	// TradeExecuted is emitted after a buy or sell is committed
	TradeExecuted EventType = "TRADE_EXECUTED"
	// SnapshotCaptured is emitted after a snapshot is stored
	SnapshotCaptured EventType = "SNAPSHOT_CAPTURED"
	// BackupCompleted is emitted after a database backup is uploaded
	BackupCompleted EventType = "BACKUP_COMPLETED"
	// JobFailed is emitted when a scheduled job returns an error
	JobFailed EventType = "JOB_FAILED"
)

// AllEventTypes lists every event type the bus can carry
var AllEventTypes = []EventType{
	UserCreated,
	TradeExecuted,
	SnapshotCaptured,
	BackupCompleted,
	JobFailed,
}
