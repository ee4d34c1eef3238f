package watcher

// EventType defines the type of event being broadcast.
type EventType string

const (
	EventRefreshStarted  EventType = "refresh_started"
	EventBalancesUpdated EventType = "balances_updated"
	EventFetchFailed     EventType = "fetch_failed"
)

// Event represents a watcher event. Data is always a Snapshot.
type Event struct {
	Type EventType `json:"type"`
	Data Snapshot  `json:"data"`
}

// Subscriber is a channel that receives events.
type Subscriber chan Event
