package manager

// Event represents a lifecycle event emitted by the manager or supervisor.
// Minimal and stable: name, model id, assignment, optional key/values.
type Event struct {
	Name    string
	ModelID string
	GPU     string
	Fields  map[string]any
}

// EventPublisher receives lifecycle events. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
