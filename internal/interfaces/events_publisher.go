package interfaces

//go:generate mockgen -destination=mocks/mock_events_publisher.go -package=mock_interfaces -source=events_publisher.go EventPublisher

// EventPublisher emits domain events to the outside world. Implementations
// must be safe for use after the triggering posting has been committed; the
// ledger is the source of truth and publish failures never roll it back.
type EventPublisher interface {
	Publish(topic string, event any) error
}
