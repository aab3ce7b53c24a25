package audit

import "context"

// Store persists audit events. Implementations decide durability: the memory
// store keeps events in process, the postgres store writes through the
// transactional outbox so Kafka remains the source of truth.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
