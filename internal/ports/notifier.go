package ports

import "context"

// Notifier delivers best-effort external messages about trade events.
//
// Send never returns an error: delivery failure is reported as false and must
// be logged by the implementation, never escalated. Implementers must not make
// notification failures fatal: trade state changes never roll back or block
// on a notification.
type Notifier interface {
	Send(ctx context.Context, message string) bool
}
