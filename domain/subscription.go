package domain

// Subscription is a live stream of decoded events plus the handle to
// drop it. Unsubscribe is idempotent and closes Stream.
type Subscription[T any] struct {
	Stream      chan T
	Unsubscribe func()
	Topic       string
}
