// Package events broadcasts visibility changes to in-process or cross-process
// subscribers.
//
// Delivery is best effort: a subscriber whose buffer is full misses the
// event. Publishers never block on slow subscribers.
package events

import "context"

// Subscriber receives published values.
type Subscriber[T any] interface {
	// Subscribe returns a channel of values and a function that ends the
	// subscription and closes the channel. The function is safe to call
	// more than once.
	Subscribe() (<-chan T, func())
}

// Notifier is a Subscriber that can also publish.
type Notifier[T any] interface {
	Subscriber[T]

	// Notify delivers v to every current subscriber.
	Notify(ctx context.Context, v T) error
}
