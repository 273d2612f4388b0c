// Package feed defines the boundary between the projections and the chat
// backend: a closed set of updates, requests and responses, a Client that
// carries them, and a lossless fan-out Hub for backends to publish on.
package feed

import "context"

// Client is the backend surface consumed by the projections.
type Client interface {
	// Call issues one request and waits for its response.
	Call(ctx context.Context, req Request) (Response, error)
	// Subscribe returns an ordered stream of updates. The stream never drops
	// updates; a slow subscriber slows the publisher down. The returned func
	// unsubscribes.
	Subscribe(bufSize int) (<-chan Update, func())
}
