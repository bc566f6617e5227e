package queue

import "context"

// HeaderRequestID carries the caller's request id on NATS messages.
const HeaderRequestID = "Request-Id"

// Message is one inbound request.
type Message struct {
	Subject   string
	RequestID string
	Data      []byte
}

// Handler turns a request into the reply body. Handlers report failures
// inside the reply; the transport does not retry.
type Handler func(ctx context.Context, msg Message) []byte

// Responder serves request/reply traffic on a subject.
type Responder interface {
	// Serve blocks until ctx is done. Subscribers sharing group split the
	// load between them.
	Serve(ctx context.Context, subject, group string, handler Handler) error
}
