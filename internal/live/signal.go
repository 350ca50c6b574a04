package live

import (
	"context"
	"time"
)

type signalKind int

const (
	signalTopic signalKind = iota + 1
	signalRefetch
)

// Signal is an invalidation: a topic notification or a refetch request.
type Signal struct {
	kind  signalKind
	topic string
}

// Topic is the signal delivered for a published topic.
func Topic(t string) Signal {
	return Signal{kind: signalTopic, topic: t}
}

// Refetch is the signal carried by timer messages.
var Refetch = Signal{kind: signalRefetch}

// TopicName returns the topic of a topic signal.
func (s Signal) TopicName() (string, bool) {
	return s.topic, s.kind == signalTopic
}

func (s Signal) String() string {
	switch s.kind {
	case signalTopic:
		return "topic:" + s.topic
	case signalRefetch:
		return "refetch"
	default:
		return "invalid"
	}
}

// Meta is optional signal metadata.
type Meta struct {
	// RequestedAt is when a deferred refetch was requested. Zero means unset.
	RequestedAt time.Time
}

// Message is one unit of work for the session loop: a signal for some
// assignment keys, or a call to run on the loop.
type Message struct {
	Signal Signal
	// Keys is nil for every registered key.
	Keys []string
	Meta *Meta

	call  func(ctx context.Context) error
	reply chan error
}
