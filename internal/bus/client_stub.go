// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !nats

package bus

import (
	"context"
	"fmt"

	gobreaker "github.com/sony/gobreaker/v2"
)

// Publisher is a stub when NATS dependencies are not compiled in.
// Build with -tags=nats to enable the full publisher.
type Publisher struct {
	circuitBreaker *gobreaker.CircuitBreaker[interface{}]
}

// NewPublisher returns an error: build with -tags=nats.
func NewPublisher(cfg PublisherConfig, logger interface{}) (*Publisher, error) {
	return nil, fmt.Errorf("bus: NATS publisher not available: build with -tags=nats")
}

// SetCircuitBreaker configures the breaker wrapped around Publish.
func (p *Publisher) SetCircuitBreaker(cb *gobreaker.CircuitBreaker[interface{}]) {
	p.circuitBreaker = cb
}

// Publish is a stub that always errors.
func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	return fmt.Errorf("bus: NATS publisher not available: build with -tags=nats")
}

// Ping always reports the stub as unreachable.
func (p *Publisher) Ping() error {
	return fmt.Errorf("bus: NATS publisher not available: build with -tags=nats")
}

// Close is a no-op stub.
func (p *Publisher) Close() error { return nil }

// Subscriber is a stub when NATS dependencies are not compiled in.
type Subscriber struct{}

// NewSubscriber returns an error: build with -tags=nats.
func NewSubscriber(cfg SubscriberConfig, logger interface{}) (*Subscriber, error) {
	return nil, fmt.Errorf("bus: NATS subscriber not available: build with -tags=nats")
}

// Handle is a stub that always errors.
func (s *Subscriber) Handle(ctx context.Context, topic string, fn func(ctx context.Context, payload []byte) error) error {
	return fmt.Errorf("bus: NATS subscriber not available: build with -tags=nats")
}

// Close is a no-op stub.
func (s *Subscriber) Close() error { return nil }

// NewCircuitBreaker creates the breaker guarding Publish calls. This is
// available unconditionally since gobreaker has no NATS dependency.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[interface{}] {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
	}
	return gobreaker.NewCircuitBreaker[interface{}](settings)
}
