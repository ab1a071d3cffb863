package main

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

// broker is the slice of Pub/Sub the publisher needs. Topic returns nil when
// no publisher can be built for the name.
type broker interface {
	Ping(context.Context) error
	Topic(name string) publisher
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type pubsubClient interface {
	Ping(context.Context) error
	LifecyclePublisher() *gcppubsub.Publisher
	Publisher(name string) *gcppubsub.Publisher
}

// gcpBroker reuses the long-lived lifecycle publisher and opens others on
// demand.
type gcpBroker struct {
	client         pubsubClient
	lifecycleTopic string
}

func newGCPBroker(client pubsubClient, lifecycleTopic string) *gcpBroker {
	return &gcpBroker{client: client, lifecycleTopic: lifecycleTopic}
}

func (b *gcpBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx)
}

func (b *gcpBroker) Topic(name string) publisher {
	var p *gcppubsub.Publisher
	if name == b.lifecycleTopic {
		p = b.client.LifecyclePublisher()
	} else {
		p = b.client.Publisher(name)
	}
	if p == nil {
		return nil
	}
	return gcpPublisher{p}
}

type gcpPublisher struct {
	p *gcppubsub.Publisher
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return gcpResult{g.p.Publish(ctx, msg)}
}

type gcpResult struct {
	r *gcppubsub.PublishResult
}

func (g gcpResult) Get(ctx context.Context) (string, error) {
	if g.r == nil {
		return "", errors.New("publish result is nil")
	}
	return g.r.Get(ctx)
}
