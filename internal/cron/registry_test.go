package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedJob struct {
	name string
}

func (j *namedJob) Name() string              { return j.name }
func (j *namedJob) Run(context.Context) error { return nil }

func TestRegistryKeepsRunOrder(t *testing.T) {
	registry := NewRegistry(&namedJob{name: "snapshot-ingestion"}, nil)
	require.NoError(t, registry.Register(&namedJob{name: "battery-monitor"}))
	require.NoError(t, registry.Register(&namedJob{name: "photo-rebalance"}))

	assert.Equal(t, []string{"snapshot-ingestion", "battery-monitor", "photo-rebalance"}, registry.Names())

	jobs := registry.Jobs()
	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0])
}

func TestRegistryRejectsBadJobs(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&namedJob{name: "battery-monitor"}))

	assert.Error(t, registry.Register(&namedJob{name: "battery-monitor"}))
	assert.Error(t, registry.Register(&namedJob{}))
	assert.Error(t, registry.Register(nil))
	assert.Len(t, registry.Jobs(), 1)

	assert.Panics(t, func() {
		NewRegistry(&namedJob{name: "a"}, &namedJob{name: "a"})
	})
}
