package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DispatchClient, c.DispatchMode)
	assert.Equal(t, DedupeMemory, c.DedupeBackend)
	assert.Equal(t, 15*time.Second, c.DedupeWindow)
	assert.Equal(t, 400, c.FanoutChunk)
	assert.Equal(t, 100, c.FeedLimit)
	assert.Equal(t, 5*time.Second, c.IdentityTimeout)
	assert.Equal(t, "notify.pending-dispatch", c.KafkaHandoffTopic)
	assert.Empty(t, c.KafkaBrokers)
	assert.False(t, c.ServerDispatch())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("NOTIFY_DISPATCH_MODE", "SERVER")
	t.Setenv("NOTIFY_STORE", "memory")
	t.Setenv("NOTIFY_DEDUPE_BACKEND", "redis")
	t.Setenv("NOTIFY_DEDUPE_WINDOW", "30s")
	t.Setenv("NOTIFY_FANOUT_CHUNK", "250")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	c, err := Load()
	require.NoError(t, err)
	assert.True(t, c.ServerDispatch())
	assert.Equal(t, StoreMemory, c.Store)
	assert.Equal(t, DedupeRedis, c.DedupeBackend)
	assert.Equal(t, 30*time.Second, c.DedupeWindow)
	assert.Equal(t, 250, c.FanoutChunk)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.KafkaBrokers)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("NOTIFY_DISPATCH_MODE", "batch")
	t.Setenv("NOTIFY_STORE", "sqlite")
	t.Setenv("NOTIFY_FANOUT_CHUNK", "900")
	t.Setenv("NOTIFY_DEDUPE_WINDOW", "-1s")
	t.Setenv("NOTIFY_FEED_LIMIT", "abc")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DispatchClient, c.DispatchMode)
	assert.Equal(t, StorePostgres, c.Store)
	assert.Equal(t, 400, c.FanoutChunk, "chunks above the batch cap are rejected")
	assert.Equal(t, 15*time.Second, c.DedupeWindow)
	assert.Equal(t, 100, c.FeedLimit)
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitCSV(" a , ,b"))
	assert.Equal(t, []string{"*"}, splitCSV(" , "))
}
