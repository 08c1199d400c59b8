//go:build integration

package worker

// Run with: go test -tags integration ./internal/worker/... -v

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Ambrosio03/TFG/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()
	rdC, err := tcRedis.RunContainer(ctx, testcontainers.WithImage("redis:7-alpine"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	url, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestPool_ProcessesAndDeadLetters(t *testing.T) {
	rdb := startRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sent, failed int32
	pool := NewPool(rdb, 2)
	pool.MaxAttempts = 2
	pool.Register(JobEmail, func(_ context.Context, raw json.RawMessage) error {
		atomic.AddInt32(&sent, 1)
		return nil
	})
	pool.Register(JobComprobante, func(_ context.Context, raw json.RawMessage) error {
		atomic.AddInt32(&failed, 1)
		return errors.New("pdf renderer down")
	})
	pool.Start(ctx)

	d := NewDispatcher(rdb)
	require.NoError(t, d.EnqueueEmail(ctx, EmailJobPayload{ToEmail: "ana@example.com"}))
	require.NoError(t, d.EnqueueComprobante(ctx, ComprobanteJobPayload{PedidoID: "p-1"}))

	require.Eventually(t, func() bool {
		return DLQLengths(ctx, rdb)[QueueComprobante] == 1
	}, 20*time.Second, 100*time.Millisecond)

	assert.EqualValues(t, 1, atomic.LoadInt32(&sent))
	assert.EqualValues(t, 2, atomic.LoadInt32(&failed))
	assert.EqualValues(t, 0, DLQLengths(ctx, rdb)[QueueEmail])

	raw, err := rdb.LIndex(ctx, DLQPrefix+QueueComprobante, 0).Result()
	require.NoError(t, err)
	var entry DLQEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &entry))
	assert.Equal(t, JobComprobante, entry.JobType)
	assert.Equal(t, 2, entry.Attempts)
	assert.Equal(t, "pdf renderer down", entry.Reason)

	cancel()
	pool.Wait()
}
