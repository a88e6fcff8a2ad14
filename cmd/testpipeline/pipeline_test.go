package testpipeline

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rediscore/server/internal/eventloop"
	"github.com/rediscore/server/internal/server"
	"github.com/rediscore/server/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// freePort asks the kernel for an ephemeral port by briefly binding a
// throwaway listener, then releases it before the real server binds the
// same number. Small TOCTOU race, acceptable for a single-process test.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func startServer(t *testing.T) int {
	t.Helper()
	logger := zap.NewNop()
	ks := store.New()
	loop, err := eventloop.New(logger)
	require.NoError(t, err)

	engine := server.NewEngine(ks, logger, nil, "", "")
	engine.BecomeLeader()
	listener := server.NewListener(loop, engine, logger)

	port := freePort(t)
	require.NoError(t, listener.Listen("127.0.0.1", port))

	go loop.Run()
	t.Cleanup(func() {
		loop.Stop()
		listener.Close()
		loop.Close()
	})

	return port
}

func TestPipelining(t *testing.T) {
	port := startServer(t)
	rdb := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("127.0.0.1:%d", port),
	})
	defer rdb.Close()

	ctx := context.Background()
	require.Eventually(t, func() bool {
		return rdb.Ping(ctx).Err() == nil
	}, 2*time.Second, 10*time.Millisecond, "server never became reachable")

	count := 10_000
	pipe := rdb.Pipeline()

	for i := 0; i < count; i++ {
		key := fmt.Sprintf("pipe_key_%d", i)
		val := fmt.Sprintf("val_%d", i)
		pipe.Set(ctx, key, val, 0)
	}

	getResults := make([]*redis.StringCmd, count)
	for i := 0; i < count; i++ {
		key := fmt.Sprintf("pipe_key_%d", i)
		getResults[i] = pipe.Get(ctx, key)
	}

	start := time.Now()
	_, err := pipe.Exec(ctx)
	elapsed := time.Since(start)

	assert.NoError(t, err, "Pipeline execution failed")
	t.Logf("pipeline executed in %v", elapsed)

	for i := 0; i < count; i++ {
		expected := fmt.Sprintf("val_%d", i)
		val, err := getResults[i].Result()

		assert.NoError(t, err)
		assert.Equal(t, expected, val, "Key %d mismatch", i)
	}
}
