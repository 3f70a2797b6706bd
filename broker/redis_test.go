package broker_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/susautw/curium-go/broker"
)

// newTestClient skips the test unless CURIUM_TEST_REDIS_ADDR points at a
// reachable Redis instance; these are integration tests, not unit tests.
func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("CURIUM_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CURIUM_TEST_REDIS_ADDR not set, skipping Redis integration test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisAdapter_ConnectClaimsDistinctIdentities(t *testing.T) {
	client := newTestClient(t)
	cfg := broker.DefaultRedisAdapterConfig()
	cfg.Namespace = "curium-test"

	a1 := broker.NewRedisAdapter(client, cfg, nil)
	a2 := broker.NewRedisAdapter(client, cfg, nil)
	defer a1.Close(context.Background())
	defer a2.Close(context.Background())

	ctx := context.Background()
	nid1, err := a1.Connect(ctx)
	require.NoError(t, err)
	nid2, err := a2.Connect(ctx)
	require.NoError(t, err)
	require.NotEqual(t, nid1, nid2)
}

func TestRedisAdapter_SendRecvRoundTrip(t *testing.T) {
	client := newTestClient(t)
	cfg := broker.DefaultRedisAdapterConfig()
	cfg.Namespace = "curium-test"

	sender := broker.NewRedisAdapter(client, cfg, nil)
	receiver := broker.NewRedisAdapter(client, cfg, nil)
	defer sender.Close(context.Background())
	defer receiver.Close(context.Background())

	ctx := context.Background()
	_, err := sender.Connect(ctx)
	require.NoError(t, err)
	_, err = receiver.Connect(ctx)
	require.NoError(t, err)

	require.NoError(t, receiver.Join(ctx, "room"))
	time.Sleep(50 * time.Millisecond) // let PSUBSCRIBE land before publishing

	n, err := sender.Send(ctx, []byte("hello"), []string{"room"})
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 1)

	got, err := receiver.Recv(ctx, true, time.Second)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)
}
