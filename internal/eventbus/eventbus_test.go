package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type ping struct{ n int }
type pong struct{}

func TestPublishReachesTypedSubscribers(t *testing.T) {
	Use(New())
	t.Cleanup(func() { Use(nil) })

	var a, b []int
	unsubA := Subscribe(func(ctx context.Context, e ping) { a = append(a, e.n) })
	Subscribe(func(ctx context.Context, e ping) { b = append(b, e.n) })
	Subscribe(func(ctx context.Context, e pong) { t.Fatalf("pong handler got an event") })

	Publish(context.Background(), ping{n: 1})
	unsubA()
	unsubA()
	Publish(context.Background(), ping{n: 2})

	require.Equal(t, []int{1}, a)
	require.Equal(t, []int{1, 2}, b)
}

func TestWithoutBusIsNoop(t *testing.T) {
	Use(nil)
	called := false
	unsub := Subscribe(func(ctx context.Context, e ping) { called = true })
	Publish(context.Background(), ping{})
	unsub()
	require.False(t, called)
}
