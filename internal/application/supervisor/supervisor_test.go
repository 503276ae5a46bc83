package supervisor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisor_StartIsIdempotent(t *testing.T) {
	s := New()
	key := Key{UserAddress: "0xuser", Kind: KindCopy}
	var starts int32

	run := func(ctx context.Context) {
		atomic.AddInt32(&starts, 1)
		<-ctx.Done()
	}

	assert.True(t, s.Start(context.Background(), key, run))
	assert.False(t, s.Start(context.Background(), key, run), "starting an already-running key must be a no-op")
	assert.True(t, s.IsRunning(key))
	assert.Equal(t, int32(1), atomic.LoadInt32(&starts))

	s.Stop(key)
	require.Eventually(t, func() bool { return !s.IsRunning(key) }, time.Second, 10*time.Millisecond)
}

func TestSupervisor_StopIsFireAndForget(t *testing.T) {
	s := New()
	key := Key{UserAddress: "0xuser", Kind: KindArb}
	started := make(chan struct{})

	run := func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	}

	s.Start(context.Background(), key, run)
	<-started

	stopped := s.Stop(key)
	assert.True(t, stopped)
	assert.False(t, s.Stop(Key{UserAddress: "0xuser", Kind: KindFund}), "stopping a key with no worker returns false")
}

func TestSupervisor_BroadcastsStatusTransitions(t *testing.T) {
	s := New()
	key := Key{UserAddress: "0xuser", Kind: KindPositions}
	events, cancel := s.Subscribe()
	defer cancel()

	release := make(chan struct{})
	run := func(ctx context.Context) {
		<-release
	}

	s.Start(context.Background(), key, run)
	ev := <-events
	assert.Equal(t, StatusRunning, ev.Status)
	assert.Equal(t, key, ev.Key)

	close(release)
	ev = <-events
	assert.Equal(t, StatusStopped, ev.Status)
}

func TestSupervisor_StopAllWaitsForWorkers(t *testing.T) {
	s := New()
	var running int32

	for i := 0; i < 3; i++ {
		key := Key{UserAddress: "user", Kind: Kind(rune('a' + i))}
		s.Start(context.Background(), key, func(ctx context.Context) {
			atomic.AddInt32(&running, 1)
			<-ctx.Done()
			atomic.AddInt32(&running, -1)
		})
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&running) == 3 }, time.Second, 10*time.Millisecond)
	s.StopAll()
	assert.Equal(t, int32(0), atomic.LoadInt32(&running))
}
