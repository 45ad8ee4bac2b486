package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	return NewRegistry(newTestMachine)
}

func TestAcquireCreatesAndReusesSession(t *testing.T) {
	r := newTestRegistry()
	key := Key{VisitorID: "v1", SessionID: "tab1"}

	s1, release, err := r.Acquire(key)
	require.NoError(t, err)
	offer(t, s1.Machine(), true)
	release()

	s2, release, err := r.Acquire(key)
	require.NoError(t, err)
	defer release()
	assert.Same(t, s1, s2)
	assert.True(t, s2.Machine().EnrollmentOffered())
	assert.Equal(t, 1, r.Len())
}

func TestSessionsAreIsolated(t *testing.T) {
	r := newTestRegistry()
	a, releaseA, err := r.Acquire(Key{VisitorID: "v1", SessionID: "tab1"})
	require.NoError(t, err)
	defer releaseA()
	b, releaseB, err := r.Acquire(Key{VisitorID: "v1", SessionID: "tab2"})
	require.NoError(t, err)
	defer releaseB()

	offer(t, a.Machine(), true)
	assert.False(t, b.Machine().EnrollmentOffered())
	assert.Empty(t, b.Machine().Turns())
}

func TestAcquireBusySessionConflicts(t *testing.T) {
	r := newTestRegistry()
	key := Key{VisitorID: "v1", SessionID: "tab1"}

	_, release, err := r.Acquire(key)
	require.NoError(t, err)

	_, _, err = r.Acquire(key)
	assert.True(t, errdefs.IsConflict(err))

	release()
	release() // idempotent
	_, release, err = r.Acquire(key)
	require.NoError(t, err)
	release()
}

func TestAcquireRejectsIncompleteKey(t *testing.T) {
	r := newTestRegistry()
	_, _, err := r.Acquire(Key{VisitorID: "v1"})
	assert.True(t, errdefs.IsInvalidArgument(err))
}

func TestConcurrentAcquireSerializes(t *testing.T) {
	r := newTestRegistry()
	key := Key{VisitorID: "v1", SessionID: "tab1"}

	var wg sync.WaitGroup
	var mu sync.Mutex
	held, conflicts := 0, 0
	start := make(chan struct{})
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, release, err := r.Acquire(key)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				conflicts++
				return
			}
			held++
			// Keep holding so that others observe the session as busy.
			go func() {
				time.Sleep(10 * time.Millisecond)
				release()
			}()
		}()
	}
	close(start)
	wg.Wait()
	assert.Equal(t, 20, held+conflicts)
	assert.GreaterOrEqual(t, held, 1)
}

func TestSweepRemovesIdleSessions(t *testing.T) {
	r := newTestRegistry()
	now := time.Now()
	r.now = func() time.Time { return now }

	_, release, err := r.Acquire(Key{VisitorID: "v1", SessionID: "old"})
	require.NoError(t, err)
	release()

	now = now.Add(time.Hour)
	_, releaseFresh, err := r.Acquire(Key{VisitorID: "v1", SessionID: "fresh"})
	require.NoError(t, err)
	releaseFresh()

	expired := r.Sweep(30 * time.Minute)
	assert.Equal(t, []Key{{VisitorID: "v1", SessionID: "old"}}, expired)
	assert.Equal(t, 1, r.Len())
}

func TestSweepKeepsBusySessions(t *testing.T) {
	r := newTestRegistry()
	now := time.Now()
	r.now = func() time.Time { return now }

	_, release, err := r.Acquire(Key{VisitorID: "v1", SessionID: "busy"})
	require.NoError(t, err)
	defer release()

	now = now.Add(time.Hour)
	assert.Empty(t, r.Sweep(time.Minute))
	assert.Equal(t, 1, r.Len())
}

func TestRunSweeperStopsOnCancel(t *testing.T) {
	r := newTestRegistry()
	now := time.Now()
	r.now = func() time.Time { return now }
	key := Key{VisitorID: "v1", SessionID: "tab1"}
	_, release, err := r.Acquire(key)
	require.NoError(t, err)
	release()
	now = now.Add(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	expired := make(chan Key, 1)
	done := make(chan error, 1)
	go func() {
		done <- RunSweeper(ctx, r, time.Minute, 5*time.Millisecond, func(k Key) { expired <- k })
	}()

	select {
	case k := <-expired:
		assert.Equal(t, key, k)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not expire the idle session")
	}
	cancel()
	assert.NoError(t, <-done)
}

func TestRunSweeperDisabled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, RunSweeper(ctx, newTestRegistry(), 0, 0, nil))
}
