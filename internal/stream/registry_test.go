package stream

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/optiqlab/scopecore/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// timeout returns a channel that fires before the test deadline; used
// to bound waits in concurrency tests.
func timeout(t *testing.T) <-chan time.Time {
	t.Helper()
	return time.After(5 * time.Second)
}

func TestSubscribeAssignsDistinctIDs(t *testing.T) {
	r := NewRegistry()

	a, err := r.Subscribe("conn-a", 8)
	require.NoError(t, err)
	b, err := r.Subscribe("conn-b", 8)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, r.Len())
}

func TestDuplicateConnectionRejected(t *testing.T) {
	r := NewRegistry()

	_, err := r.Subscribe("conn-a", 8)
	require.NoError(t, err)

	_, err = r.Subscribe("conn-a", 8)
	require.ErrorIs(t, err, types.ErrAlreadySubscribed)
	assert.Equal(t, 1, r.Len())
}

func TestUnsubscribeClosesBuffer(t *testing.T) {
	r := NewRegistry()

	reg, err := r.Subscribe("conn-a", 8)
	require.NoError(t, err)

	removed, err := r.Unsubscribe(reg.ID)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, removed.ID)
	assert.True(t, reg.Buffer.Closed())
	assert.Equal(t, 0, r.Len())

	_, err = r.Unsubscribe(reg.ID)
	require.Error(t, err)
}

func TestRemoveIfUnreachable(t *testing.T) {
	r := NewRegistry()

	reg, err := r.Subscribe("conn-a", 8)
	require.NoError(t, err)

	removed := r.RemoveIfUnreachable("conn-a")
	require.NotNil(t, removed)
	assert.Equal(t, reg.ID, removed.ID)
	assert.True(t, removed.Buffer.Closed())

	assert.Nil(t, r.RemoveIfUnreachable("conn-a"))
	assert.Nil(t, r.RemoveIfUnreachable("never-seen"))
}

func TestSnapshotPreservesSubscriptionOrder(t *testing.T) {
	r := NewRegistry()

	for i := 0; i < 5; i++ {
		_, err := r.Subscribe(fmt.Sprintf("conn-%d", i), 8)
		require.NoError(t, err)
	}

	snap := r.Snapshot()
	require.Len(t, snap, 5)
	for i, reg := range snap {
		assert.Equal(t, fmt.Sprintf("conn-%d", i), reg.ConnectionID)
	}
}

func TestSnapshotUnaffectedByLaterMembershipChanges(t *testing.T) {
	r := NewRegistry()

	a, err := r.Subscribe("conn-a", 8)
	require.NoError(t, err)

	snap := r.Snapshot()

	_, err = r.Subscribe("conn-b", 8)
	require.NoError(t, err)
	_, err = r.Unsubscribe(a.ID)
	require.NoError(t, err)

	require.Len(t, snap, 1)
	assert.Equal(t, "conn-a", snap[0].ConnectionID)
}

func TestUnsubscribedBufferIgnoresFanOutFromOldSnapshot(t *testing.T) {
	r := NewRegistry()

	reg, err := r.Subscribe("conn-a", 8)
	require.NoError(t, err)

	snap := r.Snapshot()
	_, err = r.Unsubscribe(reg.ID)
	require.NoError(t, err)

	// A fan-out pass still holding the old snapshot pushes into the
	// closed buffer; nothing must be retained.
	for _, s := range snap {
		s.Buffer.Push(frame(1))
	}
	assert.Equal(t, 0, reg.Buffer.Len())
}

func TestGet(t *testing.T) {
	r := NewRegistry()

	reg, err := r.Subscribe("conn-a", 8)
	require.NoError(t, err)

	got, ok := r.Get(reg.ID)
	require.True(t, ok)
	assert.Equal(t, "conn-a", got.ConnectionID)

	r.RemoveIfUnreachable("conn-a")
	_, ok = r.Get(reg.ID)
	assert.False(t, ok)
}

func TestCloseAll(t *testing.T) {
	r := NewRegistry()

	a, _ := r.Subscribe("conn-a", 8)
	b, _ := r.Subscribe("conn-b", 8)

	r.CloseAll()
	assert.Equal(t, 0, r.Len())
	assert.True(t, a.Buffer.Closed())
	assert.True(t, b.Buffer.Closed())
}

func TestConcurrentSubscribeUnsubscribeDuringFanOut(t *testing.T) {
	r := NewRegistry()
	stop := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var seq uint64
		for {
			select {
			case <-stop:
				return
			default:
			}
			seq++
			for _, reg := range r.Snapshot() {
				reg.Buffer.Push(frame(seq))
			}
		}
	}()

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				reg, err := r.Subscribe(fmt.Sprintf("conn-%d-%d", w, i), 4)
				if err != nil {
					t.Error(err)
					return
				}
				if i%2 == 0 {
					if _, err := r.Unsubscribe(reg.ID); err != nil {
						t.Error(err)
						return
					}
				} else {
					r.RemoveIfUnreachable(reg.ConnectionID)
				}
			}
		}(w)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	// Let churn and fan-out overlap, then stop the producer.
	time.Sleep(50 * time.Millisecond)
	close(stop)

	select {
	case <-done:
	case <-timeout(t):
		t.Fatal("registry churn deadlocked")
	}
	assert.Equal(t, 0, r.Len())
}
