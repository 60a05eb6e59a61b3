package wavechan

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_RunsInPushOrder(t *testing.T) {
	var (
		d   dispatcher
		mu  sync.Mutex
		got []int
	)

	for i := 0; i < 1000; i++ {
		i := i
		d.push(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1000
	}, time.Second, time.Millisecond)

	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestDispatcher_CallbackMayPush(t *testing.T) {
	var d dispatcher
	done := make(chan struct{})

	d.push(func() {
		d.push(func() { close(done) })
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("nested push never ran")
	}
}
