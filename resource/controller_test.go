package resource

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Reserve(t *testing.T) {
	c := NewController(Limits{MaxMemoryBytes: 100})

	release50, err := c.Reserve(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), c.MemoryInUse())

	release40, err := c.Reserve(context.Background(), 40)
	require.NoError(t, err)
	assert.Equal(t, int64(90), c.MemoryInUse())

	_, ok := c.TryReserve(20)
	assert.False(t, ok)
	assert.Equal(t, int64(90), c.MemoryInUse())

	// Over budget, blocks until timeout.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.Reserve(ctx, 20)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release50()
	assert.Equal(t, int64(40), c.MemoryInUse())

	release20, err := c.Reserve(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, int64(60), c.MemoryInUse())

	release20()
	release40()
	assert.Equal(t, int64(0), c.MemoryInUse())
}

func TestController_ReleaseIdempotent(t *testing.T) {
	c := NewController(Limits{MaxMemoryBytes: 100})

	release, err := c.Reserve(context.Background(), 60)
	require.NoError(t, err)

	release()
	release()
	assert.Equal(t, int64(0), c.MemoryInUse())

	_, ok := c.TryReserve(100)
	assert.True(t, ok)
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Limits{})

	release, err := c.Reserve(context.Background(), 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), c.MemoryInUse())

	release()
	assert.Equal(t, int64(0), c.MemoryInUse())
}

func TestController_NilIsUnlimited(t *testing.T) {
	var c *Controller

	release, err := c.Reserve(context.Background(), 1<<40)
	require.NoError(t, err)
	release()

	done, err := c.BeginJob(context.Background())
	require.NoError(t, err)
	done()

	require.NoError(t, c.WaitTransfer(context.Background(), 1<<30))
	assert.Equal(t, int64(0), c.MemoryInUse())
}

func TestController_Jobs(t *testing.T) {
	c := NewController(Limits{MaxBackgroundJobs: 2})

	done1, err := c.BeginJob(context.Background())
	require.NoError(t, err)
	done2, err := c.BeginJob(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.BeginJob(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	done1()

	done3, err := c.BeginJob(context.Background())
	require.NoError(t, err)

	done2()
	done3()
}

func TestThrottledWriter(t *testing.T) {
	// Generous rate so the test never actually sleeps long.
	c := NewController(Limits{TransferBytesPerSec: 1 << 20})

	var buf bytes.Buffer
	w := NewThrottledWriter(context.Background(), c, &buf)

	n, err := w.Write([]byte("throttled"))
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.Equal(t, "throttled", buf.String())
}

func TestThrottledWriter_Canceled(t *testing.T) {
	c := NewController(Limits{TransferBytesPerSec: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	w := NewThrottledWriter(ctx, c, &buf)

	_, err := w.Write(make([]byte, 1))
	assert.Error(t, err)
	assert.Zero(t, buf.Len())
}

func TestThrottledReader(t *testing.T) {
	c := NewController(Limits{TransferBytesPerSec: 1 << 20})

	r := NewThrottledReader(context.Background(), c, bytes.NewReader([]byte("payload")))

	p := make([]byte, 7)
	n, err := r.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, "payload", string(p))
}
