// Package resource bounds the memory, concurrency and IO that expensive
// index operations (batch encodes, snapshot transfers) may consume.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Limits configures a Controller. Zero values mean unlimited, except
// MaxBackgroundJobs which defaults to 1.
type Limits struct {
	// MaxMemoryBytes caps the total bytes reserved for in-flight record
	// buffers. Reservations beyond the cap block.
	MaxMemoryBytes int64

	// MaxBackgroundJobs caps the number of concurrent background jobs
	// such as snapshot uploads.
	MaxBackgroundJobs int64

	// TransferBytesPerSec throttles snapshot reads and writes.
	TransferBytesPerSec int64
}

// Controller enforces Limits. A nil *Controller is valid and enforces
// nothing, so callers never need to branch on configuration.
type Controller struct {
	memSem   *semaphore.Weighted
	memUsed  atomic.Int64
	jobSem   *semaphore.Weighted
	transfer *rate.Limiter
}

// NewController creates a controller for the given limits.
func NewController(limits Limits) *Controller {
	if limits.MaxBackgroundJobs <= 0 {
		limits.MaxBackgroundJobs = 1
	}

	c := &Controller{
		jobSem: semaphore.NewWeighted(limits.MaxBackgroundJobs),
	}

	if limits.MaxMemoryBytes > 0 {
		c.memSem = semaphore.NewWeighted(limits.MaxMemoryBytes)
	}

	if limits.TransferBytesPerSec > 0 {
		c.transfer = rate.NewLimiter(rate.Limit(limits.TransferBytesPerSec), int(limits.TransferBytesPerSec))
	}

	return c
}

// Reserve blocks until n bytes of memory budget are available, then
// reserves them. The returned release function must be called exactly
// once; it is safe to call on the zero reservation.
func (c *Controller) Reserve(ctx context.Context, n int64) (func(), error) {
	if c == nil || n <= 0 {
		return func() {}, nil
	}

	if c.memSem != nil {
		if err := c.memSem.Acquire(ctx, n); err != nil {
			return nil, err
		}
	}

	c.memUsed.Add(n)

	var released atomic.Bool
	return func() {
		if !released.CompareAndSwap(false, true) {
			return
		}
		c.memUsed.Add(-n)
		if c.memSem != nil {
			c.memSem.Release(n)
		}
	}, nil
}

// TryReserve reserves n bytes without blocking. It returns a release
// function and true on success, or nil and false if the budget is
// exhausted.
func (c *Controller) TryReserve(n int64) (func(), bool) {
	if c == nil || n <= 0 {
		return func() {}, true
	}

	if c.memSem != nil && !c.memSem.TryAcquire(n) {
		return nil, false
	}

	c.memUsed.Add(n)

	var released atomic.Bool
	return func() {
		if !released.CompareAndSwap(false, true) {
			return
		}
		c.memUsed.Add(-n)
		if c.memSem != nil {
			c.memSem.Release(n)
		}
	}, true
}

// MemoryInUse returns the bytes currently reserved.
func (c *Controller) MemoryInUse() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// BeginJob blocks until a background job slot is free and claims it.
// The returned release function must be called when the job finishes.
func (c *Controller) BeginJob(ctx context.Context) (func(), error) {
	if c == nil {
		return func() {}, nil
	}
	if err := c.jobSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	var released atomic.Bool
	return func() {
		if released.CompareAndSwap(false, true) {
			c.jobSem.Release(1)
		}
	}, nil
}

// WaitTransfer blocks until the transfer limiter admits n bytes.
func (c *Controller) WaitTransfer(ctx context.Context, n int) error {
	if c == nil || c.transfer == nil || n <= 0 {
		return nil
	}
	return c.transfer.WaitN(ctx, n)
}
