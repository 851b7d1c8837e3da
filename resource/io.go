package resource

import (
	"context"
	"io"
)

// ThrottledWriter applies the controller's transfer limit to every
// write. A nil controller passes writes through untouched.
type ThrottledWriter struct {
	ctx context.Context
	c   *Controller
	w   io.Writer
}

// NewThrottledWriter wraps w with the controller's transfer limit.
func NewThrottledWriter(ctx context.Context, c *Controller, w io.Writer) *ThrottledWriter {
	return &ThrottledWriter{ctx: ctx, c: c, w: w}
}

func (t *ThrottledWriter) Write(p []byte) (int, error) {
	if err := t.c.WaitTransfer(t.ctx, len(p)); err != nil {
		return 0, err
	}
	return t.w.Write(p)
}

// ThrottledReader applies the controller's transfer limit to every
// read. The limiter is charged for the buffer size before the read, so
// short reads may slightly overcount.
type ThrottledReader struct {
	ctx context.Context
	c   *Controller
	r   io.Reader
}

// NewThrottledReader wraps r with the controller's transfer limit.
func NewThrottledReader(ctx context.Context, c *Controller, r io.Reader) *ThrottledReader {
	return &ThrottledReader{ctx: ctx, c: c, r: r}
}

func (t *ThrottledReader) Read(p []byte) (int, error) {
	if err := t.c.WaitTransfer(t.ctx, len(p)); err != nil {
		return 0, err
	}
	return t.r.Read(p)
}
