package storage

import (
	"sync/atomic"
)

// Counter converts transferred byte counts into ProgressFunc calls.
//
// It is safe for concurrent use: multipart uploads report parts from several
// goroutines at once.
type Counter struct {
	total int64
	done  atomic.Int64
	fn    ProgressFunc
}

// NewCounter returns a counter for a transfer of total bytes.
func NewCounter(total int64, fn ProgressFunc) *Counter {
	return &Counter{
		total: total,
		fn:    fn,
	}
}

// Add records n more transferred bytes and reports the new fraction.
func (c *Counter) Add(n int) {
	if n <= 0 {
		return
	}

	done := c.done.Add(int64(n))
	if c.fn == nil || c.total <= 0 {
		return
	}

	fraction := float64(done) / float64(c.total)
	if fraction > 1 {
		fraction = 1
	}

	c.fn(fraction)
}

// Read implements io.Reader so the counter can serve as a transfer hook that is
// fed the bytes already sent; it never returns an error.
func (c *Counter) Read(p []byte) (int, error) {
	c.Add(len(p))

	return len(p), nil
}
