package odm

import "strconv"

// Counter is a mutable integer. Increment and Decrement change it in place;
// Add and Sub follow ordinary arithmetic and return a new Counter, leaving
// the receiver untouched.
type Counter struct {
	value int64
}

// NewCounter returns a counter starting at v.
func NewCounter(v int64) *Counter {
	return &Counter{value: v}
}

// Value returns the current count.
func (c *Counter) Value() int64 { return c.value }

// step returns the sum of n, or 1 when n is empty.
func step(n []int64) int64 {
	if len(n) == 0 {
		return 1
	}
	var sum int64
	for _, v := range n {
		sum += v
	}
	return sum
}

// Increment adds n in place, or 1 when n is omitted, and returns the
// counter for chaining.
func (c *Counter) Increment(n ...int64) *Counter {
	c.value += step(n)
	return c
}

// Decrement subtracts n in place, or 1 when n is omitted, and returns the
// counter for chaining.
func (c *Counter) Decrement(n ...int64) *Counter {
	c.value -= step(n)
	return c
}

// Add returns a new counter holding c + n.
func (c *Counter) Add(n int64) *Counter { return NewCounter(c.value + n) }

// Sub returns a new counter holding c - n.
func (c *Counter) Sub(n int64) *Counter { return NewCounter(c.value - n) }

func (c *Counter) Render() string { return strconv.FormatInt(c.value, 10) }

// Truthy reports whether the count is non-zero.
func (c *Counter) Truthy() bool { return c.value != 0 }
