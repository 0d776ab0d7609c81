package pipeline

import "time"

// leadClock hands out millisecond timestamps that never go backwards, even
// if the wall clock does.
type leadClock struct {
	now  func() time.Time
	last int64
}

func (c *leadClock) Next() time.Time {
	ms := c.now().UnixMilli()
	if ms < c.last {
		ms = c.last
	}
	c.last = ms
	return time.UnixMilli(ms).UTC()
}
