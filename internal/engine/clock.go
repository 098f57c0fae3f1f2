package engine

import "time"

// Clock supplies CreatedAt/UpdatedAt/ResolvedAt timestamps in Unix seconds.
type Clock interface {
	Now() int64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current Unix time in seconds.
func (SystemClock) Now() int64 {
	return time.Now().Unix()
}
