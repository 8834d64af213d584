// Package clock supplies the unix timestamps stamped on envelopes and state.
package clock

import "time"

// Clock reads the system time.
type Clock struct{}

// NowUnix returns current unix seconds.
func (Clock) NowUnix() int64 {
	return time.Now().Unix()
}

// Fixed always reports the same instant.
type Fixed int64

// NowUnix returns f.
func (f Fixed) NowUnix() int64 {
	return int64(f)
}
