package app

import (
	"math"
	"time"
)

// DefaultRetryCap is the longest delay between reconnect attempts.
const DefaultRetryCap = 20 * time.Second

// ReconnectDelay returns min(e^retry seconds, limit). A non-positive limit selects
// DefaultRetryCap.
func ReconnectDelay(retry int, limit time.Duration) time.Duration {
	if limit <= 0 {
		limit = DefaultRetryCap
	}
	if retry < 0 {
		retry = 0
	}
	secs := math.Exp(float64(retry))
	if secs >= limit.Seconds() {
		return limit
	}
	return time.Duration(secs * float64(time.Second))
}

// RetryState is the client's reconnect bookkeeping. Retry counts completed
// failed attempts since the last successful connect; Retrying is set while a
// reconnect attempt is in flight.
//
// It is owned by the client event loop and is not safe for concurrent use.
type RetryState struct {
	Retry     int
	Retrying  bool
	Connected bool
}

// OnConnected records a successful connect.
func (r *RetryState) OnConnected() {
	r.Retry = 0
	r.Retrying = false
	r.Connected = true
}

// OnLost records a dropped connection or failed attempt and returns how long
// to wait before the next attempt.
func (r *RetryState) OnLost(limit time.Duration) time.Duration {
	r.Connected = false
	r.Retrying = false
	return ReconnectDelay(r.Retry, limit)
}

// BeginAttempt claims the right to start a reconnect attempt. It fails while
// connected or while another attempt is in flight.
func (r *RetryState) BeginAttempt() bool {
	if r.Retrying || r.Connected {
		return false
	}
	r.Retrying = true
	r.Retry++
	return true
}
