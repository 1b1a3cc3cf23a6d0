package conn

import (
	"time"
)

const (
	meterWindow   = 4
	meterInterval = time.Second
)

// Meter keeps rolling bandwidth (mean of the last four one-second samples)
// and lifetime byte totals for one connection.
type Meter struct {
	last     time.Time
	curIn    uint64
	curOut   uint64
	samples  [meterWindow][2]float64
	n        int
	pos      int
	totalIn  uint64
	totalOut uint64
	bwIn     float64
	bwOut    float64
}

// NewMeter starts a meter at now.
func NewMeter(now time.Time) *Meter {
	return &Meter{last: now}
}

func (m *Meter) AddIn(n int) {
	m.curIn += uint64(n)
	m.totalIn += uint64(n)
}

func (m *Meter) AddOut(n int) {
	m.curOut += uint64(n)
	m.totalOut += uint64(n)
}

// Sample closes the current interval if at least one second has passed since
// the last one. It reports whether a sample was taken.
func (m *Meter) Sample(now time.Time) bool {
	elapsed := now.Sub(m.last)
	if elapsed < meterInterval {
		return false
	}
	secs := elapsed.Seconds()
	m.samples[m.pos] = [2]float64{float64(m.curIn) / secs, float64(m.curOut) / secs}
	m.pos = (m.pos + 1) % meterWindow
	if m.n < meterWindow {
		m.n++
	}

	var in, out float64
	for i := 0; i < m.n; i++ {
		in += m.samples[i][0]
		out += m.samples[i][1]
	}
	m.bwIn = in / float64(m.n)
	m.bwOut = out / float64(m.n)

	m.curIn, m.curOut = 0, 0
	m.last = now
	return true
}

// Bandwidth returns the rolling inbound and outbound rates in bytes/second.
func (m *Meter) Bandwidth() (in, out float64) {
	return m.bwIn, m.bwOut
}

// Totals returns lifetime inbound and outbound byte counts.
func (m *Meter) Totals() (in, out uint64) {
	return m.totalIn, m.totalOut
}
