package domain

import (
	"fmt"
	"time"
)

// Stats is a snapshot of a connection's traffic.
// Bandwidth values are bytes per second averaged over the last few samples.
type Stats struct {
	ConnID       ConnID
	Remote       string
	BandwidthIn  float64
	BandwidthOut float64
	TotalIn      uint64
	TotalOut     uint64
	SampledAt    time.Time
}

const mib = 1024 * 1024

// String renders the stats in the one-line form used by the stats reporter.
func (s Stats) String() string {
	return fmt.Sprintf("%s %s I:%.2fMB/s, O:%.2fMB/s TI:%.2fMB, TO:%.2fMB",
		s.Remote,
		s.SampledAt.Format("2006/01/02 15:04:05"),
		s.BandwidthIn/mib,
		s.BandwidthOut/mib,
		float64(s.TotalIn)/mib,
		float64(s.TotalOut)/mib,
	)
}
