package transfer

import (
	"time"

	"github.com/rescp17/sneakvlc/pkg/descriptor"
)

// Metadata describes the file offered by the sender, learned during the
// handshake.
type Metadata struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type,omitempty"`
}

// Status is a point-in-time copy of a session.
type Status struct {
	SessionID string                `json:"session_id"`
	State     State                 `json:"state"`
	Target    descriptor.Descriptor `json:"target"`
	File      Metadata              `json:"file"`

	// Progress is a percentage in [0, 100]. It never decreases.
	Progress      float64 `json:"progress"`
	BytesReceived int64   `json:"bytes_received"`

	// Performance metrics
	TransferRate float64       `json:"transfer_rate"` // bytes per second
	ETA          time.Duration `json:"eta"`

	StartTime      time.Time  `json:"start_time"`
	LastUpdateTime time.Time  `json:"last_update_time"`
	CompletionTime *time.Time `json:"completion_time,omitempty"`

	Err error `json:"-"`
}

// RemainingBytes returns the number of bytes left to receive.
func (s Status) RemainingBytes() int64 {
	remaining := s.File.Size - s.BytesReceived
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsComplete returns true if the transfer is 100% complete.
func (s Status) IsComplete() bool {
	return s.State == StateCompleted
}

// setProgress applies an accepted percentage and recalculates metrics.
func (s *Status) setProgress(percent float64, now time.Time) {
	s.Progress = percent
	s.BytesReceived = int64(float64(s.File.Size) * percent / 100)
	s.LastUpdateTime = now

	if s.StartTime.IsZero() {
		return
	}
	elapsed := now.Sub(s.StartTime)
	if elapsed <= 0 {
		return
	}
	s.TransferRate = float64(s.BytesReceived) / elapsed.Seconds()
	if s.TransferRate > 0 {
		s.ETA = time.Duration(float64(s.RemainingBytes()) / s.TransferRate * float64(time.Second))
	} else {
		s.ETA = 0
	}
}
