package probe

import (
	"time"
)

// FailureKind tags why an exchange did not succeed.
type FailureKind string

const (
	KindNone      FailureKind = ""
	KindTransport FailureKind = "transport"
	KindTimeout   FailureKind = "timeout"
	KindProtocol  FailureKind = "protocol"
	KindPanic     FailureKind = "panic"
	KindCanceled  FailureKind = "canceled"
)

// Outcome is the result of one timed exchange. Build it with Succeeded or
// Failed so that a successful outcome never carries an error.
type Outcome struct {
	Index    int           `json:"index"`
	Started  time.Time     `json:"started"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
	Bytes    int64         `json:"bytes"`
	Status   int           `json:"status,omitempty"`
	Kind     FailureKind   `json:"kind,omitempty"`
	Err      string        `json:"error,omitempty"`
}

func Succeeded(index int, started time.Time, d time.Duration, bytes int64, status int) Outcome {
	return Outcome{
		Index:    index,
		Started:  started,
		Success:  true,
		Duration: clampDuration(d),
		Bytes:    clampBytes(bytes),
		Status:   status,
	}
}

// Failed records a failure. A nil err still yields a non-empty message.
func Failed(index int, started time.Time, d time.Duration, kind FailureKind, err error) Outcome {
	if kind == KindNone {
		kind = KindTransport
	}
	msg := string(kind)
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return Outcome{
		Index:    index,
		Started:  started,
		Duration: clampDuration(d),
		Kind:     kind,
		Err:      msg,
	}
}

// Speed returns bytes per second for a successful outcome, 0 otherwise.
func (o Outcome) Speed() float64 {
	if !o.Success || o.Duration <= 0 {
		return 0
	}
	return float64(o.Bytes) / o.Duration.Seconds()
}

func clampDuration(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

func clampBytes(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
