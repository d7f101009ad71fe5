package proxy

import (
	"time"

	"github.com/Godwin-T/blue-green-deployment/pkg/accesslog"
	"github.com/Godwin-T/blue-green-deployment/pkg/upstream"
)

// RequestAttempt is the immutable outcome of one backend contact.
type RequestAttempt struct {
	// Backend is the pool member that was contacted.
	Backend *upstream.Backend

	// Outcome classifies the result.
	Outcome upstream.Outcome

	// Status is the upstream HTTP status, 0 when none was received.
	Status int

	// Duration is how long the attempt took.
	Duration time.Duration
}

// RequestRecord accumulates everything about one client request. It is
// created at request start, finalized exactly once at request end, handed
// to the access log, and then discarded.
type RequestRecord struct {
	RequestID  string
	ClientAddr string
	Method     string
	Path       string
	Proto      string
	Start      time.Time

	// Attempts lists every backend contact in order.
	Attempts []RequestAttempt

	// ServedBy is the backend that produced the final response; nil when
	// the pool was exhausted.
	ServedBy *upstream.Backend

	// FinalStatus is the status returned to the client.
	FinalStatus int

	// ResponseBytes is the body size written to the client.
	ResponseBytes int64
}

// toAccessLog converts the finalized record into its access log form.
func (r *RequestRecord) toAccessLog(completed time.Time) *accesslog.Record {
	attempts := make([]accesslog.Attempt, 0, len(r.Attempts))
	for _, a := range r.Attempts {
		attempts = append(attempts, accesslog.Attempt{
			Backend:    a.Backend.Name,
			Address:    a.Backend.Address,
			Outcome:    string(a.Outcome),
			Status:     a.Status,
			DurationMS: float64(a.Duration.Microseconds()) / 1000,
		})
	}

	servedBy := ""
	if r.ServedBy != nil {
		servedBy = r.ServedBy.Name
	}

	return &accesslog.Record{
		Timestamp:     completed,
		RequestID:     r.RequestID,
		ClientAddr:    r.ClientAddr,
		Method:        r.Method,
		Path:          r.Path,
		Proto:         r.Proto,
		Status:        r.FinalStatus,
		DurationMS:    float64(completed.Sub(r.Start).Microseconds()) / 1000,
		ResponseBytes: r.ResponseBytes,
		ServedBy:      servedBy,
		Attempts:      attempts,
	}
}
