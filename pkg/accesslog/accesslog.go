// Package accesslog emits one self-contained, machine-parseable record per
// completed client request.
//
// Records are JSON lines: encoding the record as JSON guarantees that
// quotes, control characters, and embedded delimiters in request data can
// never corrupt the stream. Writing is asynchronous and best-effort; a slow
// or failing sink never blocks or fails the client response path.
package accesslog

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Attempt is one backend contact made while handling a request.
type Attempt struct {
	// Backend is the pool member name.
	Backend string `json:"backend"`

	// Address is the backend base URL.
	Address string `json:"address"`

	// Outcome classifies the attempt result.
	Outcome string `json:"outcome"`

	// Status is the upstream HTTP status, 0 when none was received.
	Status int `json:"status,omitempty"`

	// DurationMS is the attempt duration in milliseconds.
	DurationMS float64 `json:"duration_ms"`
}

// Record is the per-request access log entry. Exactly one Record is
// emitted per completed client request; the attempt list makes every
// retry visible, not just the one that produced the final response.
type Record struct {
	// Timestamp is the request completion time.
	Timestamp time.Time `json:"ts"`

	// RequestID is the proxy-assigned request identifier.
	RequestID string `json:"request_id"`

	// ClientAddr is the client's remote address.
	ClientAddr string `json:"client_addr"`

	// Method, Path, and Proto reproduce the request line as received.
	Method string `json:"method"`
	Path   string `json:"path"`
	Proto  string `json:"proto"`

	// Status is the final status returned to the client.
	Status int `json:"status"`

	// DurationMS is the total request duration in milliseconds.
	DurationMS float64 `json:"duration_ms"`

	// ResponseBytes is the size of the body written to the client.
	ResponseBytes int64 `json:"response_bytes"`

	// ServedBy names the backend that produced the final response;
	// empty when the pool was exhausted and a synthetic 502 was sent.
	ServedBy string `json:"served_by"`

	// Attempts lists every backend contact in order.
	Attempts []Attempt `json:"upstream_attempts"`
}

// Writer serializes records to a sink from a dedicated goroutine.
type Writer struct {
	out       io.Writer
	closer    io.Closer
	records   chan *Record
	dropped   atomic.Int64
	writeErrs atomic.Int64
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	logger    *slog.Logger
}

// New creates a Writer that emits records to out. bufferSize is the async
// buffer depth; when the buffer is full, records are dropped and counted
// rather than blocking the caller.
func New(out io.Writer, bufferSize int) *Writer {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	w := &Writer{
		out:     out,
		records: make(chan *Record, bufferSize),
		stopCh:  make(chan struct{}),
		logger:  slog.Default().With("component", "accesslog"),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Open creates a Writer for the given path. An empty path or "-" selects
// stdout; anything else is opened as an append-only file.
func Open(path string, bufferSize int) (*Writer, error) {
	if path == "" || path == "-" {
		return New(os.Stdout, bufferSize), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	w := New(f, bufferSize)
	w.closer = f
	return w, nil
}

// Write queues a record for emission. It never blocks: when the buffer is
// full the record is dropped and the drop counter incremented.
func (w *Writer) Write(rec *Record) {
	select {
	case w.records <- rec:
	default:
		w.dropped.Add(1)
	}
}

// run is the writer goroutine.
func (w *Writer) run() {
	defer w.wg.Done()

	enc := json.NewEncoder(w.out)
	for {
		select {
		case rec := <-w.records:
			w.emit(enc, rec)
		case <-w.stopCh:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case rec := <-w.records:
					w.emit(enc, rec)
				default:
					return
				}
			}
		}
	}
}

// emit writes one record. Sink errors are swallowed and counted: the log
// stream is best-effort and must never affect request handling.
func (w *Writer) emit(enc *json.Encoder, rec *Record) {
	if err := enc.Encode(rec); err != nil {
		if w.writeErrs.Add(1) == 1 {
			w.logger.Warn("access log write failed", "error", err)
		}
	}
}

// Close flushes queued records and closes the sink if the Writer opened it.
func (w *Writer) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		if w.closer != nil {
			err = w.closer.Close()
		}
	})
	return err
}

// Dropped returns how many records were discarded because the buffer was full.
func (w *Writer) Dropped() int64 {
	return w.dropped.Load()
}

// WriteErrors returns how many records failed to reach the sink.
func (w *Writer) WriteErrors() int64 {
	return w.writeErrs.Load()
}
