package proxy

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Godwin-T/blue-green-deployment/pkg/accesslog"
	"github.com/Godwin-T/blue-green-deployment/pkg/telemetry/metrics"
	"github.com/Godwin-T/blue-green-deployment/pkg/upstream"
)

// Options configures the proxy handler.
type Options struct {
	// ConnectTimeout, SendTimeout, and ReadTimeout are the per-attempt
	// budgets. Their sum bounds one backend attempt end to end.
	ConnectTimeout time.Duration
	SendTimeout    time.Duration
	ReadTimeout    time.Duration

	// HealthPath is the route served as a lightweight health check.
	HealthPath string

	// HealthTimeout bounds the single health-check attempt.
	HealthTimeout time.Duration

	// MaxBufferedBodyBytes caps request body buffering for replay.
	// Bodies above the cap are streamed and disable retry.
	MaxBufferedBodyBytes int64
}

// Handler is the proxy core. It serves every client request by driving
// the retry loop described in the package documentation.
type Handler struct {
	pool     *upstream.PoolHolder
	tracker  *upstream.HealthTracker
	selector *upstream.Selector
	opts     Options

	transport http.RoundTripper
	logs      *accesslog.Writer
	metrics   *metrics.ProxyMetrics
	logger    *slog.Logger
}

// NewHandler creates the proxy handler. logs and m may be nil to disable
// access logging and metrics respectively (tests do this).
func NewHandler(pool *upstream.PoolHolder, tracker *upstream.HealthTracker, selector *upstream.Selector, logs *accesslog.Writer, m *metrics.ProxyMetrics, opts Options) *Handler {
	return &Handler{
		pool:      pool,
		tracker:   tracker,
		selector:  selector,
		opts:      opts,
		transport: newTransport(opts.ConnectTimeout, opts.ReadTimeout),
		logs:      logs,
		metrics:   m,
		logger:    slog.Default().With("component", "proxy"),
	}
}

// ServeHTTP routes between the health-check path and the general
// application path.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == h.opts.HealthPath {
		h.serveHealth(w, r)
		return
	}
	h.serveProxy(w, r)
}

// requestBody holds the client request body for attempt replay. Bodies
// within the buffer cap are fully buffered and replayable; larger bodies
// are streamed through on the first attempt only.
type requestBody struct {
	buf        []byte
	rest       io.ReadCloser
	replayable bool
	consumed   bool
}

// reader returns the body reader for the next attempt, with its length
// when known (-1 for streamed bodies).
func (b *requestBody) reader() (io.Reader, int64) {
	if b.replayable {
		if len(b.buf) == 0 {
			return nil, 0
		}
		return bytes.NewReader(b.buf), int64(len(b.buf))
	}
	if b.consumed {
		return nil, 0
	}
	b.consumed = true
	return io.MultiReader(bytes.NewReader(b.buf), b.rest), -1
}

// bufferBody reads up to the configured cap from the client body.
func (h *Handler) bufferBody(r *http.Request) (*requestBody, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return &requestBody{replayable: true}, nil
	}

	limit := h.opts.MaxBufferedBodyBytes
	buf, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(buf)) > limit {
		return &requestBody{buf: buf, rest: r.Body, replayable: false}, nil
	}
	return &requestBody{buf: buf, replayable: true}, nil
}

// serveProxy handles one client request through the retry loop.
func (h *Handler) serveProxy(w http.ResponseWriter, r *http.Request) {
	rec := &RequestRecord{
		RequestID:  uuid.NewString(),
		ClientAddr: r.RemoteAddr,
		Method:     r.Method,
		Path:       r.URL.RequestURI(),
		Proto:      r.Proto,
		Start:      time.Now(),
	}

	body, err := h.bufferBody(r)
	if err != nil {
		rec.FinalStatus = http.StatusBadRequest
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		h.finish(rec)
		return
	}

	pool := h.pool.Load()
	attempted := make(map[string]bool)

	for {
		backend := h.selector.Select(pool, attempted)
		if backend == nil {
			h.finalizeExhausted(w, rec)
			return
		}
		attempted[backend.Name] = true

		resp, release, attempt := h.attempt(backend, r, body, rec.RequestID)
		h.tracker.Record(backend, attempt.Outcome)
		if h.metrics != nil {
			h.metrics.ObserveAttempt(backend.Name, string(attempt.Outcome))
		}
		rec.Attempts = append(rec.Attempts, attempt)

		if !attempt.Outcome.Retryable() {
			// Success or pass-through client error: this attempt's
			// response is the client's response.
			rec.ServedBy = backend
			h.finalizeResponse(w, r, rec, resp, release)
			return
		}

		h.logger.Warn("attempt failed",
			"request_id", rec.RequestID,
			"backend", backend.Name,
			"outcome", attempt.Outcome,
			"duration", attempt.Duration,
		)

		if resp != nil {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 8<<10))
			resp.Body.Close()
		}
		if release != nil {
			release()
		}

		if !body.replayable {
			// The body was streamed and cannot be resent.
			h.logger.Warn("request body exceeds replay buffer, not retrying",
				"request_id", rec.RequestID,
			)
			h.finalizeExhausted(w, rec)
			return
		}
	}
}

// attempt performs one backend contact under the per-attempt deadline.
//
// The attempt context is deliberately detached from the client's: a client
// that disconnects mid-retry must not abort the attempt, or the health
// tracker would record a failure the backend did not cause. The caller
// invokes release after it is done with the response body.
func (h *Handler) attempt(backend *upstream.Backend, r *http.Request, body *requestBody, requestID string) (*http.Response, func(), RequestAttempt) {
	start := time.Now()
	budget := h.opts.ConnectTimeout + h.opts.SendTimeout + h.opts.ReadTimeout

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(budget, cancel)

	fail := func(outcome upstream.Outcome) (*http.Response, func(), RequestAttempt) {
		cancel()
		return nil, nil, RequestAttempt{
			Backend:  backend,
			Outcome:  outcome,
			Duration: time.Since(start),
		}
	}

	rd, length := body.reader()
	target := strings.TrimRight(backend.Address, "/") + r.URL.RequestURI()
	out, err := http.NewRequestWithContext(ctx, r.Method, target, rd)
	if err != nil {
		timer.Stop()
		return fail(upstream.OutcomeConnectionError)
	}
	if length >= 0 {
		out.ContentLength = length
	}

	copyHeaders(out.Header, r.Header)
	setForwardedHeaders(out, r)
	out.Header.Set("X-Request-Id", requestID)
	out.Host = r.Host

	resp, err := h.transport.RoundTrip(out)
	timedOut := !timer.Stop()
	if err != nil {
		cancel()
		return nil, nil, RequestAttempt{
			Backend:  backend,
			Outcome:  classifyError(err, timedOut),
			Duration: time.Since(start),
		}
	}

	attempt := RequestAttempt{
		Backend:  backend,
		Outcome:  classifyStatus(resp.StatusCode),
		Status:   resp.StatusCode,
		Duration: time.Since(start),
	}
	// The deadline covered connect/send/receive of the header; the body
	// copy that follows is bounded by the server's write timeout.
	return resp, cancel, attempt
}

// finalizeResponse streams the winning attempt's response to the client
// and emits the request record.
func (h *Handler) finalizeResponse(w http.ResponseWriter, r *http.Request, rec *RequestRecord, resp *http.Response, release func()) {
	defer resp.Body.Close()
	if release != nil {
		defer release()
	}

	// Identity and application headers pass through untouched.
	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)

	// A disconnected client makes this copy fail; the result is simply
	// discarded while the record is still emitted.
	n, _ := io.Copy(w, resp.Body)

	rec.FinalStatus = resp.StatusCode
	rec.ResponseBytes = n
	h.finish(rec)
}

// finalizeExhausted emits the synthetic 502 for a request whose retry
// loop ran out of eligible backends or attempts.
func (h *Handler) finalizeExhausted(w http.ResponseWriter, rec *RequestRecord) {
	rec.FinalStatus = http.StatusBadGateway
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusBadGateway)
	n, _ := io.WriteString(w, "upstream pool exhausted\n")
	rec.ResponseBytes = int64(n)

	h.logger.Error("pool exhausted",
		"request_id", rec.RequestID,
		"attempts", len(rec.Attempts),
	)
	h.finish(rec)
}

// finish emits exactly one access log record and one metrics observation
// for the finalized request.
func (h *Handler) finish(rec *RequestRecord) {
	completed := time.Now()
	if h.logs != nil {
		h.logs.Write(rec.toAccessLog(completed))
	}
	if h.metrics != nil {
		servedBy := ""
		if rec.ServedBy != nil {
			servedBy = rec.ServedBy.Name
		}
		h.metrics.ObserveRequest(servedBy, rec.FinalStatus, len(rec.Attempts), completed.Sub(rec.Start))
	}
}

// serveHealth handles the lightweight health-check route: one short
// attempt against the first eligible backend, no retries, no attempt
// classification, no access log record. Keeping this path out of the
// failover machinery avoids masking real failures and flooding the log.
func (h *Handler) serveHealth(w http.ResponseWriter, r *http.Request) {
	pool := h.pool.Load()
	backend := h.selector.Select(pool, map[string]bool{})
	if backend == nil {
		http.Error(w, "no eligible backend", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.opts.HealthTimeout)
	defer cancel()

	target := strings.TrimRight(backend.Address, "/") + r.URL.Path
	out, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		http.Error(w, "health check failed", http.StatusServiceUnavailable)
		return
	}

	resp, err := h.transport.RoundTrip(out)
	if err != nil {
		http.Error(w, "health check failed", http.StatusServiceUnavailable)
		return
	}
	defer resp.Body.Close()

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}
