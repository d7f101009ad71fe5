package proxy

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Godwin-T/blue-green-deployment/pkg/accesslog"
	"github.com/Godwin-T/blue-green-deployment/pkg/upstream"
)

// identityBackend starts a test backend that attaches pool/release
// identity headers and delegates to fn for the response.
func identityBackend(t *testing.T, pool, release string, fn http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Pool", pool)
		w.Header().Set("X-Release", release)
		fn(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("hello"))
}

type testProxy struct {
	handler *Handler
	tracker *upstream.HealthTracker
	logs    *accesslog.Writer
	sink    *bytes.Buffer
}

// newTestProxy assembles a proxy over the given pool with short attempt
// deadlines suitable for tests.
func newTestProxy(t *testing.T, pool *upstream.Pool, maxAttempts int) *testProxy {
	t.Helper()

	sink := &bytes.Buffer{}
	logs := accesslog.New(sink, 64)
	tracker := upstream.NewHealthTracker()
	selector := upstream.NewSelector(tracker, maxAttempts)

	handler := NewHandler(upstream.NewPoolHolder(pool), tracker, selector, logs, nil, Options{
		ConnectTimeout:       200 * time.Millisecond,
		SendTimeout:          200 * time.Millisecond,
		ReadTimeout:          200 * time.Millisecond,
		HealthPath:           "/healthz",
		HealthTimeout:        200 * time.Millisecond,
		MaxBufferedBodyBytes: 1 << 20,
	})

	return &testProxy{handler: handler, tracker: tracker, logs: logs, sink: sink}
}

// records closes the log writer and parses the emitted records.
func (p *testProxy) records(t *testing.T) []accesslog.Record {
	t.Helper()
	if err := p.logs.Close(); err != nil {
		t.Fatalf("closing access log: %v", err)
	}

	var out []accesslog.Record
	for _, line := range strings.Split(strings.TrimSpace(p.sink.String()), "\n") {
		if line == "" {
			continue
		}
		var rec accesslog.Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("unparseable access log line %q: %v", line, err)
		}
		out = append(out, rec)
	}
	return out
}

func backendFor(srv *httptest.Server, name string, role upstream.Role) *upstream.Backend {
	return &upstream.Backend{
		Name:        name,
		Address:     srv.URL,
		Role:        role,
		MaxFails:    1,
		FailTimeout: 5 * time.Second,
	}
}

func doRequest(h http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.RemoteAddr = "192.0.2.10:54321"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestProxy_PrimaryHealthy(t *testing.T) {
	blue := identityBackend(t, "blue", "v1", okHandler)
	pool := &upstream.Pool{Primary: backendFor(blue, "blue", upstream.RolePrimary)}
	p := newTestProxy(t, pool, 2)

	w := doRequest(p.handler, http.MethodGet, "/api/thing", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("X-Pool"); got != "blue" {
		t.Errorf("X-Pool = %q, want blue", got)
	}
	if got := w.Header().Get("X-Release"); got != "v1" {
		t.Errorf("X-Release = %q, want v1", got)
	}

	recs := p.records(t)
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	if recs[0].ServedBy != "blue" || len(recs[0].Attempts) != 1 {
		t.Errorf("record served_by=%q attempts=%d, want blue/1", recs[0].ServedBy, len(recs[0].Attempts))
	}
	if recs[0].Attempts[0].Outcome != string(upstream.OutcomeSuccess) {
		t.Errorf("attempt outcome = %q, want success", recs[0].Attempts[0].Outcome)
	}
}

func TestProxy_FailoverOn5xx(t *testing.T) {
	blue := identityBackend(t, "blue", "v1", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	green := identityBackend(t, "green", "v2", okHandler)

	pool := &upstream.Pool{
		Primary:  backendFor(blue, "blue", upstream.RolePrimary),
		Standbys: []*upstream.Backend{backendFor(green, "green", upstream.RoleStandby)},
	}
	p := newTestProxy(t, pool, 2)

	w := doRequest(p.handler, http.MethodGet, "/api/thing", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (failover should hide the primary failure)", w.Code)
	}
	if got := w.Header().Get("X-Pool"); got != "green" {
		t.Errorf("X-Pool = %q, want green", got)
	}

	// The primary reached max_fails=1 and must now be suspended.
	if p.tracker.IsEligible(pool.Primary) {
		t.Error("primary should be suspended after the failed attempt")
	}

	recs := p.records(t)
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	rec := recs[0]
	if len(rec.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(rec.Attempts))
	}
	if rec.Attempts[0].Outcome != string(upstream.OutcomeUpstream5xx) ||
		rec.Attempts[1].Outcome != string(upstream.OutcomeSuccess) {
		t.Errorf("attempt outcomes = %q/%q, want upstream_5xx/success",
			rec.Attempts[0].Outcome, rec.Attempts[1].Outcome)
	}
	if rec.ServedBy != "green" || rec.Status != http.StatusOK {
		t.Errorf("served_by=%q status=%d, want green/200", rec.ServedBy, rec.Status)
	}
}

func TestProxy_FailoverOnTimeout(t *testing.T) {
	blue := identityBackend(t, "blue", "v1", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	})
	green := identityBackend(t, "green", "v2", okHandler)

	pool := &upstream.Pool{
		Primary:  backendFor(blue, "blue", upstream.RolePrimary),
		Standbys: []*upstream.Backend{backendFor(green, "green", upstream.RoleStandby)},
	}
	p := newTestProxy(t, pool, 2)

	w := doRequest(p.handler, http.MethodGet, "/api/thing", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("X-Pool"); got != "green" {
		t.Errorf("X-Pool = %q, want green", got)
	}

	recs := p.records(t)
	if len(recs) != 1 || len(recs[0].Attempts) != 2 {
		t.Fatalf("want exactly one record with two attempts, got %+v", recs)
	}
	if recs[0].Attempts[0].Outcome != string(upstream.OutcomeTimeout) {
		t.Errorf("first attempt outcome = %q, want timeout", recs[0].Attempts[0].Outcome)
	}
}

func TestProxy_ClientErrorPassthrough(t *testing.T) {
	blue := identityBackend(t, "blue", "v1", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such thing", http.StatusNotFound)
	})
	green := identityBackend(t, "green", "v2", okHandler)

	pool := &upstream.Pool{
		Primary:  backendFor(blue, "blue", upstream.RolePrimary),
		Standbys: []*upstream.Backend{backendFor(green, "green", upstream.RoleStandby)},
	}
	p := newTestProxy(t, pool, 2)

	w := doRequest(p.handler, http.MethodGet, "/api/missing", "")

	// The 4xx passes through verbatim: no retry, no standby contact.
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if got := w.Header().Get("X-Pool"); got != "blue" {
		t.Errorf("X-Pool = %q, want blue", got)
	}
	if !p.tracker.IsEligible(pool.Primary) {
		t.Error("a 4xx must never suspend the backend")
	}

	recs := p.records(t)
	if len(recs) != 1 || len(recs[0].Attempts) != 1 {
		t.Fatalf("want exactly one record with one attempt, got %+v", recs)
	}
	if recs[0].Attempts[0].Outcome != string(upstream.OutcomeUpstream4xx) {
		t.Errorf("attempt outcome = %q, want upstream_4xx", recs[0].Attempts[0].Outcome)
	}
}

func TestProxy_PoolExhausted(t *testing.T) {
	blue := identityBackend(t, "blue", "v1", okHandler)
	green := identityBackend(t, "green", "v2", okHandler)

	pool := &upstream.Pool{
		Primary:  backendFor(blue, "blue", upstream.RolePrimary),
		Standbys: []*upstream.Backend{backendFor(green, "green", upstream.RoleStandby)},
	}
	p := newTestProxy(t, pool, 2)

	// Suspend every pool member up front.
	p.tracker.Record(pool.Primary, upstream.OutcomeTimeout)
	p.tracker.Record(pool.Standbys[0], upstream.OutcomeTimeout)

	w := doRequest(p.handler, http.MethodGet, "/api/thing", "")

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}

	recs := p.records(t)
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	// No backend was contacted for this cycle.
	if len(recs[0].Attempts) != 0 {
		t.Errorf("attempts = %d, want 0", len(recs[0].Attempts))
	}
	if recs[0].ServedBy != "" {
		t.Errorf("served_by = %q, want empty", recs[0].ServedBy)
	}
}

func TestProxy_ExhaustedAfterRetries(t *testing.T) {
	fail := func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}
	blue := identityBackend(t, "blue", "v1", fail)
	green := identityBackend(t, "green", "v2", fail)

	pool := &upstream.Pool{
		Primary:  backendFor(blue, "blue", upstream.RolePrimary),
		Standbys: []*upstream.Backend{backendFor(green, "green", upstream.RoleStandby)},
	}
	p := newTestProxy(t, pool, 2)

	w := doRequest(p.handler, http.MethodGet, "/api/thing", "")

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}

	recs := p.records(t)
	if len(recs) != 1 || len(recs[0].Attempts) != 2 {
		t.Fatalf("want one record with two attempts, got %+v", recs)
	}
}

func TestProxy_BodyReplayOnRetry(t *testing.T) {
	blue := identityBackend(t, "blue", "v1", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	var standbyBody string
	green := identityBackend(t, "green", "v2", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read failed", http.StatusInternalServerError)
			return
		}
		standbyBody = string(body)
		w.WriteHeader(http.StatusOK)
	})

	pool := &upstream.Pool{
		Primary:  backendFor(blue, "blue", upstream.RolePrimary),
		Standbys: []*upstream.Backend{backendFor(green, "green", upstream.RoleStandby)},
	}
	p := newTestProxy(t, pool, 2)

	w := doRequest(p.handler, http.MethodPost, "/api/submit", `{"payload":42}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if standbyBody != `{"payload":42}` {
		t.Errorf("standby received body %q, want the original payload", standbyBody)
	}
	p.records(t)
}

func TestProxy_HealthRouteBypassesFailoverMachinery(t *testing.T) {
	blue := identityBackend(t, "blue", "v1", okHandler)
	pool := &upstream.Pool{Primary: backendFor(blue, "blue", upstream.RolePrimary)}
	p := newTestProxy(t, pool, 2)

	w := doRequest(p.handler, http.MethodGet, "/healthz", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	// The health route emits no access log record.
	if recs := p.records(t); len(recs) != 0 {
		t.Errorf("records = %d, want 0 for health-check traffic", len(recs))
	}
}

func TestProxy_OneRecordPerRequest(t *testing.T) {
	blue := identityBackend(t, "blue", "v1", okHandler)
	pool := &upstream.Pool{Primary: backendFor(blue, "blue", upstream.RolePrimary)}
	p := newTestProxy(t, pool, 2)

	const n = 7
	for i := 0; i < n; i++ {
		doRequest(p.handler, http.MethodGet, "/api/thing", "")
	}

	recs := p.records(t)
	if len(recs) != n {
		t.Fatalf("records = %d, want %d (one per completed request)", len(recs), n)
	}
	for _, rec := range recs {
		if len(rec.Attempts) != 1 {
			t.Errorf("attempts = %d, want 1", len(rec.Attempts))
		}
	}
}
