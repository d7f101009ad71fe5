package proxy

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Godwin-T/blue-green-deployment/pkg/upstream"
)

// newTransport builds the upstream transport. The dialer timeout enforces
// the connect budget and ResponseHeaderTimeout enforces the receive budget;
// the send budget is folded into the overall attempt deadline set by the
// retry loop.
func newTransport(connectTimeout, readTimeout time.Duration) *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: readTimeout,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		// The proxy forwards bytes untouched; transparent decompression
		// would rewrite the body and Content-Encoding.
		DisableCompression: true,
	}
}

// classifyError maps a round-trip error to an attempt outcome. timedOut
// reports whether the attempt deadline fired, which distinguishes a real
// timeout from a cancellation surfacing as the same error value.
func classifyError(err error, timedOut bool) upstream.Outcome {
	if timedOut || errors.Is(err, context.DeadlineExceeded) {
		return upstream.OutcomeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return upstream.OutcomeTimeout
	}
	if strings.Contains(err.Error(), "malformed HTTP") {
		return upstream.OutcomeInvalidResponse
	}
	return upstream.OutcomeConnectionError
}

// classifyStatus maps an upstream HTTP status to an attempt outcome.
// Success is any 2xx/3xx received before the deadline.
func classifyStatus(status int) upstream.Outcome {
	switch {
	case status >= 500:
		return upstream.OutcomeUpstream5xx
	case status >= 400:
		return upstream.OutcomeUpstream4xx
	default:
		return upstream.OutcomeSuccess
	}
}

// hopByHopHeaders are connection-scoped and must not be forwarded in
// either direction (RFC 9110 §7.6.1).
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// copyHeaders copies src into dst, skipping hop-by-hop headers and any
// header nominated by the Connection header. Everything else, including
// the backend identity headers, passes through untouched.
func copyHeaders(dst, src http.Header) {
	dropped := map[string]bool{}
	for _, h := range hopByHopHeaders {
		dropped[h] = true
	}
	for _, v := range src.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			dropped[http.CanonicalHeaderKey(strings.TrimSpace(name))] = true
		}
	}

	for name, values := range src {
		if dropped[http.CanonicalHeaderKey(name)] {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

// setForwardedHeaders attaches the standard proxy forwarding headers.
func setForwardedHeaders(out *http.Request, in *http.Request) {
	if clientIP, _, err := net.SplitHostPort(in.RemoteAddr); err == nil {
		prior := in.Header.Get("X-Forwarded-For")
		if prior != "" {
			clientIP = prior + ", " + clientIP
		}
		out.Header.Set("X-Forwarded-For", clientIP)
	}
	out.Header.Set("X-Forwarded-Host", in.Host)
	proto := "http"
	if in.TLS != nil {
		proto = "https"
	}
	out.Header.Set("X-Forwarded-Proto", proto)
}
