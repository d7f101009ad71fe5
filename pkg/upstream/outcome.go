package upstream

// Outcome classifies the result of one attempt against one backend.
type Outcome string

const (
	// OutcomeSuccess means a 2xx/3xx response arrived before the deadline.
	OutcomeSuccess Outcome = "success"

	// OutcomeTimeout means the attempt deadline expired before a
	// complete response header was received.
	OutcomeTimeout Outcome = "timeout"

	// OutcomeConnectionError means the connection could not be
	// established or was dropped mid-exchange.
	OutcomeConnectionError Outcome = "connection_error"

	// OutcomeUpstream5xx means the backend answered with a 5xx status.
	OutcomeUpstream5xx Outcome = "upstream_5xx"

	// OutcomeUpstream4xx means the backend answered with a 4xx status.
	// Client errors are deterministic: they never count against backend
	// health and are never retried.
	OutcomeUpstream4xx Outcome = "upstream_4xx"

	// OutcomeInvalidResponse means the backend sent something that could
	// not be parsed as an HTTP response.
	OutcomeInvalidResponse Outcome = "invalid_response"
)

// CountsAsFailure reports whether the outcome increments the backend's
// consecutive-failure counter.
func (o Outcome) CountsAsFailure() bool {
	switch o {
	case OutcomeTimeout, OutcomeConnectionError, OutcomeUpstream5xx, OutcomeInvalidResponse:
		return true
	default:
		return false
	}
}

// Retryable reports whether the outcome permits another attempt against a
// different backend within the same client request. The retryable set is
// exactly the failure set: a 4xx or a success finalizes the response.
func (o Outcome) Retryable() bool {
	return o.CountsAsFailure()
}
