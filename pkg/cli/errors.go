package cli

import "errors"

// Exit codes used by the bluegreen command. Code 1 remains the generic
// "command failed" exit that cobra produces for plain errors.
const (
	// ExitVerifyFailed signals a completed verification run whose
	// failover contract assertion did not hold.
	ExitVerifyFailed = 2
)

// ExitError carries a process exit code alongside the underlying error,
// so scripted callers can distinguish harness breakage from contract
// violations.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode extracts the exit code from err. Plain errors map to 1, nil
// to 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}
