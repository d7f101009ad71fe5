package verify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ChaosMode selects how an injected backend misbehaves.
type ChaosMode string

const (
	// ChaosError makes the backend answer every request with a 500.
	ChaosError ChaosMode = "error"

	// ChaosHang makes the backend sit on every request until well past
	// any reasonable attempt deadline.
	ChaosHang ChaosMode = "hang"
)

// ChaosController injects and clears synthetic failure on the primary
// backend. The harness only ever calls it at phase boundaries.
type ChaosController interface {
	// Inject makes the controlled backend fail in the given mode.
	Inject(ctx context.Context, mode ChaosMode) error

	// Restore returns the controlled backend to normal operation.
	Restore(ctx context.Context) error
}

// HTTPChaosController drives a chaos-capable backend through its admin
// endpoint: POST {admin_url}/chaos with a form field "mode".
type HTTPChaosController struct {
	adminURL string
	client   *http.Client
}

// NewHTTPChaosController creates a controller for the given backend
// admin base URL.
func NewHTTPChaosController(adminURL string) *HTTPChaosController {
	return &HTTPChaosController{
		adminURL: strings.TrimRight(adminURL, "/"),
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Inject implements ChaosController.
func (c *HTTPChaosController) Inject(ctx context.Context, mode ChaosMode) error {
	return c.post(ctx, string(mode))
}

// Restore implements ChaosController.
func (c *HTTPChaosController) Restore(ctx context.Context) error {
	return c.post(ctx, "none")
}

func (c *HTTPChaosController) post(ctx context.Context, mode string) error {
	form := url.Values{"mode": {mode}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.adminURL+"/chaos", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("chaos controller unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chaos controller rejected mode %q: status %d", mode, resp.StatusCode)
	}
	return nil
}
