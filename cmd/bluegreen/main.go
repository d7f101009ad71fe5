// Bluegreen is a failover reverse proxy for blue/green deployments.
//
// It routes every client request to the active (primary) backend pool,
// detects primary failure within the per-attempt deadline, and retries the
// same request transparently against the standby pool inside the same
// request lifecycle, so clients never observe the failure.
//
// Usage:
//
//	# Start the proxy with default configuration
//	bluegreen run
//
//	# Start with a custom configuration file
//	bluegreen run --config /etc/bluegreen/config.yaml
//
//	# Verify the failover contract against a running proxy
//	bluegreen verify --target http://127.0.0.1:8080/ \
//	    --expect-primary blue --chaos-admin http://127.0.0.1:8081
//
//	# Run a chaos-capable development backend
//	bluegreen backend --listen 127.0.0.1:8081 --pool blue --release v42
//
//	# Show version information
//	bluegreen version
package main

func main() {
	Execute()
}
