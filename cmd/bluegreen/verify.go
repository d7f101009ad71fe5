package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Godwin-T/blue-green-deployment/pkg/cli"
	"github.com/Godwin-T/blue-green-deployment/pkg/config"
	"github.com/Godwin-T/blue-green-deployment/pkg/verify"
)

var verifyFlags struct {
	target          string
	expectPrimary   string
	expectStandby   string
	chaosAdmin      string
	requestCount    int
	standbyFraction float64
	pollTimeout     time.Duration
	mode            string
	recoveryWindow  time.Duration
	evidenceDB      string
	output          string
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the failover contract against a running proxy",
	Long: `Run the failover verification harness against a live proxy.

The harness polls until the expected primary is serving (baseline), makes
the primary fail through the chaos admin endpoint (inject), issues a batch
of sequential requests that must all succeed with most served by standby
(assert), and finally clears the injection (restore).

The command exits non-zero when any phase fails. Flags override the
corresponding values from the verify section of the config file.

Examples:
  # Verify failover from blue to green
  bluegreen verify --target http://127.0.0.1:8080/ \
      --expect-primary blue --chaos-admin http://127.0.0.1:8081

  # Hang the primary instead of erroring it, persist evidence
  bluegreen verify --target http://127.0.0.1:8080/ \
      --expect-primary blue --chaos-admin http://127.0.0.1:8081 \
      --mode hang --evidence-db verify.db`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&verifyFlags.target, "target", "", "proxy URL under test")
	verifyCmd.Flags().StringVar(&verifyFlags.expectPrimary, "expect-primary", "", "pool identity of the expected primary")
	verifyCmd.Flags().StringVar(&verifyFlags.expectStandby, "expect-standby", "", "pool identity of the expected standby (default: anything but primary)")
	verifyCmd.Flags().StringVar(&verifyFlags.chaosAdmin, "chaos-admin", "", "admin base URL of the chaos-capable primary backend")
	verifyCmd.Flags().IntVar(&verifyFlags.requestCount, "requests", 0, "number of assertion requests")
	verifyCmd.Flags().Float64Var(&verifyFlags.standbyFraction, "min-standby-fraction", 0, "minimum fraction of standby-served responses")
	verifyCmd.Flags().DurationVar(&verifyFlags.pollTimeout, "poll-timeout", 0, "baseline polling timeout")
	verifyCmd.Flags().StringVar(&verifyFlags.mode, "mode", "error", "chaos mode: error or hang")
	verifyCmd.Flags().DurationVar(&verifyFlags.recoveryWindow, "recovery-window", 0, "optional recovery check window after restore")
	verifyCmd.Flags().StringVar(&verifyFlags.evidenceDB, "evidence-db", "", "SQLite path for persisting run evidence")
	verifyCmd.Flags().StringVarP(&verifyFlags.output, "output", "o", "text", "report format: text or json")
}

func runVerify(cmd *cobra.Command, args []string) error {
	params, evidenceDB, err := verifyParams()
	if err != nil {
		return err
	}

	formatter, err := cli.NewFormatter(cli.OutputFormat(verifyFlags.output))
	if err != nil {
		return err
	}

	if verifyFlags.chaosAdmin == "" {
		return fmt.Errorf("--chaos-admin is required")
	}
	chaos := verify.NewHTTPChaosController(verifyFlags.chaosAdmin)

	harness := verify.New(params, chaos)
	report, err := harness.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("verification run aborted: %w", err)
	}

	if err := formatter.FormatTo(os.Stdout, report); err != nil {
		return err
	}

	if evidenceDB != "" {
		store, err := verify.OpenEvidenceStore(evidenceDB)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.SaveReport(cmd.Context(), report); err != nil {
			return fmt.Errorf("failed to persist evidence: %w", err)
		}
	}

	if !report.Passed {
		return &cli.ExitError{Code: cli.ExitVerifyFailed, Err: errors.New("failover contract not satisfied")}
	}
	return nil
}

// verifyParams merges the config file's verify section with flag overrides.
func verifyParams() (verify.Params, string, error) {
	var params verify.Params
	evidenceDB := ""

	// The config file is optional for verify runs: every parameter can
	// come from flags.
	if cfg, err := config.LoadConfig(cfgFile); err == nil {
		params = verify.Params{
			TargetURL:          cfg.Verify.TargetURL,
			ExpectedPrimary:    cfg.Verify.ExpectedPrimary,
			RequestCount:       cfg.Verify.RequestCount,
			MinStandbyFraction: cfg.Verify.MinStandbyFraction,
			PollTimeout:        cfg.Verify.PollTimeout.Std(),
			PollInterval:       cfg.Verify.PollInterval.Std(),
			PoolHeader:         cfg.Upstream.PoolHeader,
			ReleaseHeader:      cfg.Upstream.ReleaseHeader,
		}
		evidenceDB = cfg.Verify.EvidenceDB
	}

	if verifyFlags.target != "" {
		params.TargetURL = verifyFlags.target
	}
	if verifyFlags.expectPrimary != "" {
		params.ExpectedPrimary = verifyFlags.expectPrimary
	}
	if verifyFlags.expectStandby != "" {
		params.ExpectedStandby = verifyFlags.expectStandby
	}
	if verifyFlags.requestCount > 0 {
		params.RequestCount = verifyFlags.requestCount
	}
	if verifyFlags.standbyFraction > 0 {
		params.MinStandbyFraction = verifyFlags.standbyFraction
	}
	if verifyFlags.pollTimeout > 0 {
		params.PollTimeout = verifyFlags.pollTimeout
	}
	if verifyFlags.recoveryWindow > 0 {
		params.RecoveryWindow = verifyFlags.recoveryWindow
	}
	if verifyFlags.evidenceDB != "" {
		evidenceDB = verifyFlags.evidenceDB
	}

	switch verifyFlags.mode {
	case "error":
		params.Mode = verify.ChaosError
	case "hang":
		params.Mode = verify.ChaosHang
	default:
		return params, "", fmt.Errorf("unknown chaos mode %q (want error or hang)", verifyFlags.mode)
	}

	if params.TargetURL == "" {
		return params, "", fmt.Errorf("--target is required (or verify.target_url in config)")
	}
	if params.ExpectedPrimary == "" {
		return params, "", fmt.Errorf("--expect-primary is required (or verify.expected_primary in config)")
	}

	return params, evidenceDB, nil
}
