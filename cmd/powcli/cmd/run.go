package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spacemeshos/powgate/gate"
	"github.com/spacemeshos/powgate/pow"
)

// runCmd represents the run command.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Pass a gate end to end",
	Long: `run performs one complete session against a gate: it synthesizes pointer
telemetry, fetches the sealing key, submits the sealed telemetry, solves the
challenge it receives and submits the solution for validation.

A JSON report of the session is printed on success.`,
	Example: `  powcli run --base-url https://gate.example.com --workers 4`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd, runBindings)
		if err != nil {
			return err
		}
		defer logger.Sync()

		var clientOpts []gate.ClientOption
		if id, _ := cmd.Flags().GetString("client-id"); id != "" {
			clientOpts = append(clientOpts, gate.WithClientID(id))
		}
		client, err := gate.NewClient(cfg.Gate, append(clientOpts, gate.WithClientLogger(logger))...)
		if err != nil {
			return err
		}

		session := gate.NewSession(client, cfg,
			gate.WithSynthesizer(synthesizer(cmd, cfg.Telemetry)),
			gate.WithSessionLogger(logger),
			gate.WithSolveOptions(pow.WithProgress(func(p pow.Progress) {
				logger.Debug("solving", zap.Uint64("attempts", p.Attempts), zap.Float64("rate", p.Rate))
			})),
		)
		report, err := session.Run(cmd.Context())
		if err != nil {
			logger.Error("session failed", zap.Error(err))
			return err
		}
		logger.Info("session complete",
			zap.Uint64("counter", report.Solution.Counter),
			zap.Duration("solve_time", report.SolveTime),
		)

		out, _ := cmd.Flags().GetString("out")
		return writeJSON(cmd, out, report)
	},
}

var runBindings = map[string]string{
	"base-url":        "gate.base-url",
	"request-timeout": "gate.request-timeout",
	"submit-solution": "gate.submit-solution",
}

func init() {
	rootCmd.AddCommand(runCmd)

	for flag, key := range telemetryBindings {
		runBindings[flag] = key
	}
	for flag, key := range solverBindings {
		runBindings[flag] = key
	}

	runCmd.Flags().String("base-url", "", "base url of the gate")
	runCmd.Flags().Duration("request-timeout", defaultGate().RequestTimeout, "timeout of a single request to the gate")
	runCmd.Flags().Bool("submit-solution", defaultGate().SubmitSolution, "also post the solution to the solve endpoint")
	runCmd.Flags().String("client-id", "", "client id sent with every request (random if empty)")
	runCmd.Flags().String("out", "", "write the report to this file instead of stdout")
	addTelemetryFlags(runCmd)
	addSolverFlags(runCmd)
}
