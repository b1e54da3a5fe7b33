package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spacemeshos/powgate/config"
	"github.com/spacemeshos/powgate/gate"
	"github.com/spacemeshos/powgate/pow"
)

type solveOutput struct {
	Challenge  pow.Challenge          `json:"challenge"`
	Solution   pow.Solution           `json:"solution"`
	Elapsed    string                 `json:"elapsed"`
	Validation gate.ValidationPayload `json:"validation"`
	Submission gate.SolutionPayload   `json:"submission"`
}

// solveCmd represents the solve command.
var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve a proof-of-work challenge",
	Long: `solve searches for the smallest counter such that the SHA-256 digest of
prefix followed by the decimal counter starts with difficulty zero hex digits.

The challenge is given either with --prefix and --difficulty or as the JSON
object returned by a gate with --challenge.`,
	Example: `  powcli solve --prefix xk29f --difficulty 4
  powcli solve --challenge '{"prefix":"xk29f","difficulty":4}' --workers 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd, solverBindings)
		if err != nil {
			return err
		}
		defer logger.Sync()

		ch, err := challengeFromFlags(cmd)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if cfg.Solver.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Solver.Timeout)
			defer cancel()
		}

		opts := append(gate.SolverOptions(cfg.Solver),
			pow.WithLogger(logger),
			pow.WithProgress(func(p pow.Progress) {
				logger.Info("solving",
					zap.Uint64("attempts", p.Attempts),
					zap.Duration("elapsed", p.Elapsed),
					zap.Float64("rate", p.Rate),
				)
			}),
		)

		start := time.Now()
		sol, err := pow.Solve(ctx, ch, opts...)
		if err != nil {
			return err
		}
		if err := pow.Verify(ch, *sol); err != nil {
			return fmt.Errorf("self check failed: %w", err)
		}

		out, _ := cmd.Flags().GetString("out")
		return writeJSON(cmd, out, solveOutput{
			Challenge:  ch,
			Solution:   *sol,
			Elapsed:    time.Since(start).String(),
			Validation: gate.NewValidationPayload(ch, *sol),
			Submission: gate.NewSolutionPayload(*sol),
		})
	},
}

var solverBindings = map[string]string{
	"workers":           "solver.workers",
	"progress-interval": "solver.progress-interval",
	"check-interval":    "solver.check-interval",
	"max-attempts":      "solver.max-attempts",
	"timeout":           "solver.timeout",
}

func init() {
	rootCmd.AddCommand(solveCmd)

	solveCmd.Flags().String("prefix", "", "challenge prefix")
	solveCmd.Flags().Int("difficulty", 0, "number of leading zero hex digits")
	solveCmd.Flags().String("challenge", "", `challenge as returned by a gate, e.g. {"prefix":"ab","difficulty":3}`)
	solveCmd.Flags().String("out", "", "write the result to this file instead of stdout")
	solveCmd.MarkFlagsMutuallyExclusive("challenge", "prefix")
	solveCmd.MarkFlagsMutuallyExclusive("challenge", "difficulty")
	addSolverFlags(solveCmd)
}

func addSolverFlags(cmd *cobra.Command) {
	def := config.DefaultConfig().Solver
	cmd.Flags().Int("workers", def.Workers, "number of solver workers (0 uses one per physical core)")
	cmd.Flags().Uint64("progress-interval", def.ProgressInterval, "report progress every this many attempts (0 disables)")
	cmd.Flags().Uint64("check-interval", def.CheckInterval, "check for cancellation every this many attempts")
	cmd.Flags().Uint64("max-attempts", def.MaxAttempts, "give up after this many counters (0 is unbounded)")
	cmd.Flags().Duration("timeout", def.Timeout, "give up after this long (0 is unbounded)")
}

func challengeFromFlags(cmd *cobra.Command) (pow.Challenge, error) {
	if raw, _ := cmd.Flags().GetString("challenge"); raw != "" {
		return pow.ParseChallenge([]byte(raw))
	}
	if !cmd.Flags().Changed("prefix") || !cmd.Flags().Changed("difficulty") {
		return pow.Challenge{}, errors.New("either --challenge or both --prefix and --difficulty are required")
	}
	prefix, _ := cmd.Flags().GetString("prefix")
	difficulty, _ := cmd.Flags().GetInt("difficulty")
	ch := pow.Challenge{Prefix: prefix, Difficulty: difficulty}
	return ch, ch.Validate()
}
