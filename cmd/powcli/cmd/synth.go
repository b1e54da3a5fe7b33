package cmd

import (
	"math/rand"

	"code.cloudfoundry.org/bytefmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spacemeshos/powgate/config"
	"github.com/spacemeshos/powgate/gate"
	"github.com/spacemeshos/powgate/sealing"
	"github.com/spacemeshos/powgate/telemetry"
)

// synthCmd represents the synth command.
var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Synthesize a pointer trajectory",
	Long: `synth generates a random walk of pointer samples inside the configured
bounding box and prints it in its canonical encoding.

Passing --seed makes the walk reproducible, --rebase-ms shifts its timestamps
so that the first sample carries the given unix time in milliseconds.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd, telemetryBindings)
		if err != nil {
			return err
		}
		defer logger.Sync()

		c, err := canonicalizerFromFlags(cmd)
		if err != nil {
			return err
		}

		tr := synthesize(cmd, cfg.Telemetry)
		if cmd.Flags().Changed("rebase-ms") {
			nowMs, _ := cmd.Flags().GetInt64("rebase-ms")
			tr = telemetry.Rebase(tr, nowMs)
		}

		data, err := c.Marshal(tr)
		if err != nil {
			return err
		}
		logger.Info("synthesized trajectory",
			zap.Int("samples", len(tr)),
			zap.Duration("span", tr.Duration()),
			zap.String("encoding", c.Name()),
			zap.String("size", bytefmt.ByteSize(uint64(len(data)))),
		)

		out, _ := cmd.Flags().GetString("out")
		if c.Name() == "json" && out == "" {
			data = append(data, '\n')
		}
		return writeOutput(cmd, out, data)
	},
}

var telemetryBindings = map[string]string{
	"points":         "telemetry.points",
	"jitter":         "telemetry.jitter",
	"jitter-xy":      "telemetry.jitter-xy",
	"jitter-time-ms": "telemetry.jitter-time-ms",
}

func init() {
	rootCmd.AddCommand(synthCmd)

	addTelemetryFlags(synthCmd)
	addEncodingFlag(synthCmd, "canonical encoding of the trajectory")
	synthCmd.Flags().Int64("rebase-ms", 0, "shift timestamps so the trajectory starts at this unix time in milliseconds")
	synthCmd.Flags().String("out", "", "write the trajectory to this file instead of stdout")
}

func addTelemetryFlags(cmd *cobra.Command) {
	def := config.DefaultConfig().Telemetry
	cmd.Flags().Int("points", def.NumPoints, "number of samples")
	cmd.Flags().Bool("jitter", def.Jitter, "perturb the walk after generating it")
	cmd.Flags().Int("jitter-xy", def.JitterXY, "maximum coordinate perturbation")
	cmd.Flags().Int64("jitter-time-ms", def.JitterTimeMs, "maximum timestamp perturbation in milliseconds")
	cmd.Flags().Int64("seed", 0, "seed for the random walk (0 seeds from the clock)")
}

func addEncodingFlag(cmd *cobra.Command, usage string) {
	cmd.Flags().String("encoding", "json", usage+" (json, cbor)")
}

func canonicalizerFromFlags(cmd *cobra.Command) (sealing.Canonicalizer, error) {
	name, _ := cmd.Flags().GetString("encoding")
	return sealing.CanonicalizerByName(name)
}

func synthesizer(cmd *cobra.Command, cfg config.TelemetryConfig) *telemetry.Synthesizer {
	var opts []telemetry.Option
	if seed, _ := cmd.Flags().GetInt64("seed"); seed != 0 {
		opts = append(opts, telemetry.WithRand(rand.New(rand.NewSource(seed))))
	}
	return gate.NewSynthesizer(cfg, opts...)
}

func synthesize(cmd *cobra.Command, cfg config.TelemetryConfig) telemetry.Trajectory {
	s := synthesizer(cmd, cfg)
	tr := s.Synthesize(cfg.NumPoints)
	if cfg.Jitter {
		tr = s.Jitter(tr, cfg.JitterXY, cfg.JitterTimeMs)
	}
	return tr
}
