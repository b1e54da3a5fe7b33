package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/powgate/sealing"
	"github.com/spacemeshos/powgate/telemetry"
)

// resetFlags restores every flag to its default, cobra keeps parsed values between executions.
func resetFlags(c *cobra.Command) {
	c.Flags().VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, stdin []byte, args ...string) []byte {
	t.Helper()
	resetFlags(rootCmd)
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(bytes.NewReader(stdin))
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	require.NoError(t, rootCmd.Execute(), stderr.String())
	return stdout.Bytes()
}

func TestSolveCommand(t *testing.T) {
	out := execute(t, nil, "solve", "--prefix", "xk29f", "--difficulty", "4", "--workers", "2")

	var res solveOutput
	require.NoError(t, json.Unmarshal(out, &res))
	require.Equal(t, uint64(109211), res.Solution.Counter)
	require.Equal(t, "109211", res.Validation.Counter)
	require.Equal(t, res.Solution.Digest, res.Submission.Digest)
}

func TestSolveCommandChallengeJSON(t *testing.T) {
	out := execute(t, nil, "solve", "--challenge", `{"prefix":"abc","difficulty":2}`, "--workers", "3")

	var res solveOutput
	require.NoError(t, json.Unmarshal(out, &res))
	require.Equal(t, uint64(252), res.Solution.Counter)
}

func TestSynthSealOpen(t *testing.T) {
	dir := t.TempDir()
	trPath := filepath.Join(dir, "trajectory.json")
	sealedPath := filepath.Join(dir, "sealed.json")

	execute(t, nil, "synth", "--seed", "7", "--points", "20", "--out", trPath)
	data, err := os.ReadFile(trPath)
	require.NoError(t, err)
	tr, err := sealing.JSON{}.Unmarshal(data)
	require.NoError(t, err)
	require.Len(t, tr, 20)

	key := "AAECAwQFBgcICQoLDA0ODw=="
	execute(t, nil, "seal", "--in", trPath, "--key", key, "--out", sealedPath)

	sealed, err := os.ReadFile(sealedPath)
	require.NoError(t, err)
	out := execute(t, sealed, "open", "--in", "-")

	var opened telemetry.Trajectory
	require.NoError(t, json.Unmarshal(out, &opened))
	require.Equal(t, tr, opened)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("POWGATE_TELEMETRY_MAX_X", "999")
	t.Setenv("POWGATE_SOLVER_WORKERS", "3")
	t.Setenv("POWGATE_GATE_SETUP_PATH", "/setup")
	t.Setenv("POWGATE_LOGGER_MAX_BACKUPS", "7")

	out := string(execute(t, nil, "config"))
	require.Contains(t, out, "MaxX: (int) 999")
	require.Contains(t, out, "Workers: (int) 3")
	require.Contains(t, out, `SetupPath: (string) (len=6) "/setup"`)
	require.Contains(t, out, "MaxBackups: (int) 7")
}

func TestFlagOverridesEnv(t *testing.T) {
	t.Setenv("POWGATE_SOLVER_WORKERS", "3")
	t.Setenv("POWGATE_TELEMETRY_POINTS", "5")

	out := execute(t, nil, "synth", "--seed", "1", "--points", "8", "--jitter=false")
	tr, err := sealing.JSON{}.Unmarshal(out)
	require.NoError(t, err)
	require.Len(t, tr, 8)

	out = execute(t, nil, "synth", "--seed", "1", "--jitter=false")
	tr, err = sealing.JSON{}.Unmarshal(out)
	require.NoError(t, err)
	require.Len(t, tr, 5)
}

func TestVersionCommand(t *testing.T) {
	Version, Commit = "1.2.3", "abcdef"
	t.Cleanup(func() { Version, Commit = "", "" })

	out := execute(t, nil, "version")
	require.Equal(t, "powcli 1.2.3 (abcdef)\n", string(out))
}

func TestDefaultBenchWorkers(t *testing.T) {
	require.Equal(t, []int{1}, defaultBenchWorkers(1))
	require.Equal(t, []int{1, 2, 4, 6}, defaultBenchWorkers(6))
	require.Equal(t, []int{1, 2, 4, 8}, defaultBenchWorkers(8))
}
