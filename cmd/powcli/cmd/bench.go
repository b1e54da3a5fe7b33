package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spacemeshos/powgate/pow"
)

// benchCmd represents the bench command.
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure the hash rate of the solver",
	Long: `bench runs the solver against an unsolvable challenge for a fixed duration
for each worker count and prints the hash rate achieved.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, err := loadConfig(cmd, nil)
		if err != nil {
			return err
		}
		defer logger.Sync()

		d, _ := cmd.Flags().GetDuration("duration")
		workers, _ := cmd.Flags().GetIntSlice("workers")
		if len(workers) == 0 {
			workers = defaultBenchWorkers(pow.DefaultWorkers())
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"Workers", "Attempts", "Elapsed", "Hashes/s"})
		table.SetAlignment(tablewriter.ALIGN_RIGHT)

		for _, n := range workers {
			logger.Info("benchmarking", zap.Int("workers", n), zap.Duration("duration", d))
			res, err := pow.Benchmark(cmd.Context(), n, d)
			if err != nil {
				return fmt.Errorf("benchmark with %d workers: %w", n, err)
			}
			table.Append([]string{
				strconv.Itoa(res.Workers),
				strconv.FormatUint(res.Attempts, 10),
				res.Elapsed.Round(time.Millisecond).String(),
				strconv.FormatFloat(res.Rate(), 'f', 0, 64),
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().Duration("duration", 5*time.Second, "how long to run each measurement")
	benchCmd.Flags().IntSlice("workers", nil, "worker counts to measure (default powers of two up to the number of cores)")
}

// defaultBenchWorkers returns 1, 2, 4, ... up to and including limit.
func defaultBenchWorkers(limit int) []int {
	var out []int
	for n := 1; n < limit; n *= 2 {
		out = append(out, n)
	}
	return append(out, limit)
}
