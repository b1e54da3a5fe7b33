package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spacemeshos/powgate/sealing"
)

// openCmd represents the open command.
var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Decrypt a sealed trajectory",
	Long: `open authenticates and decrypts a payload printed by seal and prints the
trajectory it carries. --key overrides the key stored in the payload.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, err := loadConfig(cmd, nil)
		if err != nil {
			return err
		}
		defer logger.Sync()

		c, err := canonicalizerFromFlags(cmd)
		if err != nil {
			return err
		}

		in, _ := cmd.Flags().GetString("in")
		data, err := readInput(cmd, in)
		if err != nil {
			return err
		}
		var encoded sealing.EncodedPayload
		if err := json.Unmarshal(data, &encoded); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		if key, _ := cmd.Flags().GetString("key"); key != "" {
			encoded.Key = key
		}
		p, err := sealing.Decode(encoded)
		if err != nil {
			return err
		}
		tr, err := sealing.Open(p, p.Key, c)
		if err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("out")
		return writeJSON(cmd, out, tr)
	},
}

func init() {
	rootCmd.AddCommand(openCmd)

	openCmd.Flags().String("in", "-", `read the payload from this file ("-" for stdin)`)
	openCmd.Flags().String("key", "", "base64 AES key, overrides the payload key")
	addEncodingFlag(openCmd, "canonical encoding of the sealed trajectory")
	openCmd.Flags().String("out", "", "write the trajectory to this file instead of stdout")
}
