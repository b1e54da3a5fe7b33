package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/spacemeshos/powgate/sealing"
	"github.com/spacemeshos/powgate/telemetry"
)

// sealCmd represents the seal command.
var sealCmd = &cobra.Command{
	Use:   "seal",
	Short: "Seal a trajectory with AES-GCM",
	Long: `seal encrypts the canonical encoding of a trajectory with AES-GCM and prints
key, nonce and ciphertext in base64.

The trajectory is read from --in ("-" for stdin) in the format selected with
--encoding, otherwise a fresh one is synthesized. Without --key the key is
read from the terminal.`,
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

		var tr telemetry.Trajectory
		in, _ := cmd.Flags().GetString("in")
		if in != "" {
			data, err := readInput(cmd, in)
			if err != nil {
				return err
			}
			if tr, err = c.Unmarshal(data); err != nil {
				return err
			}
		} else {
			tr = synthesize(cmd, cfg.Telemetry)
		}

		keyB64, err := keyFromFlags(cmd)
		if err != nil {
			return err
		}
		nonceB64, _ := cmd.Flags().GetString("nonce")

		opts := []sealing.SealOption{sealing.WithCanonicalizer(c)}
		if validate, _ := cmd.Flags().GetBool("validate"); validate {
			t := cfg.Telemetry
			opts = append(opts, sealing.WithValidation(telemetry.Box{MinX: t.MinX, MinY: t.MinY, MaxX: t.MaxX, MaxY: t.MaxY}))
		}
		p, err := sealing.SealB64(tr, keyB64, nonceB64, opts...)
		if err != nil {
			return err
		}
		logger.Debug("sealed trajectory", zap.Int("samples", len(tr)), zap.Int("ciphertext", len(p.Ciphertext)))

		out, _ := cmd.Flags().GetString("out")
		return writeJSON(cmd, out, p.Encode())
	},
}

func init() {
	rootCmd.AddCommand(sealCmd)

	addTelemetryFlags(sealCmd)
	addEncodingFlag(sealCmd, "canonical encoding of the trajectory")
	sealCmd.Flags().String("in", "", `read the trajectory from this file ("-" for stdin) instead of synthesizing one`)
	sealCmd.Flags().String("key", "", "base64 AES key of 16, 24 or 32 bytes")
	sealCmd.Flags().String("nonce", "", "base64 12 byte nonce (random if empty)")
	sealCmd.Flags().Bool("validate", true, "refuse to seal trajectories outside the bounding box or out of time order")
	sealCmd.Flags().String("out", "", "write the sealed payload to this file instead of stdout")
}

// keyFromFlags returns --key, or prompts for it when stdin is a terminal.
func keyFromFlags(cmd *cobra.Command) (string, error) {
	if key, _ := cmd.Flags().GetString("key"); key != "" {
		return key, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("--key is required when stdin is not a terminal")
	}
	fmt.Fprint(cmd.ErrOrStderr(), "AES key (base64): ")
	key, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read key: %w", err)
	}
	return strings.TrimSpace(string(key)), nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %v: %w", path, err)
	}
	return data, nil
}
