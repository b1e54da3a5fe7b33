package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spacemeshos/powgate/config"
	"github.com/spacemeshos/powgate/internal/logging"
)

var (
	Version string
	Commit  string

	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "powcli",
	Short: "Solve proof-of-work gates",
	Long: `powcli synthesizes pointer telemetry, seals it with AES-GCM and solves the
SHA-256 proof-of-work challenges handed out by a gate.

Each step is available as its own command, "run" performs a complete session.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		fmt.Sprintf("config file (default is %s)", filepath.Join(config.DefaultConfigDir, config.DefaultConfigFileName)))
	rootCmd.PersistentFlags().String("log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-encoding", config.DefaultLogEncoding, "log encoding (console, json)")
	rootCmd.PersistentFlags().String("log-file", "", "additionally write json logs to this file, rotated")
}

var persistentBindings = map[string]string{
	"log-level":    "logger.level",
	"log-encoding": "logger.encoding",
	"log-file":     "logger.file",
}

// loadConfig assembles the configuration from defaults, the config file,
// POWGATE_* environment variables and the flags of cmd listed in bindings.
// Logs go to stderr so that command output on stdout stays machine readable.
func loadConfig(cmd *cobra.Command, bindings map[string]string) (config.Config, *zap.Logger, error) {
	v := viper.New()
	v.SetEnvPrefix("POWGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only resolves keys viper already knows about.
	setDefaults(v, "", reflect.ValueOf(config.DefaultConfig()))

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(config.DefaultConfigDir)
		v.SetConfigName(strings.TrimSuffix(config.DefaultConfigFileName, filepath.Ext(config.DefaultConfigFileName)))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return config.Config{}, nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := bindFlags(v, cmd.Flags(), persistentBindings, bindings); err != nil {
		return config.Config{}, nil, err
	}

	cfg := config.DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return config.Config{}, nil, fmt.Errorf("decode config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, nil, err
	}

	logger, err := logging.New(cfg.Logger, cmd.ErrOrStderr())
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger.Named("powcli"), nil
}

// setDefaults registers every leaf of val under its mapstructure key path.
func setDefaults(v *viper.Viper, prefix string, val reflect.Value) {
	t := val.Type()
	for i := 0; i < t.NumField(); i++ {
		key := t.Field(i).Tag.Get("mapstructure")
		if key == "" {
			continue
		}
		if prefix != "" {
			key = prefix + "." + key
		}
		field := val.Field(i)
		if field.Kind() == reflect.Struct {
			setDefaults(v, key, field)
			continue
		}
		v.SetDefault(key, field.Interface())
	}
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet, bindings ...map[string]string) error {
	for _, b := range bindings {
		for name, key := range b {
			flag := flags.Lookup(name)
			if flag == nil {
				return fmt.Errorf("unknown flag %v for key %v", name, key)
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return fmt.Errorf("bind flag %v: %w", name, err)
			}
		}
	}
	return nil
}

// writeJSON prints v as indented JSON to stdout, or atomically replaces path with it.
func writeJSON(cmd *cobra.Command, path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return writeOutput(cmd, path, append(b, '\n'))
}

func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %v: %w", path, err)
	}
	return nil
}
