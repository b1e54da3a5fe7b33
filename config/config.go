package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/spacemeshos/smutil"
)

const (
	DefaultDirName        = "powgate"
	DefaultConfigFileName = "powgate.yaml"

	DefaultNumPoints  = 50
	DefaultStartX     = 200
	DefaultStartY     = 50
	DefaultMinX       = 50
	DefaultMinY       = 10
	DefaultMaxX       = 400
	DefaultMaxY       = 300
	DefaultStepXMin   = -3
	DefaultStepXMax   = 3
	DefaultStepYMin   = -1
	DefaultStepYMax   = 2
	DefaultTickMinMs  = 1
	DefaultTickMaxMs  = 5
	DefaultJitterXY   = 2
	DefaultJitterTime = 3

	DefaultProgressInterval = 100_000
	DefaultCheckInterval    = 1 << 10
	DefaultSolveTimeout     = 5 * time.Minute

	DefaultKeyPath        = "/enckey"
	DefaultSetupPath      = "/api/pow/setup"
	DefaultValidatePath   = "/api/pow/validate"
	DefaultSolvePath      = "/api/pow/solve"
	DefaultRequestTimeout = 30 * time.Second

	DefaultLogLevel    = "info"
	DefaultLogEncoding = "console"
)

var DefaultConfigDir = filepath.Join(smutil.GetUserHomeDirectory(), DefaultDirName)

type Config struct {
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Solver    SolverConfig    `mapstructure:"solver"`
	Gate      GateConfig      `mapstructure:"gate"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// TelemetryConfig shapes the synthesized pointer trajectory.
type TelemetryConfig struct {
	NumPoints int `mapstructure:"points"`

	StartX int `mapstructure:"start-x"`
	StartY int `mapstructure:"start-y"`

	MinX int `mapstructure:"min-x"`
	MinY int `mapstructure:"min-y"`
	MaxX int `mapstructure:"max-x"`
	MaxY int `mapstructure:"max-y"`

	StepXMin int `mapstructure:"step-x-min"`
	StepXMax int `mapstructure:"step-x-max"`
	StepYMin int `mapstructure:"step-y-min"`
	StepYMax int `mapstructure:"step-y-max"`

	TickMinMs int64 `mapstructure:"tick-min-ms"`
	TickMaxMs int64 `mapstructure:"tick-max-ms"`

	Jitter       bool  `mapstructure:"jitter"`
	JitterXY     int   `mapstructure:"jitter-xy"`
	JitterTimeMs int64 `mapstructure:"jitter-time-ms"`
}

type SolverConfig struct {
	// Workers is the number of search goroutines. Zero selects the number of physical cores.
	Workers          int           `mapstructure:"workers"`
	ProgressInterval uint64        `mapstructure:"progress-interval"`
	CheckInterval    uint64        `mapstructure:"check-interval"`
	MaxAttempts      uint64        `mapstructure:"max-attempts"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

type GateConfig struct {
	BaseURL        string        `mapstructure:"base-url"`
	KeyPath        string        `mapstructure:"key-path"`
	SetupPath      string        `mapstructure:"setup-path"`
	ValidatePath   string        `mapstructure:"validate-path"`
	SolvePath      string        `mapstructure:"solve-path"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
	SubmitSolution bool          `mapstructure:"submit-solution"`
}

type LoggerConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`

	// LogFile enables a rotated JSON log file next to the console output.
	LogFile    string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max-size"`
	MaxBackups int    `mapstructure:"max-backups"`
	MaxAge     int    `mapstructure:"max-age"`
	Compress   bool   `mapstructure:"compress"`
}

func DefaultConfig() Config {
	return Config{
		Telemetry: TelemetryConfig{
			NumPoints:    DefaultNumPoints,
			StartX:       DefaultStartX,
			StartY:       DefaultStartY,
			MinX:         DefaultMinX,
			MinY:         DefaultMinY,
			MaxX:         DefaultMaxX,
			MaxY:         DefaultMaxY,
			StepXMin:     DefaultStepXMin,
			StepXMax:     DefaultStepXMax,
			StepYMin:     DefaultStepYMin,
			StepYMax:     DefaultStepYMax,
			TickMinMs:    DefaultTickMinMs,
			TickMaxMs:    DefaultTickMaxMs,
			Jitter:       true,
			JitterXY:     DefaultJitterXY,
			JitterTimeMs: DefaultJitterTime,
		},
		Solver: SolverConfig{
			ProgressInterval: DefaultProgressInterval,
			CheckInterval:    DefaultCheckInterval,
			Timeout:          DefaultSolveTimeout,
		},
		Gate: GateConfig{
			KeyPath:        DefaultKeyPath,
			SetupPath:      DefaultSetupPath,
			ValidatePath:   DefaultValidatePath,
			SolvePath:      DefaultSolvePath,
			RequestTimeout: DefaultRequestTimeout,
		},
		Logger: LoggerConfig{
			Level:      DefaultLogLevel,
			Encoding:   DefaultLogEncoding,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		},
	}
}

func Validate(cfg Config) error {
	if err := validateTelemetry(cfg.Telemetry); err != nil {
		return err
	}
	if err := validateSolver(cfg.Solver); err != nil {
		return err
	}
	return validateLogger(cfg.Logger)
}

func validateTelemetry(t TelemetryConfig) error {
	if t.NumPoints < 1 {
		return fmt.Errorf("invalid `NumPoints`; expected: >= 1, given: %d", t.NumPoints)
	}
	if t.MinX < 0 || t.MinY < 0 {
		return fmt.Errorf("invalid bounding box; expected: non-negative lower bounds, given: (%d, %d)", t.MinX, t.MinY)
	}
	if t.MinX > t.MaxX || t.MinY > t.MaxY {
		return fmt.Errorf("invalid bounding box; expected: min <= max, given: [%d,%d]x[%d,%d]", t.MinX, t.MaxX, t.MinY, t.MaxY)
	}
	if t.StepXMin > t.StepXMax || t.StepYMin > t.StepYMax {
		return fmt.Errorf("invalid step range; expected: min <= max, given: x [%d,%d], y [%d,%d]", t.StepXMin, t.StepXMax, t.StepYMin, t.StepYMax)
	}
	if t.TickMinMs < 1 || t.TickMinMs > t.TickMaxMs {
		return fmt.Errorf("invalid tick range; expected: 1 <= min <= max, given: [%d,%d]", t.TickMinMs, t.TickMaxMs)
	}
	if t.JitterXY < 0 || t.JitterTimeMs < 0 {
		return fmt.Errorf("invalid jitter; expected: >= 0, given: xy %d, time %d", t.JitterXY, t.JitterTimeMs)
	}
	return nil
}

func validateSolver(s SolverConfig) error {
	if s.Workers < 0 {
		return fmt.Errorf("invalid `Workers`; expected: >= 0, given: %d", s.Workers)
	}
	if s.CheckInterval == 0 {
		return errors.New("invalid `CheckInterval`; expected: > 0")
	}
	if s.Timeout < 0 {
		return fmt.Errorf("invalid `Timeout`; expected: >= 0, given: %v", s.Timeout)
	}
	return nil
}

func validateLogger(l LoggerConfig) error {
	switch l.Encoding {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log encoding; expected: console or json, given: %q", l.Encoding)
	}
	return nil
}

// ValidateGate checks the settings needed to talk to a gate. It is separate from Validate
// because the offline commands don't need a base URL.
func ValidateGate(g GateConfig) error {
	if g.BaseURL == "" {
		return errors.New("gate base url is required")
	}
	u, err := url.Parse(g.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid gate base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid gate base url scheme; expected: http or https, given: %q", u.Scheme)
	}
	if g.RequestTimeout <= 0 {
		return fmt.Errorf("invalid `RequestTimeout`; expected: > 0, given: %v", g.RequestTimeout)
	}
	return nil
}
