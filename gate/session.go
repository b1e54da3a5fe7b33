package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"go.uber.org/zap"

	"github.com/spacemeshos/powgate/config"
	"github.com/spacemeshos/powgate/pow"
	"github.com/spacemeshos/powgate/sealing"
	"github.com/spacemeshos/powgate/telemetry"
)

// Report summarizes a completed session.
type Report struct {
	ClientID   string          `json:"client_id"`
	Samples    int             `json:"samples"`
	SealedSize int             `json:"sealed_size"`
	Challenge  pow.Challenge   `json:"challenge"`
	Solution   pow.Solution    `json:"solution"`
	SolveTime  time.Duration   `json:"solve_time"`
	Setup      json.RawMessage `json:"setup_response"`
	Validation json.RawMessage `json:"validation_response"`
	Solved     json.RawMessage `json:"solution_response,omitempty"`
}

// Session runs the gate protocol once: key, telemetry, setup, solve, validate.
type Session struct {
	client    *Client
	synth     *telemetry.Synthesizer
	telemetry config.TelemetryConfig
	solver    config.SolverConfig
	submit    bool
	logger    *zap.Logger
	solveOpts []pow.OptionFunc
}

type SessionOption func(*Session)

func WithSynthesizer(s *telemetry.Synthesizer) SessionOption {
	return func(sess *Session) {
		sess.synth = s
	}
}

func WithSessionLogger(logger *zap.Logger) SessionOption {
	return func(sess *Session) {
		sess.logger = logger
	}
}

// WithSolveOptions appends options passed to pow.Solve, e.g. a progress callback.
func WithSolveOptions(opts ...pow.OptionFunc) SessionOption {
	return func(sess *Session) {
		sess.solveOpts = append(sess.solveOpts, opts...)
	}
}

func NewSession(client *Client, cfg config.Config, opts ...SessionOption) *Session {
	s := &Session{
		client:    client,
		telemetry: cfg.Telemetry,
		solver:    cfg.Solver,
		submit:    cfg.Gate.SubmitSolution,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.synth == nil {
		s.synth = NewSynthesizer(cfg.Telemetry)
	}
	return s
}

// NewSynthesizer builds a synthesizer shaped by cfg using the system clock and a time seeded source.
func NewSynthesizer(cfg config.TelemetryConfig, opts ...telemetry.Option) *telemetry.Synthesizer {
	base := []telemetry.Option{
		telemetry.WithBox(telemetry.Box{MinX: cfg.MinX, MinY: cfg.MinY, MaxX: cfg.MaxX, MaxY: cfg.MaxY}),
		telemetry.WithStart(telemetry.Point{X: cfg.StartX, Y: cfg.StartY}),
		telemetry.WithStep(telemetry.StepRange{XMin: cfg.StepXMin, XMax: cfg.StepXMax, YMin: cfg.StepYMin, YMax: cfg.StepYMax}),
		telemetry.WithTick(cfg.TickMinMs, cfg.TickMaxMs),
	}
	return telemetry.NewSynthesizer(append(base, opts...)...)
}

// SolverOptions translates the solver config into pow options.
func SolverOptions(cfg config.SolverConfig) []pow.OptionFunc {
	opts := []pow.OptionFunc{
		pow.WithProgressInterval(cfg.ProgressInterval),
		pow.WithCheckInterval(cfg.CheckInterval),
		pow.WithMaxAttempts(cfg.MaxAttempts),
	}
	if cfg.Workers > 0 {
		opts = append(opts, pow.WithWorkers(cfg.Workers))
	}
	return opts
}

// Trajectory synthesizes the telemetry for one session, jittered if configured.
func (s *Session) Trajectory() telemetry.Trajectory {
	tr := s.synth.Synthesize(s.telemetry.NumPoints)
	if s.telemetry.Jitter {
		tr = s.synth.Jitter(tr, s.telemetry.JitterXY, s.telemetry.JitterTimeMs)
	}
	return tr
}

func (s *Session) Run(ctx context.Context) (*Report, error) {
	logger := s.logger.With(zap.String("client", s.client.ClientID()))

	// The gesture is captured up front and moved to the current time right before sealing.
	tr := s.Trajectory()
	logger.Info("generated telemetry", zap.Int("samples", len(tr)), zap.Duration("span", tr.Duration()))

	key, err := s.client.FetchKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch key: %w", err)
	}
	logger.Info("retrieved key")

	tr = s.synth.Refresh(tr)
	sealed, err := sealing.SealB64(tr, key, "", sealing.WithValidation(s.synth.Box()))
	if err != nil {
		return nil, fmt.Errorf("seal telemetry: %w", err)
	}
	setup := NewSetupPayload(sealed)
	logger.Info("sealed telemetry",
		zap.String("size", bytefmt.ByteSize(uint64(len(sealed.Ciphertext)))),
		zap.String("nonce", setup.Nonce),
	)

	setupResp, err := s.client.SubmitSetup(ctx, setup)
	if err != nil {
		return nil, fmt.Errorf("submit setup: %w", err)
	}

	ch, err := pow.ParseChallenge(setupResp.Body)
	if err != nil {
		return nil, fmt.Errorf("setup response: %w", err)
	}
	logger.Info("received challenge", zap.String("prefix", ch.Prefix), zap.Int("difficulty", ch.Difficulty))

	solveCtx := ctx
	if s.solver.Timeout > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, s.solver.Timeout)
		defer cancel()
	}

	start := time.Now()
	opts := append(SolverOptions(s.solver), pow.WithLogger(logger))
	sol, err := pow.Solve(solveCtx, ch, append(opts, s.solveOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("solve challenge: %w", err)
	}
	solveTime := time.Since(start)

	validation, err := s.client.SubmitValidation(ctx, NewValidationPayload(ch, *sol))
	if err != nil {
		return nil, fmt.Errorf("submit validation: %w", err)
	}
	logger.Info("validation accepted", zap.Int("status", validation.Status))

	report := &Report{
		ClientID:   s.client.ClientID(),
		Samples:    len(tr),
		SealedSize: len(sealed.Ciphertext),
		Challenge:  ch,
		Solution:   *sol,
		SolveTime:  solveTime,
		Setup:      setupResp.Body,
		Validation: validation.Body,
	}

	if s.submit {
		solved, err := s.client.SubmitSolution(ctx, NewSolutionPayload(*sol))
		if err != nil {
			return report, fmt.Errorf("submit solution: %w", err)
		}
		report.Solved = solved.Body
	}
	return report, nil
}
