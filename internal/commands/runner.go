// Package commands runs node and controller commands on a Z-Wave session on
// behalf of the transports (MQTT bridge, HTTP API).
//
// A Runner paces commands with a token bucket so bursts from automations do
// not flood the mesh, bounds each command with a timeout, executes it on the
// session's consumer goroutine and reports the outcome to a recorder
// (journal, metrics).
package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/nerrad567/gray-logic-zwave/internal/zwave"
)

// ErrRateLimited is returned when a command could not get a send slot
// before its deadline.
var ErrRateLimited = errors.New("commands: rate limit exceeded")

// Executor runs fn on the session's consumer goroutine.
// *zwave.Session satisfies it.
type Executor interface {
	Do(ctx context.Context, fn func(*zwave.Executor) error) error
}

// Config holds Runner settings.
type Config struct {
	// Timeout bounds waiting for a slot plus execution. Default 5s.
	Timeout time.Duration

	// Rate is the sustained commands per second. Zero disables pacing.
	Rate float64

	// Burst is how many commands may run back to back. Minimum 1 when
	// pacing is enabled.
	Burst int
}

// Runner executes commands. It is safe for concurrent use.
type Runner struct {
	session  Executor
	limiter  *rate.Limiter
	timeout  time.Duration
	recorder zwave.CommandRecorder
}

// NewRunner creates a Runner for session. recorder may be nil.
func NewRunner(session Executor, cfg Config, recorder zwave.CommandRecorder) (*Runner, error) {
	if session == nil {
		return nil, fmt.Errorf("session is required")
	}
	if cfg.Rate < 0 {
		return nil, fmt.Errorf("command rate must not be negative")
	}

	r := &Runner{
		session:  session,
		timeout:  cfg.Timeout,
		recorder: recorder,
	}
	if r.timeout <= 0 {
		r.timeout = 5 * time.Second
	}
	if cfg.Rate > 0 {
		burst := max(cfg.Burst, 1)
		r.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}
	return r, nil
}

// Run paces and executes cmd, then records it with source ("mqtt", "api").
func (r *Runner) Run(ctx context.Context, source string, cmd zwave.Command) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := r.wait(ctx)
	if err == nil {
		err = r.session.Do(ctx, cmd.Apply)
	}

	if r.recorder != nil {
		r.recorder.RecordCommand(context.WithoutCancel(ctx), source, cmd, err)
	}
	return err
}

func (r *Runner) wait(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	return nil
}

// Outcome classifies a command error for transports and metrics.
type Outcome string

// Outcomes returned by Classify.
const (
	OutcomeOK             Outcome = "ok"
	OutcomeBusy           Outcome = "busy"
	OutcomeTimeout        Outcome = "timeout"
	OutcomeNotFound       Outcome = "not_found"
	OutcomeUnknownCommand Outcome = "unknown_command"
	OutcomeInvalid        Outcome = "invalid"
	OutcomeUnavailable    Outcome = "unavailable"
	OutcomeDriverError    Outcome = "driver_error"
)

// Classify maps a command error to its outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrRateLimited):
		return OutcomeBusy
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	case errors.Is(err, zwave.ErrNodeNotFound), errors.Is(err, zwave.ErrValueNotFound):
		return OutcomeNotFound
	case errors.Is(err, zwave.ErrUnknownCommand):
		return OutcomeUnknownCommand
	case errors.Is(err, zwave.ErrInvalidParameters), errors.Is(err, zwave.ErrInvalidLevel),
		errors.Is(err, zwave.ErrInvalidValue), errors.Is(err, zwave.ErrUnsupportedKind):
		return OutcomeInvalid
	case errors.Is(err, zwave.ErrNotConnected), errors.Is(err, zwave.ErrNotRunning),
		errors.Is(err, zwave.ErrSessionClosed), errors.Is(err, context.Canceled):
		return OutcomeUnavailable
	default:
		// Anything else came back from the driver.
		return OutcomeDriverError
	}
}
