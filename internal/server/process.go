package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// PredictionRunner turns one JSON applicant record into a risk label.
type PredictionRunner interface {
	Predict(ctx context.Context, record []byte) (string, error)
}

// ProcessError is returned when the predictor process fails. Stderr holds
// everything the process wrote to standard error.
type ProcessError struct {
	Err      error
	Stderr   string
	TimedOut bool
}

func (e *ProcessError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("predictor timed out: %v", e.Err)
	}
	return fmt.Sprintf("predictor failed: %v", e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }

// ProcessRunner spawns a fresh predictor process per record, writing the
// record to its stdin and reading the label from its stdout.
type ProcessRunner struct {
	Command []string
	Env     []string
	Timeout time.Duration
}

// NewProcessRunner runs command (program followed by arguments) with the
// extra environment entries in env.
func NewProcessRunner(command []string, env []string, timeout time.Duration) (*ProcessRunner, error) {
	if len(command) == 0 {
		return nil, errors.New("predictor command is empty")
	}
	return &ProcessRunner{Command: command, Env: env, Timeout: timeout}, nil
}

func (p *ProcessRunner) Predict(ctx context.Context, record []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.Command[0], p.Command[1:]...)
	cmd.Stdin = bytes.NewReader(record)
	cmd.Env = append(os.Environ(), p.Env...)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded)
		log.Error().
			Err(err).
			Strs("command", p.Command).
			Str("stderr", stderr.String()).
			Str("stdout", stdout.String()).
			Dur("timeout", p.Timeout).
			Bool("timed_out", timedOut).
			Msg("Predictor process failed")

		return "", &ProcessError{Err: err, Stderr: stderr.String(), TimedOut: timedOut}
	}

	label := strings.TrimSpace(stdout.String())
	if label == "" {
		return "", &ProcessError{Err: errors.New("predictor wrote no label"), Stderr: stderr.String()}
	}

	log.Debug().Str("label", label).Str("stderr", stderr.String()).Msg("Predictor process finished")
	return label, nil
}
