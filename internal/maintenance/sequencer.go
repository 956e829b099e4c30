package maintenance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
)

// Status is the outcome of a single step.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result records what happened to one step.
type Result struct {
	Step     string        `json:"step" yaml:"step"`
	Mode     Mode          `json:"mode" yaml:"mode"`
	Status   Status        `json:"status" yaml:"status"`
	ExitCode int           `json:"exit_code" yaml:"exit_code"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Tally summarises a sequence run.
type Tally struct {
	OK      int `json:"ok" yaml:"ok"`
	Failed  int `json:"failed" yaml:"failed"`
	Skipped int `json:"skipped" yaml:"skipped"`
}

// Executor runs a single command, streaming its output.
type Executor interface {
	Run(ctx context.Context, stdout, stderr io.Writer, argv ...string) error
}

// ExecExecutor runs commands with os/exec.
type ExecExecutor struct{}

func (ExecExecutor) Run(ctx context.Context, stdout, stderr io.Writer, argv ...string) error {
	if len(argv) == 0 {
		return errors.New("empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var errBuf bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = io.MultiWriter(stderr, &errBuf)
	if err := cmd.Run(); err != nil {
		errText := strings.TrimSpace(errBuf.String())
		if errText != "" {
			return fmt.Errorf("%s: %s: %w", strings.Join(argv, " "), lastLine(errText), err)
		}
		return fmt.Errorf("%s: %w", strings.Join(argv, " "), err)
	}
	return nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Sequencer runs steps in order. A failed step never stops later steps.
type Sequencer struct {
	Exec   Executor
	Stdout io.Writer
	Stderr io.Writer
	Logger zerolog.Logger
	// Skip holds doublestar globs matched against step names and scripts.
	Skip []string
}

// NeedsEscalation reports whether any step that would run uses sudo.
func (s *Sequencer) NeedsEscalation(steps []Step) bool {
	for _, step := range steps {
		if step.Escalates() && !s.skipped(step) {
			return true
		}
	}
	return false
}

// Run executes every step and returns per-step results plus a tally.
// Cancellation skips the remaining steps.
func (s *Sequencer) Run(ctx context.Context, steps []Step) ([]Result, Tally) {
	runner := s.Exec
	if runner == nil {
		runner = ExecExecutor{}
	}
	stdout, stderr := s.Stdout, s.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	results := make([]Result, 0, len(steps))
	var tally Tally
	for _, step := range steps {
		res := Result{Step: step.DisplayName(), Mode: modeOf(step)}
		if s.skipped(step) || ctx.Err() != nil {
			res.Status = StatusSkipped
			tally.Skipped++
			results = append(results, res)
			s.Logger.Info().Str("step", res.Step).Msg("maintenance step skipped")
			continue
		}

		start := time.Now()
		err := runner.Run(ctx, stdout, stderr, step.Command()...)
		res.Duration = time.Since(start)
		if err != nil {
			res.Status = StatusFailed
			res.Error = err.Error()
			res.ExitCode = exitCode(err)
			tally.Failed++
			s.Logger.Error().Err(err).Str("step", res.Step).Int("exit_code", res.ExitCode).Msg("maintenance step failed")
		} else {
			res.Status = StatusOK
			tally.OK++
			s.Logger.Info().Str("step", res.Step).Dur("duration", res.Duration).Msg("maintenance step finished")
		}
		results = append(results, res)
	}
	return results, tally
}

func (s *Sequencer) skipped(step Step) bool {
	for _, pattern := range s.Skip {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		for _, candidate := range []string{step.DisplayName(), step.Script} {
			if ok, err := doublestar.Match(pattern, candidate); err == nil && ok {
				return true
			}
		}
	}
	return false
}

func modeOf(step Step) Mode {
	if step.Mode == "" {
		return ModeUser
	}
	return step.Mode
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
