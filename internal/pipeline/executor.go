package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"

	"patentflow/internal/stages"
	"patentflow/internal/workspace"
)

type OutcomeStatus string

const (
	StageSucceeded OutcomeStatus = "succeeded"
	// StageExhausted means every allowed attempt failed.
	StageExhausted OutcomeStatus = "exhausted"
	// StageAborted means retrying was pointless: a storage failure or a
	// cancelled context.
	StageAborted OutcomeStatus = "aborted"
)

// Outcome is the typed result of running one stage through Execute.
type Outcome struct {
	Stage      string
	Status     OutcomeStatus
	Attempts   int
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

func (o Outcome) Succeeded() bool { return o.Status == StageSucceeded }

// panicError carries a recovered stage panic and the stack at that point.
type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string { return fmt.Sprintf("panic: %v", p.value) }

// Execute runs fn up to maxAttempts times. An attempt succeeds when fn
// returns nil and Validate passes. Every failed attempt appends its trace to
// <stage>_error.log before the next one starts.
func Execute(ctx context.Context, name string, fn stages.Func, rc *stages.RunContext, maxAttempts int) Outcome {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	logger := rc.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := rc.Now
	if now == nil {
		now = time.Now
	}
	out := Outcome{Stage: name, StartedAt: now()}
	finish := func(status OutcomeStatus, err error) Outcome {
		out.Status = status
		out.Err = err
		out.FinishedAt = now()
		return out
	}

	for attempt := 1; ; attempt++ {
		out.Attempts = attempt
		logger.Info("stage attempt started", zap.String("stage", name), zap.Int("attempt", attempt), zap.Int("max_attempts", maxAttempts))

		err := runAttempt(ctx, fn, rc)
		if err == nil {
			err = Validate(rc.Store, name)
		}
		if err == nil {
			logger.Info("stage completed", zap.String("stage", name), zap.Int("attempt", attempt))
			return finish(StageSucceeded, nil)
		}

		logger.Warn("stage attempt failed", zap.String("stage", name), zap.Int("attempt", attempt), zap.Int("max_attempts", maxAttempts), zap.Error(err))
		if logErr := rc.Store.AppendText(workspace.ErrorLog(name), attemptTrace(now(), attempt, maxAttempts, err)); logErr != nil {
			return finish(StageAborted, errors.Join(err, logErr))
		}
		if workspace.IsStorageError(err) {
			return finish(StageAborted, err)
		}
		if ctx.Err() != nil {
			return finish(StageAborted, err)
		}
		if attempt >= maxAttempts {
			return finish(StageExhausted, err)
		}
	}
}

func runAttempt(ctx context.Context, fn stages.Func, rc *stages.RunContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	return fn(ctx, rc)
}

// attemptTrace renders one error-log entry: a header with timestamp and
// attempt counter and the error chain. Recovered panics add the stack of the
// panicking goroutine.
func attemptTrace(ts time.Time, attempt, max int, err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n=== [%s] attempt %d/%d ===\n", ts.Format("2006-01-02T15:04:05"), attempt, max)
	fmt.Fprintf(&b, "error: %v\n", err)
	for i, e := range errorChain(err) {
		fmt.Fprintf(&b, "  #%d %T: %v\n", i, e, e)
	}
	var pe *panicError
	if errors.As(err, &pe) {
		b.Write(pe.stack)
	}
	if !strings.HasSuffix(b.String(), "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

func errorChain(err error) []error {
	var chain []error
	for err != nil && len(chain) < 16 {
		chain = append(chain, err)
		switch x := err.(type) {
		case interface{ Unwrap() error }:
			err = x.Unwrap()
		case interface{ Unwrap() []error }:
			errs := x.Unwrap()
			if len(errs) == 0 {
				return chain
			}
			err = errs[len(errs)-1]
		default:
			return chain
		}
	}
	return chain
}
