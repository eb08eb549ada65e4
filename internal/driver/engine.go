// Package driver runs a compiled interface against an evaluator connection
// and a sandboxed process.
package driver

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/turingarena/turingarena-sub002/internal/idl"
	"github.com/turingarena/turingarena-sub002/internal/proxy"
	"github.com/turingarena/turingarena-sub002/internal/sandbox"
	"github.com/turingarena/turingarena-sub002/pkg/errors"
	"github.com/turingarena/turingarena-sub002/pkg/utils/contextkey"
	"github.com/turingarena/turingarena-sub002/pkg/utils/logger"

	"go.uber.org/zap"
)

// RunReport summarizes one run.
type RunReport struct {
	RunID         string         `json:"run_id"`
	Calls         int            `json:"calls"`
	CallbackCalls int            `json:"callback_calls"`
	Steps         int            `json:"steps"`
	LinesDown     int            `json:"lines_down"`
	LinesUp       int            `json:"lines_up"`
	Duration      time.Duration  `json:"duration"`
	Usage         *sandbox.Usage `json:"usage,omitempty"`
	// Transcript is the local path of the run transcript, if recorded.
	Transcript string `json:"transcript,omitempty"`
}

// Engine interprets interfaces. It holds no per-run state and may serve
// runs from several goroutines.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

type driver struct {
	run *runState
}

// Run consumes main_begin, binds the globals, drives main and returns once
// main_end has been consumed by the final exit.
func (e *Engine) Run(ctx context.Context, iface *idl.Interface, requests RequestStream, process ProcessStream) (RunReport, error) {
	report := RunReport{RunID: runID(ctx)}
	start := time.Now()

	if diags := iface.Validate(); len(diags) > 0 {
		return report, errors.Newf(errors.InterfaceInvalid, "interface has %d diagnostics, first: %s", len(diags), diags[0])
	}

	req, err := requests.Next()
	if err != nil {
		return report, err
	}
	if req.Kind != proxy.MainBegin {
		return report, errors.Newf(errors.UnexpectedRequest, "expected main_begin, got %s", req)
	}
	root, err := bindGlobals(iface, req.Globals)
	if err != nil {
		return report, err
	}

	d := &driver{run: &runState{requests: requests, process: process, report: &report}}
	c := execContext{ctx: ctx, run: d.run, phase: PhaseNone, bindings: root}
	logger.Info(ctx, "run started", zap.Int("globals", len(req.Globals)))

	_, err = d.drive(c, iface.Root())
	report.Duration = time.Since(start)
	switch {
	case stderrors.Is(err, errMainExit):
		logger.Info(ctx, "run completed",
			zap.Int("calls", report.Calls),
			zap.Int("callback_calls", report.CallbackCalls),
			zap.Int("steps", report.Steps),
			zap.Duration("duration", report.Duration),
		)
		return report, nil
	case err != nil:
		logger.Warn(ctx, "run failed", zap.Error(err), zap.Int("calls", report.Calls))
		return report, err
	}
	return report, errors.Newf(errors.InternalDriverError, "main ended without exit")
}

// bindGlobals binds the main_begin values to the globals, in order. No
// values at all leaves the globals to be learned from calls.
func bindGlobals(iface *idl.Interface, values []proxy.Value) (*Bindings, error) {
	root := NewBindings()
	if len(values) == 0 {
		return root, nil
	}
	if len(values) != len(iface.Globals) {
		return nil, errors.Newf(errors.GlobalVariableMissing,
			"interface has %d globals, main_begin carries %d values", len(iface.Globals), len(values))
	}
	for i, g := range iface.Globals {
		if !fitsDimensions(values[i], g.Dimensions) {
			return nil, errors.Newf(errors.ArgumentMismatch, "global %s should have %d dimensions, got %s", g.Name, g.Dimensions, values[i])
		}
		root.set(idl.Reference{Variable: g}, values[i])
	}
	return root, nil
}

func runID(ctx context.Context) string {
	if v := ctx.Value(contextkey.RunID); v != nil {
		return fmt.Sprint(v)
	}
	return ""
}
