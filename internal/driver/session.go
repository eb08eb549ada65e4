package driver

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/turingarena/turingarena-sub002/internal/idl"
	"github.com/turingarena/turingarena-sub002/internal/proxy"
	"github.com/turingarena/turingarena-sub002/internal/sandbox"
	"github.com/turingarena/turingarena-sub002/internal/sandbox/transcript"
	"github.com/turingarena/turingarena-sub002/pkg/errors"
	"github.com/turingarena/turingarena-sub002/pkg/utils/contextkey"
	"github.com/turingarena/turingarena-sub002/pkg/utils/logger"
)

// SessionConfig describes the submitted program of a session.
type SessionConfig struct {
	Cmd     []string       `yaml:"cmd"`
	WorkDir string         `yaml:"workDir"`
	Env     []string       `yaml:"env"`
	Limits  sandbox.Limits `yaml:"limits"`
	// TranscriptDir, when set, receives <run id>.log.zst with every line
	// exchanged with the process.
	TranscriptDir string `yaml:"transcriptDir"`
}

// Session wires one proxy connection, one sandboxed process and the engine.
type Session struct {
	engine  *Engine
	sandbox sandbox.Engine
	cfg     SessionConfig
}

func NewSession(engine *Engine, sb sandbox.Engine, cfg SessionConfig) *Session {
	return &Session{engine: engine, sandbox: sb, cfg: cfg}
}

// Run starts the program, drives it with iface against conn and waits for
// it to exit. conn is closed on return. A run that broke a resource limit
// fails with TimeLimitExceeded or MemoryLimitExceeded even when the
// protocol error came first.
func (s *Session) Run(ctx context.Context, iface *idl.Interface, conn *proxy.Conn) (report RunReport, err error) {
	defer conn.Close()

	runID := uuid.NewString()
	ctx = context.WithValue(ctx, contextkey.RunID, runID)
	report.RunID = runID

	proc, err := s.sandbox.Start(ctx, sandbox.Spec{
		RunID:   runID,
		WorkDir: s.cfg.WorkDir,
		Cmd:     s.cfg.Cmd,
		Env:     s.cfg.Env,
		Limits:  s.cfg.Limits,
	})
	if err != nil {
		return report, err
	}

	var transcriptPath string
	if s.cfg.TranscriptDir != "" {
		transcriptPath = filepath.Join(s.cfg.TranscriptDir, runID+".log.zst")
		rec, err := s.openTranscript(transcriptPath)
		if err != nil {
			proc.Kill()
			proc.Wait()
			return report, err
		}
		defer func() {
			if cerr := rec.Close(); cerr != nil {
				logger.Warn(ctx, "close transcript failed", zap.Error(cerr))
			}
		}()
		proc.Conn().Observe(rec)
	}

	report, runErr := s.engine.Run(ctx, iface, conn, proc.Conn())
	report.Transcript = transcriptPath
	if runErr != nil {
		proc.Kill()
	}
	usage := proc.Wait()
	report.Usage = &usage

	verdict := usage.Classify(s.cfg.Limits)
	switch {
	case verdict.IsResourceLimit():
		logger.Info(ctx, "resource limit exceeded", zap.String("verdict", verdict.Message()), zap.Error(runErr))
		if runErr == nil {
			return report, errors.New(verdict).WithDetails(usage.Details())
		}
		return report, errors.Wrapf(runErr, verdict, "%s", verdict.Message()).WithDetails(usage.Details())
	case runErr != nil:
		return report, errors.GetError(runErr).WithDetails(usage.Details())
	case verdict != errors.Success:
		return report, errors.Newf(verdict, "process exited with code %d", usage.ExitCode).WithDetails(usage.Details())
	}
	logger.Info(ctx, "process exited",
		zap.Int64("time_ms", usage.TimeMs),
		zap.Int64("memory_kb", usage.MemoryKB),
	)
	return report, nil
}

func (s *Session) openTranscript(path string) (*transcript.Recorder, error) {
	if err := os.MkdirAll(s.cfg.TranscriptDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, errors.InternalServerError, "create transcript dir")
	}
	return transcript.Create(path)
}
