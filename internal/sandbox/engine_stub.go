//go:build !linux

package sandbox

import (
	"context"

	"github.com/turingarena/turingarena-sub002/pkg/errors"
)

type stubEngine struct{}

func NewEngine(cfg Config) (Engine, error) {
	return &stubEngine{}, nil
}

func (s *stubEngine) Start(ctx context.Context, spec Spec) (*Process, error) {
	return nil, errors.Newf(errors.SandboxStartFailed, "sandbox engine is only supported on linux")
}
