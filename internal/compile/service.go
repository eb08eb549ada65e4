// Package compile compiles interface sources on demand and keeps the
// results for the runs and HTTP clients that ask for them again.
package compile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"os"
	"strings"
	"time"

	"github.com/turingarena/turingarena-sub002/internal/common/cache"
	"github.com/turingarena/turingarena-sub002/internal/idl"
	"github.com/turingarena/turingarena-sub002/internal/idl/parser"
	"github.com/turingarena/turingarena-sub002/pkg/errors"
	"github.com/turingarena/turingarena-sub002/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultMaxSourceBytes = 256 << 10
	defaultReportTTL      = 24 * time.Hour
	reportKeyPrefix       = "interface:report:"
)

// Config holds compile service settings.
type Config struct {
	MaxSourceBytes int           `yaml:"maxSourceBytes"`
	CacheSize      int           `yaml:"cacheSize"`
	CacheTTL       time.Duration `yaml:"cacheTTL"`
	ReportTTL      time.Duration `yaml:"reportTTL"`
}

func (c *Config) applyDefaults() {
	if c.MaxSourceBytes <= 0 {
		c.MaxSourceBytes = defaultMaxSourceBytes
	}
	if c.ReportTTL <= 0 {
		c.ReportTTL = defaultReportTTL
	}
}

// Report is what clients learn about a compiled interface.
type Report struct {
	Key         string           `json:"key"`
	Valid       bool             `json:"valid"`
	Diagnostics []idl.Diagnostic `json:"diagnostics"`
	Methods     []string         `json:"methods"`
	Globals     []string         `json:"globals"`
	Description string           `json:"description"`
	CompiledAt  time.Time        `json:"compiled_at"`
}

// Service compiles interfaces. Compiled interfaces stay in a process-local
// LRU; reports are shared through the optional cache so every replica can
// answer for a key any of them compiled.
type Service struct {
	cfg        Config
	interfaces *LRUCache[string, *idl.Interface]
	reports    cache.Cache
}

// NewService creates a compile service. reports may be nil.
func NewService(cfg Config, reports cache.Cache) *Service {
	cfg.applyDefaults()
	return &Service{
		cfg:        cfg,
		interfaces: NewLRUCache[string, *idl.Interface](cfg.CacheSize, cfg.CacheTTL),
		reports:    reports,
	}
}

// Key identifies a source text.
func Key(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// Compile compiles source, or reuses an earlier compilation of the same
// text. An interface with diagnostics is still compiled and reported; only
// a syntax error fails.
func (s *Service) Compile(ctx context.Context, source string) (*Report, error) {
	if len(source) > s.cfg.MaxSourceBytes {
		return nil, errors.Newf(errors.InterfaceTooLarge, "interface source has %d bytes, limit is %d", len(source), s.cfg.MaxSourceBytes)
	}
	if strings.TrimSpace(source) == "" {
		return nil, errors.BadRequest("interface source is empty")
	}

	key := Key(source)
	iface, ok := s.interfaces.Get(key)
	if !ok {
		var err error
		iface, err = CompileSource(source)
		if err != nil {
			logger.Warn(ctx, "interface rejected", zap.String("key", key), zap.Error(err))
			return nil, err
		}
		s.interfaces.Set(key, iface)
	}

	if s.reports == nil {
		return buildReport(key, iface), nil
	}
	return cache.GetWithCached(ctx, s.reports, reportKeyPrefix+key,
		cache.JitterTTL(s.cfg.ReportTTL), 0,
		func(r *Report) bool { return r == nil },
		marshalReport,
		unmarshalReport,
		func(context.Context) (*Report, error) {
			logger.Info(ctx, "interface compiled", zap.String("key", key), zap.Int("diagnostics", len(iface.Validate())))
			return buildReport(key, iface), nil
		},
	)
}

// Interface returns a compiled interface held by this process.
func (s *Service) Interface(key string) (*idl.Interface, error) {
	iface, ok := s.interfaces.Get(key)
	if !ok {
		return nil, errors.Newf(errors.InterfaceNotCompiled, "interface %s is not compiled", key)
	}
	return iface, nil
}

// Report returns the report of an interface compiled by any replica.
func (s *Service) Report(ctx context.Context, key string) (*Report, error) {
	if iface, ok := s.interfaces.Get(key); ok {
		return buildReport(key, iface), nil
	}
	if s.reports != nil {
		data, err := s.reports.Get(ctx, reportKeyPrefix+key)
		if err != nil {
			return nil, errors.Wrapf(err, errors.CacheError, "read report %s", key)
		}
		if data != "" && data != cache.NullCacheValue {
			return unmarshalReport(data)
		}
	}
	return nil, errors.Newf(errors.NotFound, "interface %s not found", key)
}

// Forget drops an interface from the local LRU and the shared cache.
func (s *Service) Forget(ctx context.Context, key string) error {
	s.interfaces.Delete(key)
	if s.reports == nil {
		return nil
	}
	if err := s.reports.Del(ctx, reportKeyPrefix+key); err != nil {
		return errors.Wrapf(err, errors.CacheError, "delete report %s", key)
	}
	return nil
}

// CompileSource compiles source, mapping a syntax error to a coded error
// that carries its position.
func CompileSource(source string) (*idl.Interface, error) {
	iface, err := idl.Compile(source)
	if err == nil {
		return iface, nil
	}
	var syntaxErr *parser.SyntaxError
	if stderrors.As(err, &syntaxErr) {
		return nil, errors.Wrap(err, errors.InterfaceSyntaxError).
			WithDetail("line", syntaxErr.Line).
			WithDetail("column", syntaxErr.Column)
	}
	return nil, errors.InternalError(err)
}

// LoadFile compiles the interface at path and rejects it when it has
// diagnostics.
func LoadFile(path string) (*idl.Interface, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.InterfaceReadFailed, "read interface %s", path)
	}
	iface, err := CompileSource(string(data))
	if err != nil {
		return nil, err
	}
	if diags := iface.Validate(); len(diags) > 0 {
		msgs := make([]string, len(diags))
		for i, d := range diags {
			msgs[i] = d.String()
		}
		return nil, errors.Newf(errors.InterfaceInvalid, "%s:\n%s", path, strings.Join(msgs, "\n"))
	}
	return iface, nil
}

func buildReport(key string, iface *idl.Interface) *Report {
	diags := iface.Validate()
	r := &Report{
		Key:         key,
		Valid:       len(diags) == 0,
		Diagnostics: diags,
		Methods:     make([]string, len(iface.Methods)),
		Globals:     make([]string, len(iface.Globals)),
		Description: iface.Describe(),
		CompiledAt:  time.Now().UTC(),
	}
	for i, m := range iface.Methods {
		r.Methods[i] = m.Signature()
	}
	for i, g := range iface.Globals {
		r.Globals[i] = g.Name + strings.Repeat("[]", g.Dimensions)
	}
	return r
}

func marshalReport(r *Report) (string, error) {
	data, err := json.Marshal(r)
	return string(data), err
}

func unmarshalReport(data string) (*Report, error) {
	var r Report
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, errors.Wrapf(err, errors.CacheError, "decode report")
	}
	return &r, nil
}
