package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/turingarena/turingarena-sub002/internal/archive"
	"github.com/turingarena/turingarena-sub002/internal/common/mq"
	"github.com/turingarena/turingarena-sub002/internal/common/storage"
	"github.com/turingarena/turingarena-sub002/internal/compile"
	"github.com/turingarena/turingarena-sub002/internal/driver"
	"github.com/turingarena/turingarena-sub002/internal/proxy"
	"github.com/turingarena/turingarena-sub002/internal/sandbox"
	"github.com/turingarena/turingarena-sub002/internal/sandbox/transcript"
	"github.com/turingarena/turingarena-sub002/pkg/errors"
	"github.com/turingarena/turingarena-sub002/pkg/utils/logger"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	ifacePath := flag.String("interface", "", "Override interface path")
	network := flag.String("network", "", "Override proxy network (stdio, unix, tcp, ws)")
	address := flag.String("address", "", "Override proxy address")
	transcriptDir := flag.String("transcript-dir", "", "Override transcript directory")
	reportPath := flag.String("report", "", "Write the run report as JSON to this path")
	replayID := flag.String("replay", "", "Print the archived transcript of this run id and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] [-- program args...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		os.Exit(2)
	}
	if *ifacePath != "" {
		cfg.Interface = *ifacePath
	}
	if *network != "" {
		cfg.Proxy.Network = *network
	}
	if *address != "" {
		cfg.Proxy.Address = *address
	}
	if *transcriptDir != "" {
		cfg.Session.TranscriptDir = *transcriptDir
	}
	if flag.NArg() > 0 {
		cfg.Session.Cmd = flag.Args()
	}
	if *replayID != "" {
		if err := logger.Init(cfg.Logger); err != nil {
			fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
			os.Exit(2)
		}
		code := replay(cfg.Archive, *replayID, os.Stdout)
		_ = logger.Sync()
		os.Exit(code)
	}
	if err := validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}

	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(2)
	}

	code := run(cfg, *reportPath)
	_ = logger.Sync()
	os.Exit(code)
}

func run(cfg *AppConfig, reportPath string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	iface, err := compile.LoadFile(cfg.Interface)
	if err != nil {
		logger.Error(ctx, "load interface failed", zap.String("path", cfg.Interface), zap.Error(err))
		return 2
	}

	sb, err := sandbox.NewEngine(cfg.Sandbox)
	if err != nil {
		logger.Error(ctx, "init sandbox failed", zap.Error(err))
		return 2
	}

	conn, err := proxy.Accept(ctx, cfg.Proxy)
	if err != nil {
		logger.Error(ctx, "accept evaluator failed", zap.Error(err))
		return 2
	}

	session := driver.NewSession(driver.NewEngine(), sb, cfg.Session)
	report, runErr := session.Run(ctx, iface, conn)
	if reportPath != "" {
		if err := writeReport(reportPath, report, runErr); err != nil {
			logger.Error(ctx, "write report failed", zap.Error(err))
		}
	}
	archiveRun(ctx, cfg.Archive, report, runErr)
	if runErr != nil {
		e := errors.GetError(runErr)
		logger.Error(ctx, "run failed",
			zap.Int("code", int(e.Code)),
			zap.String("category", string(e.Code.Category())),
			zap.String("message", e.Error()),
			zap.Any("details", e.Details),
		)
		return 1
	}
	logger.Info(ctx, "run succeeded", zap.String("run_id", report.RunID), zap.Int("calls", report.Calls))
	return 0
}

// archiveRun ships the run to storage and the event topic when either is
// configured. Failures are logged and never change the exit code.
func archiveRun(ctx context.Context, cfg archive.Config, report driver.RunReport, runErr error) {
	if cfg.Storage.Endpoint == "" && len(cfg.Events.Brokers) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()

	var store storage.ObjectStorage
	if cfg.Storage.Endpoint != "" {
		minioStore, err := storage.NewMinIOStorage(cfg.Storage)
		if err != nil {
			logger.Error(ctx, "init object storage failed", zap.Error(err))
			return
		}
		if err := minioStore.EnsureBucket(ctx, cfg.Storage.Bucket); err != nil {
			logger.Error(ctx, "ensure bucket failed", zap.String("bucket", cfg.Storage.Bucket), zap.Error(err))
			return
		}
		store = minioStore
	}

	var events mq.Producer
	if len(cfg.Events.Brokers) > 0 {
		producer, err := mq.NewKafkaProducer(cfg.Events)
		if err != nil {
			logger.Error(ctx, "init event producer failed", zap.Error(err))
			return
		}
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Warn(ctx, "close event producer failed", zap.Error(err))
			}
		}()
		events = producer
	}

	archiver := archive.NewArchiver(store, cfg.Storage.Bucket, cfg.Storage.Prefix, events, cfg.Events.Topic)
	if _, err := archiver.Archive(ctx, report, runErr); err != nil {
		logger.Error(ctx, "archive run failed", zap.String("run_id", report.RunID), zap.Error(err))
	}
}

// replay prints an archived transcript, one "> line" or "< line" per entry.
func replay(cfg archive.Config, runID string, out io.Writer) int {
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	if cfg.Storage.Endpoint == "" {
		logger.Error(ctx, "replay needs archive.storage in the config")
		return 2
	}
	store, err := storage.NewMinIOStorage(cfg.Storage)
	if err != nil {
		logger.Error(ctx, "init object storage failed", zap.Error(err))
		return 2
	}
	entries, err := archive.NewArchiver(store, cfg.Storage.Bucket, cfg.Storage.Prefix, nil, "").Transcript(ctx, runID)
	if err != nil {
		logger.Error(ctx, "fetch transcript failed", zap.String("run_id", runID), zap.Error(err))
		return 1
	}
	return printTranscript(out, entries)
}

func printTranscript(out io.Writer, entries []transcript.Entry) int {
	w := bufio.NewWriter(out)
	for _, e := range entries {
		fmt.Fprintf(w, "%c %s\n", e.Direction, e.Line)
	}
	if err := w.Flush(); err != nil {
		return 1
	}
	return 0
}

type reportFile struct {
	driver.RunReport
	Code    errors.ErrorCode       `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func writeReport(path string, report driver.RunReport, runErr error) error {
	out := reportFile{RunReport: report, Code: errors.Success, Message: errors.Success.Message()}
	if runErr != nil {
		e := errors.GetError(runErr)
		out.Code, out.Message, out.Details = e.Code, e.Error(), e.Details
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
