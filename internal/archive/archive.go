// Package archive ships finished runs out of the driver: the transcript goes
// to object storage and a run event goes to the event topic.
package archive

import (
	"context"
	"encoding/json"
	"os"
	"path"
	"time"

	"github.com/turingarena/turingarena-sub002/internal/common/mq"
	"github.com/turingarena/turingarena-sub002/internal/common/storage"
	"github.com/turingarena/turingarena-sub002/internal/driver"
	"github.com/turingarena/turingarena-sub002/internal/sandbox/transcript"
	"github.com/turingarena/turingarena-sub002/pkg/errors"
	"github.com/turingarena/turingarena-sub002/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	transcriptContentType = "application/zstd"
	eventHeader           = "event"
	eventRunFinished      = "run.finished"
)

// Config holds archive settings. Either half may be left empty.
type Config struct {
	Storage storage.MinIOConfig `yaml:"storage"`
	Events  mq.KafkaConfig      `yaml:"events"`
}

// RunEvent is published once per finished run.
type RunEvent struct {
	RunID         string           `json:"run_id"`
	Code          errors.ErrorCode `json:"code"`
	Category      errors.Category  `json:"category,omitempty"`
	Message       string           `json:"message"`
	Details       map[string]any   `json:"details,omitempty"`
	Report        driver.RunReport `json:"report"`
	TranscriptKey string           `json:"transcript_key,omitempty"`
	FinishedAt    time.Time        `json:"finished_at"`
}

// Archiver uploads transcripts and publishes run events. A nil store or
// producer disables that half.
type Archiver struct {
	store  storage.ObjectStorage
	bucket string
	prefix string

	events mq.Producer
	topic  string

	now func() time.Time
}

func NewArchiver(store storage.ObjectStorage, bucket, prefix string, events mq.Producer, topic string) *Archiver {
	return &Archiver{
		store:  store,
		bucket: bucket,
		prefix: prefix,
		events: events,
		topic:  topic,
		now:    time.Now,
	}
}

// Archive records the outcome of a run. runErr is the error returned by the
// session; nil means the run succeeded.
func (a *Archiver) Archive(ctx context.Context, report driver.RunReport, runErr error) (RunEvent, error) {
	event := RunEvent{
		RunID:      report.RunID,
		Code:       errors.Success,
		Message:    errors.Success.Message(),
		Report:     report,
		FinishedAt: a.now().UTC(),
	}
	if runErr != nil {
		e := errors.GetError(runErr)
		event.Code = e.Code
		event.Category = e.Code.Category()
		event.Message = e.Error()
		if len(e.Details) > 0 {
			event.Details = e.Details
		}
	}

	if a.store != nil && report.Transcript != "" {
		key, err := a.uploadTranscript(ctx, report)
		if err != nil {
			return event, err
		}
		event.TranscriptKey = key
	}

	if a.events != nil {
		if err := a.publish(ctx, event); err != nil {
			return event, err
		}
	}
	return event, nil
}

func (a *Archiver) uploadTranscript(ctx context.Context, report driver.RunReport) (string, error) {
	f, err := os.Open(report.Transcript)
	if err != nil {
		return "", errors.Wrapf(err, errors.StorageError, "open transcript")
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", errors.Wrapf(err, errors.StorageError, "stat transcript")
	}

	key := a.transcriptKey(report.RunID)
	if err := a.store.PutObject(ctx, a.bucket, key, f, info.Size(), transcriptContentType); err != nil {
		return "", errors.Wrapf(err, errors.StorageError, "upload transcript")
	}
	logger.Info(ctx, "transcript archived", zap.String("bucket", a.bucket), zap.String("key", key), zap.Int64("size", info.Size()))
	return key, nil
}

func (a *Archiver) publish(ctx context.Context, event RunEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.Wrapf(err, errors.EventPublishFailed, "marshal run event")
	}
	msg := mq.NewMessage(event.RunID, body)
	msg.SetHeader(eventHeader, eventRunFinished)
	msg.Timestamp = event.FinishedAt
	if err := a.events.Publish(ctx, a.topic, msg); err != nil {
		return errors.Wrapf(err, errors.EventPublishFailed, "publish run event")
	}
	logger.Debug(ctx, "run event published", zap.String("topic", a.topic))
	return nil
}

func (a *Archiver) transcriptKey(runID string) string {
	return path.Join(a.prefix, "runs", runID+".log.zst")
}

// Transcript downloads and decodes the archived transcript of a run.
func (a *Archiver) Transcript(ctx context.Context, runID string) ([]transcript.Entry, error) {
	if a.store == nil {
		return nil, errors.New(errors.ServiceUnavailable).WithMessage("object storage is not configured")
	}
	key := a.transcriptKey(runID)
	stat, err := a.store.StatObject(ctx, a.bucket, key)
	if err != nil {
		return nil, errors.Wrapf(err, errors.NotFound, "transcript of run %s", runID)
	}
	if stat.ContentType != "" && stat.ContentType != transcriptContentType {
		return nil, errors.Newf(errors.InvalidFormat, "object %s has content type %s", key, stat.ContentType)
	}

	body, err := a.store.GetObject(ctx, a.bucket, key)
	if err != nil {
		return nil, errors.Wrapf(err, errors.StorageError, "download transcript")
	}
	defer body.Close()
	return transcript.Read(body)
}
