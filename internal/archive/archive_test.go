package archive

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/turingarena/turingarena-sub002/internal/common/mq"
	"github.com/turingarena/turingarena-sub002/internal/common/storage"
	"github.com/turingarena/turingarena-sub002/internal/driver"
	"github.com/turingarena/turingarena-sub002/internal/sandbox/transcript"
	"github.com/turingarena/turingarena-sub002/pkg/errors"
)

type fakeStorage struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeStorage) PutObject(_ context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	if f.err != nil {
		return f.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if size >= 0 && int64(len(data)) != size {
		return stderrors.New("size mismatch")
	}
	f.objects[bucket+"/"+key] = data
	f.types[bucket+"/"+key] = contentType
	return nil
}

func (f *fakeStorage) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, stderrors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStorage) StatObject(_ context.Context, bucket, key string) (storage.ObjectStat, error) {
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return storage.ObjectStat{}, stderrors.New("no such object")
	}
	return storage.ObjectStat{SizeBytes: int64(len(data)), ContentType: f.types[bucket+"/"+key]}, nil
}

type fakeProducer struct {
	topics   []string
	messages []*mq.Message
	err      error
}

func (f *fakeProducer) Publish(_ context.Context, topic string, message *mq.Message) error {
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func writeTranscript(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "run.log.zst")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}
	return p
}

func fixedArchiver(store storage.ObjectStorage, events mq.Producer) *Archiver {
	a := NewArchiver(store, "runs-bucket", "dev", events, "run-events")
	a.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return a
}

func TestArchiveSuccessfulRun(t *testing.T) {
	store := newFakeStorage()
	events := &fakeProducer{}
	report := driver.RunReport{RunID: "r1", Calls: 2, Transcript: writeTranscript(t, "payload")}

	event, err := fixedArchiver(store, events).Archive(context.Background(), report, nil)
	if err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	if event.TranscriptKey != "dev/runs/r1.log.zst" {
		t.Fatalf("unexpected key %q", event.TranscriptKey)
	}
	stat, err := store.StatObject(context.Background(), "runs-bucket", event.TranscriptKey)
	if err != nil || stat.SizeBytes != int64(len("payload")) || stat.ContentType != transcriptContentType {
		t.Fatalf("unexpected object %+v (%v)", stat, err)
	}

	if len(events.messages) != 1 || events.topics[0] != "run-events" {
		t.Fatalf("expected one event on run-events, got %v", events.topics)
	}
	msg := events.messages[0]
	if msg.ID != "r1" {
		t.Fatalf("unexpected message id %q", msg.ID)
	}
	if v, _ := msg.GetHeader(eventHeader); v != eventRunFinished {
		t.Fatalf("unexpected event header %q", v)
	}
	var decoded RunEvent
	if err := json.Unmarshal(msg.Body, &decoded); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if decoded.Code != errors.Success || decoded.Report.Calls != 2 || decoded.TranscriptKey != event.TranscriptKey {
		t.Fatalf("unexpected event %+v", decoded)
	}
}

func TestArchiveFailedRunCarriesCodeAndDetails(t *testing.T) {
	events := &fakeProducer{}
	runErr := errors.New(errors.TimeLimitExceeded).WithDetails(map[string]interface{}{"time_ms": 1200})

	event, err := fixedArchiver(nil, events).Archive(context.Background(), driver.RunReport{RunID: "r2"}, runErr)
	if err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	if event.Code != errors.TimeLimitExceeded || event.Category != errors.CategoryResource || event.Details["time_ms"] != 1200 {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.TranscriptKey != "" {
		t.Fatalf("no transcript expected without storage")
	}
	if len(events.messages) != 1 {
		t.Fatalf("expected one event, got %d", len(events.messages))
	}
}

func TestArchiveErrors(t *testing.T) {
	tests := []struct {
		name   string
		store  *fakeStorage
		events *fakeProducer
		report driver.RunReport
		code   errors.ErrorCode
	}{
		{
			name:   "missing transcript file",
			store:  newFakeStorage(),
			report: driver.RunReport{RunID: "r", Transcript: filepath.Join(t.TempDir(), "missing")},
			code:   errors.StorageError,
		},
		{
			name:   "upload failure",
			store:  &fakeStorage{err: stderrors.New("bucket gone")},
			report: driver.RunReport{RunID: "r", Transcript: writeTranscript(t, "x")},
			code:   errors.StorageError,
		},
		{
			name:   "publish failure",
			events: &fakeProducer{err: stderrors.New("broker down")},
			report: driver.RunReport{RunID: "r"},
			code:   errors.EventPublishFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var store storage.ObjectStorage
			if tt.store != nil {
				store = tt.store
			}
			var events mq.Producer
			if tt.events != nil {
				events = tt.events
			}
			_, err := fixedArchiver(store, events).Archive(context.Background(), tt.report, nil)
			if !errors.Is(err, tt.code) {
				t.Fatalf("expected %v, got %v", tt.code, err)
			}
		})
	}
}

func TestTranscriptRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "run.log.zst")
	rec, err := transcript.Create(p)
	if err != nil {
		t.Fatalf("create transcript: %v", err)
	}
	rec.Downward("8")
	rec.Upward("36")
	if err := rec.Close(); err != nil {
		t.Fatalf("close transcript: %v", err)
	}

	store := newFakeStorage()
	a := fixedArchiver(store, nil)
	if _, err := a.Archive(context.Background(), driver.RunReport{RunID: "r3", Transcript: p}, nil); err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	entries, err := a.Transcript(context.Background(), "r3")
	if err != nil {
		t.Fatalf("fetch transcript: %v", err)
	}
	if len(entries) != 2 || entries[0] != (transcript.Entry{Direction: transcript.Downward, Line: "8"}) ||
		entries[1] != (transcript.Entry{Direction: transcript.Upward, Line: "36"}) {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestTranscriptErrors(t *testing.T) {
	if _, err := fixedArchiver(nil, nil).Transcript(context.Background(), "r"); !errors.Is(err, errors.ServiceUnavailable) {
		t.Fatalf("expected ServiceUnavailable without storage, got %v", err)
	}

	store := newFakeStorage()
	if _, err := fixedArchiver(store, nil).Transcript(context.Background(), "missing"); !errors.Is(err, errors.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}

	store.objects["runs-bucket/dev/runs/odd.log.zst"] = []byte("x")
	store.types["runs-bucket/dev/runs/odd.log.zst"] = "text/plain"
	if _, err := fixedArchiver(store, nil).Transcript(context.Background(), "odd"); !errors.Is(err, errors.InvalidFormat) {
		t.Fatalf("expected InvalidFormat, got %v", err)
	}
}
