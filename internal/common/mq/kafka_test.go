package mq

import (
	"context"
	"testing"
	"time"
)

func TestToKafkaMessage(t *testing.T) {
	msg := NewMessage("run-1", []byte(`{"ok":true}`))
	msg.SetHeader("event", "run.finished")
	msg.Timestamp = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	km := toKafkaMessage("runs", msg)
	if km.Topic != "runs" || string(km.Key) != "run-1" || string(km.Value) != `{"ok":true}` {
		t.Fatalf("unexpected message %+v", km)
	}
	headers := make(map[string]string, len(km.Headers))
	for _, h := range km.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["event"] != "run.finished" || headers[headerID] != "run-1" {
		t.Fatalf("unexpected headers %v", headers)
	}
	if headers[headerTimestamp] != "2026-01-02T03:04:05Z" {
		t.Fatalf("unexpected timestamp header %q", headers[headerTimestamp])
	}
}

func TestNewKafkaProducerRequiresBrokers(t *testing.T) {
	if _, err := NewKafkaProducer(KafkaConfig{}); err == nil {
		t.Fatalf("expected error without brokers")
	}
	p, err := NewKafkaProducer(KafkaConfig{Brokers: []string{"127.0.0.1:9092"}})
	if err != nil {
		t.Fatalf("new producer failed: %v", err)
	}
	if err := p.Publish(context.Background(), "", NewMessage("x", nil)); err == nil {
		t.Fatalf("expected error without topic")
	}
	_ = p.Close()
}
