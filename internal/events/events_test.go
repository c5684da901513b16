package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestEncodeMessage(t *testing.T) {
	at := time.Date(2024, 1, 8, 7, 0, 0, 0, time.UTC)
	msg, err := encodeMessage(Event{
		Type:       TypeCompletionRecorded,
		UserID:     "alice",
		HabitID:    "h1",
		DayKey:     "2024-01-08",
		OccurredAt: at,
	})
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}

	if string(msg.Key) != "alice" {
		t.Errorf("expected key alice, got %q", msg.Key)
	}
	if !msg.Time.Equal(at) {
		t.Errorf("expected time %v, got %v", at, msg.Time)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != TypeCompletionRecorded {
		t.Errorf("unexpected headers %+v", msg.Headers)
	}

	var decoded Event
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("failed to decode value: %v", err)
	}
	if decoded.ID == "" {
		t.Error("expected generated event id")
	}
	if decoded.DayKey != "2024-01-08" || decoded.HabitID != "h1" {
		t.Errorf("unexpected payload %+v", decoded)
	}
}

func TestNewKafkaPublisherValidation(t *testing.T) {
	if _, err := NewKafkaPublisher(KafkaConfig{Topic: "habits"}); err == nil {
		t.Error("expected error without brokers")
	}
	if _, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}}); err == nil {
		t.Error("expected error without topic")
	}

	p, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "habits"})
	if err != nil {
		t.Fatalf("failed to create publisher: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	var p Publisher = &r
	p.Publish(context.Background(), Event{Type: TypeHabitCreated, HabitID: "h1"})
	p.Publish(context.Background(), Event{Type: TypeHabitDeleted, HabitID: "h1"})

	got := r.Events()
	if len(got) != 2 || got[1].Type != TypeHabitDeleted {
		t.Errorf("unexpected events %+v", got)
	}

	var nop Publisher = Nop{}
	if err := nop.Publish(context.Background(), Event{}); err != nil {
		t.Errorf("nop publish failed: %v", err)
	}
}
