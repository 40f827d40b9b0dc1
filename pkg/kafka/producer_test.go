package kafka

import (
	"reflect"
	"testing"
)

func TestParseBrokers(t *testing.T) {
	got := ParseBrokers(" kafka-1:9092, ,kafka-2:9092 ")
	want := []string{"kafka-1:9092", "kafka-2:9092"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestNewEventProducerRequiresBrokers(t *testing.T) {
	if _, err := NewEventProducer(nil, nil); err == nil {
		t.Fatalf("expected error without brokers")
	}
}
