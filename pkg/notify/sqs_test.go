package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{}, nil
}

func TestSQSSinkSendsEvent(t *testing.T) {
	fake := &fakeSQS{}
	sink := &sqsSink{id: "audit", typ: TypeSQS, queueURL: "https://sqs.example.com/q", client: fake, log: noopLogger{}}

	evt := NewEvent("https://s.example/a", "농구", "타이틀", "SKIP", "DUP_TOPIC_TITLE", "")
	if err := sink.Notify(context.Background(), evt); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(fake.inputs) != 1 {
		t.Fatalf("expected 1 send, got %d", len(fake.inputs))
	}
	in := fake.inputs[0]
	if *in.QueueUrl != "https://sqs.example.com/q" {
		t.Fatalf("queue url = %q", *in.QueueUrl)
	}
	var sent Event
	if err := json.Unmarshal([]byte(*in.MessageBody), &sent); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if sent.Reason != "DUP_TOPIC_TITLE" {
		t.Fatalf("event body mismatch: %+v", sent)
	}
	if *in.MessageAttributes["status"].StringValue != "SKIP" {
		t.Fatalf("status attribute mismatch")
	}
}

func TestSQSSinkSendFailure(t *testing.T) {
	fake := &fakeSQS{err: errors.New("throttled")}
	sink := &sqsSink{id: "audit", typ: TypeSQS, queueURL: "q", client: fake, log: noopLogger{}}
	if err := sink.Notify(context.Background(), NewEvent("u", "t", "x", "OK", "", "")); err == nil {
		t.Fatalf("expected send error")
	}
}
