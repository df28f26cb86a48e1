package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"testing"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type stubResult struct {
	id  string
	err error
}

func (r stubResult) Get(context.Context) (string, error) { return r.id, r.err }

type attributed struct {
	Kind string `json:"kind"`
}

func (a attributed) Attributes() map[string]string {
	return map[string]string{"event_type": a.Kind}
}

func TestPublishAddsAttributesAndTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	var sent *pubsub.Message
	p := &Publisher{publish: func(_ context.Context, msg *pubsub.Message) publishResult {
		sent = msg
		return stubResult{id: "msg-1"}
	}}

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	id, err := p.Publish(ctx, "ignored", attributed{Kind: "post.created"})
	require.NoError(t, err)
	require.Equal(t, "msg-1", id)
	require.Equal(t, "post.created", sent.Attributes["event_type"])
	require.Contains(t, sent.Attributes["traceparent"], "4bf92f3577b34da6a3ce929d0e0e4736")

	var body attributed
	require.NoError(t, json.Unmarshal(sent.Data, &body))
	require.Equal(t, "post.created", body.Kind)
}

func TestPublishWrapsResultError(t *testing.T) {
	t.Parallel()

	p := &Publisher{publish: func(context.Context, *pubsub.Message) publishResult {
		return stubResult{err: errors.New("topic not found")}
	}}
	_, err := p.Publish(context.Background(), "", map[string]string{"a": "b"})
	require.ErrorContains(t, err, "topic not found")
}

func TestPublishRequiresPublisher(t *testing.T) {
	t.Parallel()

	p := New(nil)
	_, err := p.Publish(context.Background(), "", "x")
	require.Error(t, err)
	p.Stop()
}

func TestPublishRejectsUnmarshalable(t *testing.T) {
	t.Parallel()

	p := &Publisher{publish: func(context.Context, *pubsub.Message) publishResult {
		t.Fatal("publish should not be called")
		return nil
	}}
	_, err := p.Publish(context.Background(), "", make(chan int))
	require.ErrorContains(t, err, "marshal payload")
}

func TestCarrierKeys(t *testing.T) {
	t.Parallel()

	c := &pubsubCarrier{attrs: map[string]string{}}
	c.Set("b", "2")
	c.Set("a", "1")
	keys := c.Keys()
	sort.Strings(keys)
	require.Equal(t, []string{"a", "b"}, keys)
	require.Equal(t, "1", c.Get("a"))
}
