package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/project-tktt/request-relay/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSink answers each Submit from a list of results and records the
// order of calls
type scriptedSink struct {
	results []sinkResult
	calls   []string
	events  *[]string
}

type sinkResult struct {
	ok  bool
	err error
}

func (s *scriptedSink) Submit(ctx context.Context, rec domain.JobRecord) (bool, error) {
	i := len(s.calls)
	s.calls = append(s.calls, rec.Title)
	if s.events != nil {
		*s.events = append(*s.events, "send:"+rec.Title)
	}
	if i < len(s.results) {
		return s.results[i].ok, s.results[i].err
	}
	return true, nil
}

func records(titles ...string) []domain.JobRecord {
	out := make([]domain.JobRecord, 0, len(titles))
	for _, title := range titles {
		out = append(out, domain.JobRecord{Title: title, Description: "description long enough", Budget: 100})
	}
	return out
}

func newTestDispatcher(sink Sink, events *[]string) *Dispatcher {
	d := NewDispatcher(sink, Config{Delay: 200 * time.Millisecond}, zerolog.Nop())
	d.sleep = func(ctx context.Context, dur time.Duration) {
		if events != nil {
			*events = append(*events, "sleep:"+dur.String())
		}
	}
	return d
}

func TestSendAll_Empty(t *testing.T) {
	sink := &scriptedSink{}
	summary := newTestDispatcher(sink, nil).SendAll(context.Background(), nil)

	assert.Equal(t, domain.DeliverySummary{Sent: 0, Total: 0}, summary)
	assert.Empty(t, sink.calls)
}

func TestSendAll_PartialFailure(t *testing.T) {
	sink := &scriptedSink{results: []sinkResult{
		{ok: false},
		{ok: true},
		{err: errors.New("connection refused")},
		{ok: true},
	}}

	summary := newTestDispatcher(sink, nil).SendAll(context.Background(), records("a", "b", "c", "d"))

	assert.Equal(t, domain.DeliverySummary{Sent: 2, Total: 4}, summary)
	assert.Equal(t, 2, summary.Failed())
	assert.Equal(t, []string{"a", "b", "c", "d"}, sink.calls)
}

func TestSendAll_OneOfTwoRejected(t *testing.T) {
	sink := &scriptedSink{results: []sinkResult{{ok: false}, {ok: true}}}

	summary := newTestDispatcher(sink, nil).SendAll(context.Background(), records("first", "second"))

	assert.Equal(t, domain.DeliverySummary{Sent: 1, Total: 2}, summary)
	assert.Len(t, sink.calls, 2)
}

func TestSendAll_PausesOnlyBetweenSends(t *testing.T) {
	var events []string
	sink := &scriptedSink{events: &events}

	newTestDispatcher(sink, &events).SendAll(context.Background(), records("a", "b", "c"))

	assert.Equal(t, []string{
		"send:a", "sleep:200ms",
		"send:b", "sleep:200ms",
		"send:c",
	}, events)
}

func TestSendAll_CancelledContextCountsRemainingAsFailed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sink := &scriptedSink{}
	d := newTestDispatcher(sink, nil)
	d.sleep = func(context.Context, time.Duration) { cancel() }

	summary := d.SendAll(ctx, records("a", "b", "c"))

	assert.Equal(t, domain.DeliverySummary{Sent: 1, Total: 3}, summary)
	assert.Equal(t, []string{"a"}, sink.calls)
}

func TestNewDispatcher_DefaultDelay(t *testing.T) {
	d := NewDispatcher(&scriptedSink{}, Config{}, zerolog.Nop())
	assert.Equal(t, DefaultDelay, d.delay)
}

func TestSleepCtx(t *testing.T) {
	start := time.Now()
	sleepCtx(context.Background(), 20*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start = time.Now()
	sleepCtx(ctx, time.Hour)
	require.Less(t, time.Since(start), time.Second)
}

func TestSendAll_LogsUnderDispatcherComponent(t *testing.T) {
	var buf bytes.Buffer
	d := NewDispatcher(&scriptedSink{}, Config{Delay: time.Millisecond}, zerolog.New(&buf))

	d.SendAll(context.Background(), records("one"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "dispatcher", line["component"])
	assert.Equal(t, "dispatch finished", line["message"])
}
