package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskhub/internal/observability"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
	mails  []Mail
	err    error
}

func (r *recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recorder) Send(_ context.Context, m Mail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mails = append(r.mails, m)
	return r.err
}

func (r *recorder) snapshot() ([]Event, []Mail) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...), append([]Mail(nil), r.mails...)
}

func TestChannels(t *testing.T) {
	assert.Equal(t, []string{"taskhub:user:u2", "taskhub:team:Sales", "taskhub:admins"},
		Channels(Event{Recipient: "u2", Team: "Sales", AdminBroadcast: true}))
	assert.Empty(t, Channels(Event{}))
}

func TestBusDelivers(t *testing.T) {
	rec := &recorder{}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	bus := NewBus(rec, rec, Options{Workers: 2, QueueSize: 8}, observability.Discard(), metrics)
	bus.Start()

	assert.True(t, bus.Enqueue(Event{Type: TaskCreated, TaskID: "t1"}))
	assert.True(t, bus.Enqueue(Event{Type: TaskAssigned, TaskID: "t2", Mail: &Mail{To: "bo@example.com", Subject: "hi"}}))
	require.NoError(t, bus.Close(context.Background()))

	events, mails := rec.snapshot()
	assert.Len(t, events, 2)
	require.Len(t, mails, 1)
	assert.Equal(t, "bo@example.com", mails[0].To)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues("event", "delivered")))

	assert.False(t, bus.Enqueue(Event{Type: TaskDeleted}), "closed bus rejects")
}

func TestBusDropsWhenFull(t *testing.T) {
	rec := &recorder{}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	bus := NewBus(rec, rec, Options{Workers: 1, QueueSize: 1}, observability.Discard(), metrics)

	// Not started: the single slot fills and the rest are dropped at once.
	start := time.Now()
	assert.True(t, bus.Enqueue(Event{Type: TaskCreated}))
	assert.False(t, bus.Enqueue(Event{Type: TaskCreated}))
	assert.False(t, bus.Enqueue(Event{Type: TaskCreated}))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues("event", "dropped")))

	bus.Start()
	require.NoError(t, bus.Close(context.Background()))
	events, _ := rec.snapshot()
	assert.Len(t, events, 1)
}

func TestBusAbsorbsFailures(t *testing.T) {
	rec := &recorder{err: errors.New("smtp down")}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	bus := NewBus(rec, rec, Options{Workers: 1}, observability.Discard(), metrics)
	bus.Start()

	bus.Enqueue(Event{Type: TaskAssigned, Mail: &Mail{To: "x@example.com"}})
	require.NoError(t, bus.Close(context.Background()))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues("event", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues("mail", "failed")))
}

func TestRedisPublisher(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	sub := client.Subscribe(ctx, "taskhub:user:u2", "taskhub:admins")
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	pub := NewRedisPublisher(client)
	require.NoError(t, pub.Publish(ctx, Event{Type: TaskAssigned, TaskID: "t1", Recipient: "u2", AdminBroadcast: true}))

	got := map[string]Event{}
	for range 2 {
		msg, err := sub.ReceiveMessage(ctx)
		require.NoError(t, err)
		var e Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &e))
		got[msg.Channel] = e
	}
	assert.Equal(t, "t1", got["taskhub:user:u2"].TaskID)
	assert.Equal(t, TaskAssigned, got["taskhub:admins"].Type)
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("noreply@taskhub.local", Mail{To: "bo@example.com", Subject: "Assigned", Body: "hello"}))
	assert.Contains(t, msg, "To: bo@example.com\r\n")
	assert.Contains(t, msg, "Subject: Assigned\r\n")
	assert.True(t, len(msg) > 0 && msg[len(msg)-5:] == "hello")

	err := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: "25", From: "a@b"}).
		Send(context.Background(), Mail{To: "x@y\r\nBcc: evil@z"})
	assert.Error(t, err)
	assert.False(t, SMTPConfig{}.Enabled())
}
