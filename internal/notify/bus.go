package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"taskhub/internal/observability"
)

type Options struct {
	Workers   int
	QueueSize int
	// Timeout bounds each delivery.
	Timeout time.Duration
}

// Bus is a bounded queue of events drained by a fixed set of workers.
// Enqueue never blocks; when the queue is full the event is dropped.
type Bus struct {
	pub     Publisher
	mailer  Mailer
	opts    Options
	log     *logrus.Logger
	metrics *observability.Metrics

	queue  chan Event
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

var _ Notifier = (*Bus)(nil)

func NewBus(pub Publisher, mailer Mailer, opts Options, log *logrus.Logger, metrics *observability.Metrics) *Bus {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if pub == nil {
		pub = NopPublisher
	}
	if mailer == nil {
		mailer = NopMailer
	}
	return &Bus{
		pub:     pub,
		mailer:  mailer,
		opts:    opts,
		log:     log,
		metrics: metrics,
		queue:   make(chan Event, opts.QueueSize),
	}
}

// Start launches the workers. They run until Close.
func (b *Bus) Start() {
	for i := 0; i < b.opts.Workers; i++ {
		b.wg.Add(1)
		go b.work(i)
	}
	b.log.WithField("workers", b.opts.Workers).Info("notification workers started")
}

func (b *Bus) Enqueue(e Event) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.dropped(e, "bus closed")
		return false
	}
	select {
	case b.queue <- e:
		return true
	default:
		b.dropped(e, "queue full")
		return false
	}
}

func (b *Bus) dropped(e Event, reason string) {
	b.outcome("event", "dropped")
	b.log.WithFields(logrus.Fields{"type": e.Type, "task": e.TaskID, "reason": reason}).Warn("notification dropped")
}

// Close stops accepting events and waits for the queued ones to be
// delivered or ctx to end.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) work(id int) {
	defer b.wg.Done()
	for e := range b.queue {
		b.deliver(id, e)
	}
}

func (b *Bus) deliver(worker int, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithFields(logrus.Fields{"worker": worker, "type": e.Type, "panic": r}).Error("notification handler panic")
		}
	}()

	entry := b.log.WithFields(logrus.Fields{"worker": worker, "type": e.Type, "task": e.TaskID})

	ctx, cancel := context.WithTimeout(context.Background(), b.opts.Timeout)
	defer cancel()
	if err := b.pub.Publish(ctx, e); err != nil {
		b.outcome("event", "failed")
		entry.WithError(err).Error("publish failed")
	} else {
		b.outcome("event", "delivered")
	}

	if e.Mail == nil || e.Mail.To == "" {
		return
	}
	if err := b.mailer.Send(ctx, *e.Mail); err != nil {
		b.outcome("mail", "failed")
		entry.WithError(err).Error("mail failed")
		return
	}
	b.outcome("mail", "delivered")
}

func (b *Bus) outcome(kind, outcome string) {
	if b.metrics != nil {
		b.metrics.NotificationsTotal.WithLabelValues(kind, outcome).Inc()
	}
}
