// Package notifier delivers notifications asynchronously so business operations never
// wait on, or fail because of, delivery.
package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/leaveledger/internal/domain"
	"github.com/iho/leaveledger/internal/infrastructure/metrics"
	"github.com/iho/leaveledger/internal/usecase"
)

// ErrDispatcherClosed is returned by Close when called twice.
var ErrDispatcherClosed = errors.New("notifier: dispatcher already closed")

const deliveryTimeout = 10 * time.Second

// Config for Dispatcher.
type Config struct {
	Directory     usecase.Directory
	Notifications usecase.NotificationRepository
	Mailer        Mailer
	IDs           usecase.IDGenerator
	Logger        zerolog.Logger
	Metrics       *metrics.Metrics
	QueueSize     int // pending messages before Notify starts dropping
	Workers       int
}

type message struct {
	recipients []string
	text       string
}

// Dispatcher implements usecase.Notifier with a bounded queue and a worker pool.
type Dispatcher struct {
	directory     usecase.Directory
	notifications usecase.NotificationRepository
	mailer        Mailer
	ids           usecase.IDGenerator
	logger        zerolog.Logger
	metrics       *metrics.Metrics
	now           func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan message
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher and starts its workers.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Mailer == nil {
		cfg.Mailer = NewLogMailer(cfg.Logger)
	}

	d := &Dispatcher{
		directory:     cfg.Directory,
		notifications: cfg.Notifications,
		mailer:        cfg.Mailer,
		ids:           cfg.IDs,
		logger:        cfg.Logger.With().Str("component", "notifier").Logger(),
		metrics:       cfg.Metrics,
		now:           time.Now,
		queue:         make(chan message, cfg.QueueSize),
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.work()
	}

	d.logger.Info().Int("workers", cfg.Workers).Int("queue_size", cfg.QueueSize).Msg("notification dispatcher started")
	return d
}

// Notify enqueues text for every recipient. It never blocks: when the queue is full or
// the dispatcher is closed the message is dropped and counted.
func (d *Dispatcher) Notify(_ context.Context, recipientIDs []string, text string) {
	if len(recipientIDs) == 0 {
		return
	}
	msg := message{recipients: append([]string(nil), recipientIDs...), text: text}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(msg, "dispatcher closed")
		return
	}

	select {
	case d.queue <- msg:
		if d.metrics != nil {
			d.metrics.NotificationsQueued.Inc()
		}
	default:
		d.drop(msg, "queue full")
	}
}

func (d *Dispatcher) drop(msg message, reason string) {
	if d.metrics != nil {
		d.metrics.NotificationsDropped.Inc()
	}
	d.logger.Warn().Str("reason", reason).Strs("recipients", msg.recipients).Msg("notification dropped")
}

// Close stops accepting messages and waits until the queue is drained or ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info().Msg("notification dispatcher drained")
		return nil
	case <-ctx.Done():
		d.logger.Warn().Int("pending", len(d.queue)).Msg("notification dispatcher shutdown timed out")
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for msg := range d.queue {
		for _, id := range msg.recipients {
			d.deliver(id, msg.text)
		}
	}
}

func (d *Dispatcher) deliver(recipientID, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	log := d.logger.With().Str("recipient_id", recipientID).Logger()

	employee, err := d.directory.LookupByID(ctx, recipientID)
	if err != nil {
		d.fail("resolve")
		log.Debug().Err(err).Msg("notification recipient not resolved")
		return
	}

	n := &domain.Notification{
		ID:        d.ids.Generate(),
		UserID:    employee.ID,
		Message:   text,
		CreatedAt: d.now().UTC(),
	}
	if err := d.notifications.Create(ctx, n); err != nil {
		d.fail("persist")
		log.Error().Err(err).Msg("failed to store notification")
	} else if d.metrics != nil {
		d.metrics.NotificationsSent.Inc()
	}

	if employee.Email == "" {
		return
	}
	if err := d.mailer.Send(ctx, employee, text); err != nil {
		d.fail("mail")
		log.Error().Err(err).Msg("failed to email notification")
	}
}

func (d *Dispatcher) fail(stage string) {
	if d.metrics != nil {
		d.metrics.NotificationFailures.WithLabelValues(stage).Inc()
	}
}
