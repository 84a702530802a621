package mailer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/nowastemate/internal/metrics"
)

// DispatcherConfig sizes the worker pool.
type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Workers:     2,
		QueueSize:   256,
		SendTimeout: 30 * time.Second,
	}
}

// Dispatcher delivers queued messages on a fixed set of worker goroutines.
type Dispatcher struct {
	mailer Mailer
	config DispatcherConfig
	logger *slog.Logger
	queue  chan Message
	done   chan struct{}
	wg     sync.WaitGroup
	start  sync.Once
	stop   sync.Once

	// mu orders Enqueue against Stop: once stopped is set no send can be in
	// flight, so the final drain sees every accepted message.
	mu      sync.RWMutex
	stopped bool
}

func NewDispatcher(m Mailer, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	def := DefaultDispatcherConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}
	return &Dispatcher{
		mailer: m,
		config: cfg,
		logger: logger,
		queue:  make(chan Message, cfg.QueueSize),
		done:   make(chan struct{}),
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (d *Dispatcher) Start() {
	d.start.Do(func() {
		d.logger.Info("starting mail dispatcher", slog.Int("workers", d.config.Workers))
		for range d.config.Workers {
			d.wg.Add(1)
			go d.worker()
		}
	})
}

// Stop stops the workers and then delivers whatever is still queued.
func (d *Dispatcher) Stop() {
	d.stop.Do(func() {
		d.mu.Lock()
		d.stopped = true
		d.mu.Unlock()

		d.logger.Info("stopping mail dispatcher", slog.Int("queued", len(d.queue)))
		close(d.done)
		d.wg.Wait()

		for {
			select {
			case msg := <-d.queue:
				d.deliver(msg)
			default:
				return
			}
		}
	})
}

// Enqueue hands msg to the workers without blocking. It returns false when
// the queue is full or the dispatcher is stopped; the message is dropped.
func (d *Dispatcher) Enqueue(msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		d.logger.Warn("mail dispatcher stopped, dropping message",
			slog.String("to", msg.To),
			slog.String("subject", msg.Subject),
		)
		metrics.RecordEmail(metrics.EmailDropped)
		return false
	}
	select {
	case d.queue <- msg:
		return true
	default:
		d.logger.Warn("mail queue full, dropping message",
			slog.String("to", msg.To),
			slog.String("subject", msg.Subject),
		)
		metrics.RecordEmail(metrics.EmailDropped)
		return false
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case <-d.done:
			return
		case msg := <-d.queue:
			d.deliver(msg)
		}
	}
}

// deliver sends one message. Failures are logged and otherwise ignored.
func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.config.SendTimeout)
	defer cancel()

	if err := d.mailer.Send(ctx, msg); err != nil {
		d.logger.Warn("email delivery failed",
			slog.String("to", msg.To),
			slog.String("subject", msg.Subject),
			slog.String("error", err.Error()),
		)
		metrics.RecordEmail(metrics.EmailFailed)
		return
	}
	metrics.RecordEmail(metrics.EmailSent)
}
