package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/healthvault-api/internal/domain"
	"github.com/healthvault-api/internal/pkg/clock"
)

type Mailer interface {
	SendEmail(ctx context.Context, to, subject, html, text string) (string, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) (string, error)
}

// WhatsAppSender has no production implementation yet; the channel reports
// unavailable until one is wired.
type WhatsAppSender interface {
	SendWhatsApp(ctx context.Context, to, message string) (string, error)
}

type taskKind string

const (
	kindOtp     taskKind = "otp"
	kindWelcome taskKind = "welcome"
)

type task struct {
	kind      taskKind
	contact   domain.Contact
	code      string
	purpose   domain.OtpPurpose
	expiresIn time.Duration
	name      string
}

// Stats counts tasks since start.
type Stats struct {
	Enqueued uint64
	Sent     uint64
	Failed   uint64
	Dropped  uint64
}

type DispatcherDeps struct {
	Mailer      Mailer
	SMS         SMSSender
	WhatsApp    WhatsAppSender
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
	Logger      *slog.Logger
	Clock       clock.Clock
}

// Dispatcher delivers notifications on a fixed pool of workers. Callers never
// block and never see delivery errors.
type Dispatcher struct {
	mailer   Mailer
	sms      SMSSender
	whatsapp WhatsAppSender
	timeout  time.Duration
	logger   *slog.Logger
	clock    clock.Clock

	mu     sync.RWMutex
	closed bool
	queue  chan task
	wg     sync.WaitGroup

	enqueued, sent, failed, dropped atomic.Uint64
}

func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	if deps.Workers <= 0 {
		deps.Workers = 1
	}
	if deps.QueueSize <= 0 {
		deps.QueueSize = 64
	}
	if deps.SendTimeout <= 0 {
		deps.SendTimeout = 15 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	d := &Dispatcher{
		mailer:   deps.Mailer,
		sms:      deps.SMS,
		whatsapp: deps.WhatsApp,
		timeout:  deps.SendTimeout,
		logger:   deps.Logger,
		clock:    deps.Clock,
		queue:    make(chan task, deps.QueueSize),
	}
	for i := 0; i < deps.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Available reports whether a sender is configured for method.
func (d *Dispatcher) Available(method domain.ContactMethod) bool {
	switch method {
	case domain.MethodEmail:
		return d.mailer != nil
	case domain.MethodPhone:
		return d.sms != nil
	case domain.MethodWhatsApp:
		return d.whatsapp != nil
	}
	return false
}

func (d *Dispatcher) SendOtp(contact domain.Contact, code string, purpose domain.OtpPurpose, expiresAt time.Time) {
	d.enqueue(task{
		kind:      kindOtp,
		contact:   contact,
		code:      code,
		purpose:   purpose,
		expiresIn: expiresAt.Sub(d.clock.Now()),
	})
}

func (d *Dispatcher) SendWelcome(contact domain.Contact, name string) {
	d.enqueue(task{kind: kindWelcome, contact: contact, name: name})
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Enqueued: d.enqueued.Load(),
		Sent:     d.sent.Load(),
		Failed:   d.failed.Load(),
		Dropped:  d.dropped.Load(),
	}
}

// Close stops intake and waits for queued tasks until ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notification drain: %w", ctx.Err())
	}
}

func (d *Dispatcher) enqueue(t task) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(t, "dispatcher closed")
		return
	}
	select {
	case d.queue <- t:
		d.enqueued.Add(1)
	default:
		d.drop(t, "queue full")
	}
}

func (d *Dispatcher) drop(t task, reason string) {
	d.dropped.Add(1)
	d.logger.Warn("notification dropped",
		"kind", t.kind, "method", t.contact.Method, "purpose", t.purpose, "reason", reason)
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for t := range d.queue {
		d.run(t)
	}
}

func (d *Dispatcher) run(t task) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	messageID, err := d.deliver(ctx, t)
	if err != nil {
		d.failed.Add(1)
		d.logger.Warn("notification delivery failed",
			"kind", t.kind, "method", t.contact.Method, "purpose", t.purpose, "err", err)
		return
	}
	d.sent.Add(1)
	d.logger.Info("notification sent", "kind", t.kind, "method", t.contact.Method, "message_id", messageID)
}

var errNoSender = errors.New("no sender configured")

func (d *Dispatcher) deliver(ctx context.Context, t task) (string, error) {
	var (
		msg rendered
		err error
	)
	switch t.kind {
	case kindOtp:
		msg, err = renderOtp(t.code, t.purpose, t.expiresIn)
	case kindWelcome:
		msg, err = renderWelcome(t.name)
	default:
		err = fmt.Errorf("unknown task kind %q", t.kind)
	}
	if err != nil {
		return "", err
	}

	switch t.contact.Method {
	case domain.MethodEmail:
		if d.mailer == nil {
			return "", errNoSender
		}
		return d.mailer.SendEmail(ctx, t.contact.Value, msg.Subject, msg.HTML, msg.Text)
	case domain.MethodPhone:
		if d.sms == nil {
			return "", errNoSender
		}
		return d.sms.SendSMS(ctx, t.contact.Value, msg.Text)
	case domain.MethodWhatsApp:
		if d.whatsapp == nil {
			return "", errNoSender
		}
		return d.whatsapp.SendWhatsApp(ctx, t.contact.Value, msg.Text)
	}
	return "", fmt.Errorf("unsupported contact method %q", t.contact.Method)
}
