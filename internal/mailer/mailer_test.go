package mailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/smtp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingMailer collects delivered messages and can be told to fail or block.
type recordingMailer struct {
	mu      sync.Mutex
	sent    []Message
	failFor map[string]bool
	gate    chan struct{}
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	if m.gate != nil {
		<-m.gate
	}
	if m.failFor[msg.To] {
		return errors.New("smtp: connection refused")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// =========================================================================
// DISPATCHER TESTS
// =========================================================================

func TestDispatcher_DeliversQueuedMessages(t *testing.T) {
	rec := &recordingMailer{}
	d := NewDispatcher(rec, DispatcherConfig{Workers: 3, QueueSize: 10}, quietLogger())
	d.Start()

	for _, to := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		if !d.Enqueue(Message{To: to, Subject: "hi"}) {
			t.Fatalf("Enqueue(%s) = false, want true", to)
		}
	}
	d.Stop()

	if got := rec.count(); got != 3 {
		t.Errorf("delivered %d messages, want 3", got)
	}
}

func TestDispatcher_FailureDoesNotStopOthers(t *testing.T) {
	rec := &recordingMailer{failFor: map[string]bool{"bad@example.com": true}}
	d := NewDispatcher(rec, DispatcherConfig{Workers: 1, QueueSize: 10}, quietLogger())
	d.Start()

	d.Enqueue(Message{To: "bad@example.com"})
	d.Enqueue(Message{To: "good@example.com"})
	d.Stop()

	if got := rec.count(); got != 1 {
		t.Errorf("delivered %d messages, want 1", got)
	}
}

func TestDispatcher_EnqueueNeverBlocks(t *testing.T) {
	rec := &recordingMailer{gate: make(chan struct{})}
	d := NewDispatcher(rec, DispatcherConfig{Workers: 1, QueueSize: 1}, quietLogger())
	d.Start()

	// The worker takes the first message and blocks on the gate; the second
	// fills the queue; the third must be dropped immediately.
	d.Enqueue(Message{To: "1@example.com"})
	deadline := time.Now().Add(time.Second)
	for len(d.queue) != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !d.Enqueue(Message{To: "2@example.com"}) {
		t.Fatal("second Enqueue should fit in the queue")
	}

	start := time.Now()
	if d.Enqueue(Message{To: "3@example.com"}) {
		t.Error("Enqueue on a full queue should return false")
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Enqueue blocked for %v", elapsed)
	}

	close(rec.gate)
	d.Stop()
	if got := rec.count(); got != 2 {
		t.Errorf("delivered %d messages, want 2", got)
	}
}

func TestDispatcher_EnqueueAfterStop(t *testing.T) {
	d := NewDispatcher(&recordingMailer{}, DispatcherConfig{}, quietLogger())
	d.Start()
	d.Stop()
	d.Stop() // idempotent

	if d.Enqueue(Message{To: "late@example.com"}) {
		t.Error("Enqueue after Stop should return false")
	}
}

func TestDispatcher_StopDeliversEveryAcceptedMessage(t *testing.T) {
	for range 20 {
		rec := &recordingMailer{}
		d := NewDispatcher(rec, DispatcherConfig{Workers: 2, QueueSize: 1000}, quietLogger())
		d.Start()

		var (
			wg       sync.WaitGroup
			accepted atomic.Int64
		)
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := range 50 {
					if d.Enqueue(Message{To: fmt.Sprintf("%d-%d@example.com", i, j)}) {
						accepted.Add(1)
					}
				}
			}()
		}
		d.Stop()
		wg.Wait()

		if got, want := rec.count(), int(accepted.Load()); got != want {
			t.Fatalf("delivered %d messages, accepted %d", got, want)
		}
		if n := len(d.queue); n != 0 {
			t.Fatalf("%d messages stranded in the queue", n)
		}
	}
}

// =========================================================================
// SMTP TESTS
// =========================================================================

func TestSMTPMailer_FormatsMessage(t *testing.T) {
	m, err := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "u", Password: "p", From: "noreply@example.com"})
	if err != nil {
		t.Fatalf("NewSMTPMailer() error = %v", err)
	}

	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  string
	)
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}

	err = m.Send(context.Background(), Message{To: "ngo@example.com", Subject: "New\r\ndonation", Body: "line1\nline2"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if gotFrom != "noreply@example.com" {
		t.Errorf("envelope from = %q", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "ngo@example.com" {
		t.Errorf("to = %v", gotTo)
	}
	if !strings.Contains(gotMsg, "Subject: New  donation\r\n") {
		t.Errorf("subject header not sanitized: %q", gotMsg)
	}
	if !strings.HasSuffix(gotMsg, "line1\r\nline2") {
		t.Errorf("body not CRLF-normalized: %q", gotMsg)
	}
}

func TestSMTPMailer_DisplayNameSender(t *testing.T) {
	m, err := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 25, From: "NoWasteMate <no-reply@nowastemate.local>"})
	if err != nil {
		t.Fatalf("NewSMTPMailer() error = %v", err)
	}

	var gotFrom, gotMsg string
	m.send = func(_ string, _ smtp.Auth, from string, _ []string, msg []byte) error {
		gotFrom, gotMsg = from, string(msg)
		return nil
	}

	if err := m.Send(context.Background(), Message{To: "ngo@example.com", Subject: "hi", Body: "x"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	// The envelope sender must be a bare address or relays answer 501.
	if gotFrom != "no-reply@nowastemate.local" {
		t.Errorf("envelope from = %q, want bare address", gotFrom)
	}
	header := strings.SplitN(gotMsg, "\r\n", 2)[0]
	if !strings.HasPrefix(header, "From: ") || !strings.Contains(header, "NoWasteMate") ||
		!strings.HasSuffix(header, "<no-reply@nowastemate.local>") {
		t.Errorf("From header = %q", header)
	}
}

func TestNewSMTPMailer_RejectsBadSender(t *testing.T) {
	for _, from := range []string{"", "NoWasteMate", "no-reply at example.com"} {
		if _, err := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 25, From: from}); err == nil {
			t.Errorf("NewSMTPMailer(From: %q) should fail", from)
		}
	}
}

func TestSMTPMailer_RejectsEmptyRecipient(t *testing.T) {
	m, err := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 25, From: "noreply@example.com"})
	if err != nil {
		t.Fatalf("NewSMTPMailer() error = %v", err)
	}
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send should not be called")
		return nil
	}
	if err := m.Send(context.Background(), Message{}); err == nil {
		t.Error("Send() with no recipient should fail")
	}
}
