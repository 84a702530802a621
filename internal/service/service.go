// Package service contains the business rules.
//
//	Handler (HTTP) → Service (rules, transactions) → Repository (SQL)
//
// Services take an explicit *model.Viewer for the caller instead of reading
// identity from a request. State changes and the notification rows they
// cause are written in one transaction; email for them is queued only after
// that transaction commits, so a mail fault can never undo a state change.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sakif/nowastemate/internal/apperror"
	"github.com/sakif/nowastemate/internal/mailer"
	"github.com/sakif/nowastemate/internal/metrics"
	"github.com/sakif/nowastemate/internal/model"
	"github.com/sakif/nowastemate/internal/repository"
)

// MailQueue accepts messages for later best-effort delivery.
// *mailer.Dispatcher implements it.
type MailQueue interface {
	Enqueue(msg mailer.Message) bool
}

// outbox collects side effects inside a transaction and releases the
// external ones after commit.
type outbox struct {
	mails         []mailer.Message
	notifications int
	transition    string
}

// notify writes a notification row through tx and queues an email for after
// commit when email is non-empty.
func (o *outbox) notify(ctx context.Context, tx repository.Repository, accountID, email, subject, message, link string) error {
	n := &model.Notification{AccountID: accountID, Message: message, Link: link}
	if err := tx.CreateNotification(ctx, n); err != nil {
		return err
	}
	o.notifications++
	if email != "" {
		o.mails = append(o.mails, mailer.Message{To: email, Subject: subject, Body: message})
	}
	return nil
}

// flush runs after a successful commit.
func (o *outbox) flush(q MailQueue, logger *slog.Logger) {
	if o.transition != "" {
		metrics.RecordTransition(o.transition)
	}
	metrics.AddNotifications(o.notifications)
	if q == nil {
		return
	}
	for _, m := range o.mails {
		if !q.Enqueue(m) {
			logger.Warn("email not queued", slog.String("to", m.To), slog.String("subject", m.Subject))
		}
	}
}

// requireRole is the service-side twin of the web gate's role check.
func requireRole(v *model.Viewer, role model.Role) error {
	if v == nil {
		return apperror.Unauthenticated()
	}
	if v.Role() != role {
		return apperror.RoleMismatch(role.Label())
	}
	return nil
}

// clock lets tests pin "now".
type clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }
