package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/nowastemate/internal/auth"
	"github.com/sakif/nowastemate/internal/mailer"
	"github.com/sakif/nowastemate/internal/model"
	"github.com/sakif/nowastemate/internal/repository/sqlite"
)

// fakeQueue records enqueued mail. full makes every Enqueue fail.
type fakeQueue struct {
	mu   sync.Mutex
	msgs []mailer.Message
	full bool
}

func (q *fakeQueue) Enqueue(msg mailer.Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.msgs = append(q.msgs, msg)
	return true
}

func (q *fakeQueue) sentTo(addr string) []mailer.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []mailer.Message
	for _, m := range q.msgs {
		if m.To == addr {
			out = append(out, m)
		}
	}
	return out
}

// fixture wires every service to one in-memory database.
type fixture struct {
	db        *sqlite.DB
	mail      *fakeQueue
	accounts  *AccountService
	donations *DonationService
	reviews   *ReviewService
	notify    *NotificationService
	impact    *ImpactService
	contact   *ContactService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := discardLogger()
	mail := &fakeQueue{}
	passwords := auth.NewPasswordServiceForTest(bcrypt.MinCost)
	gate := auth.NewGate(db)

	return &fixture{
		db:        db,
		mail:      mail,
		accounts:  NewAccountService(db, passwords, gate, mail, logger),
		donations: NewDonationService(db, mail, logger),
		reviews:   NewReviewService(db, mail, logger),
		notify:    NewNotificationService(db, logger),
		impact:    NewImpactService(db),
		contact:   NewContactService(db, logger),
	}
}

// member registers and approves a user of role, returning their viewer.
func (f *fixture) member(t *testing.T, username string, role model.Role) *model.Viewer {
	t.Helper()
	ctx := context.Background()
	account, err := f.accounts.Register(ctx, RegisterInput{
		Username:        username,
		Email:           username + "@example.com",
		Password:        "correct-horse",
		PasswordConfirm: "correct-horse",
		Role:            role,
	})
	require.NoError(t, err)

	results := f.accounts.Approve(ctx, username)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	return f.viewer(t, account.ID)
}

func (f *fixture) viewer(t *testing.T, accountID string) *model.Viewer {
	t.Helper()
	v, err := auth.NewGate(f.db).Resolve(context.Background(), accountID)
	require.NoError(t, err)
	return v
}

func (f *fixture) post(t *testing.T, donor *model.Viewer, food string) *model.Donation {
	t.Helper()
	d, err := f.donations.Post(context.Background(), donor, PostInput{
		FoodItem:       food,
		Quantity:       "10 portions",
		Category:       model.CategoryProduce,
		PickupLocation: "12 Market Street",
		PickupBy:       time.Now().Add(6 * time.Hour),
	})
	require.NoError(t, err)
	return d
}
