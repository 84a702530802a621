package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/nowastemate/internal/apperror"
	"github.com/sakif/nowastemate/internal/model"
	"github.com/sakif/nowastemate/internal/repository"
)

func TestContact_SubmitListDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg := &model.ContactMessage{Name: " Rahim ", Email: "rahim@example.com", Subject: "Volunteering", Message: "How can I help?"}
	require.NoError(t, f.contact.Submit(ctx, msg))
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "Rahim", msg.Name)

	got, err := f.contact.List(ctx, repository.ListOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Volunteering", got[0].Subject)

	require.NoError(t, f.contact.Delete(ctx, msg.ID))
	require.ErrorIs(t, f.contact.Delete(ctx, msg.ID), apperror.ErrNotFound)
}

func TestContact_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		msg  model.ContactMessage
	}{
		{"no name", model.ContactMessage{Email: "a@b.co", Subject: "s", Message: "m"}},
		{"bad email", model.ContactMessage{Name: "n", Email: "nope", Subject: "s", Message: "m"}},
		{"display-name email", model.ContactMessage{Name: "n", Email: "N <a@b.co>", Subject: "s", Message: "m"}},
		{"no subject", model.ContactMessage{Name: "n", Email: "a@b.co", Message: "m"}},
		{"no message", model.ContactMessage{Name: "n", Email: "a@b.co", Subject: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.msg
			require.ErrorIs(t, f.contact.Submit(context.Background(), &msg), apperror.ErrValidation)
		})
	}
}

func TestNotifications_SummaryAndMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	donor := f.member(t, "alice", model.RoleDonor)
	ngo := f.member(t, "foodbank", model.RoleNGO)

	for i := 0; i < LatestNotifications+2; i++ {
		f.post(t, donor, "Batch "+string(rune('A'+i)))
	}

	s, err := f.notify.Summary(ctx, ngo.ID())
	require.NoError(t, err)
	assert.Equal(t, LatestNotifications+2, s.Unread)
	require.Len(t, s.Latest, LatestNotifications)
	assert.Contains(t, s.Latest[0].Message, "Batch G", "newest first")

	n, err := f.notify.MarkAllRead(ctx, ngo.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(LatestNotifications+2), n)

	s, err = f.notify.Summary(ctx, ngo.ID())
	require.NoError(t, err)
	assert.Zero(t, s.Unread)
	assert.Len(t, s.Latest, LatestNotifications)
}
