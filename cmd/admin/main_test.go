package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/nowastemate/internal/model"
	"github.com/sakif/nowastemate/internal/service"
)

// setupDB points the commands at a fresh database file and returns an app
// for seeding it.
func setupDB(t *testing.T) *app {
	t.Helper()
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "admin.db"))
	t.Setenv("APP_ENV", "development")
	t.Setenv("SMTP_HOST", "")

	a, err := openApp("")
	require.NoError(t, err)
	t.Cleanup(a.close)
	return a
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func register(t *testing.T, a *app, username string, role model.Role) {
	t.Helper()
	_, err := a.accounts.Register(context.Background(), service.RegisterInput{
		Username:        username,
		Email:           username + "@example.com",
		Password:        "s3cret-pass",
		PasswordConfirm: "s3cret-pass",
		Role:            role,
	})
	require.NoError(t, err)
}

func TestProfilesListAndApprove(t *testing.T) {
	a := setupDB(t)
	register(t, a, "bakery", model.RoleDonor)
	register(t, a, "foodbank", model.RoleNGO)

	out, err := run(t, "profiles", "list", "--pending")
	require.NoError(t, err)
	assert.Contains(t, out, "bakery")
	assert.Contains(t, out, "foodbank")

	out, err = run(t, "profiles", "approve", "bakery", "foodbank")
	require.NoError(t, err)
	assert.Contains(t, out, "bakery: approved")
	assert.Contains(t, out, "foodbank: approved")

	out, err = run(t, "profiles", "approve", "bakery")
	require.NoError(t, err)
	assert.Contains(t, out, "bakery: already approved")

	out, err = run(t, "profiles", "list", "--pending")
	require.NoError(t, err)
	assert.NotContains(t, out, "bakery")
}

func TestProfilesApprove_UnknownUserFails(t *testing.T) {
	a := setupDB(t)
	register(t, a, "bakery", model.RoleDonor)

	out, err := run(t, "profiles", "approve", "bakery", "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 approvals failed")
	assert.Contains(t, out, "bakery: approved")
	assert.Contains(t, out, "ghost:")
}

func TestProfilesList_RejectsUnknownRole(t *testing.T) {
	setupDB(t)

	_, err := run(t, "profiles", "list", "--role", "chef")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}

func TestCreateAdmin(t *testing.T) {
	a := setupDB(t)

	out, err := run(t, "accounts", "create-admin", "root", "--email", "root@example.com", "--password", "admin-pass-123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "created admin root"))

	account, err := a.accounts.Login(context.Background(), "root", "admin-pass-123")
	require.NoError(t, err)
	assert.True(t, account.IsAdmin)
}

func TestCreateAdmin_RequiresPassword(t *testing.T) {
	setupDB(t)
	t.Setenv("ADMIN_PASSWORD", "")

	_, err := run(t, "accounts", "create-admin", "root", "--email", "root@example.com")
	require.Error(t, err)
}

func TestContactListAndDelete(t *testing.T) {
	a := setupDB(t)
	msg := &model.ContactMessage{Name: "Ada", Email: "ada@example.com", Subject: "Hello", Message: "Great site."}
	require.NoError(t, a.contact.Submit(context.Background(), msg))

	out, err := run(t, "contact", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Subject: Hello")
	assert.Contains(t, out, msg.ID)

	out, err = run(t, "contact", "delete", msg.ID)
	require.NoError(t, err)
	assert.Contains(t, out, msg.ID+": deleted")

	out, err = run(t, "contact", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No messages.")
}

func TestDonationsList_RejectsUnknownStatus(t *testing.T) {
	setupDB(t)

	_, err := run(t, "donations", "list", "--status", "eaten")
	require.Error(t, err)

	out, err := run(t, "donations", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "FOOD")
}
