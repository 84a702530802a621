package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/nowastemate/internal/apperror"
	"github.com/sakif/nowastemate/internal/model"
)

type fakeIdentityStore struct {
	accounts map[string]*model.Account
	profiles map[string]*model.Profile
	err      error
}

func (f *fakeIdentityStore) GetAccountByID(_ context.Context, id string) (*model.Account, error) {
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.accounts[id]
	if !ok {
		return nil, apperror.NotFound("account", id)
	}
	return a, nil
}

func (f *fakeIdentityStore) GetProfile(_ context.Context, id string) (*model.Profile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return nil, apperror.NotFound("profile", id)
	}
	return p, nil
}

func newFakeIdentityStore() *fakeIdentityStore {
	return &fakeIdentityStore{
		accounts: map[string]*model.Account{
			"donor":   {ID: "donor", Username: "dana"},
			"pending": {ID: "pending", Username: "pat"},
			"admin":   {ID: "admin", Username: "root", IsAdmin: true},
			"orphan":  {ID: "orphan", Username: "olly"},
		},
		profiles: map[string]*model.Profile{
			"donor":   {AccountID: "donor", Role: model.RoleDonor, IsApproved: true},
			"pending": {AccountID: "pending", Role: model.RoleNGO, IsApproved: false},
		},
	}
}

func TestGate_Resolve(t *testing.T) {
	g := NewGate(newFakeIdentityStore())
	ctx := context.Background()

	tests := []struct {
		name       string
		accountID  string
		wantErr    error
		wantViewer bool
	}{
		{"no session", "", apperror.ErrUnauthenticated, false},
		{"stale session", "deleted", apperror.ErrUnauthenticated, false},
		{"member", "donor", nil, true},
		{"unapproved member still resolves", "pending", nil, true},
		{"admin without profile", "admin", apperror.ErrProfileMissing, true},
		{"member without profile", "orphan", apperror.ErrProfileMissing, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := g.Resolve(ctx, tt.accountID)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
			}
			if (v != nil) != tt.wantViewer {
				t.Errorf("Resolve() viewer = %v, wantViewer %v", v, tt.wantViewer)
			}
		})
	}
}

func TestGate_ResolveStoreFailureIsNotAGateOutcome(t *testing.T) {
	store := newFakeIdentityStore()
	store.err = errors.New("database is locked")

	_, err := NewGate(store).Resolve(context.Background(), "donor")
	if err == nil || errors.Is(err, apperror.ErrUnauthenticated) {
		t.Fatalf("Resolve() error = %v, want a wrapped store error", err)
	}
}

func TestGate_Authorize(t *testing.T) {
	g := NewGate(newFakeIdentityStore())
	donor := &model.Viewer{Profile: model.Profile{Role: model.RoleDonor}}

	if err := g.Authorize(donor, model.RoleDonor); err != nil {
		t.Errorf("Authorize(donor, donor) error = %v", err)
	}
	if err := g.Authorize(donor, model.RoleNGO); !errors.Is(err, apperror.ErrRoleMismatch) {
		t.Errorf("Authorize(donor, ngo) error = %v, want ErrRoleMismatch", err)
	}
	if err := g.Authorize(nil, model.RoleNGO); !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Errorf("Authorize(nil) error = %v, want ErrUnauthenticated", err)
	}
}

func TestGate_AdmitLogin(t *testing.T) {
	store := newFakeIdentityStore()
	g := NewGate(store)
	ctx := context.Background()

	tests := []struct {
		id      string
		wantErr error
	}{
		{"donor", nil},
		{"pending", apperror.ErrUnapproved},
		{"admin", nil},
		{"orphan", apperror.ErrUnapproved},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := g.AdmitLogin(ctx, store.accounts[tt.id])
			if tt.wantErr == nil && err != nil {
				t.Fatalf("AdmitLogin() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("AdmitLogin() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
