package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/sakif/nowastemate/internal/apperror"
	"github.com/sakif/nowastemate/internal/model"
)

// IdentityStore is what the gate needs from persistence.
type IdentityStore interface {
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
	GetProfile(ctx context.Context, accountID string) (*model.Profile, error)
}

// Gate resolves a session into a Viewer and checks role requirements.
// Every failure is an *apperror.AppError wrapping one of the gate sentinels;
// the web layer turns them into redirects.
type Gate struct {
	store IdentityStore
}

func NewGate(store IdentityStore) *Gate {
	return &Gate{store: store}
}

// Resolve loads the account and profile behind accountID.
//
// An empty or stale accountID yields ErrUnauthenticated. An account without
// a profile yields ErrProfileMissing together with a Viewer holding only the
// account, so callers can send administrators to the admin surface.
func (g *Gate) Resolve(ctx context.Context, accountID string) (*model.Viewer, error) {
	if accountID == "" {
		return nil, apperror.Unauthenticated()
	}

	account, err := g.store.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthenticated()
		}
		return nil, fmt.Errorf("auth: resolving account %s: %w", accountID, err)
	}

	profile, err := g.store.GetProfile(ctx, accountID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return &model.Viewer{Account: *account}, apperror.ProfileMissing()
		}
		return nil, fmt.Errorf("auth: resolving profile %s: %w", accountID, err)
	}

	return &model.Viewer{Account: *account, Profile: *profile}, nil
}

// Authorize checks v holds role.
func (g *Gate) Authorize(v *model.Viewer, role model.Role) error {
	if v == nil {
		return apperror.Unauthenticated()
	}
	if v.Profile.Role != role {
		return apperror.RoleMismatch(role.Label())
	}
	return nil
}

// AdmitLogin decides whether a credential-verified account may start a
// session. Members need an approved profile; administrators have no profile
// and are always admitted.
func (g *Gate) AdmitLogin(ctx context.Context, account *model.Account) error {
	profile, err := g.store.GetProfile(ctx, account.ID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			if account.IsAdmin {
				return nil
			}
			return apperror.Unapproved()
		}
		return fmt.Errorf("auth: loading profile for login: %w", err)
	}
	if !profile.IsApproved {
		return apperror.Unapproved()
	}
	return nil
}
