package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sakif/nowastemate/internal/apperror"
	"github.com/sakif/nowastemate/internal/auth"
	"github.com/sakif/nowastemate/internal/mailer"
	"github.com/sakif/nowastemate/internal/model"
	"github.com/sakif/nowastemate/internal/repository"
)

const (
	MaxUsernameLength = 150
	MinPasswordLength = 8
	MaxPhoneLength    = 15
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// RegisterInput is the registration form.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	PasswordConfirm string
	PhoneNumber     string
	Role            model.Role
}

// ApprovalResult reports what happened to one username in a bulk approval.
type ApprovalResult struct {
	Username string
	// Approved is false when the profile was already approved.
	Approved bool
	Err      error
}

// AccountService owns registration, sign-in and approval.
//
//	AccountHandler (HTTP) → AccountService → Repository
//	                      ↘ PasswordService, Gate
//
// It never touches cookies. The handler turns a returned account into a
// session with auth.Sessions.
type AccountService struct {
	repo      repository.Repository
	passwords *auth.PasswordService
	gate      *auth.Gate
	mail      MailQueue
	logger    *slog.Logger
}

func NewAccountService(
	repo repository.Repository,
	passwords *auth.PasswordService,
	gate *auth.Gate,
	mail MailQueue,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		repo:      repo,
		passwords: passwords,
		gate:      gate,
		mail:      mail,
		logger:    logger,
	}
}

func invalidCredentials() *apperror.AppError {
	return &apperror.AppError{Err: apperror.ErrUnauthenticated, Message: "Invalid username or password."}
}

// Register creates an account and its unapproved profile in one transaction.
// The account cannot log in until an administrator approves it.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*model.Account, error) {
	if err := validateRegistration(&in); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/account: %w", err)
	}

	account := &model.Account{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
	}
	err = s.repo.WithinTx(ctx, func(tx repository.Repository) error {
		if err := tx.CreateAccount(ctx, account); err != nil {
			return err
		}
		return tx.CreateProfile(ctx, &model.Profile{
			AccountID:   account.ID,
			Role:        in.Role,
			PhoneNumber: in.PhoneNumber,
		})
	})
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, &apperror.AppError{
				Err:     apperror.ErrConflict,
				Message: "A user with that username already exists.",
				Field:   "username",
			}
		}
		return nil, fmt.Errorf("service/account: registering %q: %w", in.Username, err)
	}

	s.logger.Info("account registered",
		slog.String("accountID", account.ID),
		slog.String("username", account.Username),
		slog.String("role", string(in.Role)),
	)
	return account, nil
}

func validateRegistration(in *RegisterInput) error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)

	switch {
	case in.Username == "":
		return apperror.ValidationFailed("username", "Please choose a username.")
	case utf8.RuneCountInString(in.Username) > MaxUsernameLength:
		return apperror.ValidationFailed("username",
			fmt.Sprintf("Username must be %d characters or fewer.", MaxUsernameLength))
	case !usernamePattern.MatchString(in.Username):
		return apperror.ValidationFailed("username",
			"Username may contain only letters, digits and @/./+/-/_ characters.")
	case !validEmail(in.Email):
		return apperror.ValidationFailed("email", "Please enter a valid email address.")
	case len(in.Password) < MinPasswordLength:
		return apperror.ValidationFailed("password",
			fmt.Sprintf("Password must be at least %d characters.", MinPasswordLength))
	case len(in.Password) > auth.MaxPasswordBytes:
		return apperror.ValidationFailed("password",
			fmt.Sprintf("Password must be %d bytes or fewer.", auth.MaxPasswordBytes))
	case in.Password != in.PasswordConfirm:
		return apperror.ValidationFailed("password_confirm", "The two password fields didn't match.")
	case utf8.RuneCountInString(in.PhoneNumber) > MaxPhoneLength:
		return apperror.ValidationFailed("phone_number",
			fmt.Sprintf("Phone number must be %d characters or fewer.", MaxPhoneLength))
	case !in.Role.Valid():
		return apperror.ValidationFailed("role", "Please choose Donor or NGO.")
	}
	return nil
}

// Login checks the password and whether the account may sign in. Unknown
// usernames and wrong passwords yield the same message.
func (s *AccountService) Login(ctx context.Context, username, password string) (*model.Account, error) {
	account, err := s.repo.GetAccountByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, invalidCredentials()
		}
		return nil, fmt.Errorf("service/account: login: %w", err)
	}
	if account.PasswordHash == "" {
		return nil, invalidCredentials()
	}

	if err := s.passwords.Verify(account.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, invalidCredentials()
		}
		return nil, fmt.Errorf("service/account: login: %w", err)
	}

	if err := s.gate.AdmitLogin(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("account logged in", slog.String("accountID", account.ID))
	return account, nil
}

// LoginWithGitHub signs in the account linked to gh, or links gh to the
// account registered with the same email. It never creates accounts.
func (s *AccountService) LoginWithGitHub(ctx context.Context, gh *auth.GitHubUser) (*model.Account, error) {
	if gh == nil {
		return nil, fmt.Errorf("service/account: GitHub user must not be nil")
	}
	noMatch := &apperror.AppError{
		Err:     apperror.ErrUnauthenticated,
		Message: "No account matches this GitHub login. Register first, then sign in with GitHub.",
	}

	account, err := s.repo.GetAccountByGitHubID(ctx, gh.ID)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/account: github login: %w", err)
		}
		if gh.Email == "" {
			return nil, noMatch
		}
		account, err = s.repo.GetAccountByEmail(ctx, gh.Email)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return nil, noMatch
			}
			return nil, fmt.Errorf("service/account: github login: %w", err)
		}
	}

	if err := s.gate.AdmitLogin(ctx, account); err != nil {
		return nil, err
	}

	if account.GitHubID == nil {
		if err := s.repo.LinkGitHub(ctx, account.ID, gh.ID); err != nil {
			return nil, fmt.Errorf("service/account: linking github: %w", err)
		}
		id := gh.ID
		account.GitHubID = &id
		s.logger.Info("github linked", slog.String("accountID", account.ID), slog.String("login", gh.Login))
	}

	s.logger.Info("account logged in via GitHub", slog.String("accountID", account.ID))
	return account, nil
}

// Profiles lists profiles for the admin surface.
func (s *AccountService) Profiles(ctx context.Context, f repository.ProfileFilter) ([]model.ProfileRow, error) {
	rows, err := s.repo.ListProfiles(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("service/account: listing profiles: %w", err)
	}
	return rows, nil
}

// Approve approves each username in turn. A failing row is reported in its
// result and never stops the batch. Newly approved accounts get an email.
func (s *AccountService) Approve(ctx context.Context, usernames ...string) []ApprovalResult {
	results := make([]ApprovalResult, 0, len(usernames))
	for _, name := range usernames {
		res := ApprovalResult{Username: name}
		res.Approved, res.Err = s.approveOne(ctx, name)
		if res.Err != nil {
			s.logger.Warn("approval failed", slog.String("username", name), slog.String("error", res.Err.Error()))
		}
		results = append(results, res)
	}
	return results
}

func (s *AccountService) approveOne(ctx context.Context, username string) (bool, error) {
	account, err := s.repo.GetAccountByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	changed, err := s.repo.ApproveProfile(ctx, account.ID)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	s.logger.Info("account approved", slog.String("accountID", account.ID), slog.String("username", username))
	if account.Email != "" && s.mail != nil {
		s.mail.Enqueue(mailer.Message{
			To:      account.Email,
			Subject: "Your NoWasteMate account is approved",
			Body: fmt.Sprintf("Hello %s,\n\nYour account has been approved. You can now log in and start using NoWasteMate.\n",
				account.Username),
		})
	}
	return true, nil
}

// CreateAdmin creates an administrator account. Administrators have no
// profile and manage the site from the admin CLI.
func (s *AccountService) CreateAdmin(ctx context.Context, username, email, password string) (*model.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || !usernamePattern.MatchString(username) {
		return nil, apperror.ValidationFailed("username", "Please choose a valid username.")
	}
	switch {
	case len(password) < MinPasswordLength:
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("Password must be at least %d characters.", MinPasswordLength))
	case len(password) > auth.MaxPasswordBytes:
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("Password must be %d bytes or fewer.", auth.MaxPasswordBytes))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/account: %w", err)
	}
	account := &model.Account{
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		IsAdmin:      true,
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("service/account: creating admin %q: %w", username, err)
	}
	s.logger.Info("admin created", slog.String("accountID", account.ID), slog.String("username", username))
	return account, nil
}
