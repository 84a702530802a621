package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/sakif/nowastemate/internal/apperror"
	"github.com/sakif/nowastemate/internal/model"
	"github.com/sakif/nowastemate/internal/repository"
)

const (
	MaxContactNameLength    = 100
	MaxContactSubjectLength = 200
	MaxContactMessageLength = 5000
)

type ContactService struct {
	repo   repository.ContactRepository
	logger *slog.Logger
}

func NewContactService(repo repository.ContactRepository, logger *slog.Logger) *ContactService {
	return &ContactService{repo: repo, logger: logger}
}

// Submit stores a message from the public contact form.
func (s *ContactService) Submit(ctx context.Context, m *model.ContactMessage) error {
	m.Name = strings.TrimSpace(m.Name)
	m.Email = strings.TrimSpace(m.Email)
	m.Subject = strings.TrimSpace(m.Subject)
	m.Message = strings.TrimSpace(m.Message)

	switch {
	case m.Name == "":
		return apperror.ValidationFailed("name", "Please enter your name.")
	case utf8.RuneCountInString(m.Name) > MaxContactNameLength:
		return apperror.ValidationFailed("name",
			fmt.Sprintf("Name must be %d characters or less.", MaxContactNameLength))
	case !validEmail(m.Email):
		return apperror.ValidationFailed("email", "Please enter a valid email address.")
	case m.Subject == "":
		return apperror.ValidationFailed("subject", "Please enter a subject.")
	case utf8.RuneCountInString(m.Subject) > MaxContactSubjectLength:
		return apperror.ValidationFailed("subject",
			fmt.Sprintf("Subject must be %d characters or less.", MaxContactSubjectLength))
	case m.Message == "":
		return apperror.ValidationFailed("message", "Please enter a message.")
	case utf8.RuneCountInString(m.Message) > MaxContactMessageLength:
		return apperror.ValidationFailed("message",
			fmt.Sprintf("Message must be %d characters or less.", MaxContactMessageLength))
	}

	if err := s.repo.CreateContactMessage(ctx, m); err != nil {
		return fmt.Errorf("service/contact: saving message: %w", err)
	}
	s.logger.Info("contact message received", slog.String("id", m.ID), slog.String("subject", m.Subject))
	return nil
}

func (s *ContactService) List(ctx context.Context, opts repository.ListOptions) ([]model.ContactMessage, error) {
	msgs, err := s.repo.ListContactMessages(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("service/contact: listing: %w", err)
	}
	return msgs, nil
}

func (s *ContactService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteContactMessage(ctx, id); err != nil {
		return fmt.Errorf("service/contact: deleting %s: %w", id, err)
	}
	return nil
}

// validEmail accepts a bare address, not a "Name <addr>" form.
func validEmail(s string) bool {
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
