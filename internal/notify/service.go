// Package notify mails failure notices to the person who uploaded a file.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/bates-must-flow/internal/common"
	"github.com/Veraticus/bates-must-flow/internal/model"
)

// ErrNoRecipient is returned when neither the uploader nor a fallback
// address is known.
var ErrNoRecipient = errors.New("no notification recipient")

// UserDirectory resolves a document-store user to an email address.
type UserDirectory interface {
	UserEmail(ctx context.Context, creds model.Credentials, userID string) (string, error)
}

// Service renders and sends failure notices. It implements the engine's
// Notifier.
type Service struct {
	sender    Sender
	directory UserDirectory
	logger    *slog.Logger
	from      string
	fallback  string
}

// NewService creates a notification service. directory may be nil, in which
// case every notice goes to the fallback recipient.
func NewService(sender Sender, directory UserDirectory, cfg Config, logger *slog.Logger) *Service {
	return &Service{
		sender:    sender,
		directory: directory,
		from:      cfg.Sender,
		fallback:  cfg.FallbackRecipient,
		logger:    common.OrDefault(logger),
	}
}

// Notify sends one notice for perr to the uploader.
func (s *Service) Notify(ctx context.Context, perr *model.ProcessingError, originalFileName, link string) error {
	to, err := s.recipient(ctx, perr.Context["user_id"])
	if err != nil {
		return err
	}

	msg, err := Render(perr, originalFileName, link)
	if err != nil {
		return err
	}
	msg.To = to

	if err := s.sender.Send(ctx, s.from, msg); err != nil {
		return fmt.Errorf("failed to send %s notice: %w", perr.Kind, err)
	}
	s.logger.Info("Sent failure notice", "kind", perr.Kind, "file_id", perr.FileID, "to", to)
	return nil
}

func (s *Service) recipient(ctx context.Context, userID string) (string, error) {
	if userID != "" && s.directory != nil {
		email, err := s.directory.UserEmail(ctx, model.Credentials{UserID: userID}, userID)
		if err == nil && email != "" {
			return email, nil
		}
		s.logger.Warn("Could not resolve uploader email", "user_id", userID, "error", err)
	}
	if s.fallback != "" {
		return s.fallback, nil
	}
	return "", fmt.Errorf("%w for user %q", ErrNoRecipient, userID)
}
