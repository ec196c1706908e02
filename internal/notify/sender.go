package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/textproto"

	"github.com/Veraticus/bates-must-flow/internal/common"
	"github.com/Veraticus/bates-must-flow/internal/googleauth"
	"github.com/spf13/afero"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, from string, msg Message) error
}

// GmailSender sends mail through the Gmail API.
type GmailSender struct {
	service *gmail.Service
}

// NewGmailSender authenticates with a service account (impersonating the
// sender) or an OAuth2 refresh token.
func NewGmailSender(ctx context.Context, cfg Config) (*GmailSender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gmail configuration: %w", err)
	}

	httpClient, err := googleauth.HTTPClient(ctx, afero.NewOsFs(), cfg.Credentials(), gmail.GmailSendScope)
	if err != nil {
		return nil, err
	}

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create gmail service: %w", err)
	}
	return &GmailSender{service: srv}, nil
}

// Send delivers msg as the authenticated user.
func (s *GmailSender) Send(ctx context.Context, from string, msg Message) error {
	raw, err := BuildMIME(from, msg)
	if err != nil {
		return err
	}
	sent, err := s.service.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", msg.To, err)
	}
	slog.Debug("Sent notification", "to", msg.To, "message_id", sent.Id)
	return nil
}

// LogSender writes messages to the log instead of mailing them.
type LogSender struct {
	Logger *slog.Logger
}

// Send logs msg.
func (s LogSender) Send(_ context.Context, from string, msg Message) error {
	common.OrDefault(s.Logger).Info("Notification",
		"from", from,
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Text)
	return nil
}

// BuildMIME renders msg as a multipart/alternative RFC 5322 message.
func BuildMIME(from string, msg Message) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	parts := []struct{ contentType, content string }{
		{"text/plain; charset=UTF-8", msg.Text},
		{"text/html; charset=UTF-8", msg.HTML},
	}
	for _, p := range parts {
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.contentType},
			"Content-Transfer-Encoding": {"8bit"},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create mime part: %w", err)
		}
		if _, err := w.Write([]byte(p.content)); err != nil {
			return nil, fmt.Errorf("failed to write mime part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close mime message: %w", err)
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "From: %s\r\n", from)
	fmt.Fprintf(&out, "To: %s\r\n", msg.To)
	fmt.Fprintf(&out, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	out.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&out, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mw.Boundary())
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

var (
	_ Sender = (*GmailSender)(nil)
	_ Sender = LogSender{}
)
