// Package notifier delivers issued license keys by email.
package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"
)

const mailSubject = "Your Clash Pilot License Key"

// SMTPNotifier sends license keys over authenticated SMTP with STARTTLS.
type SMTPNotifier struct {
	host     string
	port     int
	sender   string
	password string
	logger   *slog.Logger
}

// NewSMTPNotifier creates a notifier for the given SMTP endpoint. The sender
// address doubles as the authentication username.
func NewSMTPNotifier(host string, port int, sender, password string, logger *slog.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		host:     host,
		port:     port,
		sender:   sender,
		password: password,
		logger:   logger.With(slog.String("notifier", "smtp")),
	}
}

// Send delivers the key to the given address. The caller decides what a
// failure means; this method never touches the license record.
func (n *SMTPNotifier) Send(ctx context.Context, email, key string) error {
	msg := mail.NewMsg()
	if err := msg.From(n.sender); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(email); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(mailSubject)
	msg.SetBodyString(mail.TypeTextPlain, MailBody(key))

	client, err := mail.NewClient(n.host,
		mail.WithPort(n.port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(n.sender),
		mail.WithPassword(n.password),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send license key to %s: %w", email, err)
	}

	n.logger.InfoContext(ctx, "license key sent", slog.String("email", email))
	return nil
}

// MailBody renders the plain-text license email.
func MailBody(key string) string {
	return fmt.Sprintf("Thank you for your interest in Clash Pilot!\n\n"+
		"Your License Key: %s\n\n"+
		"Please keep this key safe.\n\n"+
		"Best regards,\nThe BIMORA Team", key)
}
