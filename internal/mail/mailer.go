// Package mail delivers the owner notification and client receipt emails
// over SMTP.
package mail

import (
	"bytes"
	"fmt"
	"io"

	gomail "gopkg.in/gomail.v2"

	"github.com/taxlakay/taxdrop/internal/config"
)

// Attachment is one in-memory file to attach to a message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Mailer sends messages through a configured SMTP account.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
	owner  string
}

// New constructs a Mailer from the Config.
func New(cfg *config.Config) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.EmailUser, cfg.EmailPass),
		from:   cfg.EmailUser,
		owner:  cfg.OwnerEmail,
	}
}

// SendOwner delivers the submission notification with the uploaded
// documents attached.
func (m *Mailer) SendOwner(subject, body string, attachments []Attachment) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, "Tax Lakay Upload")
	msg.SetHeader("To", m.owner)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	for _, att := range attachments {
		att := att
		msg.Attach(att.Name,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := io.Copy(w, bytes.NewReader(att.Data))
				return err
			}),
			gomail.SetHeader(map[string][]string{"Content-Type": {att.ContentType}}),
		)
	}
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send owner email: %w", err)
	}
	return nil
}

// SendClient delivers a plain-text message to a client address.
func (m *Mailer) SendClient(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, "Tax Lakay")
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send client email: %w", err)
	}
	return nil
}
