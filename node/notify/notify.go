package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/bioimage-io/backoffice/node/config"
	"github.com/bioimage-io/backoffice/types"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("notify")

// Sender delivers a plain text mail.
type Sender interface {
	Send(ctx context.Context, to string, subject string, body string) error
}

// SmtpSender sends mails through an implicit TLS SMTP server.
type SmtpSender struct {
	cfg config.Mail
}

func NewSmtpSender(cfg config.Mail) *SmtpSender {
	return &SmtpSender{cfg: cfg}
}

func (s *SmtpSender) Send(ctx context.Context, to string, subject string, body string) error {
	addr := net.JoinHostPort(s.cfg.SmtpHost, fmt.Sprintf("%d", s.cfg.SmtpPort))
	dialer := &tls.Dialer{Config: &tls.Config{ServerName: s.cfg.SmtpHost}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return types.Wrap(types.ErrNotifyFailed, err)
	}

	c, err := smtp.NewClient(conn, s.cfg.SmtpHost)
	if err != nil {
		_ = conn.Close()
		return types.Wrap(types.ErrNotifyFailed, err)
	}
	defer c.Close() //nolint:errcheck

	if s.cfg.Password != "" {
		auth := smtp.PlainAuth("", s.cfg.BotEmail, s.cfg.Password, s.cfg.SmtpHost)
		if err := c.Auth(auth); err != nil {
			return types.Wrap(types.ErrNotifyFailed, err)
		}
	}
	if err := c.Mail(s.cfg.BotEmail); err != nil {
		return types.Wrap(types.ErrNotifyFailed, err)
	}
	if err := c.Rcpt(to); err != nil {
		return types.Wrap(types.ErrNotifyFailed, err)
	}
	w, err := c.Data()
	if err != nil {
		return types.Wrap(types.ErrNotifyFailed, err)
	}
	if _, err := w.Write(Message(s.cfg.BotEmail, to, subject, body)); err != nil {
		return types.Wrap(types.ErrNotifyFailed, err)
	}
	if err := w.Close(); err != nil {
		return types.Wrap(types.ErrNotifyFailed, err)
	}
	return c.Quit()
}

// Message renders a plain text mail.
func Message(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// Mailroom notifies uploaders about status changes of their resources.
type Mailroom struct {
	sender        Sender
	botEmail      string
	subjectPrefix string
}

func NewMailroom(sender Sender, botEmail string, subjectPrefix string) *Mailroom {
	return &Mailroom{sender: sender, botEmail: botEmail, subjectPrefix: subjectPrefix}
}

func Subject(prefix, id, version, subjectEnd string) string {
	return fmt.Sprintf("%s%s %s %s", prefix, id, version, strings.TrimSpace(subjectEnd))
}

func Body(name, msg string) string {
	return fmt.Sprintf("Dear %s,\n%s\nKind regards,\nThe bioimage.io bot 🦒\n", name, strings.TrimSpace(msg))
}

// NotifyUploader mails the uploader of resource id in version. Mails to the
// bot itself are skipped.
func (m *Mailroom) NotifyUploader(ctx context.Context, email, name, id, version, subjectEnd, msg string) error {
	if email == "" {
		return types.Wrapf(types.ErrMissingUploader, "%s %s", id, version)
	}
	subject := Subject(m.subjectPrefix, id, version, subjectEnd)
	if email == m.botEmail {
		log.Infof("skipping email '%s' to %s", subject, email)
		return nil
	}
	if name == "" {
		name = email
	}
	if err := m.sender.Send(ctx, email, subject, Body(name, msg)); err != nil {
		return err
	}
	log.Infof("Email '%s' sent to %s", subject, email)
	return nil
}
