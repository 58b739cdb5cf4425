package mailservice

import (
	"time"

	"github.com/go-mail/mail/v2"
)

const dialTimeout = 5 * time.Second

// NewMailer returns a mailer that renders with tp and delivers over SMTP, upgrading to TLS when the
// server offers it.
func NewMailer(host string, port int, username, password, sender string, tp TemplateParser) *Mail {
	dialer := mail.NewDialer(host, port, username, password)
	dialer.Timeout = dialTimeout
	dialer.StartTLSPolicy = mail.OpportunisticStartTLS

	return &Mail{
		dialer: dialer,
		sender: sender,
		parser: tp,
	}
}

func (m *Mail) compose(recipient string, r *Rendered) *mail.Message {
	msg := mail.NewMessage()
	msg.SetHeader("From", m.sender)
	msg.SetHeader("To", recipient)
	msg.SetHeader("Subject", r.Subject)
	msg.SetBody("text/plain", r.PlainBody)
	msg.AddAlternative("text/html", r.HTMLBody)

	return msg
}

// send renders templateFile for recipient and delivers it. Consumers share one dialer, so
// deliveries are serialized.
func (m *Mail) send(recipient string, data any, templateFile string) error {
	r, err := m.parser.Render(templateFile, data)
	if err != nil {
		return err
	}

	msg := m.compose(recipient, r)

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.dialer.DialAndSend(msg)
}
