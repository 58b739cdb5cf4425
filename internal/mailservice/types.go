package mailservice

import (
	"context"
	"html/template"
	"sync"

	"github.com/go-mail/mail/v2"

	"github.com/sushihentaime/quillpost/internal/common"
)

const (
	welcomeTemplate             = "welcome_email.html"
	commentNotificationTemplate = "comment_notification.html"
)

type MailService struct {
	mb     common.MessageConsumer
	m      Mailer
	logger MailLogger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type MailLogger interface {
	Error(msg string, args ...any)
	Info(msg string, args ...any)
}

type Mail struct {
	mu     sync.Mutex
	dialer Dialer
	parser TemplateParser
	sender string
}

type Mailer interface {
	send(recipient string, data any, templateFile string) error
}

// Template renders the embedded email templates. Parsed templates are kept for reuse.
type Template struct {
	mu    sync.RWMutex
	cache map[string]*template.Template
}

// Rendered holds the three blocks every email template defines.
type Rendered struct {
	Subject   string
	PlainBody string
	HTMLBody  string
}

type Dialer interface {
	DialAndSend(m ...*mail.Message) error
}

type TemplateParser interface {
	Render(name string, data any) (*Rendered, error)
}

// envelope is one decoded delivery ready to be mailed.
type envelope struct {
	recipient string
	data      any
	template  string
}
