package mailer

import (
	"context"
	"net/http"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

var (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendgridSender sends through the SendGrid v3 mail API.
type SendgridSender struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
}

func NewSendgridSender(key, appName, fromName, fromEmail string) *SendgridSender {
	if fromName == "" {
		fromName = appName
	}
	return &SendgridSender{
		key:        key,
		from:       sgmail.NewEmail(fromName, fromEmail),
		subjPrefix: "[" + appName + "] ",
	}
}

func (s *SendgridSender) Send(ctx context.Context, msg *Message) error {
	p := sgmail.NewPersonalization()
	p.Subject = s.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.To.Name, msg.To.Address))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(
		sgmail.NewContent("text/plain", msg.TextContent),
		sgmail.NewContent("text/html", msg.HTMLContent),
	)

	req := sendgrid.GetRequest(s.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return errors.Wrap(err, "sendgrid request")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("sendgrid responded %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// ConsoleSender logs messages instead of sending them and keeps a copy of each.
type ConsoleSender struct {
	mu   sync.Mutex
	sent []Message
}

func NewConsoleSender() *ConsoleSender {
	return &ConsoleSender{}
}

func (s *ConsoleSender) Send(_ context.Context, msg *Message) error {
	log.Info().
		Str("to", msg.To.String()).
		Str("subject", msg.Subject).
		Str("template", msg.TemplateName).
		Msg(msg.TextContent)

	s.mu.Lock()
	s.sent = append(s.sent, *msg)
	s.mu.Unlock()
	return nil
}

// Sent returns the messages logged so far.
func (s *ConsoleSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}
