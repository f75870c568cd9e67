package mailer

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/rs/zerolog/log"
	"prepcuet/internal/domain"
)

// Notifier renders and sends the workflow emails. Every method reports
// delivery as a bool; failures are logged here and never returned.
type Notifier struct {
	sender   Sender
	renderer *Renderer
	timeout  time.Duration
}

func NewNotifier(sender Sender, renderer *Renderer, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{sender: sender, renderer: renderer, timeout: timeout}
}

func (n *Notifier) SubmissionConfirmed(ctx context.Context, p domain.NotificationPayload) bool {
	return n.send(ctx, tmplSubmissionConfirmed, fmt.Sprintf("Test submitted: %s", p.TestTitle), p)
}

func (n *Notifier) ResultReady(ctx context.Context, p domain.NotificationPayload) bool {
	return n.send(ctx, tmplResultReady, fmt.Sprintf("Your result is ready: %s", p.TestTitle), p)
}

func (n *Notifier) NewTestBroadcast(ctx context.Context, p domain.NotificationPayload) bool {
	return n.send(ctx, tmplNewTestBroadcast, fmt.Sprintf("New mock test: %s", p.TestTitle), p)
}

func (n *Notifier) send(ctx context.Context, tmpl, subject string, p domain.NotificationPayload) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("template", tmpl).Msg("email send panicked")
			ok = false
		}
	}()

	if p.Email == "" {
		return false
	}
	msg := &Message{
		To:           mail.Address{Name: p.Name, Address: p.Email},
		Subject:      subject,
		TemplateName: tmpl,
		Data:         p,
	}
	if err := n.renderer.Render(msg); err != nil {
		log.Error().Err(err).Str("template", tmpl).Msg("render email")
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	if err := n.sender.Send(ctx, msg); err != nil {
		log.Error().Err(err).Str("template", tmpl).Str("to", p.Email).Msg("send email")
		return false
	}
	return true
}
