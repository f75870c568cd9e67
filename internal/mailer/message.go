package mailer

import (
	"bytes"
	"embed"
	htmltmpl "html/template"
	"net/mail"
	texttmpl "text/template"

	"github.com/pkg/errors"
	"prepcuet/internal/domain"
)

//go:embed all:templates
var templateFS embed.FS

const (
	tmplSubmissionConfirmed = "submission_confirmed"
	tmplResultReady         = "result_ready"
	tmplNewTestBroadcast    = "new_test_broadcast"
)

// Message is one outgoing email. TextContent and HTMLContent are filled by Render.
type Message struct {
	To           mail.Address
	Subject      string
	TemplateName string
	Data         domain.NotificationPayload

	TextContent string
	HTMLContent string
}

func (m *Message) HasContent() bool { return m.TextContent != "" || m.HTMLContent != "" }

type contextData struct {
	AppName string
	SiteURL string
	Data    domain.NotificationPayload
}

// Renderer executes the embedded email templates. Each template pairs a
// .txt and a .gohtml file with the shared _base layout.
type Renderer struct {
	appName string
	siteURL string
	text    map[string]*texttmpl.Template
	html    map[string]*htmltmpl.Template
}

func NewRenderer(appName, siteURL string) (*Renderer, error) {
	r := &Renderer{
		appName: appName,
		siteURL: siteURL,
		text:    make(map[string]*texttmpl.Template),
		html:    make(map[string]*htmltmpl.Template),
	}
	for _, name := range []string{tmplSubmissionConfirmed, tmplResultReady, tmplNewTestBroadcast} {
		txt, err := texttmpl.ParseFS(templateFS, "templates/_base.txt", "templates/"+name+".txt")
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s.txt", name)
		}
		html, err := htmltmpl.ParseFS(templateFS, "templates/_base.gohtml", "templates/"+name+".gohtml")
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s.gohtml", name)
		}
		r.text[name] = txt.Option("missingkey=error")
		r.html[name] = html.Option("missingkey=error")
	}
	return r, nil
}

// Render fills the message bodies from its template.
func (r *Renderer) Render(m *Message) error {
	txt, ok := r.text[m.TemplateName]
	if !ok {
		return errors.Errorf("unknown email template %q", m.TemplateName)
	}
	data := contextData{AppName: r.appName, SiteURL: r.siteURL, Data: m.Data}

	var buf bytes.Buffer
	if err := txt.ExecuteTemplate(&buf, "base", data); err != nil {
		return errors.Wrapf(err, "render %s text", m.TemplateName)
	}
	m.TextContent = buf.String()

	buf.Reset()
	if err := r.html[m.TemplateName].ExecuteTemplate(&buf, "base", data); err != nil {
		return errors.Wrapf(err, "render %s html", m.TemplateName)
	}
	m.HTMLContent = buf.String()
	return nil
}
