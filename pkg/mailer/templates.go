package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	texttemplate "text/template"
)

// Template names understood by every sender.
const (
	TemplateEmailVerify = "email_verify"
	TemplateActivation  = "activation"
)

type message struct {
	Subject string
	Text    string
	HTML    string
}

type templateSet struct {
	subject string
	path    string
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

var templates = map[string]templateSet{
	TemplateEmailVerify: {
		subject: "Verify your email address",
		path:    "/verify-email/",
		text: texttemplate.Must(texttemplate.New("verify_text").Parse(
			"Hello,\n\nConfirm your email address by opening the link below:\n\n{{.Link}}\n\nIf you did not register, ignore this message.\n")),
		html: htmltemplate.Must(htmltemplate.New("verify_html").Parse(
			`<p>Hello,</p><p>Confirm your email address by opening <a href="{{.Link}}">this link</a>.</p><p>If you did not register, ignore this message.</p>`)),
	},
	TemplateActivation: {
		subject: "Activate your membership account",
		path:    "/activate/",
		text: texttemplate.Must(texttemplate.New("activation_text").Parse(
			"Hello,\n\nYour membership account is ready. Set your password here:\n\n{{.Link}}\n")),
		html: htmltemplate.Must(htmltemplate.New("activation_html").Parse(
			`<p>Hello,</p><p>Your membership account is ready. <a href="{{.Link}}">Set your password</a>.</p>`)),
	},
}

// Link builds the public URL a template points at.
func Link(baseURL, template, token string) (string, error) {
	set, ok := templates[template]
	if !ok {
		return "", fmt.Errorf("unknown email template %q", template)
	}
	return baseURL + set.path + url.PathEscape(token), nil
}

func render(baseURL, template, token string) (*message, error) {
	set, ok := templates[template]
	if !ok {
		return nil, fmt.Errorf("unknown email template %q", template)
	}

	link, err := Link(baseURL, template, token)
	if err != nil {
		return nil, err
	}
	data := struct{ Link string }{Link: link}

	var text, html bytes.Buffer
	if err := set.text.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("render %s text: %w", template, err)
	}
	if err := set.html.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("render %s html: %w", template, err)
	}

	return &message{Subject: set.subject, Text: text.String(), HTML: html.String()}, nil
}
