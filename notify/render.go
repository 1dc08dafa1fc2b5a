// Package notify delivers identity notifications over mail transports.
package notify

import (
	"embed"
	"strings"

	"github.com/flosch/pongo2/v6"
	goerrors "github.com/goliatone/go-errors"
	identity "github.com/nas-health/go-identity"
)

//go:embed templates/*.txt
var templateFS embed.FS

var templateNames = map[identity.NotificationKind]string{
	identity.NotifyRegistrationVerify: "registration_verify",
	identity.NotifyEmailChangeVerify:  "email_change_verify",
	identity.NotifyPasswordReset:      "password_reset",
}

// Message is a rendered notification ready for a transport.
type Message struct {
	To      string
	Subject string
	Body    string
}

type compiled struct {
	subject *pongo2.Template
	body    *pongo2.Template
}

// Renderer turns notifications into messages using the embedded templates.
type Renderer struct {
	globals   pongo2.Context
	templates map[identity.NotificationKind]compiled
}

// NewRenderer compiles the templates. globals are visible to every template
// and are overridden by notification payload keys.
func NewRenderer(globals map[string]any) (*Renderer, error) {
	r := &Renderer{
		globals:   pongo2.Context{},
		templates: make(map[identity.NotificationKind]compiled, len(templateNames)),
	}
	for k, v := range globals {
		r.globals[k] = v
	}

	for kind, name := range templateNames {
		subject, err := compile(name + ".subject.txt")
		if err != nil {
			return nil, err
		}
		body, err := compile(name + ".body.txt")
		if err != nil {
			return nil, err
		}
		r.templates[kind] = compiled{subject: subject, body: body}
	}

	return r, nil
}

func compile(file string) (*pongo2.Template, error) {
	raw, err := templateFS.ReadFile("templates/" + file)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "missing notification template").
			WithMetadata(map[string]any{"template": file})
	}

	tpl, err := pongo2.FromString(string(raw))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "invalid notification template").
			WithMetadata(map[string]any{"template": file})
	}
	return tpl, nil
}

// Render builds the message for n.
func (r *Renderer) Render(n identity.Notification) (Message, error) {
	tpl, ok := r.templates[n.Kind]
	if !ok {
		return Message{}, goerrors.New("unknown notification kind", goerrors.CategoryBadInput).
			WithTextCode("UNKNOWN_NOTIFICATION").
			WithMetadata(map[string]any{"kind": n.Kind})
	}

	ctx := pongo2.Context{}
	ctx.Update(r.globals)
	for k, v := range n.Payload {
		ctx[k] = v
	}
	ctx["recipient"] = n.Recipient

	subject, err := tpl.subject.Execute(ctx)
	if err != nil {
		return Message{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render subject")
	}

	body, err := tpl.body.Execute(ctx)
	if err != nil {
		return Message{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render body")
	}

	return Message{
		To:      n.Recipient,
		Subject: strings.TrimSpace(subject),
		Body:    body,
	}, nil
}
